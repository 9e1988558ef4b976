package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"origtext/internal/activities"
	"origtext/internal/models"
	"origtext/internal/pipeline"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func newEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PostProcessWorkflow)
	registerActivityName(env, "ProcessContentActivity", func(context.Context, activities.ProcessContentInput) (activities.ProcessContentOutput, error) {
		return activities.ProcessContentOutput{}, nil
	})
	registerActivityName(env, "PersistProcessedActivity", func(context.Context, activities.PersistProcessedInput) (activities.PersistProcessedOutput, error) {
		return activities.PersistProcessedOutput{}, nil
	})
	return env
}

var artifact = models.OriginalText{ID: "a1", CatalogueID: 3, EntryID: "e1", Name: "notes.txt", MD5: "abcd"}

func TestPostProcessWorkflowSuccess(t *testing.T) {
	env := newEnv(t)
	outcome := pipeline.Outcome{
		ContentIndex:       "text body",
		ContentIndexStatus: models.StatusSuccess,
		PDFConverStatus:    models.StatusUnsupported,
	}
	env.OnActivity("ProcessContentActivity", mock.Anything, activities.ProcessContentInput{Artifact: artifact}).
		Return(activities.ProcessContentOutput{Outcome: outcome}, nil)
	env.OnActivity("PersistProcessedActivity", mock.Anything, activities.PersistProcessedInput{Artifact: artifact, Outcome: outcome}).
		Return(activities.PersistProcessedOutput{Persisted: true}, nil)

	env.ExecuteWorkflow(PostProcessWorkflow, PostProcessInput{Artifact: artifact})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "processed", out)

	res, err := env.QueryWorkflow(QueryGetProcessingStatus)
	require.NoError(t, err)
	var status ProcessingStatus
	require.NoError(t, res.Get(&status))
	require.Equal(t, "success", status.ContentIndexStatus)
	require.Equal(t, "done", status.Steps[stepPersist])
}

func TestPostProcessWorkflowProcessFailureStillPersists(t *testing.T) {
	env := newEnv(t)
	var persisted activities.PersistProcessedInput
	env.OnActivity("ProcessContentActivity", mock.Anything, mock.Anything).
		Return(activities.ProcessContentOutput{}, errors.New("worker lost scratch disk"))
	env.OnActivity("PersistProcessedActivity", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			persisted = args.Get(1).(activities.PersistProcessedInput)
		}).
		Return(activities.PersistProcessedOutput{Persisted: true}, nil)

	env.ExecuteWorkflow(PostProcessWorkflow, PostProcessInput{Artifact: artifact})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	require.Equal(t, models.StatusFailed, persisted.Outcome.ContentIndexStatus)
	require.Equal(t, models.StatusFailed, persisted.Outcome.PDFConverStatus)
	require.NotEmpty(t, persisted.Outcome.ContentError)
}

func TestPostProcessWorkflowAbandoned(t *testing.T) {
	env := newEnv(t)
	env.OnActivity("ProcessContentActivity", mock.Anything, mock.Anything).
		Return(activities.ProcessContentOutput{}, nil)
	env.OnActivity("PersistProcessedActivity", mock.Anything, mock.Anything).
		Return(activities.PersistProcessedOutput{Persisted: false}, nil)

	env.ExecuteWorkflow(PostProcessWorkflow, PostProcessInput{Artifact: artifact})
	require.NoError(t, env.GetWorkflowError())
	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "abandoned", out)
}

func TestWorkflowID(t *testing.T) {
	require.Equal(t, "postprocess-3-a1-abcd", WorkflowID(artifact))
}
