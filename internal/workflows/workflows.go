package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"origtext/internal/activities"
	"origtext/internal/models"
	"origtext/internal/pipeline"
)

const QueryGetProcessingStatus = "GetProcessingStatus"

const (
	stepProcess = "process_content"
	stepPersist = "persist"
)

// PostProcessWorkflow runs extraction and PDF rendition for one artifact and
// writes the statuses back. A failed processing activity still persists
// failed statuses.
func PostProcessWorkflow(ctx workflow.Context, input PostProcessInput) (string, error) {
	status := ProcessingStatus{
		ID:          input.Artifact.ID,
		CatalogueID: input.Artifact.CatalogueID,
		CurrentStep: "init",
		Status:      "processing",
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetProcessingStatus, func() (ProcessingStatus, error) {
		return status, nil
	}); err != nil {
		return "", err
	}

	processTimeout := input.ProcessTimeout
	if processTimeout <= 0 {
		processTimeout = 15 * time.Minute
	}
	processCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: processTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    2,
		},
	})
	persistCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	})

	status.CurrentStep = stepProcess
	status.Steps[stepProcess] = "processing"
	var processOut activities.ProcessContentOutput
	if err := workflow.ExecuteActivity(processCtx, "ProcessContentActivity", activities.ProcessContentInput{Artifact: input.Artifact}).Get(ctx, &processOut); err != nil {
		reason := fmt.Sprintf("processing failed: %v", err)
		processOut.Outcome = pipeline.Outcome{
			ContentIndexStatus: models.StatusFailed,
			PDFConverStatus:    models.StatusFailed,
			ContentError:       reason,
			PDFError:           reason,
		}
		status.FailReason = reason
		status.Steps[stepProcess] = "failed"
	} else {
		status.Steps[stepProcess] = "done"
	}
	status.ContentIndexStatus = processOut.Outcome.ContentIndexStatus.String()
	status.PDFConverStatus = processOut.Outcome.PDFConverStatus.String()

	status.CurrentStep = stepPersist
	status.Steps[stepPersist] = "processing"
	var persistOut activities.PersistProcessedOutput
	if err := workflow.ExecuteActivity(persistCtx, "PersistProcessedActivity", activities.PersistProcessedInput{
		Artifact: input.Artifact,
		Outcome:  processOut.Outcome,
	}).Get(ctx, &persistOut); err != nil {
		status.Steps[stepPersist] = "failed"
		status.Status = "failed"
		status.FailReason = err.Error()
		return "", err
	}
	status.Steps[stepPersist] = "done"
	status.CurrentStep = "done"

	if !persistOut.Persisted {
		status.Status = "abandoned"
		return status.Status, nil
	}
	status.Status = "processed"
	return status.Status, nil
}
