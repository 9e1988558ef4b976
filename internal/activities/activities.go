package activities

import (
	"context"

	"go.temporal.io/sdk/activity"

	"origtext/internal/pipeline"
)

type Activities struct {
	pipeline *pipeline.Pipeline
}

func New(p *pipeline.Pipeline) *Activities {
	return &Activities{pipeline: p}
}

// ProcessContentActivity fetches, extracts and renders one artifact. Step
// failures are reported in the outcome, never as an activity error. Large
// extracted text is staged in the blob store rather than returned inline.
func (a *Activities) ProcessContentActivity(ctx context.Context, in ProcessContentInput) (ProcessContentOutput, error) {
	activity.GetLogger(ctx).Info("processing original text",
		"catalogueId", in.Artifact.CatalogueID, "id", in.Artifact.ID, "name", in.Artifact.Name)
	out := a.pipeline.Process(ctx, in.Artifact)
	out = a.pipeline.Stage(ctx, in.Artifact, out)
	return ProcessContentOutput{Outcome: out}, nil
}

func (a *Activities) PersistProcessedActivity(ctx context.Context, in PersistProcessedInput) (PersistProcessedOutput, error) {
	ok, err := a.pipeline.Persist(ctx, in.Artifact, in.Outcome)
	if err != nil {
		return PersistProcessedOutput{}, err
	}
	return PersistProcessedOutput{Persisted: ok}, nil
}
