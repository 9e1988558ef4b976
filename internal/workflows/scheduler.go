package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	tclient "go.temporal.io/sdk/client"

	"origtext/internal/models"
)

// TemporalScheduler starts PostProcessWorkflow without waiting for it.
type TemporalScheduler struct {
	client         tclient.Client
	taskQueue      string
	processTimeout time.Duration
	log            *slog.Logger
}

func NewTemporalScheduler(c tclient.Client, taskQueue string, processTimeout time.Duration, log *slog.Logger) *TemporalScheduler {
	if log == nil {
		log = slog.Default()
	}
	return &TemporalScheduler{client: c, taskQueue: taskQueue, processTimeout: processTimeout, log: log}
}

// WorkflowID is stable per stored file, so re-scheduling the same content
// while a run is in flight is a no-op.
func WorkflowID(art models.OriginalText) string {
	return fmt.Sprintf("postprocess-%d-%s-%s", art.CatalogueID, art.ID, art.MD5)
}

func (s *TemporalScheduler) Schedule(ctx context.Context, art models.OriginalText) error {
	id := WorkflowID(art)
	_, err := s.client.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:                                       id,
		TaskQueue:                                s.taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, PostProcessWorkflow, PostProcessInput{Artifact: art, ProcessTimeout: s.processTimeout})
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &started) {
		s.log.Info("post-processing already running", "workflowId", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("start post-processing workflow: %w", err)
	}
	s.log.Info("post-processing scheduled", "workflowId", id, "catalogueId", art.CatalogueID, "id", art.ID)
	return nil
}
