package activities

import (
	"origtext/internal/models"
	"origtext/internal/pipeline"
)

type ProcessContentInput struct {
	Artifact models.OriginalText `json:"artifact"`
}

type ProcessContentOutput struct {
	Outcome pipeline.Outcome `json:"outcome"`
}

type PersistProcessedInput struct {
	Artifact models.OriginalText `json:"artifact"`
	Outcome  pipeline.Outcome    `json:"outcome"`
}

type PersistProcessedOutput struct {
	Persisted bool `json:"persisted"`
}
