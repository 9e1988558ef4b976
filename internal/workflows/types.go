package workflows

import (
	"time"

	"origtext/internal/models"
)

type PostProcessInput struct {
	Artifact       models.OriginalText `json:"artifact"`
	ProcessTimeout time.Duration       `json:"process_timeout,omitempty"`
}

// ProcessingStatus is served by the GetProcessingStatus query.
type ProcessingStatus struct {
	ID                 string            `json:"id"`
	CatalogueID        int               `json:"catalogue_id"`
	CurrentStep        string            `json:"current_step"`
	Status             string            `json:"status"`
	ContentIndexStatus string            `json:"content_index_status,omitempty"`
	PDFConverStatus    string            `json:"pdf_conver_status,omitempty"`
	FailReason         string            `json:"fail_reason,omitempty"`
	Steps              map[string]string `json:"steps"`
}
