package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// UploadType discriminates who a BOQ upload belongs to.
type UploadType string

const (
	TypeContractor    UploadType = "contractor"
	TypeSubContractor UploadType = "sub_contractor"
)

// ParseUploadType maps a request value to an UploadType, defaulting to
// contractor when the value is empty.
func ParseUploadType(s string) (UploadType, bool) {
	switch s {
	case "", string(TypeContractor):
		return TypeContractor, true
	case string(TypeSubContractor):
		return TypeSubContractor, true
	}
	return "", false
}

// SourceDocument represents one uploaded BOQ file and its processing
// outcome. There is at most one current document per (project, type);
// re-uploading for the same key updates the same record.
type SourceDocument struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	Type        UploadType      `json:"type"`
	Status      string          `json:"status"` // pending, processing, processed, failed
	FileName    string          `json:"file_name"`
	StoragePath string          `json:"storage_path"`
	MimeType    string          `json:"mime_type"`
	SizeBytes   int64           `json:"size_bytes"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PhaseCount  int             `json:"phase_count"`
	ErrorMsg    string          `json:"error_msg,omitempty"`
	UploadedBy  string          `json:"uploaded_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// SourceDocument status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusFailed     = "failed"
)
