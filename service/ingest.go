package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/siteworks-dev/siteworks/boq"
	"github.com/siteworks-dev/siteworks/model"
	"github.com/siteworks-dev/siteworks/pkg/logger"
)

// PreconditionError reports an upload attempted before its prerequisite:
// a sub-contractor BOQ needs a processed contractor BOQ first.
type PreconditionError struct {
	Msg string
}

func (e *PreconditionError) Error() string { return e.Msg }

// IngestRequest carries one BOQ upload into the coordinator.
type IngestRequest struct {
	ProjectID  string
	Type       model.UploadType
	FileName   string
	Data       []byte
	UploadedBy string
}

// IngestResult is returned to the caller on success.
type IngestResult struct {
	Message     string          `json:"message"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PhaseCount  int             `json:"phase_count"`
}

// IngestService is the transactional core of BOQ ingestion. All parsing
// and file-system work happens before the database transaction opens;
// all database writes happen inside one atomic unit.
type IngestService struct {
	store    Store
	objects  ObjectStore
	activity ActivityLogger
}

func NewIngestService(store Store, objects ObjectStore, activity ActivityLogger) *IngestService {
	if activity == nil {
		activity = LogActivityLogger{}
	}
	return &IngestService{
		store:    store,
		objects:  objects,
		activity: activity,
	}
}

// Ingest runs the full pipeline for one uploaded BOQ file: precondition
// check, parse, filter, store the artifact, then one transaction that
// upserts the source document and materializes a draft phase per line
// item. Structural and precondition failures make no persistent change;
// transactional failures roll back, clean up the new artifact, and leave
// the source document in failed state with the error message.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if err := s.checkPrecondition(ctx, req); err != nil {
		return nil, err
	}

	result, err := boq.Parse(req.Data, req.FileName)
	if err != nil {
		return nil, err
	}

	items := filterItems(result.Items)
	totalAmount := decimal.Zero
	for _, item := range items {
		totalAmount = totalAmount.Add(item.Amount)
	}
	kind := model.KindForUpload(req.Type)

	// The previous artifact, if any, is deleted only after a successful
	// commit so committed state never references a missing file.
	oldPath := ""
	if prev, err := s.store.GetSourceDocument(ctx, req.ProjectID, req.Type); err == nil {
		oldPath = prev.StoragePath
	}

	storagePath := artifactPath(req.ProjectID, req.Type, req.FileName)
	contentType := contentTypeFor(req.FileName)
	if err := s.objects.Put(ctx, storagePath, req.Data, contentType); err != nil {
		return nil, fmt.Errorf("failed to store uploaded file: %w", err)
	}

	var phaseCount int
	txErr := s.store.WithinTx(ctx, func(tx TxStore) error {
		doc, err := tx.UpsertSourceDocumentProcessing(ctx, &model.SourceDocument{
			ProjectID:   req.ProjectID,
			Type:        req.Type,
			FileName:    req.FileName,
			StoragePath: storagePath,
			MimeType:    contentType,
			SizeBytes:   int64(len(req.Data)),
			UploadedBy:  req.UploadedBy,
		})
		if err != nil {
			return err
		}

		for _, item := range items {
			phase := phaseFromItem(item, req.ProjectID, kind)
			if phase.ProjectID == "" || phase.ProjectID != req.ProjectID {
				// Bug, not bad input; forces rollback like any
				// persistence failure.
				return fmt.Errorf("internal error: phase %q has project %q, want %q",
					phase.Title, phase.ProjectID, req.ProjectID)
			}
			if err := tx.CreatePhase(ctx, phase); err != nil {
				return err
			}
			phaseCount++
		}

		return tx.FinalizeSourceDocument(ctx, doc.ID, totalAmount, phaseCount)
	})

	if txErr != nil {
		s.cleanupFailed(ctx, req, storagePath, txErr)
		return nil, fmt.Errorf("failed to save BOQ phases: %w", txErr)
	}

	if oldPath != "" && oldPath != storagePath {
		if err := s.objects.Delete(ctx, oldPath); err != nil {
			logger.Warn(ctx, "failed to delete previous BOQ artifact", "path", oldPath, "error", err)
		}
	}

	res := &IngestResult{
		Message:     fmt.Sprintf("Created %d %s phases from %s", phaseCount, req.Type, req.FileName),
		TotalAmount: totalAmount,
		PhaseCount:  phaseCount,
	}
	s.emitActivity(ctx, req, ActivityEvent{
		ProjectID:   req.ProjectID,
		Type:        req.Type,
		Outcome:     model.StatusProcessed,
		Message:     res.Message,
		TotalAmount: res.TotalAmount,
		PhaseCount:  res.PhaseCount,
		Actor:       req.UploadedBy,
	})
	return res, nil
}

// checkPrecondition enforces upload ordering: a sub-contractor BOQ is
// only accepted once the contractor BOQ for the project has been
// processed.
func (s *IngestService) checkPrecondition(ctx context.Context, req IngestRequest) error {
	if req.Type != model.TypeSubContractor {
		return nil
	}

	doc, err := s.store.GetSourceDocument(ctx, req.ProjectID, model.TypeContractor)
	if err != nil || doc.Status != model.StatusProcessed {
		return &PreconditionError{
			Msg: "a processed contractor BOQ is required before uploading a sub-contractor BOQ",
		}
	}
	return nil
}

// cleanupFailed handles the failure path after the artifact was written:
// remove the new artifact (never the old one) and record the failed
// status through a separate best-effort write.
func (s *IngestService) cleanupFailed(ctx context.Context, req IngestRequest, storagePath string, cause error) {
	if err := s.objects.Delete(ctx, storagePath); err != nil {
		logger.Warn(ctx, "failed to delete artifact of failed ingestion", "path", storagePath, "error", err)
	}
	if err := s.store.MarkSourceDocumentFailed(ctx, req.ProjectID, req.Type, cause.Error()); err != nil {
		logger.Warn(ctx, "failed to record failed ingestion status", "error", err)
	}
	s.emitActivity(ctx, req, ActivityEvent{
		ProjectID: req.ProjectID,
		Type:      req.Type,
		Outcome:   model.StatusFailed,
		Message:   cause.Error(),
		Actor:     req.UploadedBy,
	})
}

func (s *IngestService) emitActivity(ctx context.Context, req IngestRequest, event ActivityEvent) {
	if err := s.activity.Record(ctx, event); err != nil {
		logger.Warn(ctx, "failed to emit activity event", "error", err)
	}
}

// filterItems re-checks the golden rule on parsed items. The parser
// already guarantees this; downstream consumers rely on it, so the
// coordinator does not trust the guarantee blindly.
func filterItems(items []boq.LineItem) []boq.LineItem {
	kept := items[:0]
	for _, item := range items {
		if strings.TrimSpace(item.Unit) == "" || !item.Quantity.IsPositive() {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

// phaseFromItem builds the draft phase for one line item. The synthetic
// description embeds section, unit and quantity so the phase reads
// meaningfully on its own. Fields missing from the canonical item fall
// back to the prioritized raw-column extractors, tolerating rows mapped
// by older producers.
func phaseFromItem(item boq.LineItem, projectID string, kind model.PhaseKind) *model.Phase {
	unit := item.Unit
	if unit == "" {
		unit, _ = boq.UnitField.Extract(item.Raw)
	}
	qty := item.Quantity
	if qty.IsZero() {
		if raw, ok := boq.QuantityField.Extract(item.Raw); ok {
			qty = boq.Normalize(raw)
		}
	}

	parts := make([]string, 0, 3)
	if item.Section != "" {
		parts = append(parts, "Section: "+item.Section)
	}
	parts = append(parts, "Unit: "+unit, "Qty: "+qty.String())

	return &model.Phase{
		Kind:        kind,
		ProjectID:   projectID,
		Title:       item.Description,
		Description: strings.Join(parts, " | "),
		Budget:      item.Amount,
		Status:      model.PhaseNotStarted,
		IsActive:    false,
		FromBOQ:     true,
	}
}

func artifactPath(projectID string, t model.UploadType, fileName string) string {
	return fmt.Sprintf("boq/%s/%s/%d_%s", projectID, t, time.Now().UnixNano(), fileName)
}

func contentTypeFor(fileName string) string {
	switch {
	case strings.HasSuffix(strings.ToLower(fileName), ".xlsx"):
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case strings.HasSuffix(strings.ToLower(fileName), ".csv"):
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
