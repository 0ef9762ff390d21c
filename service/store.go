package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/siteworks-dev/siteworks/model"
	"github.com/siteworks-dev/siteworks/pkg/logger"
)

// ErrNotFound is returned by lookups for missing records.
var ErrNotFound = errors.New("record not found")

// TxStore is the write surface available inside one ingestion
// transaction. Either every write made through it becomes visible
// together, or none does.
type TxStore interface {
	// UpsertSourceDocumentProcessing finds or creates the source
	// document for the given (project, type) key, resets its status to
	// processing and overwrites the file metadata. The returned document
	// carries the record's identity.
	UpsertSourceDocumentProcessing(ctx context.Context, doc *model.SourceDocument) (*model.SourceDocument, error)

	// CreatePhase persists one phase of either variant.
	CreatePhase(ctx context.Context, phase *model.Phase) error

	// FinalizeSourceDocument marks the document processed with its
	// computed totals and clears any previous error message.
	FinalizeSourceDocument(ctx context.Context, id string, totalAmount decimal.Decimal, phaseCount int) error
}

// Store is the persistence boundary of the ingestion pipeline.
type Store interface {
	GetSourceDocument(ctx context.Context, projectID string, t model.UploadType) (*model.SourceDocument, error)
	ListPhases(ctx context.Context, projectID string, kind model.PhaseKind) ([]*model.Phase, error)

	// WithinTx runs fn inside a transaction. A non-nil error from fn
	// rolls every write back and is returned unchanged.
	WithinTx(ctx context.Context, fn func(tx TxStore) error) error

	// MarkSourceDocumentFailed records a failed status with the error
	// message, outside any transaction, so a rolled-back ingestion still
	// leaves an observable trace. Best effort.
	MarkSourceDocumentFailed(ctx context.Context, projectID string, t model.UploadType, errMsg string) error

	Close()
}

// MemoryStore is an in-memory Store used in dev mode and tests.
// Production deployments configure the Postgres driver instead.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]*model.SourceDocument // keyed by projectID + "/" + type
	phases []*model.Phase
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]*model.SourceDocument),
	}
}

func docKey(projectID string, t model.UploadType) string {
	return projectID + "/" + string(t)
}

func (s *MemoryStore) GetSourceDocument(ctx context.Context, projectID string, t model.UploadType) (*model.SourceDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[docKey(projectID, t)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *MemoryStore) ListPhases(ctx context.Context, projectID string, kind model.PhaseKind) ([]*model.Phase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.Phase
	for _, p := range s.phases {
		if p.ProjectID == projectID && p.Kind == kind {
			cp := *p
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// WithinTx buffers all writes in the transaction and applies them under
// the store lock only when fn succeeds, so a mid-transaction failure
// leaves no partial state behind.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx TxStore) error) error {
	tx := &memoryTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.doc != nil {
		s.docs[docKey(tx.doc.ProjectID, tx.doc.Type)] = tx.doc
	}
	s.phases = append(s.phases, tx.phases...)
	return nil
}

func (s *MemoryStore) MarkSourceDocumentFailed(ctx context.Context, projectID string, t model.UploadType, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := docKey(projectID, t)
	doc, ok := s.docs[key]
	if !ok {
		doc = &model.SourceDocument{
			ID:        uuid.New().String(),
			ProjectID: projectID,
			Type:      t,
			CreatedAt: time.Now(),
		}
		s.docs[key] = doc
	}
	doc.Status = model.StatusFailed
	doc.ErrorMsg = errMsg
	doc.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) Close() {}

// PhaseCount returns the number of stored phases across all projects.
func (s *MemoryStore) PhaseCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.phases)
}

type memoryTx struct {
	store  *MemoryStore
	doc    *model.SourceDocument
	phases []*model.Phase
}

func (tx *memoryTx) UpsertSourceDocumentProcessing(ctx context.Context, doc *model.SourceDocument) (*model.SourceDocument, error) {
	tx.store.mu.RLock()
	existing, ok := tx.store.docs[docKey(doc.ProjectID, doc.Type)]
	tx.store.mu.RUnlock()

	now := time.Now()
	pending := *doc
	if ok {
		pending.ID = existing.ID
		pending.CreatedAt = existing.CreatedAt
	} else {
		pending.ID = uuid.New().String()
		pending.CreatedAt = now
	}
	pending.Status = model.StatusProcessing
	pending.UpdatedAt = now

	tx.doc = &pending

	cp := pending
	return &cp, nil
}

func (tx *memoryTx) CreatePhase(ctx context.Context, phase *model.Phase) error {
	cp := *phase
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	tx.phases = append(tx.phases, &cp)
	return nil
}

func (tx *memoryTx) FinalizeSourceDocument(ctx context.Context, id string, totalAmount decimal.Decimal, phaseCount int) error {
	if tx.doc == nil || tx.doc.ID != id {
		logger.Warn(ctx, "finalize for unknown document in transaction", "id", id)
		return ErrNotFound
	}
	tx.doc.Status = model.StatusProcessed
	tx.doc.TotalAmount = totalAmount
	tx.doc.PhaseCount = phaseCount
	tx.doc.ErrorMsg = ""
	tx.doc.UpdatedAt = time.Now()
	return nil
}
