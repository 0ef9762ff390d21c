package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/siteworks-dev/siteworks/boq"
	"github.com/siteworks-dev/siteworks/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// memObjectStore records artifact operations in memory.
type memObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{objects: make(map[string][]byte)}
}

func (m *memObjectStore) Put(ctx context.Context, objectName string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectName] = data
	return nil
}

func (m *memObjectStore) Delete(ctx context.Context, objectName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectName)
	m.deleted = append(m.deleted, objectName)
	return nil
}

func (m *memObjectStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// faultyStore injects a phase-creation failure into an otherwise working
// store.
type faultyStore struct {
	*MemoryStore
	failOnPhase int
}

func (f *faultyStore) WithinTx(ctx context.Context, fn func(tx TxStore) error) error {
	return f.MemoryStore.WithinTx(ctx, func(tx TxStore) error {
		return fn(&faultyTx{TxStore: tx, failOn: f.failOnPhase})
	})
}

type faultyTx struct {
	TxStore
	created int
	failOn  int
}

func (t *faultyTx) CreatePhase(ctx context.Context, phase *model.Phase) error {
	t.created++
	if t.created == t.failOn {
		return errors.New("simulated insert failure")
	}
	return t.TxStore.CreatePhase(ctx, phase)
}

const contractorCSV = "Description,Qty,Unit,Rate\n" +
	"Excavation,10,m3,15000\n" +
	"Concrete Works,,,\n" +
	"Foundation pour,5,m3,250000\n"

func TestIngestEndToEnd(t *testing.T) {
	store := NewMemoryStore()
	objects := newMemObjectStore()
	svc := NewIngestService(store, objects, nil)
	ctx := context.Background()

	res, err := svc.Ingest(ctx, IngestRequest{
		ProjectID:  "p1",
		Type:       model.TypeContractor,
		FileName:   "boq.csv",
		Data:       []byte(contractorCSV),
		UploadedBy: "user1",
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if res.PhaseCount != 2 {
		t.Errorf("Expected 2 phases, got %d", res.PhaseCount)
	}
	if res.TotalAmount.String() != "1400000" {
		t.Errorf("Expected total 1400000, got %s", res.TotalAmount)
	}

	doc, err := store.GetSourceDocument(ctx, "p1", model.TypeContractor)
	if err != nil {
		t.Fatalf("GetSourceDocument failed: %v", err)
	}
	if doc.Status != model.StatusProcessed {
		t.Errorf("Expected status processed, got %s", doc.Status)
	}
	if doc.PhaseCount != 2 {
		t.Errorf("Expected document phase count 2, got %d", doc.PhaseCount)
	}
	if doc.UploadedBy != "user1" {
		t.Errorf("Expected uploader user1, got %s", doc.UploadedBy)
	}

	phases, err := store.ListPhases(ctx, "p1", model.PhaseContractor)
	if err != nil {
		t.Fatalf("ListPhases failed: %v", err)
	}
	if len(phases) != 2 {
		t.Fatalf("Expected 2 phases, got %d", len(phases))
	}
	for _, p := range phases {
		if p.IsActive {
			t.Error("Expected phases from ingestion to start inactive")
		}
		if !p.FromBOQ {
			t.Error("Expected phases to be marked from BOQ")
		}
		if p.Status != model.PhaseNotStarted {
			t.Errorf("Expected status not_started, got %s", p.Status)
		}
	}
	if phases[1].Title != "Foundation pour" {
		t.Errorf("Expected second phase 'Foundation pour', got %q", phases[1].Title)
	}
	if !strings.Contains(phases[1].Description, "Section: Concrete Works") {
		t.Errorf("Expected section in description, got %q", phases[1].Description)
	}
	if phases[1].Budget.String() != "1250000" {
		t.Errorf("Expected budget 1250000, got %s", phases[1].Budget)
	}

	if objects.count() != 1 {
		t.Errorf("Expected 1 stored artifact, got %d", objects.count())
	}
}

func TestIngestAtomicityOnPhaseFailure(t *testing.T) {
	store := &faultyStore{MemoryStore: NewMemoryStore(), failOnPhase: 2}
	objects := newMemObjectStore()
	svc := NewIngestService(store, objects, nil)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, IngestRequest{
		ProjectID: "p1",
		Type:      model.TypeContractor,
		FileName:  "boq.csv",
		Data:      []byte(contractorCSV),
	})
	if err == nil {
		t.Fatal("Expected ingestion to fail")
	}

	// No phases from the failed ingestion are visible.
	if store.PhaseCount() != 0 {
		t.Errorf("Expected 0 phases after rollback, got %d", store.PhaseCount())
	}

	// The source document records the failure despite the rollback.
	doc, derr := store.GetSourceDocument(ctx, "p1", model.TypeContractor)
	if derr != nil {
		t.Fatalf("Expected a failed source document, got %v", derr)
	}
	if doc.Status != model.StatusFailed {
		t.Errorf("Expected status failed, got %s", doc.Status)
	}
	if doc.ErrorMsg == "" {
		t.Error("Expected a non-empty error message")
	}

	// The newly written artifact was cleaned up.
	if objects.count() != 0 {
		t.Errorf("Expected no artifacts after failure, got %d", objects.count())
	}
}

func TestIngestPreconditionSubContractor(t *testing.T) {
	store := NewMemoryStore()
	objects := newMemObjectStore()
	svc := NewIngestService(store, objects, nil)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, IngestRequest{
		ProjectID: "p1",
		Type:      model.TypeSubContractor,
		FileName:  "sub.csv",
		Data:      []byte(contractorCSV),
	})

	var perr *PreconditionError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected PreconditionError, got %v", err)
	}
	if objects.count() != 0 {
		t.Error("Expected no artifacts written on precondition failure")
	}
	if _, err := store.GetSourceDocument(ctx, "p1", model.TypeSubContractor); !errors.Is(err, ErrNotFound) {
		t.Error("Expected no records created on precondition failure")
	}
}

func TestIngestSubContractorAfterContractor(t *testing.T) {
	store := NewMemoryStore()
	objects := newMemObjectStore()
	svc := NewIngestService(store, objects, nil)
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, IngestRequest{
		ProjectID: "p1",
		Type:      model.TypeContractor,
		FileName:  "main.csv",
		Data:      []byte(contractorCSV),
	}); err != nil {
		t.Fatalf("Contractor ingest failed: %v", err)
	}

	res, err := svc.Ingest(ctx, IngestRequest{
		ProjectID: "p1",
		Type:      model.TypeSubContractor,
		FileName:  "sub.csv",
		Data:      []byte("Description,Qty,Unit,Rate\nElectrical first fix,20,points,45000\n"),
	})
	if err != nil {
		t.Fatalf("Sub-contractor ingest failed: %v", err)
	}
	if res.PhaseCount != 1 {
		t.Errorf("Expected 1 phase, got %d", res.PhaseCount)
	}

	sub, err := store.ListPhases(ctx, "p1", model.PhaseSubContractor)
	if err != nil {
		t.Fatalf("ListPhases failed: %v", err)
	}
	if len(sub) != 1 {
		t.Fatalf("Expected 1 sub-contractor phase, got %d", len(sub))
	}
	if sub[0].Kind != model.PhaseSubContractor {
		t.Errorf("Expected sub-contractor kind, got %s", sub[0].Kind)
	}
}

func TestIngestStructuralErrorNoWrites(t *testing.T) {
	store := NewMemoryStore()
	objects := newMemObjectStore()
	svc := NewIngestService(store, objects, nil)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, IngestRequest{
		ProjectID: "p1",
		Type:      model.TypeContractor,
		FileName:  "boq.csv",
		Data:      []byte("Item No.,Qty,Unit\n1,10,m3\n"), // no description column
	})

	var serr *boq.StructuralError
	if !errors.As(err, &serr) {
		t.Fatalf("Expected StructuralError, got %v", err)
	}
	if objects.count() != 0 {
		t.Error("Expected no artifact for a structurally invalid file")
	}
	if _, err := store.GetSourceDocument(ctx, "p1", model.TypeContractor); !errors.Is(err, ErrNotFound) {
		t.Error("Expected no source document for a structurally invalid file")
	}
}

func TestIngestUnsupportedFormatNoWrites(t *testing.T) {
	store := NewMemoryStore()
	svc := NewIngestService(store, newMemObjectStore(), nil)

	_, err := svc.Ingest(context.Background(), IngestRequest{
		ProjectID: "p1",
		Type:      model.TypeContractor,
		FileName:  "boq.xls",
		Data:      []byte("legacy"),
	})

	var ferr *boq.FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("Expected FormatError, got %v", err)
	}
}

func TestIngestReplacesArtifactOnReupload(t *testing.T) {
	store := NewMemoryStore()
	objects := newMemObjectStore()
	svc := NewIngestService(store, objects, nil)
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, IngestRequest{
		ProjectID: "p1",
		Type:      model.TypeContractor,
		FileName:  "v1.csv",
		Data:      []byte(contractorCSV),
	}); err != nil {
		t.Fatalf("First ingest failed: %v", err)
	}

	firstDoc, _ := store.GetSourceDocument(ctx, "p1", model.TypeContractor)

	if _, err := svc.Ingest(ctx, IngestRequest{
		ProjectID: "p1",
		Type:      model.TypeContractor,
		FileName:  "v2.csv",
		Data:      []byte(contractorCSV),
	}); err != nil {
		t.Fatalf("Second ingest failed: %v", err)
	}

	// The old artifact is gone, only the new one remains.
	if objects.count() != 1 {
		t.Errorf("Expected exactly 1 artifact after re-upload, got %d", objects.count())
	}
	if len(objects.deleted) != 1 || objects.deleted[0] != firstDoc.StoragePath {
		t.Errorf("Expected old artifact %q deleted, got %v", firstDoc.StoragePath, objects.deleted)
	}

	// Same record, updated metadata. Known behavior: phases from the
	// first ingestion remain as orphaned drafts next to the new batch.
	secondDoc, _ := store.GetSourceDocument(ctx, "p1", model.TypeContractor)
	if secondDoc.ID != firstDoc.ID {
		t.Error("Expected re-upload to update the same source document")
	}
	if secondDoc.FileName != "v2.csv" {
		t.Errorf("Expected file name v2.csv, got %s", secondDoc.FileName)
	}
	if store.PhaseCount() != 4 {
		t.Errorf("Expected 4 phases (2 per ingestion, prior batch kept), got %d", store.PhaseCount())
	}
}

func TestIngestFilterDropsUnusableItems(t *testing.T) {
	items := []boq.LineItem{
		{Description: "ok", Unit: "m3", Quantity: dec("5")},
		{Description: "no unit", Unit: "", Quantity: dec("5")},
		{Description: "zero qty", Unit: "m3", Quantity: dec("0")},
	}

	kept := filterItems(items)
	if len(kept) != 1 || kept[0].Description != "ok" {
		t.Errorf("Expected only the valid item kept, got %d items", len(kept))
	}
}

func TestPhaseFromItemFallsBackToRawColumns(t *testing.T) {
	item := boq.LineItem{
		Description: "Blockwork",
		Quantity:    dec("40"),
		Amount:      dec("340000"),
		Raw:         map[string]string{"UOM": "m2"},
	}

	phase := phaseFromItem(item, "p1", model.PhaseContractor)
	if !strings.Contains(phase.Description, "Unit: m2") {
		t.Errorf("Expected unit from raw columns in description, got %q", phase.Description)
	}
}
