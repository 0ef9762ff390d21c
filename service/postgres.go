package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/siteworks-dev/siteworks/config"
	"github.com/siteworks-dev/siteworks/model"
)

// PostgresStore is the production Store. Contractor and sub-contractor
// phases live in separate tables; see schema.sql.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg *config.DatabaseConfig) (*PostgresStore, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const sourceDocumentColumns = `id, project_id, type, status, file_name, storage_path,
	mime_type, size_bytes, total_amount, phase_count, COALESCE(error_msg, ''),
	uploaded_by, created_at, updated_at`

func (s *PostgresStore) GetSourceDocument(ctx context.Context, projectID string, t model.UploadType) (*model.SourceDocument, error) {
	query := `SELECT ` + sourceDocumentColumns + `
		FROM source_documents
		WHERE project_id = $1 AND type = $2`

	row := s.pool.QueryRow(ctx, query, projectID, string(t))
	doc, err := scanSourceDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query source document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) ListPhases(ctx context.Context, projectID string, kind model.PhaseKind) ([]*model.Phase, error) {
	query := fmt.Sprintf(`SELECT id, project_id, title, description, budget, status,
			is_active, from_boq, COALESCE(linked_contractor_phase_id::text, ''),
			created_at, updated_at
		FROM %s
		WHERE project_id = $1
		ORDER BY created_at`, phaseTable(kind))

	rows, err := s.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query phases: %w", err)
	}
	defer rows.Close()

	var phases []*model.Phase
	for rows.Next() {
		p := &model.Phase{Kind: kind}
		err := rows.Scan(&p.ID, &p.ProjectID, &p.Title, &p.Description, &p.Budget,
			&p.Status, &p.IsActive, &p.FromBOQ, &p.LinkedContractorPhaseID,
			&p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan phase: %w", err)
		}
		phases = append(phases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating phases: %w", err)
	}
	return phases, nil
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx TxStore) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// MarkSourceDocumentFailed runs on the pool, not inside a transaction:
// it must survive the rollback it usually follows.
func (s *PostgresStore) MarkSourceDocumentFailed(ctx context.Context, projectID string, t model.UploadType, errMsg string) error {
	query := `INSERT INTO source_documents (id, project_id, type, status, error_msg, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (project_id, type)
		DO UPDATE SET status = $4, error_msg = $5, updated_at = now()`

	_, err := s.pool.Exec(ctx, query, uuid.New().String(), projectID, string(t), model.StatusFailed, errMsg)
	if err != nil {
		return fmt.Errorf("failed to record failed status: %w", err)
	}
	return nil
}

type postgresTx struct {
	tx pgx.Tx
}

func (p *postgresTx) UpsertSourceDocumentProcessing(ctx context.Context, doc *model.SourceDocument) (*model.SourceDocument, error) {
	query := `INSERT INTO source_documents (id, project_id, type, status, file_name,
			storage_path, mime_type, size_bytes, uploaded_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		ON CONFLICT (project_id, type)
		DO UPDATE SET status = $4, file_name = $5, storage_path = $6, mime_type = $7,
			size_bytes = $8, uploaded_by = $9, updated_at = now()
		RETURNING ` + sourceDocumentColumns

	row := p.tx.QueryRow(ctx, query, uuid.New().String(), doc.ProjectID, string(doc.Type),
		model.StatusProcessing, doc.FileName, doc.StoragePath, doc.MimeType,
		doc.SizeBytes, doc.UploadedBy)

	saved, err := scanSourceDocument(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert source document: %w", err)
	}
	return saved, nil
}

func (p *postgresTx) CreatePhase(ctx context.Context, phase *model.Phase) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, project_id, title, description, budget,
			status, is_active, from_boq, linked_contractor_phase_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), now(), now())`, phaseTable(phase.Kind))

	id := phase.ID
	if id == "" {
		id = uuid.New().String()
	}

	_, err := p.tx.Exec(ctx, query, id, phase.ProjectID, phase.Title, phase.Description,
		phase.Budget, phase.Status, phase.IsActive, phase.FromBOQ, phase.LinkedContractorPhaseID)
	if err != nil {
		return fmt.Errorf("failed to create %s phase: %w", phase.Kind, err)
	}
	return nil
}

func (p *postgresTx) FinalizeSourceDocument(ctx context.Context, id string, totalAmount decimal.Decimal, phaseCount int) error {
	query := `UPDATE source_documents
		SET status = $2, total_amount = $3, phase_count = $4, error_msg = NULL, updated_at = now()
		WHERE id = $1`

	tag, err := p.tx.Exec(ctx, query, id, model.StatusProcessed, totalAmount, phaseCount)
	if err != nil {
		return fmt.Errorf("failed to finalize source document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func phaseTable(kind model.PhaseKind) string {
	if kind == model.PhaseSubContractor {
		return "subcontractor_phases"
	}
	return "contractor_phases"
}

func scanSourceDocument(row pgx.Row) (*model.SourceDocument, error) {
	doc := &model.SourceDocument{}
	var docType string
	err := row.Scan(&doc.ID, &doc.ProjectID, &docType, &doc.Status, &doc.FileName,
		&doc.StoragePath, &doc.MimeType, &doc.SizeBytes, &doc.TotalAmount,
		&doc.PhaseCount, &doc.ErrorMsg, &doc.UploadedBy, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.Type = model.UploadType(docType)
	return doc, nil
}
