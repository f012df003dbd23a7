package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/fiscal-hub/internal/models"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// código de violação de unicidade do PostgreSQL
const pqUniqueViolation = "23505"

// DocumentRepository gerencia as operações de banco de dados para Document
// e sua linha do tempo de LifecycleEvent
type DocumentRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewDocumentRepository cria uma nova instância do repositório
func NewDocumentRepository(db *DB, logger *logrus.Logger) *DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// Create registra um novo documento com seu evento inicial na mesma
// transação. Falha com ConflictError se a referência já existir.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO documents (
				id, reference, external_id, document_type, status,
				submitted_payload, last_response, pdf_path, xml_path,
				created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
			)
		`

		_, err := tx.ExecContext(ctx, query,
			doc.ID, doc.Reference, doc.ExternalID, doc.DocumentType, doc.Status,
			[]byte(doc.SubmittedPayload), []byte(doc.LastResponse), doc.PDFPath, doc.XMLPath,
			doc.CreatedAt, doc.UpdatedAt,
		)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == pqUniqueViolation {
				return &models.ConflictError{Reference: doc.Reference}
			}
			return fmt.Errorf("error inserting document: %w", err)
		}

		eventQuery := `
			INSERT INTO lifecycle_events (id, document_ref, status, message, raw_data, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`

		_, err = tx.ExecContext(ctx, eventQuery,
			uuid.New(), doc.Reference, doc.Status, "document submitted",
			[]byte(doc.LastResponse), doc.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("error inserting initial lifecycle event: %w", err)
		}

		return nil
	})
}

// Get obtém um documento pela referência. Falha com NotFoundError se a
// referência for desconhecida.
func (r *DocumentRepository) Get(ctx context.Context, reference string) (*models.Document, error) {
	query := `
		SELECT id, reference, external_id, document_type, status,
			   submitted_payload, last_response, pdf_path, xml_path,
			   created_at, updated_at
		FROM documents
		WHERE reference = $1
	`

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, reference))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &models.NotFoundError{Reference: reference}
		}
		return nil, fmt.Errorf("error querying document: %w", err)
	}

	return doc, nil
}

// AppendEvent grava um LifecycleEvent e, quando advance for true, atualiza
// status/last_response/updated_at do documento na mesma transação. A linha
// do documento é travada com FOR UPDATE, de modo que appendEvent concorrentes
// para a mesma referência serializam no banco.
func (r *DocumentRepository) AppendEvent(ctx context.Context, reference, status, message string, raw []byte, advance bool) error {
	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var id uuid.UUID
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM documents WHERE reference = $1 FOR UPDATE`, reference,
		).Scan(&id)
		if err != nil {
			if err == sql.ErrNoRows {
				return &models.NotFoundError{Reference: reference}
			}
			return fmt.Errorf("error locking document row: %w", err)
		}

		now := time.Now().UTC()

		_, err = tx.ExecContext(ctx,
			`INSERT INTO lifecycle_events (id, document_ref, status, message, raw_data, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), reference, status, message, raw, now,
		)
		if err != nil {
			return fmt.Errorf("error inserting lifecycle event: %w", err)
		}

		if advance {
			_, err = tx.ExecContext(ctx,
				`UPDATE documents SET status = $1, last_response = $2, updated_at = $3 WHERE reference = $4`,
				status, raw, now, reference,
			)
			if err != nil {
				return fmt.Errorf("error updating document status: %w", err)
			}
		}

		return nil
	})
}

// SetArtifactPath registra o caminho de um artefato baixado (pdf ou xml)
func (r *DocumentRepository) SetArtifactPath(ctx context.Context, reference string, kind models.ArtifactKind, path string) error {
	column := "pdf_path"
	if kind == models.ArtifactXML {
		column = "xml_path"
	}

	query := fmt.Sprintf(`UPDATE documents SET %s = $1, updated_at = $2 WHERE reference = $3`, column)

	result, err := r.db.ExecContext(ctx, query, path, time.Now().UTC(), reference)
	if err != nil {
		return fmt.Errorf("error setting artifact path: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return &models.NotFoundError{Reference: reference}
	}

	return nil
}

// ListByStatus lista documentos em um determinado status
func (r *DocumentRepository) ListByStatus(ctx context.Context, status string) ([]models.Document, error) {
	query := `
		SELECT id, reference, external_id, document_type, status,
			   submitted_payload, last_response, pdf_path, xml_path,
			   created_at, updated_at
		FROM documents
		WHERE status = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("error querying documents by status: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning document: %w", err)
		}
		docs = append(docs, *doc)
	}

	return docs, rows.Err()
}

// ListEvents retorna a linha do tempo de um documento, ordenada por created_at
func (r *DocumentRepository) ListEvents(ctx context.Context, reference string) ([]models.LifecycleEvent, error) {
	query := `
		SELECT id, document_ref, status, message, raw_data, created_at
		FROM lifecycle_events
		WHERE document_ref = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, reference)
	if err != nil {
		return nil, fmt.Errorf("error querying lifecycle events: %w", err)
	}
	defer rows.Close()

	var events []models.LifecycleEvent
	for rows.Next() {
		var ev models.LifecycleEvent
		var raw []byte
		err := rows.Scan(&ev.ID, &ev.DocumentRef, &ev.Status, &ev.Message, &raw, &ev.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning lifecycle event: %w", err)
		}
		ev.RawData = raw
		events = append(events, ev)
	}

	return events, rows.Err()
}

// CountByStatus retorna a contagem agregada de documentos por status
func (r *DocumentRepository) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	query := `SELECT status, COUNT(*) FROM documents GROUP BY status ORDER BY status`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error counting documents by status: %w", err)
	}
	defer rows.Close()

	var counts []models.StatusCount
	for rows.Next() {
		var c models.StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, fmt.Errorf("error scanning status count: %w", err)
		}
		counts = append(counts, c)
	}

	return counts, rows.Err()
}

// scanner cobre *sql.Row e *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row scanner) (*models.Document, error) {
	var doc models.Document
	var payload, response []byte

	err := row.Scan(
		&doc.ID, &doc.Reference, &doc.ExternalID, &doc.DocumentType, &doc.Status,
		&payload, &response, &doc.PDFPath, &doc.XMLPath,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.SubmittedPayload = payload
	doc.LastResponse = response
	return &doc, nil
}
