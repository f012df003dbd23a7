package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/fiscal-hub/internal/models"
	"github.com/sirupsen/logrus"
)

// WebhookRepository gerencia o log durável de notificações recebidas.
// Cada notificação é gravada antes de qualquer validação ou processamento.
type WebhookRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewWebhookRepository cria uma nova instância do repositório
func NewWebhookRepository(db *DB, logger *logrus.Logger) *WebhookRepository {
	return &WebhookRepository{
		db:     db,
		logger: logger,
	}
}

// Create grava uma notificação bruta recebida
func (r *WebhookRepository) Create(ctx context.Context, provider string, payload []byte) (*models.WebhookRecord, error) {
	record := &models.WebhookRecord{
		ID:         uuid.New(),
		Provider:   provider,
		RawPayload: payload,
		ReceivedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO webhook_records (id, provider, raw_payload, received_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query, record.ID, record.Provider, []byte(record.RawPayload), record.ReceivedAt)
	if err != nil {
		return nil, fmt.Errorf("error inserting webhook record: %w", err)
	}

	return record, nil
}

// List retorna as notificações mais recentes
func (r *WebhookRepository) List(ctx context.Context, limit int) ([]models.WebhookRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, provider, raw_payload, received_at
		FROM webhook_records
		ORDER BY received_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying webhook records: %w", err)
	}
	defer rows.Close()

	var records []models.WebhookRecord
	for rows.Next() {
		var rec models.WebhookRecord
		var payload []byte
		if err := rows.Scan(&rec.ID, &rec.Provider, &payload, &rec.ReceivedAt); err != nil {
			return nil, fmt.Errorf("error scanning webhook record: %w", err)
		}
		rec.RawPayload = payload
		records = append(records, rec)
	}

	return records, rows.Err()
}
