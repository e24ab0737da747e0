package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/schoolcrm/enrichment/internal/core"
	"github.com/schoolcrm/enrichment/internal/domain/model"
)

// MessageRepo reads chat messages. Rows are written by ingestion, never by this service.
type MessageRepo struct {
	DB *sql.DB
}

var _ core.MessageRepository = (*MessageRepo)(nil)

// NewMessageRepo creates a new MessageRepo.
func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{DB: db}
}

// GetByID returns the message, or nil, nil when it does not exist.
func (r *MessageRepo) GetByID(ctx context.Context, id string) (*model.Message, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	var m model.Message
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, organization_id, content, created_at
		FROM chat_messages
		WHERE id = $1
	`, id).Scan(&m.ID, &m.OrganizationID, &m.Content, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}
