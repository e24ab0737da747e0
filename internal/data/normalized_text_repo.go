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

// NormalizedTextRepo stores message_normalized_texts rows.
type NormalizedTextRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ core.NormalizedTextRepository = (*NormalizedTextRepo)(nil)

// NewNormalizedTextRepo creates a new NormalizedTextRepo.
func NewNormalizedTextRepo(db *sql.DB) *NormalizedTextRepo {
	return &NormalizedTextRepo{DB: db, timeProvider: RealTimeProvider{}}
}

const normalizedTextColumns = `message_id, normalized_text, text_hash, language, tokens_count, created_at, updated_at`

// Upsert writes the normalized form of a message, replacing any previous row.
func (r *NormalizedTextRepo) Upsert(ctx context.Context, nt *model.NormalizedText) error {
	if nt == nil || nt.MessageID == "" {
		return errors.New("normalized text with message id is required")
	}
	if nt.TextHash == "" {
		return errors.New("text hash is required")
	}

	now := r.timeProvider.Now().UTC()
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO message_normalized_texts (message_id, normalized_text, text_hash, language, tokens_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (message_id) DO UPDATE
		SET normalized_text = EXCLUDED.normalized_text,
		    text_hash = EXCLUDED.text_hash,
		    language = EXCLUDED.language,
		    tokens_count = EXCLUDED.tokens_count,
		    updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`, nt.MessageID, nt.NormalizedText, nt.TextHash, nt.Language, nt.TokensCount, now).Scan(&nt.CreatedAt, &nt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert normalized text: %w", err)
	}
	return nil
}

// Get returns the normalized text of a message, or nil, nil when absent.
func (r *NormalizedTextRepo) Get(ctx context.Context, messageID string) (*model.NormalizedText, error) {
	if _, err := uuid.Parse(messageID); err != nil {
		return nil, nil
	}
	row := r.DB.QueryRowContext(ctx, `SELECT `+normalizedTextColumns+` FROM message_normalized_texts WHERE message_id = $1`, messageID)
	nt, err := scanNormalizedText(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get normalized text: %w", err)
	}
	return nt, nil
}

// GetMany returns the rows that exist for messageIDs keyed by message id.
// Ids that are not UUIDs are ignored.
func (r *NormalizedTextRepo) GetMany(ctx context.Context, messageIDs []string) (map[string]*model.NormalizedText, error) {
	ids := make([]string, 0, len(messageIDs))
	for _, id := range messageIDs {
		if _, err := uuid.Parse(id); err == nil {
			ids = append(ids, id)
		}
	}
	out := make(map[string]*model.NormalizedText, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.DB.QueryContext(ctx, `SELECT `+normalizedTextColumns+` FROM message_normalized_texts WHERE message_id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("get normalized texts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		nt, scanErr := scanNormalizedText(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan normalized text: %w", scanErr)
		}
		out[nt.MessageID] = nt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate normalized texts: %w", err)
	}
	return out, nil
}

func scanNormalizedText(scanner rowScanner) (*model.NormalizedText, error) {
	var nt model.NormalizedText
	if err := scanner.Scan(
		&nt.MessageID,
		&nt.NormalizedText,
		&nt.TextHash,
		&nt.Language,
		&nt.TokensCount,
		&nt.CreatedAt,
		&nt.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &nt, nil
}
