package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "docnum/internal/core/context"
	"docnum/internal/core/id"
)

// AuditAction represents the type of audited operation.
type AuditAction string

const (
	AuditActionCreate  AuditAction = "create"
	AuditActionAdvance AuditAction = "advance"
)

// Audited entity types.
const (
	EntityNumberingRule     = "numbering_rule"
	EntityNumberingSequence = "numbering_sequence"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

const defaultCompressThreshold = 4 * 1024

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID                id.ID           `db:"id" json:"id"`
	EntityType        string          `db:"entity_type" json:"entityType"`
	EntityID          string          `db:"entity_id" json:"entityId"`
	Action            AuditAction     `db:"action" json:"action"`
	UserID            string          `db:"user_id" json:"userId,omitempty"`
	RequestID         string          `db:"request_id" json:"requestId,omitempty"`
	Changes           json.RawMessage `db:"changes" json:"changes,omitempty"`
	ChangesCompressed []byte          `db:"changes_compressed" json:"-"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo" json:"-"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
}

// AuditService writes administrative changes to numbering_audit.
// Entries are written through the TxManager querier, so a Log call inside
// RunInTransaction commits or rolls back together with the change it records.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewAuditService creates a new audit service.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: defaultCompressThreshold,
	}, nil
}

// prepare fills defaults from ctx and compresses large payloads.
func (s *AuditService) prepare(ctx context.Context, entry AuditEntry) AuditEntry {
	if entry.UserID == "" {
		entry.UserID = appctx.GetUserID(ctx)
	}
	if entry.RequestID == "" {
		entry.RequestID = appctx.GetRequestID(ctx)
	}
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	entry.CompressionAlgo = CompressionNone
	if len(entry.Changes) > s.compressThreshold {
		entry.ChangesCompressed = s.encoder.EncodeAll(entry.Changes, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}
	return entry
}

// restore reverses the compression applied by prepare.
func (s *AuditService) restore(entry AuditEntry) (AuditEntry, error) {
	if entry.CompressionAlgo == CompressionZstd && len(entry.ChangesCompressed) > 0 {
		plain, err := s.decoder.DecodeAll(entry.ChangesCompressed, nil)
		if err != nil {
			return entry, fmt.Errorf("decompress changes: %w", err)
		}
		entry.Changes = plain
		entry.ChangesCompressed = nil
	}
	return entry, nil
}

// Log records an audit entry.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	entry = s.prepare(ctx, entry)

	const sql = `
		INSERT INTO numbering_audit (
			id, entity_type, entity_id, action, user_id, request_id,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql,
		entry.ID, entry.EntityType, entry.EntityID, entry.Action,
		entry.UserID, entry.RequestID,
		entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// LogChange marshals changes and records them.
func (s *AuditService) LogChange(ctx context.Context, entityType, entityID string, action AuditAction, changes any) error {
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}

	return s.Log(ctx, AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Changes:    changesJSON,
	})
}

// History returns the newest entries for an entity.
func (s *AuditService) History(ctx context.Context, entityType, entityID string, limit int) ([]AuditEntry, error) {
	const sql = `
		SELECT id, entity_type, entity_id, action, user_id, request_id,
			   changes, changes_compressed, compression_algo, created_at
		FROM numbering_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, sql, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := make([]AuditEntry, 0)
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(
			&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.UserID, &e.RequestID,
			&e.Changes, &e.ChangesCompressed, &e.CompressionAlgo, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		e, err = s.restore(e)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
