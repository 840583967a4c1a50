package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/klauspost/compress/zstd"

	appctx "setflow/internal/core/context"
	"setflow/internal/core/id"
	"setflow/internal/domain/audit"
)

const (
	compressionNone = "none"
	compressionZstd = "zstd"

	// Snapshots above this size are stored zstd-compressed.
	defaultCompressThreshold = 8 << 10
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// AuditStore writes audit entries into the tenant's sys_audit table.
// The table lives in the database of the tenant in ctx.
type AuditStore struct {
	enc       *zstd.Encoder
	dec       *zstd.Decoder
	threshold int
}

func NewAuditStore() (*AuditStore, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &AuditStore{enc: enc, dec: dec, threshold: defaultCompressThreshold}, nil
}

// pack returns the column values for changes: plain JSON or a zstd blob.
func (s *AuditStore) pack(changes []byte) (plain, packed []byte, algo string) {
	if len(changes) <= s.threshold {
		return changes, nil, compressionNone
	}
	return nil, s.enc.EncodeAll(changes, nil), compressionZstd
}

func (s *AuditStore) unpack(plain, packed []byte, algo string) ([]byte, error) {
	if algo != compressionZstd {
		return plain, nil
	}
	out, err := s.dec.DecodeAll(packed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress audit changes: %w", err)
	}
	return out, nil
}

func (s *AuditStore) Record(ctx context.Context, e audit.Entry) error {
	if id.IsNil(e.ID) {
		e.ID = id.New()
	}
	if e.UserID == "" {
		e.UserID = appctx.GetUserID(ctx)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	plain, packed, algo := s.pack(e.Changes)

	query, args, err := psql.Insert("sys_audit").
		Columns("id", "entity_type", "entity_id", "action", "user_id",
			"changes", "changes_compressed", "compression_algo", "created_at").
		Values(e.ID, e.EntityType, e.EntityID, e.Action, nullIfEmpty(e.UserID),
			nullJSON(plain), packed, algo, e.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}
	if _, err := QuerierFrom(ctx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

func (s *AuditStore) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query, args, err := psql.
		Select("id", "entity_type", "entity_id", "action", "COALESCE(user_id, '')",
			"changes", "changes_compressed", "compression_algo", "created_at").
		From("sys_audit").
		Where(sq.Eq{"entity_type": entityType, "entity_id": entityID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit query: %w", err)
	}

	rows, err := QuerierFrom(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var (
			e      audit.Entry
			plain  []byte
			packed []byte
			algo   string
		)
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.UserID,
			&plain, &packed, &algo, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		if e.Changes, err = s.unpack(plain, packed, algo); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ audit.Recorder = (*AuditStore)(nil)
