package postgres

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"setflow/internal/core/apperror"
)

const (
	idemPending   = "pending"
	idemCompleted = "completed"

	// A pending key older than this belongs to a request that died.
	idemStaleAfter = time.Minute
)

// Replay is a stored response returned for a repeated request.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IdempotencyStore keeps X-Idempotency-Key results in the tenant's
// sys_idempotency table.
type IdempotencyStore struct {
	ttl time.Duration
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{ttl: ttl}
}

// Acquire claims key for this request. It returns a Replay when the same
// request already completed, and an error when the key is busy or was used
// for a different request.
func (s *IdempotencyStore) Acquire(ctx context.Context, key, userID, operation, hash string) (*Replay, error) {
	now := time.Now().UTC()
	q := QuerierFrom(ctx)

	var (
		inserted             bool
		storedUser, storedOp string
		storedHash, status   string
		respStatus           *int
		respType             *string
		body                 []byte
		updatedAt            time.Time
	)
	err := q.QueryRow(ctx, `
		INSERT INTO sys_idempotency (idempotency_key, user_id, operation, request_hash, status, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (idempotency_key) DO UPDATE SET idempotency_key = EXCLUDED.idempotency_key
		RETURNING (xmax = 0), user_id, operation, request_hash, status,
		          response_status, response_content_type, response, updated_at`,
		key, userID, operation, hash, idemPending, now, now.Add(s.ttl),
	).Scan(&inserted, &storedUser, &storedOp, &storedHash, &status, &respStatus, &respType, &body, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if inserted {
		return nil, nil
	}

	if storedUser != userID || storedOp != operation || storedHash != hash {
		return nil, apperror.NewIdempotencyMismatch(key).WithDetail("operation", storedOp)
	}

	if status == idemCompleted {
		r := &Replay{StatusCode: http.StatusOK, ContentType: "application/json", Body: body}
		if respStatus != nil && *respStatus != 0 {
			r.StatusCode = *respStatus
		}
		if respType != nil && *respType != "" {
			r.ContentType = *respType
		}
		return r, nil
	}

	if now.Sub(updatedAt) < idemStaleAfter {
		return nil, apperror.NewIdempotencyConflict(key)
	}
	tag, err := q.Exec(ctx, `
		UPDATE sys_idempotency SET updated_at = $2
		WHERE idempotency_key = $1 AND status = $3 AND updated_at = $4`,
		key, now, idemPending, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("reclaim idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperror.NewIdempotencyConflict(key)
	}
	return nil, nil
}

// Complete stores the response so later requests with key replay it.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	_, err := QuerierFrom(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $2, response_status = $3, response_content_type = $4, response = $5, updated_at = NOW()
		WHERE idempotency_key = $1`,
		key, idemCompleted, statusCode, contentType, body)
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release forgets key so the client may retry, used after server errors.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	_, err := QuerierFrom(ctx).Exec(ctx,
		`DELETE FROM sys_idempotency WHERE idempotency_key = $1 AND status = $2`, key, idemPending)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired removes keys past their TTL.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := QuerierFrom(ctx).Exec(ctx, `DELETE FROM sys_idempotency WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency: %w", err)
	}
	return tag.RowsAffected(), nil
}
