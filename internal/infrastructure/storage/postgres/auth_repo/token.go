package auth_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"setflow/internal/core/apperror"
	"setflow/internal/core/id"
	"setflow/internal/domain/auth"
)

type TokenRepo struct{}

func NewTokenRepo() *TokenRepo { return &TokenRepo{} }

var _ auth.TokenRepository = (*TokenRepo)(nil)

func (r *TokenRepo) SaveRefreshToken(ctx context.Context, t *auth.RefreshToken) error {
	_, err := exec(ctx, psql.Insert("refresh_tokens").
		Columns("id", "user_id", "token_hash", "expires_at", "created_at", "user_agent", "ip_address").
		Values(t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedAt, t.UserAgent,
			squirrel.Expr("NULLIF(?, '')::inet", t.IPAddress)))
	if err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

func (r *TokenRepo) GetRefreshToken(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	var t auth.RefreshToken
	err := get(ctx, &t, psql.
		Select("id", "user_id", "token_hash", "expires_at", "created_at", "revoked_at",
			"COALESCE(revoked_reason, '') AS revoked_reason", "user_agent",
			"COALESCE(host(ip_address), '') AS ip_address").
		From("refresh_tokens").
		Where(squirrel.Eq{"token_hash": tokenHash}))
	if pgxscan.NotFound(err) {
		return nil, apperror.NewNotFound("refresh_token", "")
	}
	if err != nil {
		return nil, fmt.Errorf("query refresh token: %w", err)
	}
	return &t, nil
}

func (r *TokenRepo) RevokeRefreshToken(ctx context.Context, tokenID id.ID, reason string) error {
	_, err := exec(ctx, psql.Update("refresh_tokens").
		Set("revoked_at", squirrel.Expr("now()")).
		Set("revoked_reason", reason).
		Where(squirrel.Eq{"id": tokenID, "revoked_at": nil}))
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (r *TokenRepo) RevokeAllUserTokens(ctx context.Context, userID id.ID, reason string) error {
	_, err := exec(ctx, psql.Update("refresh_tokens").
		Set("revoked_at", squirrel.Expr("now()")).
		Set("revoked_reason", reason).
		Where(squirrel.Eq{"user_id": userID, "revoked_at": nil}))
	if err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

// CleanupExpiredTokens deletes expired tokens and those revoked over a week ago.
func (r *TokenRepo) CleanupExpiredTokens(ctx context.Context) (int, error) {
	tag, err := exec(ctx, psql.Delete("refresh_tokens").Where(squirrel.Or{
		squirrel.Expr("expires_at < now()"),
		squirrel.Expr("revoked_at < now() - INTERVAL '7 days'"),
	}))
	if err != nil {
		return 0, fmt.Errorf("cleanup refresh tokens: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
