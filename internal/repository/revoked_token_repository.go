package repository

import (
	"context"
	"time"

	"github.com/globetrotter/globetrotter-api/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RevokedTokenRepository interface {
	Add(ctx context.Context, hash string, expiresAt time.Time) error
	Exists(ctx context.Context, hash string, now time.Time) (bool, error)
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}

type GormRevokedTokenRepository struct{ db *gorm.DB }

func NewRevokedTokenRepository(db *gorm.DB) RevokedTokenRepository {
	return &GormRevokedTokenRepository{db: db}
}

// Add is idempotent: blacklisting the same token twice keeps the first row.
func (r *GormRevokedTokenRepository) Add(ctx context.Context, hash string, expiresAt time.Time) error {
	row := &domain.RevokedAccessToken{TokenHash: hash, ExpiresAt: expiresAt}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token_hash"}}, DoNothing: true}).
		Create(row).Error
	record(ctx, "revoked_access_token", "add", err)
	return err
}

// Exists ignores rows whose expiry has passed even if the sweeper has not
// removed them yet.
func (r *GormRevokedTokenRepository) Exists(ctx context.Context, hash string, now time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.RevokedAccessToken{}).
		Where("token_hash = ? AND expires_at > ?", hash, now).
		Count(&count).Error
	record(ctx, "revoked_access_token", "exists", err)
	return count > 0, err
}

func (r *GormRevokedTokenRepository) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.RevokedAccessToken{})
	record(ctx, "revoked_access_token", "cleanup_expired", res.Error)
	return res.RowsAffected, res.Error
}
