package repository

import (
	"context"
	"errors"
	"time"

	"github.com/globetrotter/globetrotter-api/internal/domain"

	"gorm.io/gorm"
)

var (
	ErrResetTokenNotFound = errors.New("reset token not found")
	ErrResetTokenUsed     = errors.New("reset token already used")
	ErrResetTokenExpired  = errors.New("reset token expired")
)

type PasswordResetRepository interface {
	CreateInvalidatingPrior(ctx context.Context, reset *domain.PasswordReset) error
	Consume(ctx context.Context, hash, newPasswordHash string, now time.Time) (uint, error)
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}

type GormPasswordResetRepository struct{ db *gorm.DB }

func NewPasswordResetRepository(db *gorm.DB) PasswordResetRepository {
	return &GormPasswordResetRepository{db: db}
}

// CreateInvalidatingPrior marks every unused reset token of the user as used
// and stores reset, in one transaction.
func (r *GormPasswordResetRepository) CreateInvalidatingPrior(ctx context.Context, reset *domain.PasswordReset) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.PasswordReset{}).
			Where("user_id = ? AND used = ?", reset.UserID, false).
			Update("used", true).Error; err != nil {
			return err
		}
		return tx.Create(reset).Error
	})
	record(ctx, "password_reset", "create_invalidating_prior", err)
	return err
}

// Consume marks the token used, stores the new password hash and deletes all
// sessions of the owning user. It returns the user id on success.
func (r *GormPasswordResetRepository) Consume(ctx context.Context, hash, newPasswordHash string, now time.Time) (uint, error) {
	var userID uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reset domain.PasswordReset
		if err := tx.Where("token_hash = ?", hash).First(&reset).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrResetTokenNotFound
			}
			return err
		}
		if reset.Used {
			return ErrResetTokenUsed
		}
		if reset.Expired(now) {
			return ErrResetTokenExpired
		}

		res := tx.Model(&domain.PasswordReset{}).
			Where("id = ? AND used = ?", reset.ID, false).
			Update("used", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrResetTokenUsed
		}

		res = tx.Model(&domain.User{}).Where("id = ?", reset.UserID).Update("password_hash", newPasswordHash)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		if err := tx.Where("user_id = ?", reset.UserID).Delete(&domain.Session{}).Error; err != nil {
			return err
		}
		userID = reset.UserID
		return nil
	})
	record(ctx, "password_reset", "consume", err)
	if err != nil {
		return 0, err
	}
	return userID, nil
}

func (r *GormPasswordResetRepository) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.PasswordReset{})
	record(ctx, "password_reset", "cleanup_expired", res.Error)
	return res.RowsAffected, res.Error
}
