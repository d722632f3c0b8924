package repository

import (
	"context"
	"errors"
	"time"

	"github.com/globetrotter/globetrotter-api/internal/domain"

	"gorm.io/gorm"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	FindByTokenHash(ctx context.Context, hash string) (*domain.Session, error)
	Rotate(ctx context.Context, oldHash string, next *domain.Session, now time.Time) error
	DeleteByTokenHash(ctx context.Context, hash string) (bool, error)
	DeleteByIDForUser(ctx context.Context, userID, sessionID uint) error
	DeleteByUserID(ctx context.Context, userID uint) (int64, error)
	ListActiveByUserID(ctx context.Context, userID uint, now time.Time) ([]domain.Session, error)
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	err := r.db.WithContext(ctx).Create(s).Error
	record(ctx, "session", "create", err)
	return err
}

func (r *GormSessionRepository) FindByTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrSessionNotFound
	}
	record(ctx, "session", "find_by_token_hash", err)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Rotate consumes the session identified by oldHash and inserts next in its
// place. The old row is removed with a conditional delete, so of two callers
// racing on the same token exactly one sees a deleted row; the other gets
// ErrSessionNotFound. An expired session is deleted and ErrSessionExpired
// returned without inserting next. On success next.UserID is set from the
// consumed session.
func (r *GormSessionRepository) Rotate(ctx context.Context, oldHash string, next *domain.Session, now time.Time) error {
	expired := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current domain.Session
		if err := tx.Where("token_hash = ?", oldHash).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		res := tx.Where("id = ? AND token_hash = ?", current.ID, oldHash).Delete(&domain.Session{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrSessionNotFound
		}
		if current.Expired(now) {
			expired = true
			return nil
		}
		next.ID = 0
		next.UserID = current.UserID
		return tx.Create(next).Error
	})
	if err == nil && expired {
		err = ErrSessionExpired
	}
	record(ctx, "session", "rotate", err)
	return err
}

func (r *GormSessionRepository) DeleteByTokenHash(ctx context.Context, hash string) (bool, error) {
	res := r.db.WithContext(ctx).Where("token_hash = ?", hash).Delete(&domain.Session{})
	record(ctx, "session", "delete_by_token_hash", res.Error)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteByIDForUser reports ErrSessionNotFound both for unknown ids and for
// sessions owned by a different user.
func (r *GormSessionRepository) DeleteByIDForUser(ctx context.Context, userID, sessionID uint) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", sessionID, userID).Delete(&domain.Session{})
	err := res.Error
	if err == nil && res.RowsAffected == 0 {
		err = ErrSessionNotFound
	}
	record(ctx, "session", "delete_by_id_for_user", err)
	return err
}

func (r *GormSessionRepository) DeleteByUserID(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.Session{})
	record(ctx, "session", "delete_by_user_id", res.Error)
	return res.RowsAffected, res.Error
}

func (r *GormSessionRepository) ListActiveByUserID(ctx context.Context, userID uint, now time.Time) ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, now).
		Order("created_at DESC").
		Order("id DESC").
		Find(&sessions).Error
	record(ctx, "session", "list_active_by_user_id", err)
	return sessions, err
}

func (r *GormSessionRepository) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Session{})
	record(ctx, "session", "cleanup_expired", res.Error)
	return res.RowsAffected, res.Error
}
