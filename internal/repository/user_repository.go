package repository

import (
	"context"
	"errors"

	"github.com/globetrotter/globetrotter-api/internal/domain"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

type UserRepository interface {
	FindByID(ctx context.Context, id uint) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	UpdatePasswordHash(ctx context.Context, id uint, hash string) error
	ApplyPatch(ctx context.Context, id uint, patch domain.ProfilePatch) (*domain.User, error)
	Delete(ctx context.Context, id uint) error
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrUserNotFound
	}
	record(ctx, "user", "find_by_id", err)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrUserNotFound
	}
	record(ctx, "user", "find_by_email", err)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) Create(ctx context.Context, user *domain.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if isUniqueViolation(err) {
		err = ErrEmailTaken
	}
	record(ctx, "user", "create", err)
	return err
}

func (r *GormUserRepository) UpdatePasswordHash(ctx context.Context, id uint, hash string) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update("password_hash", hash)
	err := res.Error
	if err == nil && res.RowsAffected == 0 {
		err = ErrUserNotFound
	}
	record(ctx, "user", "update_password_hash", err)
	return err
}

// ApplyPatch writes only the fields present in patch. An empty name clears it.
func (r *GormUserRepository) ApplyPatch(ctx context.Context, id uint, patch domain.ProfilePatch) (*domain.User, error) {
	updates := map[string]any{}
	if patch.Email != nil {
		updates["email"] = *patch.Email
	}
	if patch.Name != nil {
		updates["name"] = nullable(*patch.Name)
	}
	if patch.HomeCountry != nil {
		updates["home_country"] = nullable(*patch.HomeCountry)
	}
	if patch.Currency != nil {
		updates["currency"] = nullable(*patch.Currency)
	}

	if len(updates) > 0 {
		res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(updates)
		err := res.Error
		if isUniqueViolation(err) {
			err = ErrEmailTaken
		} else if err == nil && res.RowsAffected == 0 {
			err = ErrUserNotFound
		}
		record(ctx, "user", "apply_patch", err)
		if err != nil {
			return nil, err
		}
	}
	return r.FindByID(ctx, id)
}

// Delete removes the user together with its sessions and reset tokens.
func (r *GormUserRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&domain.Session{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&domain.PasswordReset{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&domain.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	})
	record(ctx, "user", "delete", err)
	return err
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
