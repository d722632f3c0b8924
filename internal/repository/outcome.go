package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/globetrotter/globetrotter-api/internal/observability"

	"gorm.io/gorm"
)

var notFoundErrors = []error{
	gorm.ErrRecordNotFound,
	ErrUserNotFound,
	ErrSessionNotFound,
	ErrResetTokenNotFound,
}

func record(ctx context.Context, entity, operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		for _, target := range notFoundErrors {
			if errors.Is(err, target) {
				outcome = "not_found"
				break
			}
		}
	}
	observability.RecordRepositoryOperation(ctx, entity, operation, outcome)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
