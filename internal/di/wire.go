//go:build wireinject
// +build wireinject

package di

import (
	"context"
	"log/slog"

	"github.com/google/wire"

	"github.com/globetrotter/globetrotter-api/internal/app"
	"github.com/globetrotter/globetrotter-api/internal/config"
	"github.com/globetrotter/globetrotter-api/internal/repository"
)

func InitializeApp(ctx context.Context, cfg *config.Config) (*app.App, func(), error) {
	wire.Build(
		provideObservability,
		provideLogger,
		StorageSet,
		ServiceSet,
		HTTPSet,
		provideBackgroundTasks,
		provideApp,
	)
	return nil, nil, nil
}

func InitializeMaintenance(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Maintenance, func(), error) {
	wire.Build(
		provideDB,
		repository.NewSessionRepository,
		repository.NewRevokedTokenRepository,
		repository.NewPasswordResetRepository,
		provideRetentionSweeper,
		newMaintenance,
	)
	return nil, nil, nil
}
