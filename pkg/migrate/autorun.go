package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-gateway/pkg/config"
	"github.com/angelmondragon/storefront-gateway/pkg/db"
	"github.com/angelmondragon/storefront-gateway/pkg/logger"
)

// MaybeRunDev applies the embedded migrations when the app runs in dev mode with the
// auto-migrate flag enabled, or always for the embedded sqlite store.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if !cfg.App.IsDev() && !cfg.DB.IsSQLite() {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	meta := map[string]any{"env": cfg.App.Env, "driver": client.Driver()}
	ctx = logg.WithFields(ctx, meta)
	logg.Info(ctx, "running goose migrations (auto-run)")

	if err := RunEmbedded(ctx, sqlDB, client.Driver(), "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}
