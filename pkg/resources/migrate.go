package resources

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // pgx5:// driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// RunMigrations applies the embedded SQL migrations before the servers start
// taking traffic. Already-applied migrations are a no-op.
func RunMigrations(migrations fs.FS, path string) error {
	source, err := iofs.New(migrations, path)
	if err != nil {
		return fmt.Errorf("failed to open migration source: %w", err)
	}

	//nolint:nosprintfhostport
	url := fmt.Sprintf("pgx5://%s:%s@%s:%s/%s?sslmode=%s",
		viper.GetString("DB_USER"), viper.GetString("DB_PASSWORD"),
		viper.GetString("DB_HOST"), viper.GetString("DB_PORT"),
		viper.GetString("DB_NAME"), viper.GetString("DB_SSLMODE"))

	m, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		return fmt.Errorf("failed to prepare migrations: %w", err)
	}

	defer func() { _, _ = m.Close() }()

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("database schema up to date")

	return nil
}
