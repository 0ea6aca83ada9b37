// Package migrate creates and upgrades the client_storage schema used by the
// postgres storage backend.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/and161185/learnhub-client/migrations"
)

// Up applies pending client_storage migrations against dsn and logs each applied version.
func Up(ctx context.Context, dsn string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open storage database: %w", err)
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("load storage migrations: %w", err)
	}
	defer p.Close()

	applied, err := p.Up(ctx)
	for _, r := range applied {
		log.Info("storage migration applied",
			zap.Int64("version", r.Source.Version),
			zap.String("file", r.Source.Path),
			zap.Duration("dur", r.Duration),
		)
	}
	if err != nil {
		return fmt.Errorf("migrate client_storage: %w", err)
	}
	return nil
}
