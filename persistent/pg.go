package persistent

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// PgConnect opens and pings the database behind pgDsn.
func PgConnect(ctx context.Context, pgDsn string) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(pgDsn)))
	if err := sqldb.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())
	if os.Getenv("DB_VERBOSE") == "true" {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db, nil
}

// PgOpen is PgConnect exiting the process on failure.
func PgOpen(ctx context.Context, pgDsn string) *bun.DB {
	db, err := PgConnect(ctx, pgDsn)
	if err != nil {
		logrus.WithError(err).Fatalln("Could not open pg database.")
	}
	return db
}

// Integration tests share one pg instance started by cmd/testenv, which
// passes its dsn through the environment.

func PgOpenTest(ctx context.Context) *bun.DB {
	return PgOpen(ctx, TestEnvDsn())
}

func TestEnvDsn() string {
	return os.Getenv("PGDB_DSN")
}

func SetTestEnvDsn(dsn string) {
	os.Setenv("PGDB_DSN", dsn)
}
