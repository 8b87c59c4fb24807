package store

import (
	"context"

	"github.com/rotisserie/eris"
)

// Open creates the store named by driver ("postgres" or "sqlite") and runs
// migrations.
func Open(ctx context.Context, driver, databaseURL string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "postgres":
		s, err = NewPostgres(ctx, databaseURL, nil)
	case "sqlite":
		dsn := databaseURL
		if dsn == "" {
			dsn = "furgoplaza.db"
		}
		s, err = NewSQLite(dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
