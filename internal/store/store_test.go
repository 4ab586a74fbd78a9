package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DeafMist/truthguard/backend/internal/config"
	"github.com/DeafMist/truthguard/backend/internal/sqlite"
	"github.com/DeafMist/truthguard/backend/internal/store"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite(t *testing.T) {
	cfg := config.Common{StoreBackend: config.BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "tg.db")}

	s, err := store.Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.IsType(t, &sqlite.Store{}, s)
	require.NoError(t, s.Health(context.Background()))
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := store.Open(context.Background(), config.Common{StoreBackend: "mongo"}, nil)
	require.ErrorContains(t, err, "mongo")
}
