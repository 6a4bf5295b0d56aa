package gormstore

import (
	"context"
	"os"
	"testing"

	"github.com/narulaskaran/social-graph/application/ports"
	"github.com/narulaskaran/social-graph/infrastructure/persistence/storetest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSQLiteConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ports.GraphStore {
		s, err := OpenSQLite("", zap.NewNop())
		require.NoError(t, err)
		return s
	})
}

func TestPostgresConformance(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set TEST_POSTGRES_DSN to run postgres store tests")
	}

	storetest.Run(t, func(t *testing.T) ports.GraphStore {
		s, err := OpenPostgres(dsn, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, s.ClearDatabase(context.Background()))
		return s
	})
}
