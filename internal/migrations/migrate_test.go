package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/reports?sslmode=disable", DatabaseURL("postgres://u:p@db:5432/reports?sslmode=disable"))
	assert.Equal(t, "pgx5://u@db/reports", DatabaseURL("postgresql://u@db/reports"))
	assert.Equal(t, "pgx5://u@db/reports", DatabaseURL("pgx5://u@db/reports"))
}

func TestEmbeddedMigrations(t *testing.T) {
	src, err := iofs.New(files, "sql")
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	up, _, err := src.ReadUp(first)
	require.NoError(t, err)
	defer up.Close()
	down, _, err := src.ReadDown(first)
	require.NoError(t, err)
	defer down.Close()
}

func TestMigrationsArePaired(t *testing.T) {
	names, err := fs.Glob(files, "sql/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups, downs := 0, 0
	for _, name := range names {
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups++
			body, err := fs.ReadFile(files, name)
			require.NoError(t, err)
			assert.Contains(t, string(body), "tenant_metrics")
		case strings.HasSuffix(name, ".down.sql"):
			downs++
		}
	}
	assert.Equal(t, ups, downs)
}
