package sqlite

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN_MergesCallerParameters(t *testing.T) {
	dsn, path, err := buildDSN("/data/stars.db?cache=shared")
	require.NoError(t, err)
	assert.Equal(t, "/data/stars.db", path)

	require.Equal(t, 1, strings.Count(dsn, "?"), "dsn must carry a single query: %s", dsn)
	rawQuery := dsn[strings.Index(dsn, "?")+1:]
	params, err := url.ParseQuery(rawQuery)
	require.NoError(t, err)
	assert.Equal(t, []string{"shared"}, params["cache"])
	assert.Equal(t, sqlitePragmas, params["_pragma"])
}

func TestBuildDSN_EmptyPath(t *testing.T) {
	_, _, err := buildDSN("?cache=shared")
	assert.Error(t, err)
}

func TestNewDB_FilePathWithQuery(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "x.db")

	db, err := NewDB(ctx, file+"?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.Equal(t, file, db.Path())
	require.NoError(t, db.Ping(ctx))
	require.NoError(t, db.EnsureSchema(ctx))

	var journal string
	require.NoError(t, db.Writer.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journal))
	assert.Equal(t, "wal", journal)
}
