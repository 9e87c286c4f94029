package sqlstore

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pragmas(t *testing.T, dsn string) []string {
	t.Helper()
	_, q, ok := strings.Cut(dsn, "?")
	require.True(t, ok, dsn)
	params, err := url.ParseQuery(q)
	require.NoError(t, err)
	return params["_pragma"]
}

func TestSQLiteDSN(t *testing.T) {
	dsn, mem, err := sqliteDSN(".rmi/rmi.db", 5*time.Second)
	require.NoError(t, err)
	assert.False(t, mem)
	assert.True(t, strings.HasPrefix(dsn, "file:.rmi/rmi.db?"), dsn)
	assert.Equal(t, []string{"busy_timeout(5000)", "foreign_keys(ON)"}, pragmas(t, dsn))
	assert.Contains(t, dsn, "_time_format=sqlite")

	dsn, _, err = sqliteDSN("file:x.db?_pragma=busy_timeout(1)", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"busy_timeout(1)", "foreign_keys(ON)"}, pragmas(t, dsn), "explicit pragmas win")

	dsn, _, err = sqliteDSN("rmi.db", 0)
	require.NoError(t, err)
	assert.Contains(t, pragmas(t, dsn), "busy_timeout(30000)")
}

func TestSQLiteDSNInMemory(t *testing.T) {
	a, mem, err := sqliteDSN(":memory:", 0)
	require.NoError(t, err)
	assert.True(t, mem)
	assert.Contains(t, a, "mode=memory")
	assert.Contains(t, pragmas(t, a), "journal_mode(DELETE)")

	b, mem, err := sqliteDSN("", 0)
	require.NoError(t, err)
	assert.True(t, mem)
	assert.NotEqual(t, a, b, "each in-memory store is private")
}

func TestSQLiteDSNBadQuery(t *testing.T) {
	_, _, err := sqliteDSN("file:x.db?%zz", 0)
	assert.Error(t, err)
}
