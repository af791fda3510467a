package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_OrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"pg/010_later.sql":  {Data: []byte("SELECT 10;")},
		"pg/002_second.sql": {Data: []byte("SELECT 2;")},
		"pg/001_first.sql":  {Data: []byte("SELECT 1;")},
		"pg/README.md":      {Data: []byte("ignored")},
		"pg/nested/x.sql":   {Data: []byte("ignored")},
	}

	ms, err := Load(fsys, "pg")
	require.NoError(t, err)
	require.Len(t, ms, 3)

	assert.Equal(t, []int{1, 2, 10}, []int{ms[0].Version, ms[1].Version, ms[2].Version})
	assert.Equal(t, "first", ms[0].Name)
	assert.Equal(t, "SELECT 10;", ms[2].SQL)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		files fstest.MapFS
	}{
		{"no prefix", fstest.MapFS{"d/schema.sql": {Data: []byte("x")}}},
		{"non-numeric prefix", fstest.MapFS{"d/abc_schema.sql": {Data: []byte("x")}}},
		{"zero version", fstest.MapFS{"d/000_schema.sql": {Data: []byte("x")}}},
		{"missing name", fstest.MapFS{"d/001_.sql": {Data: []byte("x")}}},
		{"duplicate version", fstest.MapFS{
			"d/001_a.sql": {Data: []byte("x")},
			"d/01_b.sql":  {Data: []byte("y")},
		}},
		{"missing dir", fstest.MapFS{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.files, "d")
			assert.Error(t, err)
		})
	}
}

func TestPending(t *testing.T) {
	all := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}

	pending := Pending(all, map[int]bool{1: true, 3: true})
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)

	assert.Len(t, Pending(all, nil), 3)
	assert.Empty(t, Pending(all, map[int]bool{1: true, 2: true, 3: true}))
}

func TestStatements(t *testing.T) {
	script := `
-- header comment
CREATE TABLE a (x Int64) ENGINE = MergeTree() ORDER BY x;

  -- indented comment
CREATE TABLE b (y String)
ENGINE = MergeTree() ORDER BY y;
INSERT INTO b VALUES ('it''s');
`
	stmts, err := Statements(script)
	require.NoError(t, err)
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], "CREATE TABLE a")
	assert.Contains(t, stmts[1], "ORDER BY y")
	assert.Equal(t, "INSERT INTO b VALUES ('it''s')", stmts[2])
}

func TestStatements_QuotedSemicolon(t *testing.T) {
	_, err := Statements(`SELECT 'a;b';`)
	assert.ErrorIs(t, err, ErrQuotedSemicolon)
}

func TestEmbedded(t *testing.T) {
	pg, err := Postgres()
	require.NoError(t, err)
	require.NotEmpty(t, pg)
	assert.Equal(t, 1, pg[0].Version)
	assert.Contains(t, pg[0].SQL, "idempotency_ledger")

	ch, err := Clickhouse()
	require.NoError(t, err)
	require.NotEmpty(t, ch)
	for _, m := range ch {
		stmts, err := Statements(m.SQL)
		require.NoError(t, err, m.Name)
		assert.NotEmpty(t, stmts, m.Name)
	}
}
