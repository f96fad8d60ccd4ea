package migrations

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableListsEmbeddedMigrations(t *testing.T) {
	migrations, err := Available()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	versions := make([]string, len(migrations))
	for i, m := range migrations {
		assert.NotEmpty(t, m.Version)
		assert.NotEmpty(t, m.Name)
		versions[i] = m.Version
	}

	assert.True(t, sort.StringsAreSorted(versions))

	// Every up migration has a matching down file.
	for _, m := range migrations {
		_, err := files.ReadFile("sql/" + m.Version + "_" + m.Name + ".down.sql")
		assert.NoError(t, err, m.Version)
	}
}

// The finding repository writes SQL NULL for absent rule ids, file
// paths, lines, and fix prompts, and reads them back through sql.Null
// types. The schema must keep those columns nullable.
func TestFindingsSchemaKeepsNullableColumns(t *testing.T) {
	data, err := files.ReadFile("sql/000002_findings.up.sql")
	require.NoError(t, err)

	for _, re := range []string{
		`(?m)^\s*rule_id TEXT,$`,
		`(?m)^\s*file_path TEXT,$`,
		`(?m)^\s*line INTEGER,$`,
		`(?m)^\s*fix_prompt TEXT,$`,
	} {
		assert.Regexp(t, re, string(data))
	}
}

func TestAvailableVersionsAreUnique(t *testing.T) {
	migrations, err := Available()
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, m := range migrations {
		assert.False(t, seen[m.Version], m.Version)
		seen[m.Version] = true
	}
}
