package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibescan/api/pkg/domain/finding"
	"github.com/vibescan/api/pkg/domain/shared"
)

// A finding can legitimately lack a rule id, file path, line, and fix
// prompt; the writer sends SQL NULL for each and the schema must accept
// it (the findings columns are nullable for exactly these fields).
func TestInsertBatchWritesNullForAbsentFields(t *testing.T) {
	mem := newMemDB()
	db := mem.open()
	defer db.Close()
	repo := NewFindingRepository(db)

	stored := finding.Stored{
		Finding: finding.Finding{
			CheckID:  "",
			Title:    "Hardcoded Secret",
			File:     "",
			Line:     nil,
			Severity: finding.SeverityHigh,
			Scanner:  finding.ScannerGitleaks,
		},
		SummaryText: "A credential was committed to the repository.",
		GeneratedBy: finding.GeneratedByRules,
		GeneratedAt: time.Now().UTC(),
	}

	records, err := repo.InsertBatch(context.Background(), shared.NewID(), shared.NewID(), []finding.Stored{stored})
	require.NoError(t, err)
	require.Len(t, records, 1)

	require.Len(t, mem.inserts, 1)
	args := mem.inserts[0]
	require.Len(t, args, 23)

	// rule_id, file_path, line, fix_prompt arrive as NULL.
	assert.Nil(t, args[3].Value)
	assert.Nil(t, args[5].Value)
	assert.Nil(t, args[6].Value)
	assert.Nil(t, args[11].Value)

	// Populated fields arrive as their plain values.
	assert.Equal(t, "Hardcoded Secret", args[7].Value)
	assert.Equal(t, "gitleaks", args[4].Value)
}

func TestInsertBatchEmptyInput(t *testing.T) {
	mem := newMemDB()
	db := mem.open()
	defer db.Close()
	repo := NewFindingRepository(db)

	records, err := repo.InsertBatch(context.Background(), shared.NewID(), shared.NewID(), nil)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, mem.inserts)
}
