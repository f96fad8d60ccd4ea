package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibescan/api/pkg/domain/shared"
)

func TestNewScanValidation(t *testing.T) {
	userID := shared.NewID()

	t.Run("valid upload scan", func(t *testing.T) {
		sc, err := NewScan(userID, "  my project  ", SourceUpload, "")
		require.NoError(t, err)
		assert.Equal(t, "my project", sc.ProjectName())
		assert.Equal(t, StatusQueued, sc.Status())
		assert.False(t, sc.ID().IsZero())
		assert.False(t, sc.HasLegacyFindings())
	})

	t.Run("valid git scan", func(t *testing.T) {
		sc, err := NewScan(userID, "repo", SourceGit, "https://github.com/acme/app")
		require.NoError(t, err)
		assert.Equal(t, "https://github.com/acme/app", sc.GitURL())
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := NewScan(shared.ID{}, "p", SourceUpload, "")
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("blank project name", func(t *testing.T) {
		_, err := NewScan(userID, "   ", SourceUpload, "")
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("git scan without url", func(t *testing.T) {
		_, err := NewScan(userID, "p", SourceGit, "  ")
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("unknown source", func(t *testing.T) {
		_, err := NewScan(userID, "p", Source("ftp"), "")
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestScanLifecycle(t *testing.T) {
	sc, err := NewScan(shared.NewID(), "p", SourceUpload, "")
	require.NoError(t, err)

	require.NoError(t, sc.StartScanning())
	assert.Equal(t, StatusScanning, sc.Status())

	require.NoError(t, sc.StartEnriching())
	assert.Equal(t, StatusEnriching, sc.Status())

	require.NoError(t, sc.Complete(7))
	assert.Equal(t, StatusCompleted, sc.Status())
	assert.Equal(t, 7, sc.FindingsCount())
	require.NotNil(t, sc.CompletedAt())
}

func TestScanLifecycleGuards(t *testing.T) {
	sc, err := NewScan(shared.NewID(), "p", SourceUpload, "")
	require.NoError(t, err)

	// Enriching straight from queued is refused.
	assert.ErrorIs(t, sc.StartEnriching(), shared.ErrConflict)
	// Completing from queued is refused.
	assert.ErrorIs(t, sc.Complete(0), shared.ErrConflict)

	require.NoError(t, sc.StartScanning())
	assert.ErrorIs(t, sc.StartScanning(), shared.ErrConflict)

	// Completing straight from scanning is allowed (zero findings skip
	// the enriching phase).
	require.NoError(t, sc.Complete(0))
}

func TestScanFail(t *testing.T) {
	sc, err := NewScan(shared.NewID(), "p", SourceUpload, "")
	require.NoError(t, err)
	require.NoError(t, sc.StartScanning())

	sc.Fail("scanner exploded")
	assert.Equal(t, StatusFailed, sc.Status())
	assert.Equal(t, "scanner exploded", sc.Failure())
	require.NotNil(t, sc.CompletedAt())
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"queued", "scanning", "enriching", "completed", "failed"} {
		got, err := ParseStatus(s)
		require.NoError(t, err, s)
		assert.Equal(t, Status(s), got)
	}

	_, err := ParseStatus("paused")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestHasLegacyFindings(t *testing.T) {
	sc := Reconstitute(shared.NewID(), shared.NewID(), "p", SourceUpload, "",
		StatusCompleted, 2, "", []byte(`{"findings":[]}`), time.Now(), nil)
	assert.True(t, sc.HasLegacyFindings())
}
