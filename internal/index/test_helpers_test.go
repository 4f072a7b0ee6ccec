package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/labelsync/internal/source"
)

const testURI = "maildir:///mail"

// createTestIndex opens a fresh index in a temp dir with a fixed clock and
// one registered source.
func createTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })

	ix.Now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	require.NoError(t, ix.AddSource(context.Background(), source.Definition{URI: testURI, Usual: true}))
	return ix
}
