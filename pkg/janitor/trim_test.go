package janitor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")

	var b strings.Builder
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))

	require.NoError(t, TrimLogFile(path, 10))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 10)
	assert.Equal(t, "line 90", lines[0])
	assert.Equal(t, "line 99", lines[9])
}

func TestTrimLogFileShortEnough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\n"), 0644))

	require.NoError(t, TrimLogFile(path, 10))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(data))
}
