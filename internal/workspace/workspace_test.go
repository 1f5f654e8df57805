package workspace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashIDStable(t *testing.T) {
	a := HashID(TypeGitRepo, "/Users/bill/code/myapp")
	b := HashID(TypeGitRepo, "/Users/bill/code/myapp")
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "ws_"))
	assert.Len(t, a, 15)
}

func TestHashIDNormalizesTrailingSlash(t *testing.T) {
	assert.Equal(t,
		HashID(TypeFolder, "/tmp/project"),
		HashID(TypeFolder, "/tmp/project/"))
}

func TestHashIDDistinguishesType(t *testing.T) {
	assert.NotEqual(t,
		HashID(TypeGitRepo, "/tmp/project"),
		HashID(TypeFolder, "/tmp/project"))
}

func TestDetectFolderFallback(t *testing.T) {
	dir := t.TempDir()
	ws, err := Detect(dir)
	require.NoError(t, err)
	assert.Equal(t, ws.ID, HashID(ws.Type, ws.Path))
	assert.NotEmpty(t, ws.Name)
}
