package definitions

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDefinition(t *testing.T, dir, name, frontmatter, body string) {
	t.Helper()
	content := "---\n" + frontmatter + "\n---\n" + body
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestDiscover_FindsAgents(t *testing.T) {
	builtin := t.TempDir()
	writeDefinition(t, builtin, "reviewer.md", "name: reviewer\ndescription: reviews code", "# Reviewer\ndo the review")

	store := NewStore([]Source{{Kind: KindAgent, Dir: builtin, IsRepo: false}})
	require.NoError(t, store.Discover(context.Background()))

	def, ok := store.Get(KindAgent, "reviewer")
	require.True(t, ok)
	assert.Equal(t, "reviewer", def.ID)
	assert.Equal(t, "reviews code", def.Frontmatter["description"])
	assert.Contains(t, def.Body, "do the review")
}

func TestDiscover_RepoOverridesBuiltinCaseInsensitive(t *testing.T) {
	builtin := t.TempDir()
	repo := t.TempDir()
	writeDefinition(t, builtin, "Reviewer.md", "name: Reviewer", "builtin body")
	writeDefinition(t, repo, "reviewer.md", "name: reviewer", "repo body")

	store := NewStore([]Source{
		{Kind: KindAgent, Dir: builtin, IsRepo: false},
		{Kind: KindAgent, Dir: repo, IsRepo: true},
	})
	require.NoError(t, store.Discover(context.Background()))

	def, ok := store.Get(KindAgent, "REVIEWER")
	require.True(t, ok)
	assert.Contains(t, def.Body, "repo body")
	assert.Len(t, store.List(KindAgent), 1)
}

func TestDiscover_SkipsReadmeAndMetadataDirs(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "README.md", "name: not-an-agent", "ignored")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "examples"), 0755))
	writeDefinition(t, filepath.Join(dir, "examples"), "sample.md", "name: sample", "ignored")
	writeDefinition(t, dir, "real.md", "name: real", "kept")

	store := NewStore([]Source{{Kind: KindAgent, Dir: dir}})
	require.NoError(t, store.Discover(context.Background()))

	assert.Len(t, store.List(KindAgent), 1)
	_, ok := store.Get(KindAgent, "real")
	assert.True(t, ok)
}

func TestDiscover_MissingDirIsNotAnError(t *testing.T) {
	store := NewStore([]Source{{Kind: KindSkill, Dir: filepath.Join(t.TempDir(), "missing")}})
	require.NoError(t, store.Discover(context.Background()))
	assert.Empty(t, store.List(KindSkill))
}

func TestDiscover_MalformedFileSkippedNotFatal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.md"), []byte("no frontmatter here"), 0644))
	writeDefinition(t, dir, "good.md", "name: good", "body")

	store := NewStore([]Source{{Kind: KindCommand, Dir: dir}})
	require.NoError(t, store.Discover(context.Background()))
	assert.Len(t, store.List(KindCommand), 1)
}

func TestDiscover_IDFallsBackToFilename(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "unnamed.md", "description: no name field", "body")

	store := NewStore([]Source{{Kind: KindAgent, Dir: dir}})
	require.NoError(t, store.Discover(context.Background()))

	def, ok := store.Get(KindAgent, "unnamed")
	require.True(t, ok)
	assert.Equal(t, "unnamed", def.ID)
}

func TestRenderBody(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "a.md", "name: a", "# Heading\nhello")

	store := NewStore([]Source{{Kind: KindAgent, Dir: dir}})
	require.NoError(t, store.Discover(context.Background()))
	def, _ := store.Get(KindAgent, "a")

	html, err := store.RenderBody(def)
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Heading</h1>")
}
