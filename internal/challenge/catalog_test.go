package challenge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jason-s-yu/codearena/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinCatalog(t *testing.T) {
	c, err := LoadFile("")
	require.NoError(t, err)

	ch, ok := c.Get("2")
	require.True(t, ok)
	assert.Equal(t, "Intermediate", ch.Difficulty)
	assert.True(t, c.Has(models.RandomChallenge))
	assert.False(t, c.Has("nope"))
	assert.Equal(t, "Random", c.Difficulty(models.RandomChallenge))
	assert.Equal(t, "Advanced", c.Difficulty("3"))
}

func TestListHidesChecks(t *testing.T) {
	c, err := NewCatalog(Builtin())
	require.NoError(t, err)
	for _, ch := range c.List() {
		assert.Empty(t, ch.Checks, "challenge %s leaked checks", ch.ID)
	}
}

func TestResolve(t *testing.T) {
	c, err := NewCatalog(Builtin())
	require.NoError(t, err)

	ch, err := c.Resolve("3")
	require.NoError(t, err)
	assert.Equal(t, "3", ch.ID)

	random, err := c.Resolve(models.RandomChallenge)
	require.NoError(t, err)
	assert.True(t, c.Has(random.ID))

	_, err = c.Resolve("missing")
	assert.Error(t, err)
}

func TestRandomCoversCatalog(t *testing.T) {
	c, err := NewCatalog(Builtin())
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 300; i++ {
		seen[c.Random().ID] = true
	}
	assert.Len(t, seen, 3)
}

func TestNewCatalogDerivesIDsFromTitles(t *testing.T) {
	c, err := NewCatalog([]models.Challenge{{Title: "Reverse A String"}})
	require.NoError(t, err)
	_, ok := c.Get("reverse-a-string")
	assert.True(t, ok)
}

func TestNewCatalogRejectsBadContent(t *testing.T) {
	_, err := NewCatalog(nil)
	assert.Error(t, err)

	_, err = NewCatalog([]models.Challenge{{ID: "x"}, {ID: "x"}})
	assert.Error(t, err)

	_, err = NewCatalog([]models.Challenge{{ID: "random"}})
	assert.Error(t, err)

	_, err = NewCatalog([]models.Challenge{{ID: "bad", Checks: []models.Check{{Name: "b", Pattern: "("}}}})
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "challenges.json")
	content := `[{"title":"FizzBuzz","difficulty":"Beginner","points":50,"checks":[{"name":"mod","pattern":"%\\s*3","points":50}]}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)
	ch, ok := c.Get("fizzbuzz")
	require.True(t, ok)
	assert.Len(t, ch.Checks, 1)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
