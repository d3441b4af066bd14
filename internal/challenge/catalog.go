package challenge

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"regexp"
	"sort"
	"sync"

	"github.com/gosimple/slug"
	"github.com/jason-s-yu/codearena/internal/models"
)

// Catalog is the read-only set of challenges a room can play.
type Catalog struct {
	byID  map[string]models.Challenge
	order []string

	// rnd picks random challenges. Guarded by mu since *rand.Rand is not safe
	// for concurrent use.
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewCatalog builds a catalog from challenges. IDs missing from the content
// are derived from the title.
func NewCatalog(challenges []models.Challenge) (*Catalog, error) {
	c := &Catalog{
		byID: make(map[string]models.Challenge, len(challenges)),
		rnd:  rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, ch := range challenges {
		if ch.ID == "" {
			ch.ID = slug.Make(ch.Title)
		}
		if ch.ID == "" || ch.ID == models.RandomChallenge {
			return nil, fmt.Errorf("challenge %q: invalid id %q", ch.Title, ch.ID)
		}
		if _, dup := c.byID[ch.ID]; dup {
			return nil, fmt.Errorf("duplicate challenge id %q", ch.ID)
		}
		for _, chk := range ch.Checks {
			if _, err := regexp.Compile(chk.Pattern); err != nil {
				return nil, fmt.Errorf("challenge %q check %q: %w", ch.ID, chk.Name, err)
			}
		}
		c.byID[ch.ID] = ch
		c.order = append(c.order, ch.ID)
	}
	if len(c.order) == 0 {
		return nil, fmt.Errorf("challenge catalog is empty")
	}
	sort.Strings(c.order)
	return c, nil
}

// LoadFile reads a JSON array of challenges. An empty path yields the
// built-in catalog.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(Builtin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read challenges file: %w", err)
	}
	var challenges []models.Challenge
	if err := json.Unmarshal(data, &challenges); err != nil {
		return nil, fmt.Errorf("parse challenges file %s: %w", path, err)
	}
	return NewCatalog(challenges)
}

// Get looks a challenge up by id.
func (c *Catalog) Get(id string) (models.Challenge, bool) {
	ch, ok := c.byID[id]
	return ch, ok
}

// Has reports whether id is a known challenge or the random marker.
func (c *Catalog) Has(id string) bool {
	if id == models.RandomChallenge {
		return true
	}
	_, ok := c.byID[id]
	return ok
}

// Random draws uniformly among all challenges.
func (c *Catalog) Random() models.Challenge {
	c.mu.Lock()
	idx := c.rnd.IntN(len(c.order))
	c.mu.Unlock()
	return c.byID[c.order[idx]]
}

// Resolve returns the room's challenge: the named one, or a random pick for
// "random" and empty ids.
func (c *Catalog) Resolve(id string) (models.Challenge, error) {
	if id == "" || id == models.RandomChallenge {
		return c.Random(), nil
	}
	ch, ok := c.byID[id]
	if !ok {
		return models.Challenge{}, fmt.Errorf("unknown challenge %q", id)
	}
	return ch, nil
}

// Difficulty is what the room list shows for a room's challenge id.
func (c *Catalog) Difficulty(id string) string {
	if ch, ok := c.byID[id]; ok {
		return ch.Difficulty
	}
	return "Random"
}

// List returns the public view of every challenge, ordered by id.
func (c *Catalog) List() []models.Challenge {
	out := make([]models.Challenge, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id].Public())
	}
	return out
}
