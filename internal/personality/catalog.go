package personality

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

//go:embed personalities.json
var defaultJSON []byte

var ErrInvalidPersonality = errors.New("invalid personality")

// Catalog is the read-only set of AI personalities. Entries are shared and
// must not be modified by callers.
type Catalog struct {
	list []*Personality
	byID map[string]*Personality
}

// Default returns the embedded catalog. It panics if the embedded data is
// broken, which only a bad build can cause.
func Default() *Catalog {
	c, err := Load(defaultJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded personalities: %v", err))
	}
	return c
}

func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read personalities file: %w", err)
	}
	return Load(data)
}

// Load parses and validates a JSON array of personalities.
func Load(data []byte) (*Catalog, error) {
	var list []*Personality
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse personalities JSON: %w", err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: catalog is empty", ErrInvalidPersonality)
	}
	c := &Catalog{byID: make(map[string]*Personality, len(list))}
	for i, p := range list {
		if p == nil {
			return nil, fmt.Errorf("%w: entry %d is null", ErrInvalidPersonality, i)
		}
		if err := Validate(p); err != nil {
			return nil, err
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidPersonality, p.ID)
		}
		c.byID[p.ID] = p
		c.list = append(c.list, p)
	}
	return c, nil
}

// Validate checks that every trait is set and every trigger has at least one line.
func Validate(p *Personality) error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidPersonality, p.ID, fmt.Sprintf(format, args...))
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidPersonality)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fail("missing name")
	}
	t := p.Traits
	if t.HumorStyle == "" || t.ChatFrequency == "" || t.MemePreference == "" || t.VotingStyle == "" {
		return fail("missing trait")
	}
	switch t.ChatFrequency {
	case ChatLow, ChatMedium, ChatHigh:
	default:
		return fail("unknown chat frequency %q", t.ChatFrequency)
	}
	if t.ResponseTime.MinMs < 0 || t.ResponseTime.MinMs > t.ResponseTime.MaxMs {
		return fail("response time min %d > max %d", t.ResponseTime.MinMs, t.ResponseTime.MaxMs)
	}
	for _, tr := range Triggers {
		if len(nonBlank(p.ChatTemplates[tr])) == 0 {
			return fail("no %s chat templates", tr)
		}
	}
	return nil
}

// Get returns the personality with id, or nil.
func (c *Catalog) Get(id string) *Personality {
	return c.byID[id]
}

func (c *Catalog) All() []*Personality {
	return append([]*Personality(nil), c.list...)
}

func (c *Catalog) Count() int { return len(c.list) }

func (c *Catalog) ByHumorStyle(style HumorStyle) []*Personality {
	var out []*Personality
	for _, p := range c.list {
		if p.Traits.HumorStyle == style {
			out = append(out, p)
		}
	}
	return out
}

// Random picks one personality not in exclude. When everything is excluded
// the whole catalog is eligible again.
func (c *Catalog) Random(exclude ...string) *Personality {
	pool := c.pool(exclude)
	return pool[rand.Intn(len(pool))]
}

// RandomN picks up to n distinct personalities, with the same exclusion rule as Random.
func (c *Catalog) RandomN(n int, exclude ...string) []*Personality {
	if n <= 0 {
		return nil
	}
	pool := c.pool(exclude)
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if n > len(pool) {
		n = len(pool)
	}
	return pool[:n]
}

func (c *Catalog) pool(exclude []string) []*Personality {
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	pool := make([]*Personality, 0, len(c.list))
	for _, p := range c.list {
		if !skip[p.ID] {
			pool = append(pool, p)
		}
	}
	if len(pool) == 0 {
		pool = append(pool, c.list...)
	}
	return pool
}

func nonBlank(lines []string) []string {
	out := lines[:0:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
