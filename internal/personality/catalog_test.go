package personality

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	c := Default()
	if c.Count() < 6 {
		t.Fatalf("expected a reasonably sized catalog, got %d", c.Count())
	}
	for _, p := range c.All() {
		if err := Validate(p); err != nil {
			t.Fatalf("embedded personality invalid: %v", err)
		}
	}
	if c.Get("does-not-exist") != nil {
		t.Fatal("unknown id should return nil")
	}
	if p := c.Get("wholesome_wendy"); p == nil || p.Traits.HumorStyle != HumorWholesome {
		t.Fatalf("expected wholesome_wendy to be wholesome, got %+v", p)
	}
}

func TestLoadRejectsBrokenEntries(t *testing.T) {
	cases := map[string]string{
		"empty":      `[]`,
		"no id":      `[{"name":"x"}]`,
		"bad timing": `[{"id":"a","name":"A","traits":{"humorStyle":"dark","chatFrequency":"low","memePreference":"any","votingStyle":"random","responseTime":{"minMs":500,"maxMs":100}}}]`,
		"no lines":   `[{"id":"a","name":"A","traits":{"humorStyle":"dark","chatFrequency":"low","memePreference":"any","votingStyle":"random","responseTime":{"minMs":1,"maxMs":2}},"chatTemplates":{"general":["hi"]}}]`,
	}
	for name, data := range cases {
		if _, err := Load([]byte(data)); !errors.Is(err, ErrInvalidPersonality) {
			t.Fatalf("%s: expected ErrInvalidPersonality, got %v", name, err)
		}
	}
	if _, err := Load([]byte(`not json`)); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	p := Default().All()[0]
	if _, err := Load([]byte("[" + mustJSON(t, p) + "," + mustJSON(t, p) + "]")); !errors.Is(err, ErrInvalidPersonality) {
		t.Fatalf("expected duplicate id to be rejected, got %v", err)
	}
}

func TestByHumorStyle(t *testing.T) {
	c := Default()
	for _, p := range c.ByHumorStyle(HumorSarcastic) {
		if p.Traits.HumorStyle != HumorSarcastic {
			t.Fatalf("%s is not sarcastic", p.ID)
		}
	}
	if len(c.ByHumorStyle("nonexistent")) != 0 {
		t.Fatal("expected no match for unknown style")
	}
}

func TestRandomHonoursExclusions(t *testing.T) {
	c := Default()
	all := c.All()
	exclude := make([]string, 0, len(all)-1)
	for _, p := range all[1:] {
		exclude = append(exclude, p.ID)
	}
	for i := 0; i < 20; i++ {
		if got := c.Random(exclude...); got.ID != all[0].ID {
			t.Fatalf("expected %s, got %s", all[0].ID, got.ID)
		}
	}

	// excluding everything falls back to the whole catalog
	exclude = append(exclude, all[0].ID)
	if c.Random(exclude...) == nil {
		t.Fatal("expected fallback to the full catalog")
	}
}

func TestRandomNReturnsDistinct(t *testing.T) {
	c := Default()
	got := c.RandomN(3, c.All()[0].ID)
	if len(got) != 3 {
		t.Fatalf("expected 3 personalities, got %d", len(got))
	}
	seen := map[string]bool{}
	for _, p := range got {
		if seen[p.ID] {
			t.Fatalf("duplicate personality %s", p.ID)
		}
		if p.ID == c.All()[0].ID {
			t.Fatal("excluded personality returned")
		}
		seen[p.ID] = true
	}
	if n := len(c.RandomN(c.Count() + 5)); n != c.Count() {
		t.Fatalf("expected RandomN to cap at catalog size, got %d", n)
	}
	if c.RandomN(0) != nil {
		t.Fatal("expected nil for n=0")
	}
}

func TestRandomChatMessageNeverEmpty(t *testing.T) {
	for _, p := range Default().All() {
		for _, tr := range Triggers {
			if msg := RandomChatMessage(p, tr); strings.TrimSpace(msg) == "" {
				t.Fatalf("%s/%s: empty chat line", p.ID, tr)
			}
		}

		// empty the trigger: falls back to general
		cp := *p
		cp.ChatTemplates = map[Trigger][]string{TriggerGeneral: p.ChatTemplates[TriggerGeneral]}
		msg := RandomChatMessage(&cp, TriggerWinning)
		found := false
		for _, l := range p.ChatTemplates[TriggerGeneral] {
			if l == msg {
				found = true
			}
		}
		if !found {
			t.Fatalf("%s: expected a general line, got %q", p.ID, msg)
		}

		// and with nothing at all: hardcoded greeting
		cp.ChatTemplates = map[Trigger][]string{TriggerGeneral: {"   "}}
		if got := RandomChatMessage(&cp, TriggerWinning); got != DefaultGreeting {
			t.Fatalf("%s: expected default greeting, got %q", p.ID, got)
		}
	}
	if RandomChatMessage(nil, TriggerGeneral) != DefaultGreeting {
		t.Fatal("nil personality should get the default greeting")
	}
}

func TestWeights(t *testing.T) {
	for _, m := range []MemePreference{MemeClassic, MemeModern, MemeObscure, MemeAny, "unknown"} {
		if w := MemePreferenceWeight(m); w <= 0 || w > 1 {
			t.Fatalf("%s: weight %f out of range", m, w)
		}
	}
	if VotingStyleWeight(VoteFunniest) <= VotingStyleWeight(VoteRandom) {
		t.Fatal("funniest voters should be more confident than random ones")
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}
