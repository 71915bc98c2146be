package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/Hemang2904/jewelbench-flux-gen/internal/domain"
)

func TestResolvePlainTemplateUnchanged(t *testing.T) {
	r := NewResolver()
	in := "a diamond ring, platinum band, studio lighting"
	got, err := r.Resolve(in)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != in {
		t.Fatalf("plain template changed: got %q want %q", got, in)
	}
}

func TestResolvePicksOneAlternative(t *testing.T) {
	r := NewResolver()
	got, err := r.Resolve("[gold|silver] ring")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "gold ring" && got != "silver ring" {
		t.Fatalf("unexpected resolution: %q", got)
	}
}

func TestResolveTrimsAlternatives(t *testing.T) {
	r := NewResolver()
	got, err := r.Resolve("[  gold  ] band")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "gold band" {
		t.Fatalf("whitespace not trimmed: %q", got)
	}
}

func TestResolveMultipleGroups(t *testing.T) {
	r := NewSeededResolver(7)
	got, err := r.Resolve("[gold|silver] [ring|band], [matte|polished] finish")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if strings.ContainsAny(got, "[]|") {
		t.Fatalf("unresolved group characters remain: %q", got)
	}
}

func TestResolveNestedGroupsInnermostFirst(t *testing.T) {
	r := NewSeededResolver(3)
	got, err := r.Resolve("[a [b|c] d|e] ring")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if strings.ContainsAny(got, "[]") {
		t.Fatalf("brackets remain after nested resolution: %q", got)
	}
}

func TestResolveBothAlternativesAppear(t *testing.T) {
	r := NewSeededResolver(42)
	seen := map[string]int{}
	for i := 0; i < 100; i++ {
		got, err := r.Resolve("[gold|silver] ring")
		if err != nil {
			t.Fatalf("Resolve returned error: %v", err)
		}
		seen[got]++
	}
	if len(seen) != 2 {
		t.Fatalf("expected exactly two distinct resolutions, got %v", seen)
	}
	if seen["gold ring"] == 0 || seen["silver ring"] == 0 {
		t.Fatalf("one alternative never chosen: %v", seen)
	}
}

func TestResolveUnclosedBracketFails(t *testing.T) {
	r := NewResolver()
	_, err := r.Resolve("a [gold|silver ring")
	if !errors.Is(err, domain.ErrMalformedTemplate) {
		t.Fatalf("expected ErrMalformedTemplate, got %v", err)
	}
}

func TestResolveStrayClosingBracketPassesThrough(t *testing.T) {
	r := NewResolver()
	got, err := r.Resolve("odd] [gold|silver] ring")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !strings.HasPrefix(got, "odd] ") {
		t.Fatalf("stray bracket not preserved: %q", got)
	}
	if strings.Contains(got[4:], "[") || strings.Contains(got[4:], "]") {
		t.Fatalf("well-formed group left unresolved: %q", got)
	}
}

func TestResolveEmptyGroup(t *testing.T) {
	r := NewResolver()
	got, err := r.Resolve("ring []")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "ring " {
		t.Fatalf("empty group should resolve to empty string, got %q", got)
	}
}
