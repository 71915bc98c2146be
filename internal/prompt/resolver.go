package prompt

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/Hemang2904/jewelbench-flux-gen/internal/domain"
)

// Resolver expands bracketed alternative groups such as
// "[gold|silver] ring" into one concrete prompt per call, choosing one
// alternative per group uniformly at random.
//
// A Resolver is not safe for concurrent use; resolve all prompts for a
// batch before fanning the jobs out.
type Resolver struct {
	intn func(n int) int
}

// NewResolver returns a Resolver backed by the shared math/rand source.
func NewResolver() *Resolver {
	return &Resolver{intn: rand.IntN}
}

// NewSeededResolver returns a Resolver with a deterministic choice
// sequence. Intended for tests.
func NewSeededResolver(seed uint64) *Resolver {
	rng := rand.New(rand.NewPCG(seed, 0))
	return &Resolver{intn: rng.IntN}
}

// Resolve replaces every well-formed bracket group in template with one
// of its alternatives until none remain. Nested groups resolve
// innermost-first. An unclosed '[' fails with ErrMalformedTemplate; a
// stray ']' that opens no group passes through untouched.
func (r *Resolver) Resolve(template string) (string, error) {
	s := template
	for {
		open := strings.IndexByte(s, '[')
		if open == -1 {
			return s, nil
		}
		end := strings.IndexByte(s[open+1:], ']')
		if end == -1 {
			return "", fmt.Errorf("%w: unclosed '[' at offset %d", domain.ErrMalformedTemplate, open)
		}
		end += open + 1
		if inner := strings.LastIndexByte(s[open+1:end], '['); inner != -1 {
			open += inner + 1
		}
		choice := r.choose(s[open+1 : end])
		s = s[:open] + choice + s[end+1:]
	}
}

func (r *Resolver) choose(group string) string {
	alternatives := strings.Split(group, "|")
	for i, alt := range alternatives {
		alternatives[i] = strings.TrimSpace(alt)
	}
	if len(alternatives) == 1 {
		return alternatives[0]
	}
	return alternatives[r.intn(len(alternatives))]
}
