package randomname

import (
	"context"
	"math/rand/v2"
	"strconv"
	"strings"
)

type Generator struct {
	lists       [][]string
	numLo       int
	numHi       int
	sep         string
	maxAttempts int
	intN        func(n int) int
}

// New returns a Generator producing "<Animal> <Piece> <100-999>" by default.
func New(opts ...Option) *Generator {
	g := &Generator{
		lists:       [][]string{Animals, Pieces},
		numLo:       100,
		numHi:       999,
		sep:         " ",
		maxAttempts: DefaultMaxAttempts,
		intN:        rand.IntN,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns one candidate name.
func (g *Generator) Generate() string {
	parts := make([]string, 0, len(g.lists)+1)
	for _, words := range g.lists {
		if len(words) == 0 {
			continue
		}
		parts = append(parts, words[g.intN(len(words))])
	}
	if g.numLo <= g.numHi {
		parts = append(parts, strconv.Itoa(g.numLo+g.intN(g.numHi-g.numLo+1)))
	}
	return strings.Join(parts, g.sep)
}

// GenerateUnique draws names until check accepts one. A check error aborts
// immediately.
func (g *Generator) GenerateUnique(ctx context.Context, check func(ctx context.Context, name string) (bool, error)) (string, error) {
	for range g.maxAttempts {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		name := g.Generate()
		if name == "" {
			return "", ErrNoWords
		}
		ok, err := check(ctx, name)
		if err != nil {
			return "", err
		}
		if ok {
			return name, nil
		}
	}
	return "", ErrExhausted
}
