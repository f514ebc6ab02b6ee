package randomname

import "errors"

var (
	ErrExhausted = errors.New("randomname.exhausted")
	ErrNoWords   = errors.New("randomname.no_words")
)

const DefaultMaxAttempts = 100

type Option func(*Generator)

// WithWords replaces the word lists. Each list contributes one word, in order.
func WithWords(lists ...[]string) Option {
	return func(g *Generator) { g.lists = lists }
}

// WithNumber appends a number in [lo, hi]. lo > hi disables the suffix.
func WithNumber(lo, hi int) Option {
	return func(g *Generator) {
		g.numLo, g.numHi = lo, hi
	}
}

// WithoutNumber disables the numeric suffix.
func WithoutNumber() Option {
	return func(g *Generator) { g.numLo, g.numHi = 1, 0 }
}

func WithSeparator(sep string) Option {
	return func(g *Generator) { g.sep = sep }
}

// WithMaxAttempts bounds GenerateUnique. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithIntN swaps the randomness source. intN must return a value in [0, n).
func WithIntN(intN func(n int) int) Option {
	return func(g *Generator) {
		if intN != nil {
			g.intN = intN
		}
	}
}
