// Package randomname generates human-readable handles such as
// "Crane Rook 482".
//
// A Generator picks one word from each configured list in order, optionally
// appends a number from an inclusive range, and joins the parts with a
// separator. The defaults produce KFChess-style names: a martial-arts animal,
// a chess piece and a three-digit number.
//
//	g := randomname.New()
//	name := g.Generate()
//
// GenerateUnique retries until a caller-supplied check accepts the name or
// the attempt budget is spent, in which case ErrExhausted is returned.
//
// Generators are safe for concurrent use.
package randomname
