package core

import "sync/atomic"

// Generation is a monotonically increasing liveness token. A caller takes a
// token before a suspended call and applies the result only if the token is
// still current when the call returns; Advance invalidates every token
// handed out so far.
//
// The zero value is ready to use.
type Generation struct {
	n atomic.Uint64
}

// Token identifies one generation.
type Token uint64

// Current returns the current token.
func (g *Generation) Current() Token {
	return Token(g.n.Load())
}

// Advance invalidates all outstanding tokens and returns the new current one.
func (g *Generation) Advance() Token {
	return Token(g.n.Add(1))
}

// IsCurrent reports whether t has not been superseded.
func (g *Generation) IsCurrent(t Token) bool {
	return g.n.Load() == uint64(t)
}
