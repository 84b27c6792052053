// Package chatkey derives the canonical identifier for a two-party
// conversation. The key is order-independent over the participant pair, so
// both sides always address the same message and typing collections.
package chatkey

// For returns the conversation key for the pair (a, b). The participant IDs
// are sorted lexicographically and joined, so For(a, b) == For(b, a).
func For(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}
