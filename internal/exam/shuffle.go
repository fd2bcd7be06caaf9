package exam

// Shuffle returns a new selection holding the same questions in uniformly
// random order. The input is left untouched.
func Shuffle(sel *Selection, rng Rand) *Selection {
	if rng == nil {
		rng = DefaultRand()
	}
	qs := sel.Questions()
	rng.Shuffle(len(qs), func(i, j int) {
		qs[i], qs[j] = qs[j], qs[i]
	})
	return newSelection(sel.Target(), qs)
}
