package nostr

// Filter narrows a subscription to the events a handler cares about.
// Kind, recipient and type constraints are each a disjunction; an empty
// constraint matches everything. Freshness is enforced separately by the
// subscription because the cutoff moves with the clock.
type Filter struct {
	Kinds []int
	P     []string
	T     []string
}

// Matches reports whether the event satisfies every constraint.
func (f Filter) Matches(e *Event) bool {
	if len(f.Kinds) > 0 && !containsInt(f.Kinds, e.Kind) {
		return false
	}
	if len(f.P) > 0 && !intersects(f.P, e.Recipients()) {
		return false
	}
	if len(f.T) > 0 && !intersects(f.T, e.TagValues(TagType)) {
		return false
	}
	return true
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func intersects(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}
