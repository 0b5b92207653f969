package batch

// Slot is one joined value; OK is false when the key was missing or absent.
type Slot[T any] struct {
	Value T
	OK    bool
}

// PerArticle joins a phase whose keys address whole articles. The returned
// slice has one slot per article; missing keys leave the slot empty.
func PerArticle[T any](res PhaseResult, articles int, parse func(string) T) []Slot[T] {
	out := make([]Slot[T], articles)
	for i := range out {
		if raw, ok := res.Lookup(ArticleKey(res.Tag, i)); ok {
			out[i] = Slot[T]{Value: parse(raw), OK: true}
		}
	}
	return out
}

// PerItem joins a phase fanned out over prior-phase items. counts[i] is the
// number of items article i produced in the phase the requests were built from.
func PerItem[T any](res PhaseResult, counts []int, parse func(string) T) [][]Slot[T] {
	out := make([][]Slot[T], len(counts))
	for i, n := range counts {
		out[i] = make([]Slot[T], n)
		for j := 0; j < n; j++ {
			if raw, ok := res.Lookup(ItemKey(res.Tag, i, j)); ok {
				out[i][j] = Slot[T]{Value: parse(raw), OK: true}
			}
		}
	}
	return out
}

// Values unwraps slots, substituting the zero value for empty ones.
func Values[T any](slots []Slot[T]) []T {
	out := make([]T, len(slots))
	for i, s := range slots {
		out[i] = s.Value
	}
	return out
}

// Counts returns the length of each article's item list.
func Counts[T any](items [][]T) []int {
	out := make([]int, len(items))
	for i, list := range items {
		out[i] = len(list)
	}
	return out
}
