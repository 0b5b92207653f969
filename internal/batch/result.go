package batch

import (
	"sort"

	"ArgumentMiner/internal/domain"
)

// Entry is one correlated response. Present is false when the request ran
// but produced no usable content.
type Entry struct {
	Key     Key
	Text    string
	Present bool
}

// PhaseResult maps correlation keys to the raw text returned for them.
// A key can be present, absent (ran but empty) or missing (never returned).
// Once built it is only read.
type PhaseResult struct {
	Tag       string
	JobID     string
	State     domain.JobState
	Requested int
	Usage     domain.Usage
	entries   map[Key]Entry
}

// EmptyResult is the result of a phase that submitted nothing or failed to run.
func EmptyResult(tag string) PhaseResult {
	return PhaseResult{Tag: tag, entries: map[Key]Entry{}}
}

// NewPhaseResult builds a result from already correlated entries. Later
// entries for the same key replace earlier ones.
func NewPhaseResult(tag string, requested int, entries ...Entry) PhaseResult {
	res := PhaseResult{Tag: tag, Requested: requested, entries: make(map[Key]Entry, len(entries))}
	for _, e := range entries {
		res.entries[e.Key] = e
	}
	return res
}

// Lookup returns the raw text for key and whether it is present.
func (r PhaseResult) Lookup(key Key) (string, bool) {
	e, ok := r.entries[key]
	if !ok || !e.Present {
		return "", false
	}
	return e.Text, true
}

// Ran reports whether the remote returned anything, even an empty answer, for key.
func (r PhaseResult) Ran(key Key) bool {
	_, ok := r.entries[key]
	return ok
}

// Len is the number of keys the remote returned.
func (r PhaseResult) Len() int {
	return len(r.entries)
}

// Present counts keys with usable content.
func (r PhaseResult) Present() int {
	n := 0
	for _, e := range r.entries {
		if e.Present {
			n++
		}
	}
	return n
}

// Partial reports whether fewer usable answers than requests came back.
func (r PhaseResult) Partial() bool {
	return r.Present() < r.Requested
}

// Entries returns all entries ordered by article then item index.
func (r PhaseResult) Entries() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Article != out[j].Key.Article {
			return out[i].Key.Article < out[j].Key.Article
		}
		return out[i].Key.Item < out[j].Key.Item
	})
	return out
}
