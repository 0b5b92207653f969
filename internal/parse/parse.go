// Package parse turns free-text model responses into structured items. The
// parsers never fail: a response without the expected shape yields an empty
// result.
package parse

import (
	"regexp"
	"strings"
)

// MaxQuestions caps how many questions are kept from one response.
const MaxQuestions = 10

var listMarker = regexp.MustCompile(`^(?:\d+[.)]|[-*•])\s*`)

// Argument is a claim with its supporting premises.
type Argument struct {
	Claim    string
	Premises []string
}

// List extracts numbered or bulleted items, one per line.
func List(text string) []string {
	items := []string{}
	for _, line := range strings.Split(text, "\n") {
		if item, ok := listItem(line); ok {
			items = append(items, item)
		}
	}
	return items
}

// Questions is List limited to MaxQuestions entries.
func Questions(text string) []string {
	items := List(text)
	if len(items) > MaxQuestions {
		items = items[:MaxQuestions]
	}
	return items
}

// Answer trims a free-text answer.
func Answer(text string) string {
	return strings.TrimSpace(text)
}

// ParseArgument reads a "Claim:" line followed by a "Premises:" list.
func ParseArgument(text string) Argument {
	arg := Argument{Premises: []string{}}
	inPremises := false
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case hasLabel(line, "claim:"):
			arg.Claim = strings.TrimSpace(line[len("claim:"):])
			inPremises = false
		case hasLabel(line, "premises:"):
			inPremises = true
		case inPremises:
			if item, ok := listItem(line); ok {
				arg.Premises = append(arg.Premises, item)
			}
		}
	}
	return arg
}

func listItem(line string) (string, bool) {
	line = strings.TrimSpace(line)
	loc := listMarker.FindStringIndex(line)
	if loc == nil {
		return "", false
	}
	item := strings.TrimSpace(line[loc[1]:])
	item = strings.Trim(item, "*")
	item = strings.TrimSpace(item)
	return item, item != ""
}

func hasLabel(line, label string) bool {
	return len(line) >= len(label) && strings.EqualFold(line[:len(label)], label)
}
