// Package export writes extraction results as JSON, CSV and XLSX files.
package export

import (
	"fmt"
	"strconv"
	"strings"

	"ArgumentMiner/internal/domain"
)

// DefaultMaxPremises is the number of premise_N columns when none is configured.
const DefaultMaxPremises = 5

const premiseSeparator = " | "

// Columns returns the flat table header.
func Columns(maxPremises int) []string {
	cols := []string{
		"article_id",
		"text",
		"success",
		"error_message",
		"argument_index",
		"question",
		"answer",
		"claim",
		"premises_count",
		"premises_concatenated",
	}
	for i := 1; i <= maxPremises; i++ {
		cols = append(cols, fmt.Sprintf("premise_%d", i))
	}
	return cols
}

// Flatten turns results into one row per argument, plus one bare row for
// every article without arguments. The claim column carries the conclusion
// for direct extraction.
func Flatten(results []domain.ExtractionResult, maxPremises int) [][]string {
	var rows [][]string
	for _, res := range results {
		base := []string{res.ArticleID, res.Text, strconv.FormatBool(res.Success), res.ErrorMessage}

		if len(res.Arguments) == 0 {
			row := append(append([]string{}, base...), "", "", "", "", "0", "")
			rows = append(rows, append(row, make([]string, maxPremises)...))
			continue
		}

		for i, arg := range res.Arguments {
			row := append(append([]string{}, base...),
				strconv.Itoa(i+1),
				arg.Question,
				arg.Answer,
				arg.Statement(),
				strconv.Itoa(len(arg.Premises)),
				strings.Join(arg.Premises, premiseSeparator),
			)
			premises := make([]string, maxPremises)
			copy(premises, arg.Premises)
			rows = append(rows, append(row, premises...))
		}
	}
	return rows
}
