package domain

// Stats summarises a run.
type Stats struct {
	Total            int
	Successful       int
	Failed           int
	Arguments        int
	AverageArguments float64
}

// Summarize counts successes and arguments over results.
func Summarize(results []ExtractionResult) Stats {
	s := Stats{Total: len(results)}
	for _, res := range results {
		if res.Success {
			s.Successful++
		}
		s.Arguments += len(res.Arguments)
	}
	s.Failed = s.Total - s.Successful
	if s.Total > 0 {
		s.AverageArguments = float64(s.Arguments) / float64(s.Total)
	}
	return s
}

// LogValues renders the stats as slog key/value pairs.
func (s Stats) LogValues() []any {
	return []any{
		"total_articles", s.Total,
		"successful", s.Successful,
		"failed", s.Failed,
		"total_arguments", s.Arguments,
		"avg_arguments", s.AverageArguments,
	}
}
