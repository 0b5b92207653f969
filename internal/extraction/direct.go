package extraction

import (
	"context"
	"fmt"
	"strings"

	"ArgumentMiner/internal/batch"
	"ArgumentMiner/internal/domain"
	"ArgumentMiner/internal/parse"
	"ArgumentMiner/internal/prompt"
)

const (
	tagConclusion = "c"
	tagPremise    = "p"
)

// direct extracts conclusions first, then the premises of each conclusion.
type direct struct {
	prompts prompt.Set
}

func (d direct) variant() domain.Variant { return domain.VariantDirect }

func (d direct) plan() batch.Plan {
	return batch.Plan{
		Variant: domain.VariantDirect,
		Phases: []batch.Phase{
			{Name: "conclusions", Tag: tagConclusion, Build: d.buildConclusions},
			{Name: "premises", Tag: tagPremise, Build: d.buildPremises},
		},
		Combine: d.combine,
	}
}

func (d direct) buildConclusions(articles []domain.Article, _ []batch.PhaseResult) []batch.Request {
	reqs := make([]batch.Request, 0, len(articles))
	for i, a := range articles {
		if strings.TrimSpace(a.Text) == "" {
			continue
		}
		reqs = append(reqs, batch.Request{Key: batch.ArticleKey(tagConclusion, i), Prompt: d.prompts.Conclusions(a.Text)})
	}
	return reqs
}

func (d direct) buildPremises(articles []domain.Article, prior []batch.PhaseResult) []batch.Request {
	conclusions := joinLists(prior[0], len(articles), parse.List)
	var reqs []batch.Request
	for i, a := range articles {
		for j, c := range conclusions[i] {
			reqs = append(reqs, batch.Request{Key: batch.ItemKey(tagPremise, i, j), Prompt: d.prompts.Premises(a.Text, c)})
		}
	}
	return reqs
}

func (d direct) combine(articles []domain.Article, results []batch.PhaseResult) []domain.ExtractionResult {
	conclusions := joinLists(results[0], len(articles), parse.List)
	premises := batch.PerItem(results[1], batch.Counts(conclusions), parse.List)

	out := make([]domain.ExtractionResult, len(articles))
	for i := range articles {
		args := make([]domain.ArgumentRecord, 0, len(conclusions[i]))
		for j, c := range conclusions[i] {
			args = append(args, domain.ArgumentRecord{Conclusion: c, Premises: orEmpty(premises[i][j].Value)})
		}
		out[i] = domain.ExtractionResult{Items: conclusions[i], Arguments: args}
	}
	return out
}

func (d direct) single(ctx context.Context, call callFunc, text string) ([]string, []domain.ArgumentRecord, error) {
	raw, err := call(ctx, d.prompts.Conclusions(text))
	if err != nil {
		return nil, nil, fmt.Errorf("extract conclusions: %w", err)
	}
	conclusions := parse.List(raw)

	args := make([]domain.ArgumentRecord, 0, len(conclusions))
	for j, c := range conclusions {
		raw, err := call(ctx, d.prompts.Premises(text, c))
		if err != nil {
			return conclusions, nil, fmt.Errorf("extract premises for conclusion %d: %w", j+1, err)
		}
		args = append(args, domain.ArgumentRecord{Conclusion: c, Premises: parse.List(raw)})
	}
	return conclusions, args, nil
}

func joinLists(res batch.PhaseResult, n int, parser func(string) []string) [][]string {
	lists := batch.Values(batch.PerArticle(res, n, parser))
	for i := range lists {
		lists[i] = orEmpty(lists[i])
	}
	return lists
}

func orEmpty(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
