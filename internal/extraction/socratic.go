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
	tagQuestion = "q"
	tagAnswer   = "qa"
	tagArgument = "arg"
)

// socratic asks questions about the article, answers them from the full
// text, then turns every question/answer pair into a claim with premises.
type socratic struct {
	prompts prompt.Set
}

func (s socratic) variant() domain.Variant { return domain.VariantSocratic }

func (s socratic) plan() batch.Plan {
	return batch.Plan{
		Variant: domain.VariantSocratic,
		Phases: []batch.Phase{
			{Name: "questions", Tag: tagQuestion, Build: s.buildQuestions},
			{Name: "answers", Tag: tagAnswer, Build: s.buildAnswers},
			{Name: "arguments", Tag: tagArgument, Build: s.buildArguments},
		},
		Combine: s.combine,
	}
}

func (s socratic) buildQuestions(articles []domain.Article, _ []batch.PhaseResult) []batch.Request {
	reqs := make([]batch.Request, 0, len(articles))
	for i, a := range articles {
		if strings.TrimSpace(a.Text) == "" {
			continue
		}
		reqs = append(reqs, batch.Request{Key: batch.ArticleKey(tagQuestion, i), Prompt: s.prompts.Questions(a.Text)})
	}
	return reqs
}

func (s socratic) buildAnswers(articles []domain.Article, prior []batch.PhaseResult) []batch.Request {
	questions := joinLists(prior[0], len(articles), parse.Questions)
	var reqs []batch.Request
	for i, a := range articles {
		for j, q := range questions[i] {
			reqs = append(reqs, batch.Request{Key: batch.ItemKey(tagAnswer, i, j), Prompt: s.prompts.Answer(q, a.Text)})
		}
	}
	return reqs
}

// buildArguments only asks for pairs whose answer arrived.
func (s socratic) buildArguments(articles []domain.Article, prior []batch.PhaseResult) []batch.Request {
	questions := joinLists(prior[0], len(articles), parse.Questions)
	answers := batch.PerItem(prior[1], batch.Counts(questions), parse.Answer)

	var reqs []batch.Request
	for i := range articles {
		for j, q := range questions[i] {
			answer := answers[i][j]
			if !answer.OK || answer.Value == "" {
				continue
			}
			reqs = append(reqs, batch.Request{Key: batch.ItemKey(tagArgument, i, j), Prompt: s.prompts.Argument(q, answer.Value)})
		}
	}
	return reqs
}

func (s socratic) combine(articles []domain.Article, results []batch.PhaseResult) []domain.ExtractionResult {
	questions := joinLists(results[0], len(articles), parse.Questions)
	counts := batch.Counts(questions)
	answers := batch.PerItem(results[1], counts, parse.Answer)
	arguments := batch.PerItem(results[2], counts, parse.ParseArgument)

	out := make([]domain.ExtractionResult, len(articles))
	for i := range articles {
		var args []domain.ArgumentRecord
		for j, q := range questions[i] {
			answer, arg := answers[i][j], arguments[i][j]
			if !answer.OK || answer.Value == "" || !arg.OK {
				continue
			}
			args = append(args, domain.ArgumentRecord{
				Question: q,
				Answer:   answer.Value,
				Claim:    arg.Value.Claim,
				Premises: orEmpty(arg.Value.Premises),
			})
		}
		out[i] = domain.ExtractionResult{Items: questions[i], Arguments: args}
	}
	return out
}

func (s socratic) single(ctx context.Context, call callFunc, text string) ([]string, []domain.ArgumentRecord, error) {
	raw, err := call(ctx, s.prompts.Questions(text))
	if err != nil {
		return nil, nil, fmt.Errorf("extract questions: %w", err)
	}
	questions := parse.Questions(raw)

	args := make([]domain.ArgumentRecord, 0, len(questions))
	for j, q := range questions {
		raw, err := call(ctx, s.prompts.Answer(q, text))
		if err != nil {
			return questions, nil, fmt.Errorf("answer question %d: %w", j+1, err)
		}
		answer := parse.Answer(raw)
		if answer == "" {
			continue
		}

		raw, err = call(ctx, s.prompts.Argument(q, answer))
		if err != nil {
			return questions, nil, fmt.Errorf("construct argument %d: %w", j+1, err)
		}
		arg := parse.ParseArgument(raw)
		args = append(args, domain.ArgumentRecord{Question: q, Answer: answer, Claim: arg.Claim, Premises: arg.Premises})
	}
	return questions, args, nil
}
