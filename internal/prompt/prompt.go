package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"ArgumentMiner/internal/domain"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Set holds the prompt templates of both extraction pipelines. Templates use
// {name} placeholders.
type Set struct {
	ConclusionExtraction string `yaml:"conclusion_extraction"`
	PremiseExtraction    string `yaml:"premise_extraction"`
	QuestionExtraction   string `yaml:"question_extraction"`
	QuestionAnswering    string `yaml:"question_answering"`
	ArgumentConstruction string `yaml:"argument_construction"`
}

// Default returns the embedded template set.
func Default() Set {
	var set Set
	if err := yaml.Unmarshal(defaultPrompts, &set); err != nil {
		panic(fmt.Sprintf("prompt: embedded templates are invalid: %v", err))
	}
	return set
}

// Load reads a template set from path, falling back to the embedded
// templates for any key the file leaves out. An empty path yields Default().
func Load(path string) (Set, error) {
	set := Default()
	if path == "" {
		return set, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("%w: read prompts %s: %v", domain.ErrConfiguration, path, err)
	}
	if err := yaml.Unmarshal(raw, &set); err != nil {
		return Set{}, fmt.Errorf("%w: parse prompts %s: %v", domain.ErrConfiguration, path, err)
	}
	return set, nil
}

// Validate checks that every template needed by variant is present.
func (s Set) Validate(variant domain.Variant) error {
	required := map[string]string{}
	switch variant {
	case domain.VariantDirect:
		required["conclusion_extraction"] = s.ConclusionExtraction
		required["premise_extraction"] = s.PremiseExtraction
	case domain.VariantSocratic:
		required["question_extraction"] = s.QuestionExtraction
		required["question_answering"] = s.QuestionAnswering
		required["argument_construction"] = s.ArgumentConstruction
	default:
		return fmt.Errorf("%w: unknown pipeline %q", domain.ErrConfiguration, variant)
	}

	for name, tpl := range required {
		if strings.TrimSpace(tpl) == "" {
			return fmt.Errorf("%w: prompt %s is empty", domain.ErrConfiguration, name)
		}
	}
	return nil
}

// Render substitutes {key} placeholders with their values in a single pass,
// so values containing braces are left untouched.
func Render(tpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

func (s Set) Conclusions(text string) string {
	return Render(s.ConclusionExtraction, map[string]string{"text": text})
}

func (s Set) Premises(text, conclusion string) string {
	return Render(s.PremiseExtraction, map[string]string{"text": text, "conclusion": conclusion})
}

func (s Set) Questions(text string) string {
	return Render(s.QuestionExtraction, map[string]string{"text": text})
}

func (s Set) Answer(question, article string) string {
	return Render(s.QuestionAnswering, map[string]string{"question": question, "article": article})
}

func (s Set) Argument(question, answer string) string {
	return Render(s.ArgumentConstruction, map[string]string{"question": question, "answer": answer})
}
