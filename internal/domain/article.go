package domain

import (
	"bytes"
	"encoding/json"
)

// NoArgumentsReason is recorded on every result that ends without arguments.
const NoArgumentsReason = "No arguments extracted"

// Variant names one of the extraction pipelines.
type Variant string

const (
	VariantDirect   Variant = "direct_extraction"
	VariantSocratic Variant = "socratic_extraction"
)

// Article is the immutable input unit handed to the extractors.
type Article struct {
	ID   string
	Text string
}

// ArgumentRecord is one extracted argument. Direct extraction fills Conclusion,
// the question-answer variant fills Question, Answer and Claim.
type ArgumentRecord struct {
	Question   string   `json:"question,omitempty"`
	Answer     string   `json:"answer,omitempty"`
	Conclusion string   `json:"conclusion,omitempty"`
	Claim      string   `json:"claim,omitempty"`
	Premises   []string `json:"premises"`
}

// Statement returns the claim or conclusion the premises support.
func (a ArgumentRecord) Statement() string {
	if a.Claim != "" {
		return a.Claim
	}
	return a.Conclusion
}

// ExtractionResult is the per-article outcome of an extraction run.
type ExtractionResult struct {
	Variant      Variant
	ArticleID    string
	Text         string
	Success      bool
	ErrorMessage string
	Arguments    []ArgumentRecord
	// Items holds the phase-1 output: conclusions or questions depending on Variant.
	Items []string
}

// NewExtractionResult builds a result whose success flag is derived from the arguments.
func NewExtractionResult(variant Variant, article Article, items []string, args []ArgumentRecord) ExtractionResult {
	res := ExtractionResult{
		Variant:   variant,
		ArticleID: article.ID,
		Text:      article.Text,
		Items:     nonNil(items),
		Arguments: args,
	}
	if res.Arguments == nil {
		res.Arguments = []ArgumentRecord{}
	}
	res.Success = len(res.Arguments) > 0
	if !res.Success {
		res.ErrorMessage = NoArgumentsReason
	}
	return res
}

// FailedExtraction records an article whose processing was aborted by err.
func FailedExtraction(variant Variant, article Article, items []string, err error) ExtractionResult {
	return ExtractionResult{
		Variant:      variant,
		ArticleID:    article.ID,
		Text:         article.Text,
		Items:        nonNil(items),
		Arguments:    []ArgumentRecord{},
		ErrorMessage: err.Error(),
	}
}

// ItemsField is the JSON field name of the phase-1 items.
func (r ExtractionResult) ItemsField() string {
	if r.Variant == VariantSocratic {
		return "questions"
	}
	return "conclusions"
}

// MarshalJSON renders the record in the export layout.
func (r ExtractionResult) MarshalJSON() ([]byte, error) {
	var errMsg *string
	if r.ErrorMessage != "" {
		msg := r.ErrorMessage
		errMsg = &msg
	}
	args := r.Arguments
	if args == nil {
		args = []ArgumentRecord{}
	}

	type record struct {
		ArticleID    string           `json:"article_id"`
		Text         string           `json:"text"`
		Success      bool             `json:"success"`
		ErrorMessage *string          `json:"error_message"`
		Arguments    []ArgumentRecord `json:"arguments"`
	}
	base := record{r.ArticleID, r.Text, r.Success, errMsg, args}

	if r.Variant == VariantSocratic {
		return marshal(struct {
			record
			Questions []string `json:"questions"`
		}{base, nonNil(r.Items)})
	}
	return marshal(struct {
		record
		Conclusions []string `json:"conclusions"`
	}{base, nonNil(r.Items)})
}

// marshal encodes v without HTML escaping.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
