package ai

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/outcome"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/utils"
)

// Generator is a single prompt, single response text generation backend.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

// RewriteResult carries the query to search with and how it was obtained.
// Query is never empty for non-empty input.
type RewriteResult struct {
	Query   string
	Outcome outcome.Outcome
	Err     error
}

//go:embed prompt.md
var promptTemplate string

const (
	// MaxPromptInput is the number of runes of job text sent to the generator.
	MaxPromptInput = 1500

	defaultMaxLogLength = 200
)

var errEmptyResponse = errors.New("generator returned empty response")

type Rewriter struct {
	generator Generator
	logger    *zap.Logger
	maxLogLen int
}

// NewRewriter returns a rewriter. A nil generator makes every call a
// passthrough.
func NewRewriter(generator Generator, logger *zap.Logger, maxLogLength int) *Rewriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Rewriter{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Enabled reports whether a generator is configured.
func (r *Rewriter) Enabled() bool {
	return r != nil && r.generator != nil
}

// Rewrite turns job text into a two-part technical/behavioral query with one
// generator call. It never fails: without a generator, or when the call
// errors, the original text is returned with a non-success outcome.
func (r *Rewriter) Rewrite(ctx context.Context, text string) RewriteResult {
	if !r.Enabled() {
		return RewriteResult{Query: text, Outcome: outcome.Degraded}
	}

	prompt := BuildPrompt(text)

	r.logger.Debug("Rewrite request",
		zap.String("model", r.generator.Model()),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("input_preview", utils.TruncateForLog(text, r.maxLogLen)),
	)

	raw, err := r.generator.GenerateContent(ctx, prompt)
	if err != nil {
		r.logger.Warn("Query rewrite failed, using original text", zap.Error(err))
		return RewriteResult{Query: text, Outcome: outcome.Failed, Err: err}
	}

	query := cleanResponse(raw)
	if query == "" {
		r.logger.Warn("Query rewrite returned nothing, using original text")
		return RewriteResult{Query: text, Outcome: outcome.Failed, Err: errEmptyResponse}
	}

	if parsed, ok := ParseQuery(query); ok {
		query = parsed.String()
	} else {
		r.logger.Debug("Rewritten query is not in two-part form", zap.String("query", utils.TruncateForLog(query, r.maxLogLen)))
	}

	r.logger.Debug("Rewrite response",
		zap.String("query", utils.TruncateForLog(query, r.maxLogLen)),
	)

	return RewriteResult{Query: query, Outcome: outcome.Success}
}

// BuildPrompt fills the embedded instruction with the first MaxPromptInput
// runes of text.
func BuildPrompt(text string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Extract Technical and Behavioral terms. Answer as: Technical: <terms> AND Behavioral: <terms>\n\n{{JOB_TEXT}}"
	}
	return strings.ReplaceAll(template, "{{JOB_TEXT}}", utils.Prefix(text, MaxPromptInput))
}

// cleanResponse strips code fences and quotes around the answer and folds it
// onto one line.
func cleanResponse(raw string) string {
	cleaned := strings.TrimSpace(raw)

	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.IndexByte(cleaned, '\n'); idx >= 0 && !strings.Contains(cleaned[:idx], ":") {
			cleaned = cleaned[idx+1:]
		}
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}

	cleaned = utils.CollapseSpaces(cleaned)
	cleaned = strings.Trim(cleaned, "\"'`")

	return strings.TrimSpace(cleaned)
}
