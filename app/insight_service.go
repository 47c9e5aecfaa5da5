package app

import (
	"context"
	"sync/atomic"
	"time"

	"unidss/ai"
	"unidss/domain/department"
	"unidss/internal"
	apperrors "unidss/internal/errors"
	"unidss/internal/usage"
	"unidss/ports"

	"golang.org/x/sync/semaphore"
)

// FallbackMessage replaces the narrative whenever the completion call
// fails for any reason.
const FallbackMessage = "Unable to generate AI insights at this time. Please try again later."

// InsightConfig holds the model parameters for narrative generation
type InsightConfig struct {
	Model     string
	MaxTokens int
}

// Insight is the outcome of one narrative request
type Insight struct {
	Text     string           `json:"text"`
	Failed   bool             `json:"failed"`
	Usage    *ports.UsageData `json:"usage,omitempty"`
	Duration time.Duration    `json:"-"`
}

// InsightService turns an aggregate summary into a free-text narrative.
// At most one request is in flight at a time; further requests are refused
// rather than queued.
type InsightService struct {
	llm      ports.LLMClient
	prompts  *ai.PromptManager
	config   InsightConfig
	logger   *internal.Logger
	usage    *usage.Tracker
	gate     *semaphore.Weighted
	inFlight atomic.Bool
}

// NewInsightService wires the requestor. llm may be nil when no API key is
// configured; every request then yields the fallback.
func NewInsightService(llm ports.LLMClient, prompts *ai.PromptManager, config InsightConfig, logger *internal.Logger) *InsightService {
	if prompts == nil {
		prompts = ai.NewPromptManager("")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &InsightService{
		llm:     llm,
		prompts: prompts,
		config:  config,
		logger:  logger,
		gate:    semaphore.NewWeighted(1),
	}
}

// WithUsageTracker records every request outcome in t
func (s *InsightService) WithUsageTracker(t *usage.Tracker) *InsightService {
	s.usage = t
	return s
}

// TryAcquire takes the busy gate without blocking
func (s *InsightService) TryAcquire() bool {
	if !s.gate.TryAcquire(1) {
		return false
	}
	s.inFlight.Store(true)
	return true
}

// Release frees the busy gate
func (s *InsightService) Release() {
	s.inFlight.Store(false)
	s.gate.Release(1)
}

// Busy reports whether a request is outstanding
func (s *InsightService) Busy() bool {
	return s.inFlight.Load()
}

// TryGenerate is Generate behind the busy gate. It returns an INSIGHT_BUSY
// error when another request is outstanding.
func (s *InsightService) TryGenerate(ctx context.Context, summary department.Summary) (Insight, error) {
	if !s.TryAcquire() {
		return Insight{}, apperrors.InsightBusy()
	}
	defer s.Release()
	return s.Generate(ctx, summary), nil
}

// Generate sends the summary prompt and returns the completion verbatim, or
// FallbackMessage on any failure. It never returns an error.
func (s *InsightService) Generate(ctx context.Context, summary department.Summary) Insight {
	start := time.Now()
	fail := func(err error) Insight {
		s.logger.Warn("[InsightService] insight request failed (%s): %v", apperrors.GetCode(err), err)
		ins := Insight{Text: FallbackMessage, Failed: true, Duration: time.Since(start)}
		s.record(ins)
		return ins
	}

	if s.llm == nil {
		return fail(apperrors.ConfigInvalid("OPENAI_API_KEY is not configured"))
	}

	prompt, err := s.prompts.RenderInsightPrompt(summary)
	if err != nil {
		return fail(apperrors.Wrap(err, "failed to render insight prompt"))
	}

	resp, err := s.llm.ChatCompletionWithUsage(ctx, s.config.Model, prompt, s.config.MaxTokens)
	if err != nil {
		return fail(err)
	}
	if resp == nil {
		return fail(apperrors.InternalError("empty completion response"))
	}

	elapsed := time.Since(start)
	if resp.Usage != nil {
		s.logger.Debug("[InsightService] completion in %s (model=%s, tokens=%d)", elapsed, resp.Usage.Model, resp.Usage.TotalTokens)
	} else {
		s.logger.Debug("[InsightService] completion in %s", elapsed)
	}
	ins := Insight{Text: resp.Content, Usage: resp.Usage, Duration: elapsed}
	s.record(ins)
	return ins
}

func (s *InsightService) record(ins Insight) {
	if s.usage != nil {
		s.usage.RecordUsage(usage.OperationInsight, ins.Usage, ins.Failed, ins.Duration)
	}
}
