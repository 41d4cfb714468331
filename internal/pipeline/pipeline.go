// Package pipeline implements the conversation safety-and-delivery state
// machine: classify the turn, block or generate, absorb failures through an
// image-stripped retry and a deterministic model fallback chain, and fire
// the rate-limited side effects.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/calmahq/calma/internal/catalog"
	"github.com/calmahq/calma/internal/memory"
	"github.com/calmahq/calma/internal/notify"
	"github.com/calmahq/calma/internal/observability"
	"github.com/calmahq/calma/internal/provider"
	"github.com/calmahq/calma/internal/safety"
	"github.com/calmahq/calma/internal/transcript"
)

// State identifies a position in the turn state machine.
type State string

// Pipeline states. Blocked, Delivered and Exhausted are terminal.
const (
	StateIdle        State = "idle"
	StateClassifying State = "classifying"
	StateBlocked     State = "blocked"
	StateGenerating  State = "generating"
	StateRetrying    State = "retrying"
	StateDelivered   State = "delivered"
	StateExhausted   State = "exhausted"
)

// ErrExhausted is returned by the internal generation loop when every
// candidate model failed. It never escapes ProcessTurn: the caller receives
// a stored generic error turn instead.
var ErrExhausted = errors.New("all completion candidates failed")

// Outcome is the terminal result of one processed turn.
type Outcome struct {
	// State is blocked, delivered or exhausted.
	State State

	// Reply is the assistant turn appended to the transcript.
	Reply transcript.Turn

	// Model is the model that produced the reply, empty for blocked and
	// exhausted outcomes.
	Model string

	// FallbackDepth counts how many fallback candidates were consumed
	// before success: 0 means the primary call (or its image-stripped
	// retry) succeeded.
	FallbackDepth int
}

// Deps are the pipeline's collaborators, injected explicitly.
type Deps struct {
	Provider    provider.Provider
	Classifier  *safety.Classifier
	Notifier    *notify.Notifier
	Summarizer  *memory.Summarizer
	Catalog     *catalog.Catalog
	Transcript  transcript.Store
	Summaries   memory.Store
	Diagnostics *provider.Diagnostics
	Metrics     *observability.Metrics
	Logger      *slog.Logger
}

// Pipeline sequences the collaborators for every user turn. Turns within one
// session are processed strictly sequentially; sessions are independent.
type Pipeline struct {
	config Config
	deps   Deps
	logger *slog.Logger
	tracer trace.Tracer
	events *hub

	mu       sync.Mutex
	sessions map[string]*sync.Mutex

	// wg tracks the detached notifier and summarizer goroutines so
	// shutdown can drain them.
	wg sync.WaitGroup
}

// NewPipeline creates a pipeline over the given collaborators.
func NewPipeline(config Config, deps Deps) *Pipeline {
	config.defaults()
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		config:   config,
		deps:     deps,
		logger:   logger,
		tracer:   otel.Tracer("calma/pipeline"),
		events:   newHub(),
		sessions: make(map[string]*sync.Mutex),
	}
}

// Subscribe returns a channel of terminal turn outcomes and a cancel
// function. Used by the event feed.
func (p *Pipeline) Subscribe() (<-chan Event, func()) {
	return p.events.subscribe()
}

// Transcript returns every stored turn for a session, oldest first.
func (p *Pipeline) Transcript(ctx context.Context, sessionID string) ([]transcript.Turn, error) {
	return p.deps.Transcript.All(ctx, sessionID)
}

// LastDiagnostic returns the most recent raw provider failure, if any.
func (p *Pipeline) LastDiagnostic() (provider.DiagnosticRecord, bool) {
	return p.deps.Diagnostics.Last()
}

// Wait blocks until all detached side-effect goroutines have finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// ProcessTurn runs the full state machine for one user turn and returns its
// terminal outcome. It never returns a provider error: exhaustion produces a
// stored generic error turn and a normal Outcome. The returned error is
// reserved for transcript storage failures, which have no recovery path.
func (p *Pipeline) ProcessTurn(ctx context.Context, sessionID, content string, images []provider.ImagePart) (Outcome, error) {
	lock := p.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	started := time.Now()
	ctx, span := p.tracer.Start(ctx, "pipeline.ProcessTurn",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	userTurn := transcript.Turn{
		Role:      provider.MessageRoleUser,
		Content:   content,
		Images:    images,
		CreatedAt: time.Now(),
	}
	if err := p.deps.Transcript.Append(ctx, sessionID, userTurn); err != nil {
		return Outcome{}, fmt.Errorf("appending user turn: %w", err)
	}

	if p.classify(ctx, sessionID) {
		return p.block(ctx, sessionID, started)
	}

	return p.generate(ctx, sessionID, started)
}

// classify runs the safety gate over the trailing window. The user turn is
// already appended, so the window always ends at the latest user content.
func (p *Pipeline) classify(ctx context.Context, sessionID string) bool {
	ctx, span := p.tracer.Start(ctx, "pipeline.classify")
	defer span.End()

	turns, err := p.deps.Transcript.Recent(ctx, sessionID, p.deps.Classifier.WindowTurns())
	if err != nil {
		// Fail open, same as a classifier call failure.
		p.logger.Warn("reading classification window failed", "session", sessionID, "error", err)
		return false
	}

	verdict, cached := p.deps.Classifier.Classify(ctx, safety.RenderWindow(turns))
	span.SetAttributes(attribute.Bool("crisis", verdict), attribute.Bool("cached", cached))

	if m := p.deps.Metrics; m != nil {
		if cached {
			m.ClassifierCacheHit.Inc()
		}
		if verdict {
			m.ClassifierVerdicts.WithLabelValues("crisis").Inc()
		} else {
			m.ClassifierVerdicts.WithLabelValues("safe").Inc()
		}
	}
	return verdict
}

// block handles the crisis path: store the fixed crisis message, fire the
// notifier on a detached goroutine, and report the blocked outcome without
// waiting for alert delivery.
func (p *Pipeline) block(ctx context.Context, sessionID string, started time.Time) (Outcome, error) {
	reply := transcript.Turn{
		Role:      provider.MessageRoleAssistant,
		Content:   p.config.CrisisMessage,
		CreatedAt: time.Now(),
	}
	if err := p.deps.Transcript.Append(ctx, sessionID, reply); err != nil {
		return Outcome{}, fmt.Errorf("appending crisis turn: %w", err)
	}

	if p.deps.Notifier != nil {
		p.wg.Add(1)
		// The alert must outlive the request that triggered it.
		alertCtx := context.WithoutCancel(ctx)
		go func() {
			defer p.wg.Done()
			sent := p.deps.Notifier.NotifyIfNeeded(alertCtx, p.config.UserName)
			if m := p.deps.Metrics; m != nil && sent {
				m.AlertsSent.Inc()
			}
		}()
	}

	p.logger.Info("turn blocked by safety gate", "session", sessionID)
	p.finish(sessionID, StateBlocked, "", reply, started)
	return Outcome{State: StateBlocked, Reply: reply}, nil
}

// generate runs the primary call, the image-stripped retry, then the
// fallback chain, and stores the terminal result.
func (p *Pipeline) generate(ctx context.Context, sessionID string, started time.Time) (Outcome, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.generate")
	defer span.End()

	content, model, depth, err := p.complete(ctx, sessionID)
	if err != nil {
		// Exhausted: store the fixed generic error turn. Raw provider
		// detail stays in the diagnostics slot only.
		reply := transcript.Turn{
			Role:      provider.MessageRoleAssistant,
			Content:   p.config.ErrorMessage,
			CreatedAt: time.Now(),
		}
		if storeErr := p.deps.Transcript.Append(ctx, sessionID, reply); storeErr != nil {
			return Outcome{}, fmt.Errorf("appending error turn: %w", storeErr)
		}

		p.logger.Error("generation exhausted all candidates", "session", sessionID, "error", err)
		p.finish(sessionID, StateExhausted, "", reply, started)
		return Outcome{State: StateExhausted, Reply: reply}, nil
	}

	reply := transcript.Turn{
		Role:      provider.MessageRoleAssistant,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := p.deps.Transcript.Append(ctx, sessionID, reply); err != nil {
		return Outcome{}, fmt.Errorf("appending assistant turn: %w", err)
	}

	if p.deps.Summarizer != nil {
		p.wg.Add(1)
		sumCtx := context.WithoutCancel(ctx)
		go func() {
			defer p.wg.Done()
			written := p.deps.Summarizer.MaybeSummarize(sumCtx, sessionID)
			if m := p.deps.Metrics; m != nil && written {
				m.SummariesWritten.Inc()
			}
		}()
	}

	span.SetAttributes(
		attribute.String("model", model),
		attribute.Int("fallback.depth", depth),
	)
	p.finish(sessionID, StateDelivered, model, reply, started)
	return Outcome{State: StateDelivered, Reply: reply, Model: model, FallbackDepth: depth}, nil
}

// complete tries the primary model with images, then the primary model with
// images stripped, then every fallback candidate in catalog order with a
// payload rebuilt for that candidate's own vision support. No backoff
// between attempts; the candidate list is small.
func (p *Pipeline) complete(ctx context.Context, sessionID string) (content, model string, depth int, err error) {
	primary := p.config.Model
	if primary == "" {
		primary = p.deps.Provider.DefaultModel()
	}

	content, err = p.attempt(ctx, sessionID, primary, true)
	if err == nil {
		return content, primary, 0, nil
	}

	p.logger.Warn("primary completion failed, retrying without images",
		"session", sessionID, "model", primary, "error", err)
	content, err = p.attempt(ctx, sessionID, primary, false)
	if err == nil {
		return content, primary, 0, nil
	}

	for i, candidate := range p.deps.Catalog.Fallbacks(p.deps.Provider.Name(), primary) {
		if m := p.deps.Metrics; m != nil {
			m.FallbackAttempts.Inc()
		}
		p.logger.Warn("trying fallback model", "session", sessionID, "model", candidate, "error", err)

		content, err = p.attempt(ctx, sessionID, candidate, true)
		if err == nil {
			return content, candidate, i + 1, nil
		}
	}

	return "", "", 0, fmt.Errorf("%w: %w", ErrExhausted, err)
}

// attempt builds the payload for one candidate model and issues one call.
func (p *Pipeline) attempt(ctx context.Context, sessionID, model string, withImages bool) (string, error) {
	messages, err := p.buildPayload(ctx, sessionID, model, withImages)
	if err != nil {
		return "", err
	}

	temp := p.config.Temperature
	resp, err := p.deps.Provider.Complete(ctx, provider.CompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: &temp,
		MaxTokens:   p.config.MaxTokens,
	})
	if err != nil {
		p.recordFailure(model, err)
		return "", err
	}
	return resp.Content, nil
}

// buildPayload assembles the conversation window: system prompt, up to
// MaxSummaries recent summaries as prior context, and the trailing
// HistoryTurns turns. Images are attached only when the active model
// supports vision, multimodal is enabled and withImages is set, newest
// first within the MaxImages budget.
func (p *Pipeline) buildPayload(ctx context.Context, sessionID, model string, withImages bool) ([]provider.Message, error) {
	includeImages := withImages && p.config.Multimodal && p.deps.Provider.SupportsVision(model)

	messages := []provider.Message{
		{Role: provider.MessageRoleSystem, Content: p.config.SystemPrompt},
	}

	summaries, err := p.deps.Summaries.Recent(ctx, sessionID, p.config.MaxSummaries)
	if err != nil {
		return nil, fmt.Errorf("reading summaries: %w", err)
	}
	if len(summaries) > 0 {
		var b []byte
		for _, s := range summaries {
			b = append(b, s.Content...)
			b = append(b, '\n')
		}
		messages = append(messages, provider.Message{
			Role:    provider.MessageRoleSystem,
			Content: "Context from earlier conversations:\n" + string(b),
		})
	}

	turns, err := p.deps.Transcript.Recent(ctx, sessionID, p.config.HistoryTurns)
	if err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}

	imageBudget := p.config.MaxImages
	// Walk newest-first to spend the image budget on the most recent turns.
	// A turn carrying more images than the remaining budget is truncated so
	// the payload never exceeds MaxImages in total.
	attach := make([]int, len(turns))
	if includeImages {
		for i := len(turns) - 1; i >= 0 && imageBudget > 0; i-- {
			n := min(len(turns[i].Images), imageBudget)
			attach[i] = n
			imageBudget -= n
		}
	}

	for i, t := range turns {
		msg := provider.Message{Role: t.Role, Content: t.Content}
		if attach[i] > 0 {
			msg.Images = t.Images[:attach[i]]
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// recordFailure updates the diagnostics slot and provider error metrics.
func (p *Pipeline) recordFailure(model string, err error) {
	p.deps.Diagnostics.Record(p.deps.Provider.Name(), model, err.Error())

	if m := p.deps.Metrics; m != nil {
		code := "network"
		var httpErr *provider.HTTPError
		if errors.As(err, &httpErr) {
			code = strconv.Itoa(httpErr.Status)
		} else if errors.Is(err, provider.ErrEmptyResponse) {
			code = "empty"
		}
		m.ProviderErrors.WithLabelValues(p.deps.Provider.Name(), code).Inc()
	}
}

// finish records metrics and publishes the terminal event for a turn.
func (p *Pipeline) finish(sessionID string, state State, model string, reply transcript.Turn, started time.Time) {
	if m := p.deps.Metrics; m != nil {
		m.TurnsTotal.WithLabelValues(string(state)).Inc()
		m.ObserveTurnLatency(time.Since(started))
	}
	p.events.publish(Event{
		SessionID: sessionID,
		State:     state,
		Model:     model,
		Content:   reply.Content,
		At:        time.Now(),
	})
}

func (p *Pipeline) sessionLock(sessionID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.sessions[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		p.sessions[sessionID] = lock
	}
	return lock
}
