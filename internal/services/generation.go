package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/a-abukar/cv-review-generator/internal/metrics"
	"github.com/a-abukar/cv-review-generator/internal/models"
)

var ErrGenerationBudget = errors.New("generation budget wait exceeds deadline")

type GenerationOptions struct {
	DefaultDeadline     time.Duration
	RequestsPerSecond   float64
	Burst               int
	BreakerEnabled      bool
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration
}

// GenerationClient bounds every completion call by a deadline. A call that outlives
// its deadline is abandoned; its late result is discarded.
type GenerationClient struct {
	gemini  GeminiService
	opts    GenerationOptions
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[models.GenerationResult]
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type generationOutcome struct {
	result models.GenerationResult
	err    error
}

func NewGenerationClient(gemini GeminiService, opts GenerationOptions, m *metrics.Metrics, logger *slog.Logger) *GenerationClient {
	if logger == nil {
		logger = slog.Default()
	}

	g := &GenerationClient{
		gemini:  gemini,
		opts:    opts,
		metrics: m,
		logger:  logger,
	}

	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	if opts.BreakerEnabled {
		g.breaker = gobreaker.NewCircuitBreaker[models.GenerationResult](gobreaker.Settings{
			Name:        "gemini",
			MaxRequests: 1,
			Timeout:     opts.BreakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < opts.BreakerMinRequests {
					return false
				}
				return float64(counts.TotalFailures)/float64(counts.Requests) >= opts.BreakerFailureRatio
			},
			IsSuccessful: func(err error) bool {
				// A call cut short by its own deadline says nothing about upstream health.
				return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
			},
		})
	}

	return g
}

// Generate issues one completion call for spec. It returns within deadline (or the
// client default when deadline is not positive) and never retries.
func (g *GenerationClient) Generate(ctx context.Context, spec models.PromptSpec, deadline time.Duration) (models.GenerationResult, error) {
	if deadline <= 0 {
		deadline = g.opts.DefaultDeadline
	}

	start := time.Now()
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deadline)

	done := make(chan generationOutcome, 1)
	go func() {
		defer cancel()
		if err := g.wait(callCtx); err != nil {
			done <- generationOutcome{err: err}
			return
		}
		result, err := g.call(callCtx, spec)
		done <- generationOutcome{result: result, err: err}
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case out := <-done:
		return g.finish(spec, start, out.result, out.err)
	case <-timer.C:
		g.logger.Warn("⏱️ Generation deadline exceeded", "feature", spec.Feature, "deadline", deadline)
		g.metrics.ObserveGeneration(string(spec.Feature), "timeout", time.Since(start))
		return models.GenerationResult{}, TimeoutError(context.DeadlineExceeded)
	case <-ctx.Done():
		g.metrics.ObserveGeneration(string(spec.Feature), "cancelled", time.Since(start))
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.GenerationResult{}, TimeoutError(ctx.Err())
		}
		return models.GenerationResult{}, &PipelineError{Kind: KindInternal, Message: "Request cancelled", Cause: ctx.Err()}
	}
}

// wait holds the call until the process-wide budget admits it. Waiting counts against
// the call's own deadline.
func (g *GenerationClient) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrGenerationBudget, context.DeadlineExceeded)
	}
	return nil
}

func (g *GenerationClient) call(ctx context.Context, spec models.PromptSpec) (models.GenerationResult, error) {
	if g.breaker == nil {
		return g.gemini.GenerateText(ctx, spec)
	}
	return g.breaker.Execute(func() (models.GenerationResult, error) {
		return g.gemini.GenerateText(ctx, spec)
	})
}

func (g *GenerationClient) finish(spec models.PromptSpec, start time.Time, result models.GenerationResult, err error) (models.GenerationResult, error) {
	elapsed := time.Since(start)
	feature := string(spec.Feature)

	switch {
	case err == nil && result.Content == "":
		g.metrics.ObserveGeneration(feature, "empty", elapsed)
		return models.GenerationResult{}, MalformedResponseError("Empty response from model", nil)
	case err == nil:
		g.metrics.ObserveGeneration(feature, "success", elapsed)
		g.logger.Info("✅ Generation completed", "feature", feature, "duration_ms", elapsed.Milliseconds())
		return result, nil
	case errors.Is(err, ErrGenerationBudget):
		g.metrics.ObserveGeneration(feature, "throttled", elapsed)
		return models.GenerationResult{}, TimeoutError(err)
	case errors.Is(err, context.DeadlineExceeded):
		g.metrics.ObserveGeneration(feature, "timeout", elapsed)
		return models.GenerationResult{}, TimeoutError(err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		g.metrics.ObserveGeneration(feature, "circuit_open", elapsed)
		return models.GenerationResult{}, UpstreamError(err)
	default:
		g.metrics.ObserveGeneration(feature, "error", elapsed)
		return models.GenerationResult{}, UpstreamError(err)
	}
}
