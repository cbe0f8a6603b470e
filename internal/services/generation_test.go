package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/a-abukar/cv-review-generator/internal/models"
)

type stubGemini struct {
	calls  atomic.Int32
	delay  time.Duration
	result models.GenerationResult
	err    error
}

func (s *stubGemini) GenerateText(ctx context.Context, spec models.PromptSpec) (models.GenerationResult, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return models.GenerationResult{}, ctx.Err()
		}
	}
	return s.result, s.err
}

// switchingGemini hangs on its first call and answers immediately afterwards.
type switchingGemini struct {
	calls atomic.Int32
}

func (s *switchingGemini) GenerateText(ctx context.Context, spec models.PromptSpec) (models.GenerationResult, error) {
	if s.calls.Add(1) == 1 {
		<-ctx.Done()
		return models.GenerationResult{}, ctx.Err()
	}
	return models.GenerationResult{Content: "second answer"}, nil
}

var testSpec = models.PromptSpec{Feature: models.FeatureCVReview, Model: "gemini-2.5-flash", UserPrompt: "review"}

func TestGenerateReturnsResult(t *testing.T) {
	stub := &stubGemini{result: models.GenerationResult{Content: "### Content Review:\nok"}}
	client := NewGenerationClient(stub, GenerationOptions{DefaultDeadline: time.Second}, nil, nil)

	result, err := client.Generate(context.Background(), testSpec, 0)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Content != "### Content Review:\nok" {
		t.Fatalf("unexpected content %q", result.Content)
	}
}

func TestGenerateTimesOutAndAbandonsCall(t *testing.T) {
	stub := &switchingGemini{}
	client := NewGenerationClient(stub, GenerationOptions{DefaultDeadline: time.Second}, nil, nil)

	start := time.Now()
	_, err := client.Generate(context.Background(), testSpec, 50*time.Millisecond)
	if !IsKind(err, KindTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("timeout took too long: %v", elapsed)
	}

	result, err := client.Generate(context.Background(), testSpec, time.Second)
	if err != nil {
		t.Fatalf("follow-up Generate() error = %v", err)
	}
	if result.Content != "second answer" {
		t.Fatalf("follow-up got %q", result.Content)
	}
}

func TestGenerateMapsUpstreamFailure(t *testing.T) {
	stub := &stubGemini{err: errors.New("401 API key not valid")}
	client := NewGenerationClient(stub, GenerationOptions{DefaultDeadline: time.Second}, nil, nil)

	_, err := client.Generate(context.Background(), testSpec, 0)
	if !IsKind(err, KindUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if stub.calls.Load() != 1 {
		t.Fatalf("expected a single call without retries, got %d", stub.calls.Load())
	}
}

func TestGenerateEmptyContentIsMalformed(t *testing.T) {
	client := NewGenerationClient(&stubGemini{}, GenerationOptions{DefaultDeadline: time.Second}, nil, nil)

	if _, err := client.Generate(context.Background(), testSpec, 0); !IsKind(err, KindMalformedResponse) {
		t.Fatalf("expected malformed error, got %v", err)
	}
}

func TestGenerateBudgetOverrunIsTimeout(t *testing.T) {
	stub := &stubGemini{result: models.GenerationResult{Content: "ok"}}
	client := NewGenerationClient(stub, GenerationOptions{
		DefaultDeadline:   time.Second,
		RequestsPerSecond: 0.001,
		Burst:             1,
	}, nil, nil)

	if _, err := client.Generate(context.Background(), testSpec, 0); err != nil {
		t.Fatalf("first Generate() error = %v", err)
	}

	start := time.Now()
	_, err := client.Generate(context.Background(), testSpec, 0)
	if !IsKind(err, KindTimeout) || !errors.Is(err, ErrGenerationBudget) {
		t.Fatalf("expected budget timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("budget overrun should fail fast, took %v", elapsed)
	}
	if stub.calls.Load() != 1 {
		t.Fatalf("throttled call must not reach the service")
	}
}

func TestGenerateWaitsForBudget(t *testing.T) {
	stub := &stubGemini{result: models.GenerationResult{Content: "ok"}}
	client := NewGenerationClient(stub, GenerationOptions{
		DefaultDeadline:   time.Second,
		RequestsPerSecond: 20,
		Burst:             1,
	}, nil, nil)

	for i := 0; i < 3; i++ {
		if _, err := client.Generate(context.Background(), testSpec, 0); err != nil {
			t.Fatalf("call %d: Generate() error = %v", i+1, err)
		}
	}
	if stub.calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", stub.calls.Load())
	}
}

func TestGenerateOpensBreaker(t *testing.T) {
	stub := &stubGemini{err: errors.New("503 overloaded")}
	client := NewGenerationClient(stub, GenerationOptions{
		DefaultDeadline:     time.Second,
		BreakerEnabled:      true,
		BreakerMinRequests:  2,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  time.Minute,
	}, nil, nil)

	for i := 0; i < 2; i++ {
		if _, err := client.Generate(context.Background(), testSpec, 0); !IsKind(err, KindUpstream) {
			t.Fatalf("call %d: expected upstream error, got %v", i+1, err)
		}
	}

	_, err := client.Generate(context.Background(), testSpec, 0)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if stub.calls.Load() != 2 {
		t.Fatalf("open breaker must short-circuit, got %d calls", stub.calls.Load())
	}
}

func TestGenerateHonoursCallerCancellation(t *testing.T) {
	stub := &stubGemini{delay: time.Second, result: models.GenerationResult{Content: "late"}}
	client := NewGenerationClient(stub, GenerationOptions{DefaultDeadline: time.Second}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Generate(ctx, testSpec, 0)
	if err == nil || IsKind(err, KindTimeout) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
}
