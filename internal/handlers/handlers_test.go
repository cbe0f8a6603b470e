package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/a-abukar/cv-review-generator/internal/metrics"
	"github.com/a-abukar/cv-review-generator/internal/models"
	"github.com/a-abukar/cv-review-generator/internal/services"
)

type fixedParser struct {
	calls atomic.Int32
}

func (p *fixedParser) Extract(doc models.UploadedDocument, opts models.ExtractOptions) (models.ExtractedText, error) {
	p.calls.Add(1)
	return models.ExtractedText{Raw: "Jane Doe\n• Built Golang services", Length: 30, PageCount: 1}, nil
}

func (p *fixedParser) ExtractFile(path string, opts models.ExtractOptions) (models.ExtractedText, error) {
	return p.Extract(models.UploadedDocument{}, opts)
}

type stubGemini struct {
	calls   atomic.Int32
	content string
	err     error
	hang    bool
}

func (s *stubGemini) GenerateText(ctx context.Context, spec models.PromptSpec) (models.GenerationResult, error) {
	s.calls.Add(1)
	if s.hang {
		<-ctx.Done()
		return models.GenerationResult{}, ctx.Err()
	}
	return models.GenerationResult{Content: s.content}, s.err
}

type recordingAuditor struct {
	mu     sync.Mutex
	audits []models.RequestAudit
}

func (a *recordingAuditor) Start(ctx context.Context) {}
func (a *recordingAuditor) Stop()                     {}
func (a *recordingAuditor) Enqueue(audit models.RequestAudit) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.audits = append(a.audits, audit)
	return true
}

type testEnv struct {
	app     *fiber.App
	parser  *fixedParser
	gemini  *stubGemini
	auditor *recordingAuditor
}

type envOptions struct {
	maxFileSize  int64
	deadline     time.Duration
	generalLimit int
	rps          float64
	burst        int
}

func newTestEnv(t *testing.T, gemini *stubGemini, opts envOptions) *testEnv {
	t.Helper()
	if opts.maxFileSize == 0 {
		opts.maxFileSize = 5 * 1024 * 1024
	}
	if opts.deadline == 0 {
		opts.deadline = time.Second
	}
	if opts.generalLimit == 0 {
		opts.generalLimit = 5
	}

	parser := &fixedParser{}
	features := services.NewFeatureTable("gemini-2.5-flash", nil)
	generator := services.NewGenerationClient(gemini, services.GenerationOptions{
		DefaultDeadline:   opts.deadline,
		RequestsPerSecond: opts.rps,
		Burst:             opts.burst,
	}, nil, nil)
	reviews := services.NewReviewService(parser, nil, features, generator, services.ReviewOptions{
		MaxFileSize:        opts.maxFileSize,
		GenerationDeadline: opts.deadline,
	}, nil, nil)

	auditor := &recordingAuditor{}
	app := NewApp(AppConfig{
		MaxFileSize:    opts.maxFileSize,
		RequestTimeout: opts.deadline + time.Second,
	}, Dependencies{
		Reviews:        reviews,
		GeneralLimiter: services.NewSlidingWindowLimiter(services.RateLimitPolicy{Name: services.PolicyGeneral, Window: 15 * time.Minute, Limit: opts.generalLimit}),
		SummaryLimiter: services.NewSlidingWindowLimiter(services.RateLimitPolicy{Name: services.PolicySummary, Window: 10 * time.Minute, Limit: 1}),
		Metrics:        metrics.New(),
		Auditor:        auditor,
	})

	return &testEnv{app: app, parser: parser, gemini: gemini, auditor: auditor}
}

func uploadRequest(t *testing.T, path, contentType string, body []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if body != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="cv.pdf"`)
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart() error = %v", err)
		}
		part.Write(body)
	} else {
		w.WriteField("note", "no file here")
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func summaryRequest(contentReview, designReview string) *http.Request {
	body, _ := json.Marshal(models.SummaryRequest{ContentReview: contentReview, DesignReview: designReview})
	req := httptest.NewRequest(http.MethodPost, "/api/chatgpt/review-summary", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func doJSON(t *testing.T, app *fiber.App, req *http.Request, out any) *http.Response {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("decode %q: %v", body, err)
		}
	}
	return resp
}

var fakePDF = []byte("%PDF-1.4 pretend")

func TestReviewReturnsBothSections(t *testing.T) {
	env := newTestEnv(t, &stubGemini{content: "### Content Review:\nTrim the profile.\n### Design Review:\nIncrease contrast."}, envOptions{})

	var out models.ReviewSections
	resp := doJSON(t, env.app, uploadRequest(t, "/api/review", "application/pdf", fakePDF), &out)

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if out.ContentReview != "Trim the profile." || out.DesignReview != "Increase contrast." {
		t.Fatalf("unexpected sections %+v", out)
	}
	if resp.Header.Get("X-RateLimit-Remaining") != "4" {
		t.Fatalf("expected 4 remaining, got %q", resp.Header.Get("X-RateLimit-Remaining"))
	}

	env.auditor.mu.Lock()
	defer env.auditor.mu.Unlock()
	if len(env.auditor.audits) != 1 || env.auditor.audits[0].Feature != "cv-review" || env.auditor.audits[0].Status != 200 {
		t.Fatalf("unexpected audits %+v", env.auditor.audits)
	}
}

func TestReviewWithoutDesignSectionDegrades(t *testing.T) {
	env := newTestEnv(t, &stubGemini{content: "### Content Review:\nOnly content."}, envOptions{})

	var out models.ReviewSections
	resp := doJSON(t, env.app, uploadRequest(t, "/api/review", "application/pdf", fakePDF), &out)

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if out.ContentReview != "Only content." || out.DesignReview != "" || out.ParseWarning == "" {
		t.Fatalf("unexpected sections %+v", out)
	}
}

func TestUploadValidationRunsBeforeAnyWork(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		body        []byte
		want        string
	}{
		{"missing file", "", nil, "No file uploaded"},
		{"not a pdf", "image/png", []byte("png bytes"), "Only PDF files are allowed!"},
		{"too large", "application/pdf", bytes.Repeat([]byte("a"), 4096), "File too large. Maximum size is 1KB."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, &stubGemini{content: "unused"}, envOptions{maxFileSize: 1024})

			var out models.ErrorResponse
			resp := doJSON(t, env.app, uploadRequest(t, "/api/review", tc.contentType, tc.body), &out)

			if resp.StatusCode != fiber.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			if out.Error != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, out.Error)
			}
			if env.parser.calls.Load() != 0 || env.gemini.calls.Load() != 0 {
				t.Fatalf("extraction or generation ran for an invalid upload")
			}
		})
	}
}

func TestReviewTimeoutReturns504(t *testing.T) {
	env := newTestEnv(t, &stubGemini{hang: true}, envOptions{deadline: 50 * time.Millisecond})

	var out models.ErrorResponse
	resp := doJSON(t, env.app, uploadRequest(t, "/api/review", "application/pdf", fakePDF), &out)

	if resp.StatusCode != fiber.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", resp.StatusCode)
	}
	if out.Error != "The operation took too long to complete. Please try again." {
		t.Fatalf("unexpected error %q", out.Error)
	}
}

func TestGenerationBudgetQueuesWithinDeadline(t *testing.T) {
	env := newTestEnv(t, &stubGemini{content: "### Content Review:\na\n### Design Review:\nb"}, envOptions{rps: 20, burst: 1})

	for i := 0; i < 3; i++ {
		req := uploadRequest(t, "/api/review", "application/pdf", fakePDF)
		if resp := doJSON(t, env.app, req, nil); resp.StatusCode != fiber.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, resp.StatusCode)
		}
	}
}

func TestGenerationBudgetOverrunReturns504(t *testing.T) {
	env := newTestEnv(t, &stubGemini{content: "### Content Review:\na\n### Design Review:\nb"}, envOptions{
		deadline: 100 * time.Millisecond,
		rps:      0.001,
		burst:    1,
	})

	if resp := doJSON(t, env.app, uploadRequest(t, "/api/review", "application/pdf", fakePDF), nil); resp.StatusCode != fiber.StatusOK {
		t.Fatalf("first request: expected 200, got %d", resp.StatusCode)
	}

	var out models.ErrorResponse
	resp := doJSON(t, env.app, uploadRequest(t, "/api/premium/interview-prep", "application/pdf", fakePDF), &out)
	if resp.StatusCode != fiber.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", resp.StatusCode)
	}
	if out.Error != "The operation took too long to complete. Please try again." {
		t.Fatalf("unexpected error %q", out.Error)
	}
	if env.gemini.calls.Load() != 1 {
		t.Fatalf("over-budget request must not reach generation")
	}
}

func TestPremiumEndpoints(t *testing.T) {
	env := newTestEnv(t, &stubGemini{content: "1. Explain goroutines"}, envOptions{})

	var prep models.InterviewPrepResponse
	resp := doJSON(t, env.app, uploadRequest(t, "/api/premium/interview-prep", "application/pdf", fakePDF), &prep)
	if resp.StatusCode != fiber.StatusOK || prep.InterviewPrep != "1. Explain goroutines" {
		t.Fatalf("unexpected interview prep %d %+v", resp.StatusCode, prep)
	}

	var opt models.IndustryOptimizationResponse
	resp = doJSON(t, env.app, uploadRequest(t, "/api/premium/industry-optimize", "application/pdf", fakePDF), &opt)
	if resp.StatusCode != fiber.StatusOK || opt.IndustryOptimization != "1. Explain goroutines" {
		t.Fatalf("unexpected industry optimization %d %+v", resp.StatusCode, opt)
	}
}

func TestPremiumUpstreamFailure(t *testing.T) {
	env := newTestEnv(t, &stubGemini{err: errors.New("quota exceeded")}, envOptions{})

	var out models.ErrorResponse
	resp := doJSON(t, env.app, uploadRequest(t, "/api/premium/industry-optimize", "application/pdf", fakePDF), &out)

	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if out.Error != "Failed to generate industry optimization" || !strings.Contains(out.Details, "quota exceeded") {
		t.Fatalf("unexpected envelope %+v", out)
	}
}

func TestGeneralPolicyIsSharedAcrossUploadRoutes(t *testing.T) {
	env := newTestEnv(t, &stubGemini{content: "### Content Review:\na\n### Design Review:\nb"}, envOptions{generalLimit: 2})

	doJSON(t, env.app, uploadRequest(t, "/api/review", "application/pdf", fakePDF), nil)
	doJSON(t, env.app, uploadRequest(t, "/api/premium/interview-prep", "application/pdf", fakePDF), nil)

	var out models.RateLimitResponse
	resp := doJSON(t, env.app, uploadRequest(t, "/api/premium/industry-optimize", "application/pdf", fakePDF), &out)
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	if out.Error != "Too many requests. Please wait 15 minutes before trying again." {
		t.Fatalf("unexpected message %q", out.Error)
	}
	if env.gemini.calls.Load() != 2 {
		t.Fatalf("rejected request must not reach generation")
	}
}

const summaryJSON = `{"score": 72, "strengths": ["a", "b", "c", "d"], "improvements": ["x", "y", "z"], "actionPoints": [{"title": "t", "description": "d"}]}`

func TestSummaryRateLimited(t *testing.T) {
	env := newTestEnv(t, &stubGemini{content: "```json\n" + summaryJSON + "\n```"}, envOptions{})

	var report models.SummaryReport
	resp := doJSON(t, env.app, summaryRequest("content", "design"), &report)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if report.Score != 72 || len(report.Strengths) != 3 {
		t.Fatalf("unexpected report %+v", report)
	}

	var limited models.RateLimitResponse
	resp = doJSON(t, env.app, summaryRequest("content", "design"), &limited)
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	if limited.NextAvailableTime <= time.Now().UnixMilli() {
		t.Fatalf("expected nextAvailableTime in the future, got %d", limited.NextAvailableTime)
	}
	if resp.Header.Get(fiber.HeaderRetryAfter) == "" {
		t.Fatalf("expected Retry-After header")
	}
	if env.gemini.calls.Load() != 1 {
		t.Fatalf("expected one generation call, got %d", env.gemini.calls.Load())
	}
}

func TestSummaryValidation(t *testing.T) {
	env := newTestEnv(t, &stubGemini{content: summaryJSON}, envOptions{})

	var out models.ErrorResponse
	resp := doJSON(t, env.app, summaryRequest("content", "  "), &out)
	if resp.StatusCode != fiber.StatusBadRequest || out.Error != "Missing review content" {
		t.Fatalf("unexpected response %d %+v", resp.StatusCode, out)
	}
}

func TestSummaryMalformedOutput(t *testing.T) {
	env := newTestEnv(t, &stubGemini{content: "I am unable to score this."}, envOptions{})

	var out models.ErrorResponse
	resp := doJSON(t, env.app, summaryRequest("content", "design"), &out)
	if resp.StatusCode != fiber.StatusInternalServerError || out.Error != "Failed to parse review summary" {
		t.Fatalf("unexpected response %d %+v", resp.StatusCode, out)
	}
}

func TestStatusAndMetricsRoutes(t *testing.T) {
	env := newTestEnv(t, &stubGemini{content: "x"}, envOptions{})

	var health map[string]any
	resp := doJSON(t, env.app, httptest.NewRequest(http.MethodGet, "/api/health", nil), &health)
	if resp.StatusCode != fiber.StatusOK || health["status"] != "healthy" {
		t.Fatalf("unexpected health %d %v", resp.StatusCode, health)
	}

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "cv_review_http_requests_total") {
		t.Fatalf("expected request counter in metrics output")
	}
}

func TestPanicRendersJSONThroughApp(t *testing.T) {
	env := newTestEnv(t, &stubGemini{content: "x"}, envOptions{})
	env.app.Get("/api/explode", func(c *fiber.Ctx) error {
		panic("handler exploded")
	})

	var out models.ErrorResponse
	resp := doJSON(t, env.app, httptest.NewRequest(http.MethodGet, "/api/explode", nil), &out)
	if resp.StatusCode != fiber.StatusInternalServerError || out.Error != "Something went wrong!" {
		t.Fatalf("unexpected response %d %+v", resp.StatusCode, out)
	}

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `path="/api/explode",status="5xx"`) {
		t.Fatalf("expected the panic to be counted as a 5xx request")
	}
}

func TestErrorHandlerAlwaysRendersJSON(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/timeout", func(c *fiber.Ctx) error { return fiber.ErrRequestTimeout })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("nil pointer somewhere") })
	app.Get("/pipeline", func(c *fiber.Ctx) error { return services.ValidationError("bad input") })

	cases := []struct {
		path   string
		status int
		want   string
	}{
		{"/timeout", fiber.StatusGatewayTimeout, "Request timeout - The operation took too long to complete"},
		{"/boom", fiber.StatusInternalServerError, "Something went wrong!"},
		{"/pipeline", fiber.StatusBadRequest, "bad input"},
		{"/missing", fiber.StatusNotFound, fmt.Sprintf("Cannot GET %s", "/missing")},
	}

	for _, tc := range cases {
		var out models.ErrorResponse
		resp := doJSON(t, app, httptest.NewRequest(http.MethodGet, tc.path, nil), &out)
		if resp.StatusCode != tc.status || out.Error != tc.want {
			t.Fatalf("%s: got %d %q", tc.path, resp.StatusCode, out.Error)
		}
	}
}
