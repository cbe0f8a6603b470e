package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/a-abukar/cv-review-generator/internal/metrics"
	"github.com/a-abukar/cv-review-generator/internal/models"
)

const pdfMimeType = "application/pdf"

// Generator is the capability the review pipeline needs from GenerationClient.
type Generator interface {
	Generate(ctx context.Context, spec models.PromptSpec, deadline time.Duration) (models.GenerationResult, error)
}

type ReviewService interface {
	ValidateUpload(doc models.UploadedDocument) error
	Review(ctx context.Context, doc models.UploadedDocument) (models.ReviewSections, error)
	Premium(ctx context.Context, feature models.FeatureKind, doc models.UploadedDocument) (string, error)
	Summarize(ctx context.Context, req models.SummaryRequest) (models.SummaryReport, error)
}

type ReviewOptions struct {
	MaxFileSize        int64
	Extract            models.ExtractOptions
	GenerationDeadline time.Duration
}

type reviewService struct {
	parser        PDFParserService
	staging       StagingService
	promptBuilder *PromptBuilder
	features      FeatureTable
	generator     Generator
	opts          ReviewOptions
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// NewReviewService wires the pipeline. A nil staging service keeps uploads in memory.
func NewReviewService(
	parser PDFParserService,
	staging StagingService,
	features FeatureTable,
	generator Generator,
	opts ReviewOptions,
	m *metrics.Metrics,
	logger *slog.Logger,
) ReviewService {
	if logger == nil {
		logger = slog.Default()
	}
	return &reviewService{
		parser:        parser,
		staging:       staging,
		promptBuilder: NewPromptBuilder(features),
		features:      features,
		generator:     generator,
		opts:          opts,
		metrics:       m,
		logger:        logger,
	}
}

// ValidateUpload checks the declared type and size. It never reads the document.
func (s *reviewService) ValidateUpload(doc models.UploadedDocument) error {
	if doc.DeclaredMimeType != pdfMimeType {
		return ValidationError("Only PDF files are allowed!")
	}
	size := doc.SizeBytes
	if size < int64(len(doc.Bytes)) {
		size = int64(len(doc.Bytes))
	}
	if s.opts.MaxFileSize > 0 && size > s.opts.MaxFileSize {
		return FileTooLargeError(s.opts.MaxFileSize)
	}
	if size == 0 {
		return ValidationError("Uploaded file is empty")
	}
	return nil
}

func (s *reviewService) Review(ctx context.Context, doc models.UploadedDocument) (models.ReviewSections, error) {
	result, err := s.run(ctx, models.FeatureCVReview, doc)
	if err != nil {
		return models.ReviewSections{}, err
	}

	sections, err := ParseSections(result.Content)
	if err != nil {
		return models.ReviewSections{}, err
	}
	if sections.ParseWarning != "" {
		s.logger.Warn("⚠️ Review response degraded", "warning", sections.ParseWarning)
	}
	return sections, nil
}

// Premium runs interview-prep or industry-optimize and returns the generated text.
func (s *reviewService) Premium(ctx context.Context, feature models.FeatureKind, doc models.UploadedDocument) (string, error) {
	if feature != models.FeatureInterviewPrep && feature != models.FeatureIndustryOptimize {
		return "", &PipelineError{Kind: KindInternal, Message: fmt.Sprintf("feature %q is not a premium feature", feature)}
	}

	result, err := s.run(ctx, feature, doc)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(result.Content)
	if text == "" {
		return "", MalformedResponseError("Empty response from model", nil)
	}
	return text, nil
}

func (s *reviewService) Summarize(ctx context.Context, req models.SummaryRequest) (models.SummaryReport, error) {
	if strings.TrimSpace(req.ContentReview) == "" || strings.TrimSpace(req.DesignReview) == "" {
		return models.SummaryReport{}, ValidationError("Missing review content")
	}

	spec, err := s.promptBuilder.BuildSummary(req.ContentReview, req.DesignReview)
	if err != nil {
		return models.SummaryReport{}, &PipelineError{Kind: KindInternal, Message: "failed to build prompt", Cause: err}
	}

	s.logger.Info("🤖 Generating review summary...")
	result, err := s.generator.Generate(ctx, spec, s.opts.GenerationDeadline)
	if err != nil {
		return models.SummaryReport{}, err
	}

	return ParseSummary(result.Content)
}

// run covers validate, extract, build and generate for the upload features.
func (s *reviewService) run(ctx context.Context, feature models.FeatureKind, doc models.UploadedDocument) (models.GenerationResult, error) {
	if err := s.ValidateUpload(doc); err != nil {
		return models.GenerationResult{}, err
	}

	s.logger.Info("📄 Parsing CV...", "feature", feature, "size", doc.SizeBytes)
	text, err := s.extract(feature, doc)
	if err != nil {
		s.metrics.IncExtractionFailure()
		return models.GenerationResult{}, err
	}

	spec, err := s.promptBuilder.Build(text, feature)
	if err != nil {
		return models.GenerationResult{}, &PipelineError{Kind: KindInternal, Message: "failed to build prompt", Cause: err}
	}

	s.logger.Info("🤖 Generating with LLM...", "feature", feature, "chars", text.Length, "truncated", spec.Truncated, "keywords", len(spec.Keywords))
	return s.generator.Generate(ctx, spec, s.opts.GenerationDeadline)
}

func (s *reviewService) extract(feature models.FeatureKind, doc models.UploadedDocument) (models.ExtractedText, error) {
	opts := s.features.ExtractOptions(feature, s.opts.Extract)

	if s.staging == nil {
		return s.parser.Extract(doc, opts)
	}

	path, cleanup, err := s.staging.Stage(doc, string(feature))
	defer cleanup()
	if err != nil {
		return models.ExtractedText{}, ExtractionError("Failed to process PDF", err)
	}
	return s.parser.ExtractFile(path, opts)
}
