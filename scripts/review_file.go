package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/a-abukar/cv-review-generator/internal/config"
	"github.com/a-abukar/cv-review-generator/internal/models"
	"github.com/a-abukar/cv-review-generator/internal/services"
)

// review_file runs one feature against a local PDF, bypassing HTTP and rate limits.
//
//	go run ./scripts/review_file.go -file ./cv.pdf -feature interview-prep
//	go run ./scripts/review_file.go -file ./cv.pdf -dry-run
func main() {
	filePath := flag.String("file", "", "path to the CV PDF")
	featureName := flag.String("feature", string(models.FeatureCVReview), "cv-review, interview-prep or industry-optimize")
	dryRun := flag.Bool("dry-run", false, "print the rendered prompt without calling the model")
	firstPage := flag.Bool("first-page", false, "extract only the first page")
	flag.Parse()

	if *filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	feature, err := models.ParseFeatureKind(*featureName)
	if err != nil || feature == models.FeatureReviewSummary {
		log.Fatalf("❌ Unsupported feature %q", *featureName)
	}

	cfg := config.Load()
	logger := config.NewLogger(os.Stderr, cfg.Server.LogLevel)

	overrides, err := config.LoadFeatureOverrides(cfg.Features.TablePath)
	if err != nil {
		log.Fatalf("❌ Failed to load feature table: %v", err)
	}
	features := services.NewFeatureTable(cfg.Gemini.Model, overrides)

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatalf("❌ Failed to read %s: %v", *filePath, err)
	}
	doc := models.UploadedDocument{
		Filename:         filepath.Base(*filePath),
		DeclaredMimeType: "application/pdf",
		SizeBytes:        int64(len(data)),
		Bytes:            data,
	}

	log.Printf("📄 Processing: %s (%d bytes) as %s", doc.Filename, doc.SizeBytes, feature)

	parser := services.NewPDFParserService(logger)
	extractOpts := features.ExtractOptions(feature, models.ExtractOptions{
		MaxPages:      cfg.Extraction.MaxPages,
		MaxChars:      cfg.Extraction.MaxChars,
		FirstPageOnly: *firstPage || cfg.Extraction.FirstPageOnly,
	})

	if *dryRun {
		text, err := parser.Extract(doc, extractOpts)
		if err != nil {
			log.Fatalf("❌ Extraction failed: %v", err)
		}
		spec, err := services.NewPromptBuilder(features).Build(text, feature)
		if err != nil {
			log.Fatalf("❌ Prompt build failed: %v", err)
		}
		log.Printf("   Pages: %d, chars: %d, truncated: %v", text.PageCount, text.Length, spec.Truncated)
		log.Printf("   Keywords: %v", spec.Keywords)
		log.Printf("   Bullets: %v", spec.Bullets)
		fmt.Println(spec.UserPrompt)
		return
	}

	ctx := context.Background()
	geminiService, err := services.NewGeminiService(ctx, services.GeminiOptions{
		APIKey:  cfg.Gemini.APIKey,
		BaseURL: cfg.Gemini.BaseURL,
	}, logger)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini: %v", err)
	}

	generator := services.NewGenerationClient(geminiService, services.GenerationOptions{
		DefaultDeadline: cfg.Generation.Timeout,
	}, nil, logger)

	reviews := services.NewReviewService(parser, nil, features, generator, services.ReviewOptions{
		MaxFileSize:        cfg.Upload.MaxFileSize,
		Extract:            extractOpts,
		GenerationDeadline: cfg.Generation.Timeout,
	}, nil, logger)

	var out any
	if feature == models.FeatureCVReview {
		out, err = reviews.Review(ctx, doc)
	} else {
		out, err = reviews.Premium(ctx, feature, doc)
	}
	if err != nil {
		log.Fatalf("❌ %s failed: %v", feature, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("❌ Failed to write result: %v", err)
	}
	log.Println("✅ Done")
}
