package models

import "fmt"

type FeatureKind string

const (
	FeatureCVReview         FeatureKind = "cv-review"
	FeatureInterviewPrep    FeatureKind = "interview-prep"
	FeatureIndustryOptimize FeatureKind = "industry-optimize"
	FeatureReviewSummary    FeatureKind = "review-summary"
)

var AllFeatures = []FeatureKind{
	FeatureCVReview,
	FeatureInterviewPrep,
	FeatureIndustryOptimize,
	FeatureReviewSummary,
}

func ParseFeatureKind(s string) (FeatureKind, error) {
	for _, f := range AllFeatures {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown feature %q", s)
}

// FeatureProfile holds the static generation settings for one feature.
type FeatureProfile struct {
	Model             string
	SystemInstruction string
	Temperature       float32
	MaxTokens         int32
	MaxChars          int
	MaxPages          int
	BulletLimit       int
}

// FeatureOverride carries optional per-feature settings loaded from config.
type FeatureOverride struct {
	Model       *string  `yaml:"model"`
	Temperature *float32 `yaml:"temperature"`
	MaxTokens   *int32   `yaml:"maxTokens"`
	MaxChars    *int     `yaml:"maxChars"`
	MaxPages    *int     `yaml:"maxPages"`
	BulletLimit *int     `yaml:"bulletLimit"`
}

// PromptSpec is fully determined by the extracted text and the feature.
type PromptSpec struct {
	Feature           FeatureKind
	SystemInstruction string
	UserPrompt        string
	Model             string
	Temperature       float32
	MaxTokens         int32
	Keywords          []string
	Bullets           []string
	Truncated         bool
}

type GenerationResult struct {
	Content string
	Raw     any
}
