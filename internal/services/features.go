package services

import (
	"github.com/a-abukar/cv-review-generator/internal/models"
)

const (
	cvReviewSystemInstruction = "You are a friendly but direct British CV expert. Write in simple, clear British English. " +
		"Address the candidate directly. Be extremely specific about what needs changing and where. " +
		"No vague suggestions - point to exact content and give clear fixes."
	interviewPrepSystemInstruction = "You are an expert technical interviewer and career coach. Create specific, detailed " +
		"interview questions and guidance based on the candidate's actual experience. Use British English and be direct and practical."
	industryOptimizeSystemInstruction = "You are an expert career advisor with deep knowledge of industry trends and requirements. " +
		"Provide detailed, actionable optimization advice based on the candidate's CV."
	reviewSummarySystemInstruction = "You are a CV review analyzer. ONLY return a valid JSON object - no backticks, no explanations, " +
		"no markdown. The JSON must contain: score (0-100), strengths (3 items), improvements (3 items), " +
		"and actionPoints (3 items with title and description)."
)

// FeatureTable maps each feature to its generation settings.
type FeatureTable map[models.FeatureKind]models.FeatureProfile

// NewFeatureTable returns the default table for model with overrides applied on top.
func NewFeatureTable(model string, overrides map[models.FeatureKind]models.FeatureOverride) FeatureTable {
	table := FeatureTable{
		models.FeatureCVReview: {
			Model:             model,
			SystemInstruction: cvReviewSystemInstruction,
			Temperature:       0.3,
			MaxTokens:         1500,
			MaxChars:          4000,
			MaxPages:          2,
			BulletLimit:       5,
		},
		models.FeatureInterviewPrep: {
			Model:             model,
			SystemInstruction: interviewPrepSystemInstruction,
			Temperature:       0.7,
			MaxTokens:         2500,
			MaxChars:          4000,
			MaxPages:          2,
			BulletLimit:       3,
		},
		models.FeatureIndustryOptimize: {
			Model:             model,
			SystemInstruction: industryOptimizeSystemInstruction,
			Temperature:       0.7,
			MaxTokens:         2000,
			MaxChars:          4000,
			MaxPages:          2,
			BulletLimit:       3,
		},
		models.FeatureReviewSummary: {
			Model:             model,
			SystemInstruction: reviewSummarySystemInstruction,
			Temperature:       0.3,
			MaxTokens:         1000,
			MaxChars:          6000,
		},
	}

	for kind, o := range overrides {
		profile, ok := table[kind]
		if !ok {
			continue
		}
		if o.Model != nil {
			profile.Model = *o.Model
		}
		if o.Temperature != nil {
			profile.Temperature = *o.Temperature
		}
		if o.MaxTokens != nil {
			profile.MaxTokens = *o.MaxTokens
		}
		if o.MaxChars != nil {
			profile.MaxChars = *o.MaxChars
		}
		if o.MaxPages != nil {
			profile.MaxPages = *o.MaxPages
		}
		if o.BulletLimit != nil {
			profile.BulletLimit = *o.BulletLimit
		}
		table[kind] = profile
	}

	return table
}

// ExtractOptions returns the extraction bounds for a feature. The feature's page cap
// wins over the global one when it is tighter.
func (t FeatureTable) ExtractOptions(kind models.FeatureKind, global models.ExtractOptions) models.ExtractOptions {
	opts := global
	profile, ok := t[kind]
	if !ok {
		return opts
	}
	if profile.MaxPages > 0 && (opts.MaxPages <= 0 || profile.MaxPages < opts.MaxPages) {
		opts.MaxPages = profile.MaxPages
	}
	return opts
}
