package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/a-abukar/cv-review-generator/internal/models"
)

const (
	ContentReviewHeader = "### Content Review:"
	DesignReviewHeader  = "### Design Review:"

	truncationMarker = "..."
)

var (
	keywordPattern = regexp.MustCompile(`\b(?:` + strings.Join([]string{
		"Python", "Java", "JavaScript", "TypeScript", "Golang", "Rust", "Ruby", "PHP", "Kotlin", "Swift", "Scala",
		"React", "Angular", "Vue", "Node", "Django", "Flask", "Spring", "Express",
		"AWS", "Azure", "GCP", "Docker", "Kubernetes", "Terraform", "Ansible", "Jenkins", "Git", "Linux",
		"SQL", "PostgreSQL", "MySQL", "MongoDB", "Redis", "Kafka", "GraphQL", "Elasticsearch",
	}, "|") + `)\b`)

	bulletPattern = regexp.MustCompile(`(?m)^[ \t]*[•●◦▪‣*–-][ \t]+(.+)$`)

	excessNewlines = regexp.MustCompile(`\n{3,}`)
)

type PromptBuilder struct {
	features FeatureTable
}

func NewPromptBuilder(features FeatureTable) *PromptBuilder {
	return &PromptBuilder{features: features}
}

// Build renders the prompt for feature from text. It only fails for a feature missing
// from the table.
func (pb *PromptBuilder) Build(text models.ExtractedText, feature models.FeatureKind) (models.PromptSpec, error) {
	profile, ok := pb.features[feature]
	if !ok {
		return models.PromptSpec{}, fmt.Errorf("no prompt profile for feature %q", feature)
	}

	body, cut := truncateRunes(text.Raw, profile.MaxChars)
	if cut {
		body += truncationMarker
	}
	truncated := cut || text.Truncated

	var keywords, bullets []string
	if feature != models.FeatureReviewSummary {
		keywords = ExtractKeywords(body)
		bullets = ExtractBullets(body, profile.BulletLimit)
	}

	var prompt string
	switch feature {
	case models.FeatureCVReview:
		prompt = buildCVReviewPrompt(body, keywords)
	case models.FeatureInterviewPrep:
		prompt = buildInterviewPrepPrompt(body, keywords, bullets)
	case models.FeatureIndustryOptimize:
		prompt = buildIndustryOptimizePrompt(body, keywords)
	case models.FeatureReviewSummary:
		prompt = buildSummaryPrompt(body)
	}

	return models.PromptSpec{
		Feature:           feature,
		SystemInstruction: profile.SystemInstruction,
		UserPrompt:        prompt,
		Model:             profile.Model,
		Temperature:       profile.Temperature,
		MaxTokens:         profile.MaxTokens,
		Keywords:          keywords,
		Bullets:           bullets,
		Truncated:         truncated,
	}, nil
}

// BuildSummary renders the summary prompt from the two review sections.
func (pb *PromptBuilder) BuildSummary(contentReview, designReview string) (models.PromptSpec, error) {
	text := "Content Review:\n" + CollapseNewlines(contentReview) + "\n\nDesign Review:\n" + CollapseNewlines(designReview)
	return pb.Build(models.ExtractedText{Raw: text, Length: len([]rune(text))}, models.FeatureReviewSummary)
}

// ExtractKeywords returns the known technology names in text, deduplicated in order of
// first appearance. It never returns nil.
func ExtractKeywords(text string) []string {
	found := []string{}
	seen := make(map[string]struct{})
	for _, m := range keywordPattern.FindAllString(text, -1) {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		found = append(found, m)
	}
	return found
}

// ExtractBullets returns up to limit lines that start with a bullet glyph. A
// non-positive limit returns all of them. It never returns nil.
func ExtractBullets(text string, limit int) []string {
	bullets := []string{}
	for _, m := range bulletPattern.FindAllStringSubmatch(text, -1) {
		line := strings.TrimSpace(m[1])
		if line == "" {
			continue
		}
		bullets = append(bullets, line)
		if limit > 0 && len(bullets) == limit {
			break
		}
	}
	return bullets
}

func CollapseNewlines(s string) string {
	return strings.TrimSpace(excessNewlines.ReplaceAllString(s, "\n\n"))
}

func buildCVReviewPrompt(cvText string, keywords []string) string {
	return fmt.Sprintf(`Review this CV in simple, direct British English. Address the candidate directly and be specific about what needs changing.

Technologies detected in the CV: %s

Use exactly the two section headers below, in this order.

%s
Here's what needs work in your CV content:

1. Profile (currently [X] lines, needs to be 3-4):
   - Your current profile: "[quote exact profile]"
   - Here's what to change: [specific changes]

2. Experience Section:
   - Your [company name] role has [X] bullet points (you need exactly 12)
   - Your [other company] role has [X] points (needs 6-8)
   - These bullet points are too long: [quote each multi-line bullet]
   - Add these missing metrics: [specific metrics for each bullet]
   - Bold these tools: [list exact tools that need **bold**]

3. Skills:
   - Current format: [describe exactly how skills are shown]
   - Missing key skills: [list specific missing skills]
   - Change to bubble format like this: [skill] • [skill] • [skill]

4. Section Order:
   - Your current order: [list exact order]
   - Correct order: Personal info → Profile → Skills → Experience → Projects → Certifications → Education
   - Missing sections: [list any missing]

%s
Now, let's fix your CV's design:

1. Layout:
   - Font size: [list sections with small fonts]
   - Contrast: [mention specific low-contrast areas]
   - Skills format: Change from [current format] to bubbles
   - Spacing: Add [X]pt space between [specific sections]

2. Bullet Points:
   - Multi-line bullets to fix: [quote each one]
   - Current counts: [list exact counts per role]
   - Required: 12 for current role, 6-8 for others

3. Missing Design Elements:
   - Missing sections: [list each]
   - Design improvements needed: [specific changes]

Remember: Keep your bullet points to one line, use high contrast colours, and ensure your CV follows this exact structure.

CV Content:
%s`, formatList(keywords), ContentReviewHeader, DesignReviewHeader, cvText)
}

func buildInterviewPrepPrompt(cvText string, keywords, bullets []string) string {
	return fmt.Sprintf(`Based on this CV, create a personalised interview preparation guide. Focus on:

1. Technical Questions (10):
   - Create questions based on the technologies in their CV: %s
   - Include both basic concepts and advanced scenarios
   - Provide detailed example answers with code snippets where relevant

2. Experience Deep-Dive (5):
   - Create questions based on their specific projects and roles
   - Focus on: %s
   - Include system design and architecture questions
   - Provide STAR method response templates

3. Behavioural Scenarios (5):
   - Based on their role and experience level
   - Include conflict resolution and leadership scenarios
   - Provide structured response frameworks

4. Company Research Guide:
   - Industry trends relevant to their experience
   - Salary range analysis: £[range] based on experience
   - Questions to ask interviewers

CV Content:
%s`, formatList(keywords), formatList(bullets), cvText)
}

func buildIndustryOptimizePrompt(cvText string, keywords []string) string {
	return fmt.Sprintf(`Based on this CV, provide a comprehensive industry optimisation analysis. Include:

1. Skills Gap Analysis:
   - Compare current skills (%s) with industry demands
   - Identify missing critical skills
   - Suggest specific certifications or training

2. Industry Insights:
   - Current market trends in their field
   - Growing technologies and skills
   - Industry-specific best practices

3. CV Optimisation:
   - Industry-specific keyword recommendations
   - ATS optimisation suggestions
   - Format and content adjustments for the industry

4. Competitive Analysis:
   - Position in the current market
   - Unique selling points
   - Areas for differentiation

CV Content:
%s`, formatList(keywords), cvText)
}

func buildSummaryPrompt(reviews string) string {
	return fmt.Sprintf(`Based on the CV review below, create a concise summary with scores and action points.
Return a JSON object with exactly these fields:
- score (number 0-100)
- strengths (array of 3 strings)
- improvements (array of 3 strings)
- actionPoints (array of 3 objects with title and description)

%s`, reviews)
}

func formatList(items []string) string {
	return strings.Join(items, ", ")
}
