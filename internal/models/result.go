package models

import "time"

type ReviewSections struct {
	ContentReview string `json:"contentReview"`
	DesignReview  string `json:"designReview"`
	ParseWarning  string `json:"parseWarning,omitempty"`
}

type ActionPoint struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type SummaryReport struct {
	Score        int           `json:"score"`
	Strengths    []string      `json:"strengths"`
	Improvements []string      `json:"improvements"`
	ActionPoints []ActionPoint `json:"actionPoints"`
}

type SummaryRequest struct {
	ContentReview string `json:"contentReview"`
	DesignReview  string `json:"designReview"`
}

type InterviewPrepResponse struct {
	InterviewPrep string `json:"interviewPrep"`
}

type IndustryOptimizationResponse struct {
	IndustryOptimization string `json:"industryOptimization"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type RateLimitResponse struct {
	Error             string `json:"error"`
	NextAvailableTime int64  `json:"nextAvailableTime"`
}

// ClientQuota is the state of one client under one rate policy.
type ClientQuota struct {
	ClientKey       string
	Policy          string
	Limit           int
	Count           int
	WindowStart     time.Time
	ResetAt         time.Time
	NextAvailableAt *time.Time
}

func (q ClientQuota) Remaining() int {
	if q.Count >= q.Limit {
		return 0
	}
	return q.Limit - q.Count
}
