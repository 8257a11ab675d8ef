package response

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type PatientType string

const (
	PatientNew      PatientType = "NEW"
	PatientExisting PatientType = "EXISTING"
)

type RespondentRole string

const (
	RolePatient  RespondentRole = "PATIENT"
	RoleRelative RespondentRole = "RELATIVE"
)

type BenefitPlan string

const (
	PlanUC             BenefitPlan = "UC"
	PlanSocialSecurity BenefitPlan = "SOCIAL_SECURITY"
	PlanGovernment     BenefitPlan = "GOVERNMENT"
	PlanSelfPay        BenefitPlan = "SELF_PAY"
	PlanOther          BenefitPlan = "OTHER"
)

type AgeRange string

const (
	AgeUnder15 AgeRange = "UNDER_15"
	Age15To25  AgeRange = "15_25"
	Age26To40  AgeRange = "26_40"
	Age41To60  AgeRange = "41_60"
	AgeOver60  AgeRange = "OVER_60"
)

type Gender string

const (
	GenderMale         Gender = "MALE"
	GenderFemale       Gender = "FEMALE"
	GenderOther        Gender = "OTHER"
	GenderNotSpecified Gender = "NOT_SPECIFIED"
)

// Demographics are the anonymous respondent attributes collected before the
// questionnaire. Empty values mean "not answered".
type Demographics struct {
	PatientType      PatientType    `json:"patient_type,omitempty"`
	RespondentRole   RespondentRole `json:"respondent_role,omitempty"`
	BenefitPlan      BenefitPlan    `json:"benefit_plan,omitempty"`
	BenefitPlanOther string         `json:"benefit_plan_other,omitempty"`
	AgeRange         AgeRange       `json:"age_range,omitempty"`
	Gender           Gender         `json:"gender,omitempty"`
	PDPAAccepted     bool           `json:"pdpa_accepted"`
}

// Response is one completed kiosk submission. It references the exact survey
// version that was shown.
type Response struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	SurveyID       *uuid.UUID `db:"survey_id" json:"survey_id,omitempty"`
	ServicePointID *uuid.UUID `db:"service_point_id" json:"service_point_id,omitempty"`
	Demographics
	ClientIP    string     `db:"client_ip" json:"client_ip,omitempty"`
	UserAgent   string     `db:"user_agent" json:"user_agent,omitempty"`
	StartedAt   time.Time  `db:"started_at" json:"started_at"`
	SubmittedAt *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`

	SurveyTitle      *string   `json:"survey_title,omitempty"`
	SurveyVersion    *string   `json:"survey_version,omitempty"`
	ServicePointName *string   `json:"service_point_name,omitempty"`
	AvgScore         *float64  `json:"avg_score,omitempty"`
	Answers          []*Answer `json:"answers,omitempty"`
}

// Ratings returns the numeric ratings among the response's answers.
func (r *Response) Ratings() []int {
	var out []int
	for _, a := range r.Answers {
		if a.Rating != nil {
			out = append(out, *a.Rating)
		}
	}
	return out
}

// Answer holds either a rating or a text. QuestionID becomes nil when the
// question is deleted; the value is kept.
type Answer struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	ResponseID uuid.UUID  `db:"response_id" json:"response_id"`
	QuestionID *uuid.UUID `db:"question_id" json:"question_id,omitempty"`
	Rating     *int       `db:"rating" json:"rating,omitempty"`
	Text       *string    `db:"text_answer" json:"text,omitempty"`

	QuestionText *string `json:"question_text,omitempty"`
}

// Submission is what the kiosk posts once a respondent finishes. Answers map
// question ids to string-encoded values.
type Submission struct {
	SurveyID       uuid.UUID
	ServicePointID uuid.UUID
	Demographics   Demographics
	Answers        map[string]string
	StartedAt      *time.Time
	ClientIP       string
	UserAgent      string
}

// Filter narrows the analytics queries. To is exclusive; Scope nil means
// unrestricted.
type Filter struct {
	GroupID        *uuid.UUID
	ServicePointID *uuid.UUID
	SurveyID       *uuid.UUID
	From           *time.Time
	To             *time.Time
	Scope          []uuid.UUID
}

// ScoreRange filters responses by average rating. Max is exclusive unless it
// is the top of the scale.
type ScoreRange struct {
	Min float64
	Max float64
}

// MaxRating is the top of the rating scale.
const MaxRating = 5

// ParseScoreRange parses "min-max", e.g. "1-2" or "4-5".
func ParseScoreRange(s string) (*ScoreRange, error) {
	a, b, ok := strings.Cut(s, "-")
	if !ok {
		return nil, fmt.Errorf("score range %q: expected min-max", s)
	}
	lo, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return nil, fmt.Errorf("score range %q: %w", s, err)
	}
	hi, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return nil, fmt.Errorf("score range %q: %w", s, err)
	}
	if lo < 0 || hi > MaxRating || lo >= hi {
		return nil, fmt.Errorf("score range %q: out of bounds", s)
	}
	return &ScoreRange{Min: float64(lo), Max: float64(hi)}, nil
}

// Contains reports whether avg falls in the range.
func (r ScoreRange) Contains(avg float64) bool {
	if avg < r.Min {
		return false
	}
	if r.Max >= MaxRating {
		return avg <= r.Max
	}
	return avg < r.Max
}

type ResultFilter struct {
	Filter
	Score *ScoreRange
}

type SuggestionFilter struct {
	Filter
	Query string
}

// Suggestion is one non-empty free-text answer.
type Suggestion struct {
	ResponseID       uuid.UUID  `json:"response_id"`
	QuestionID       *uuid.UUID `json:"question_id,omitempty"`
	QuestionText     *string    `json:"question_text,omitempty"`
	Text             string     `json:"text"`
	ServicePointID   *uuid.UUID `json:"service_point_id,omitempty"`
	ServicePointName *string    `json:"service_point_name,omitempty"`
	SubmittedAt      time.Time  `json:"submitted_at"`
}

type PointCount struct {
	ServicePointID uuid.UUID `json:"service_point_id"`
	Name           string    `json:"name"`
	Count          int       `json:"count"`
	AvgScore       *float64  `json:"avg_score,omitempty"`
}

type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

type Dashboard struct {
	From        time.Time    `json:"from"`
	To          time.Time    `json:"to"`
	Total       int          `json:"total"`
	AvgScore    *float64     `json:"avg_score,omitempty"`
	Suggestions int          `json:"suggestions"`
	ByPoint     []PointCount `json:"by_point"`
	ByDay       []DayCount   `json:"by_day"`
}

// ExportRow is one answer joined with its response, question, and point.
type ExportRow struct {
	ResponseID       uuid.UUID
	SubmittedAt      time.Time
	ServicePointCode *string
	ServicePointName *string
	SurveyTitle      *string
	SurveyVersion    *string
	Demographics     Demographics
	QuestionText     *string
	QuestionType     *string
	Rating           *int
	Text             *string
}

const dayLayout = "2006-01-02"

// WeekOf returns Monday 00:00 of t's week and the following Monday.
func WeekOf(t time.Time) (time.Time, time.Time) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7
	from := day.AddDate(0, 0, -offset)
	return from, from.AddDate(0, 0, 7)
}

// ParseDay parses a YYYY-MM-DD date at midnight in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dayLayout, s, loc)
}
