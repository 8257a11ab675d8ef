package survey

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusActive Status = "ACTIVE"
)

func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusActive
}

type QuestionType string

const (
	TypeRating    QuestionType = "RATING_5"
	TypeTextarea  QuestionType = "TEXTAREA"
	TypeTextShort QuestionType = "TEXT_SHORT"
)

// AnswerKind is what an answer to a question holds.
type AnswerKind int

const (
	KindInvalid AnswerKind = iota
	KindRating
	KindText
)

func (t QuestionType) Kind() AnswerKind {
	switch t {
	case TypeRating:
		return KindRating
	case TypeTextarea, TypeTextShort:
		return KindText
	}
	return KindInvalid
}

// Survey is one version of a questionnaire. Content edits never mutate a
// survey in place; they produce a new row with the next version label.
type Survey struct {
	ID               uuid.UUID   `db:"id" json:"id"`
	TitleTH          string      `db:"title_th" json:"title_th"`
	TitleEN          string      `db:"title_en" json:"title_en"`
	DescriptionTH    string      `db:"description_th" json:"description_th"`
	DescriptionEN    string      `db:"description_en" json:"description_en"`
	Status           Status      `db:"status" json:"status"`
	Version          string      `db:"version" json:"version"`
	ServicePointID   *uuid.UUID  `db:"service_point_id" json:"service_point_id,omitempty"`
	ServicePointName *string     `db:"service_point_name" json:"service_point_name,omitempty"`
	CreatedBy        *uuid.UUID  `db:"created_by" json:"created_by,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
	QuestionCount    int         `db:"question_count" json:"question_count"`
	Questions        []*Question `json:"questions,omitempty"`
}

type Question struct {
	ID        uuid.UUID    `db:"id" json:"id"`
	SurveyID  uuid.UUID    `db:"survey_id" json:"survey_id"`
	TextTH    string       `db:"text_th" json:"text_th"`
	TextEN    string       `db:"text_en" json:"text_en"`
	Type      QuestionType `db:"question_type" json:"question_type"`
	Order     int          `db:"sort_order" json:"order"`
	Required  bool         `db:"required" json:"required"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// SurveyEdit is the full authoring form of a survey. A nil Status on a
// content edit produces a DRAFT version; on a status-only edit it means
// "unchanged".
type SurveyEdit struct {
	TitleTH        string
	TitleEN        string
	DescriptionTH  string
	DescriptionEN  string
	ServicePointID *uuid.UUID
	Status         *Status
}

// EditOf returns the form pre-filled with s's current content.
func EditOf(s *Survey) SurveyEdit {
	return SurveyEdit{
		TitleTH:        s.TitleTH,
		TitleEN:        s.TitleEN,
		DescriptionTH:  s.DescriptionTH,
		DescriptionEN:  s.DescriptionEN,
		ServicePointID: s.ServicePointID,
	}
}

func (e SurveyEdit) contentDiffers(s *Survey) bool {
	return e.TitleTH != s.TitleTH ||
		e.TitleEN != s.TitleEN ||
		e.DescriptionTH != s.DescriptionTH ||
		e.DescriptionEN != s.DescriptionEN ||
		!samePoint(e.ServicePointID, s.ServicePointID)
}

func samePoint(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

type SurveyFilter struct {
	Query          string
	GroupID        *uuid.UUID
	ServicePointID *uuid.UUID
	Status         Status
	Scope          []uuid.UUID
}

// InitialVersion is the label of a newly created survey.
const InitialVersion = "1.0"

// NextVersion returns floor(v)+1 formatted as "<n>.0". Labels that are not
// numeric, or too large to increment, restart at InitialVersion.
func NextVersion(v string) string {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f >= math.MaxInt64 {
		return InitialVersion
	}
	return fmt.Sprintf("%d.0", int64(math.Floor(f))+1)
}
