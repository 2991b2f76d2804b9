// Package survey holds admin-authored survey definitions and the
// per-recipient, per-section response documents. The catalog stores
// sections and questions as an ordered structure and validates shape
// only; question semantics belong to the caller's rendering layer.
package survey

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "kindmesh/pkg/domain-errors"
)

// Kind tags a question variant.
type Kind string

const (
	KindText         Kind = "text"
	KindSingleChoice Kind = "single-choice"
	KindMultiChoice  Kind = "multi-choice"
	KindNumber       Kind = "number"
)

func (k Kind) valid() bool {
	switch k {
	case KindText, KindSingleChoice, KindMultiChoice, KindNumber:
		return true
	}
	return false
}

func (k Kind) choices() bool {
	return k == KindSingleChoice || k == KindMultiChoice
}

// Question is one prompt inside a section. Options is required for the
// choice kinds and must be absent otherwise.
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Kind    Kind     `json:"kind"`
	Options []string `json:"options,omitempty"`
}

// Section is an ordered list of questions under a name. Order is
// significant and preserved as stored.
type Section struct {
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// Survey is one catalog entry.
type Survey struct {
	ID          uuid.UUID
	Name        string
	Description string
	Sections    []Section
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Response is the stored answer document for one (recipient, section)
// pair. SurveyID is a plain attribute, not a foreign key; responses
// outlive survey deletion.
type Response struct {
	RecipientKey string
	Section      string
	Answers      map[string]any
	SurveyID     uuid.UUID
	SubmittedBy  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks the structural rules of a survey document: non-empty
// name, at least one section, unique question ids per section, a known
// kind per question, and options if and only if the kind is a choice.
func Validate(name string, sections []Section) error {
	if strings.TrimSpace(name) == "" {
		return dErrors.New(dErrors.CodeValidation, "survey name is required")
	}
	if len(sections) == 0 {
		return dErrors.New(dErrors.CodeValidation, "survey needs at least one section")
	}
	for _, section := range sections {
		if strings.TrimSpace(section.Name) == "" {
			return dErrors.New(dErrors.CodeValidation, "section name is required")
		}
		seen := make(map[string]struct{}, len(section.Questions))
		for _, question := range section.Questions {
			if err := validateQuestion(section.Name, question); err != nil {
				return err
			}
			if _, dup := seen[question.ID]; dup {
				return dErrors.New(dErrors.CodeValidation,
					fmt.Sprintf("section %q repeats question id %q", section.Name, question.ID))
			}
			seen[question.ID] = struct{}{}
		}
	}
	return nil
}

func validateQuestion(section string, question Question) error {
	if strings.TrimSpace(question.ID) == "" {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("section %q has a question without an id", section))
	}
	if !question.Kind.valid() {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("question %q has unknown kind %q", question.ID, question.Kind))
	}
	if question.Kind.choices() && len(question.Options) == 0 {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("question %q needs options for kind %q", question.ID, question.Kind))
	}
	if !question.Kind.choices() && len(question.Options) > 0 {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("question %q must not carry options for kind %q", question.ID, question.Kind))
	}
	return nil
}
