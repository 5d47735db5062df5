// Package validation holds the shared validator and input sanitizers for the API.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/benvon/schedule-builder/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("slot_id", validateSlotID); err != nil {
		panic(fmt.Sprintf("failed to register slot_id validator: %v", err))
	}
}

// validateSlotID accepts only ids of the fixed planning-day slots
func validateSlotID(fl validator.FieldLevel) bool {
	return models.IsTimeSlot(fl.Field().String())
}

// ValidateSlotID validates a time slot id
func ValidateSlotID(value string) error {
	if !models.IsTimeSlot(value) {
		return fmt.Errorf("invalid slot id: %s", value)
	}
	return nil
}

// ValidateBundle checks field rules plus the cross-references the struct tags
// cannot express: unique ids and tasks pointing at existing projects
func ValidateBundle(b *models.Bundle) error {
	if b == nil {
		return errors.New("bundle is required")
	}
	if err := Validate.Struct(b); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("validation failed: %s", verrs[0].Error())
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	projects := make(map[string]bool, len(b.Projects))
	for _, p := range b.Projects {
		if projects[p.ID] {
			return fmt.Errorf("duplicate project id: %s", p.ID)
		}
		projects[p.ID] = true
	}

	tasks := make(map[string]bool)
	for slotID, slot := range b.Schedule {
		for _, t := range slot {
			if !projects[t.ProjectID] {
				return fmt.Errorf("task %s in %s references unknown project %s", t.ID, slotID, t.ProjectID)
			}
			if tasks[t.ID] {
				return fmt.Errorf("duplicate task id: %s", t.ID)
			}
			tasks[t.ID] = true
		}
	}
	return nil
}

// SanitizeText removes control characters other than newline and tab, then
// trims surrounding whitespace. The result is stable under a second call.
func SanitizeText(text string) string {
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return strings.TrimSpace(sanitized.String())
}

// SanitizeBundle applies SanitizeText to every user-entered string in b
func SanitizeBundle(b *models.Bundle) {
	for i := range b.Projects {
		p := &b.Projects[i]
		p.Name = SanitizeText(p.Name)
		for j := range p.SubTasks {
			p.SubTasks[j].Text = SanitizeText(p.SubTasks[j].Text)
		}
	}
	for _, slot := range b.Schedule {
		for i := range slot {
			slot[i].ProjectName = SanitizeText(slot[i].ProjectName)
			for j := range slot[i].OriginalProjectSubTasks {
				slot[i].OriginalProjectSubTasks[j].Text = SanitizeText(slot[i].OriginalProjectSubTasks[j].Text)
			}
		}
	}
}
