// Package validation checks the structure of GTM container exports.
//
// Structural problems (missing IDs, names or types, duplicate IDs, entities
// that could not be decoded) never stop an analysis. They are reported as
// warnings next to the report, and by the validate command.
//
// It uses go-playground/validator for entity-level validation against the
// struct tags declared in the models package.
//
// # Usage Example
//
//	v := validation.New()
//	result, err := v.ValidateContainer(jsonData)
//	if err != nil {
//	    // input was not a container at all
//	}
//	for _, e := range result.Errors {
//	    fmt.Printf("%s: %s\n", e.Field, e.Message)
//	}
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"evalgo.org/tagscope/models"
)

// Validator checks container entities against their struct constraints.
type Validator struct {
	structValidator *validator.Validate
}

// ValidationError represents a single validation error with field-level details.
type ValidationError struct {
	// Field is the path of the offending field, e.g. tag[3].name
	Field string `json:"field"`

	// Message describes why the validation failed
	Message string `json:"message"`

	// Value is the invalid value that caused the error (optional)
	Value interface{} `json:"value,omitempty"`
}

// String renders the error as "field: message".
func (e ValidationError) String() string {
	return e.Field + ": " + e.Message
}

// ValidationResult represents the complete result of a validation operation.
type ValidationResult struct {
	// Valid is true if no structural problem was found
	Valid bool `json:"valid"`

	// Errors contains all problems found (empty if Valid is true)
	Errors []ValidationError `json:"errors,omitempty"`
}

// Messages returns the errors as "field: message" strings.
func (r *ValidationResult) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.String())
	}
	return out
}

// New creates a new Validator instance.
func New() *Validator {
	return &Validator{
		structValidator: validator.New(),
	}
}

// ValidateContainer decodes and validates a container export. The error is
// non-nil only when data is not a container at all.
func (v *Validator) ValidateContainer(data []byte) (*ValidationResult, error) {
	c, err := models.ParseContainer(data)
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{
				{
					Field:   "document",
					Message: fmt.Sprintf("Invalid container: %v", err),
				},
			},
		}, err
	}
	return v.Validate(c), nil
}

// Validate checks an already decoded container.
func (v *Validator) Validate(c *models.Container) *ValidationResult {
	var errs []ValidationError

	for _, w := range c.DecodeWarnings {
		errs = append(errs, ValidationError{Field: "document", Message: "skipped undecodable entity: " + w})
	}

	tagIDs := make(map[string]int)
	for i := range c.Tags {
		path := fmt.Sprintf("tag[%d]", i)
		errs = append(errs, v.validateStruct(path, &c.Tags[i])...)
		errs = append(errs, duplicateID(path, "tagId", c.Tags[i].TagID, tagIDs)...)
	}

	triggerIDs := make(map[string]int)
	for i := range c.Triggers {
		path := fmt.Sprintf("trigger[%d]", i)
		errs = append(errs, v.validateStruct(path, &c.Triggers[i])...)
		errs = append(errs, duplicateID(path, "triggerId", c.Triggers[i].TriggerID, triggerIDs)...)
	}

	variableIDs := make(map[string]int)
	for i := range c.Variables {
		path := fmt.Sprintf("variable[%d]", i)
		errs = append(errs, v.validateStruct(path, &c.Variables[i])...)
		errs = append(errs, duplicateID(path, "variableId", c.Variables[i].VariableID, variableIDs)...)
	}

	return &ValidationResult{
		Valid:  len(errs) == 0,
		Errors: errs,
	}
}

func (v *Validator) validateStruct(path string, s interface{}) []ValidationError {
	err := v.structValidator.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ValidationError{{Field: path, Message: err.Error()}}
	}

	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   path + "." + jsonFieldName(fe.Field()),
			Message: formatValidationError(fe),
			Value:   fe.Value(),
		})
	}
	return out
}

func duplicateID(path, field, id string, seen map[string]int) []ValidationError {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	seen[id]++
	if seen[id] == 2 {
		return []ValidationError{{
			Field:   path + "." + field,
			Message: "duplicate ID",
			Value:   id,
		}}
	}
	return nil
}

// jsonFieldName maps struct field names to their export names.
func jsonFieldName(field string) string {
	switch field {
	case "TagID":
		return "tagId"
	case "TriggerID":
		return "triggerId"
	case "VariableID":
		return "variableId"
	}
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// formatValidationError formats a validator.FieldError into a human-readable message
func formatValidationError(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return fmt.Sprintf("Minimum length is %s", err.Param())
	case "max":
		return fmt.Sprintf("Maximum length is %s", err.Param())
	default:
		return fmt.Sprintf("Validation failed on '%s' tag", err.Tag())
	}
}
