package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldFormat is the value format of a custom field.
type FieldFormat string

const (
	FormatString      FieldFormat = "string"
	FormatText        FieldFormat = "text"
	FormatLink        FieldFormat = "link"
	FormatInt         FieldFormat = "int"
	FormatFloat       FieldFormat = "float"
	FormatDate        FieldFormat = "date"
	FormatBool        FieldFormat = "bool"
	FormatList        FieldFormat = "list"
	FormatEnumeration FieldFormat = "enumeration"
	FormatUser        FieldFormat = "user"
	FormatVersion     FieldFormat = "version"
)

// IsValid reports whether f is a known format.
func (f FieldFormat) IsValid() bool {
	switch f {
	case FormatString, FormatText, FormatLink, FormatInt, FormatFloat, FormatDate,
		FormatBool, FormatList, FormatEnumeration, FormatUser, FormatVersion:
		return true
	}
	return false
}

// IsReference reports whether values are identities of other records
// (users, versions) rather than literal text.
func (f FieldFormat) IsReference() bool {
	return f == FormatUser || f == FormatVersion
}

// CustomField is a user-defined issue attribute. ProjectID 0 means the field
// is available to every project.
type CustomField struct {
	ID             int64       `json:"id" yaml:"id"`
	Name           string      `json:"name" yaml:"name"`
	Format         FieldFormat `json:"field_format" yaml:"format"`
	Multiple       bool        `json:"multiple" yaml:"multiple"`
	PossibleValues []string    `json:"possible_values,omitempty" yaml:"possible_values"`
	ProjectID      int64       `json:"project_id,omitempty" yaml:"project_id"`
}

// AvailableTo reports whether the field applies to issues of projectID.
func (cf *CustomField) AvailableTo(projectID int64) bool {
	return cf.ProjectID == 0 || cf.ProjectID == projectID
}

// ValueFromKeyword converts a cell value to stored values. Multiple fields
// accept a comma separated list. Reference formats cannot be converted here
// because they need a lookup.
func (cf *CustomField) ValueFromKeyword(keyword string) ([]string, error) {
	if cf.Format.IsReference() {
		return nil, fmt.Errorf("custom field %q: %s values must be resolved", cf.Name, cf.Format)
	}
	tokens := []string{strings.TrimSpace(keyword)}
	if cf.Multiple {
		tokens = SplitList(keyword)
	}
	values := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		v, err := cf.convert(tok)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func (cf *CustomField) convert(tok string) (string, error) {
	switch cf.Format {
	case FormatInt:
		if _, err := strconv.ParseInt(tok, 10, 64); err != nil {
			return "", fmt.Errorf("custom field %q: %q is not a number", cf.Name, tok)
		}
	case FormatFloat:
		if _, err := strconv.ParseFloat(tok, 64); err != nil {
			return "", fmt.Errorf("custom field %q: %q is not a number", cf.Name, tok)
		}
	case FormatDate:
		if _, err := time.Parse(DateLayout, tok); err != nil {
			return "", fmt.Errorf("custom field %q: %q is not a valid date", cf.Name, tok)
		}
	case FormatBool:
		switch strings.ToLower(tok) {
		case "1", "true", "yes":
			return "1", nil
		case "0", "false", "no":
			return "0", nil
		}
		return "", fmt.Errorf("custom field %q: %q is not a boolean", cf.Name, tok)
	case FormatList, FormatEnumeration:
		for _, pv := range cf.PossibleValues {
			if strings.EqualFold(pv, tok) {
				return pv, nil
			}
		}
		return "", fmt.Errorf("custom field %q: %q is not included in the list", cf.Name, tok)
	}
	return tok, nil
}

// SplitList splits a comma separated cell into trimmed, non-empty tokens.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
