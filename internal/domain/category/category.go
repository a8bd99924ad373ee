package category

import (
	"fmt"
	"strings"
)

// Category is the answer shape requested by the student.
type Category string

// Answer category constants.
const (
	// ShortForm is a concise key-point answer (university "2-mark" question).
	ShortForm Category = "short_form"
	// LongForm is a structured, detailed answer (university "16-mark" question).
	LongForm Category = "long_form"
)

// All returns every supported category in display order.
func All() []Category {
	return []Category{ShortForm, LongForm}
}

// IsValid checks if the category is one of the supported values.
func (c Category) IsValid() bool {
	return c == ShortForm || c == LongForm
}

// Marks returns the exam weight of the category.
func (c Category) Marks() int {
	switch c {
	case ShortForm:
		return 2
	case LongForm:
		return 16
	}
	return 0
}

// Label returns the human name used in prompts and notices.
func (c Category) Label() string {
	if !c.IsValid() {
		return string(c)
	}
	return fmt.Sprintf("%d-mark", c.Marks())
}

func (c Category) String() string { return string(c) }

// Parse resolves a wire name or one of its aliases ("2mark", "16-mark", "short", ...).
func Parse(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "short_form", "short", "2mark", "2-mark":
		return ShortForm, nil
	case "long_form", "long", "16mark", "16-mark":
		return LongForm, nil
	}
	return "", fmt.Errorf("unknown answer type %q", s)
}
