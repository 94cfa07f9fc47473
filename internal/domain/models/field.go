package models

import (
	"strconv"
	"strings"
	"time"
)

// FieldKind discriminates the custom-field value variants.
type FieldKind string

const (
	FieldText        FieldKind = "text"
	FieldNumber      FieldKind = "number"
	FieldDate        FieldKind = "date"
	FieldDropdown    FieldKind = "dropdown"
	FieldMultiSelect FieldKind = "multiselect"
	FieldCheckbox    FieldKind = "checkbox"
	FieldLink        FieldKind = "link"
)

// FieldValue is a tagged-variant custom field value keyed by field id on a
// test case. Only the member matching Kind is meaningful.
type FieldValue struct {
	Kind    FieldKind  `json:"kind" yaml:"kind"`
	Text    string     `json:"text,omitempty" yaml:"text,omitempty"`       // text, dropdown, link
	Number  *float64   `json:"number,omitempty" yaml:"number,omitempty"`   // number
	Date    *time.Time `json:"date,omitempty" yaml:"date,omitempty"`      // date
	Options []string   `json:"options,omitempty" yaml:"options,omitempty"` // multiselect
	Checked bool       `json:"checked,omitempty" yaml:"checked,omitempty"` // checkbox
}

// HasValue reports whether the field holds a non-empty value. Empty fields
// behave like absent ones for filtering and view buckets.
func (v FieldValue) HasValue() bool {
	switch v.Kind {
	case FieldText, FieldDropdown, FieldLink:
		return v.Text != ""
	case FieldNumber:
		return v.Number != nil
	case FieldDate:
		return v.Date != nil
	case FieldMultiSelect:
		return len(v.Options) > 0
	case FieldCheckbox:
		return true
	}
	return false
}

// Values returns the bucket values the field contributes to a view
// dimension. Multi-select fields contribute one value per option.
func (v FieldValue) Values() []string {
	switch v.Kind {
	case FieldText, FieldDropdown, FieldLink:
		if v.Text == "" {
			return nil
		}
		return []string{v.Text}
	case FieldNumber:
		if v.Number == nil {
			return nil
		}
		return []string{strconv.FormatFloat(*v.Number, 'f', -1, 64)}
	case FieldDate:
		if v.Date == nil {
			return nil
		}
		return []string{v.Date.Format("2006-01-02")}
	case FieldMultiSelect:
		return v.Options
	case FieldCheckbox:
		if v.Checked {
			return []string{"checked"}
		}
		return []string{"unchecked"}
	}
	return nil
}

// Equal compares two field values structurally. Used by the version diff.
func (v FieldValue) Equal(o FieldValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case FieldText, FieldDropdown, FieldLink:
		return v.Text == o.Text
	case FieldNumber:
		return eqFloatPtr(v.Number, o.Number)
	case FieldDate:
		return eqTimePtr(v.Date, o.Date)
	case FieldMultiSelect:
		if len(v.Options) != len(o.Options) {
			return false
		}
		for i := range v.Options {
			if v.Options[i] != o.Options[i] {
				return false
			}
		}
		return true
	case FieldCheckbox:
		return v.Checked == o.Checked
	}
	return true
}

// String renders the value for display and ordering comparisons.
func (v FieldValue) String() string {
	return strings.Join(v.Values(), ", ")
}

func eqFloatPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
