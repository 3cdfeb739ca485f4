// Package templates renders the per-request header document. Substitution is
// logic-less mustache: dotted lookups, empty output for missing values and
// truthy sections only.
package templates

import (
	"fmt"

	"github.com/cbroglie/mustache"
)

// ContactInfoKey is the context key the header template reads the rendered
// contact-info fragment from.
const ContactInfoKey = "header-contactInfo"

// Render substitutes context into a single template.
func Render(tpl string, context map[string]any) (string, error) {
	t, err := mustache.ParseString(tpl)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	out, err := t.Render(context)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}

// Header composes the header document in two passes: the contact-info partial
// is rendered against the record first, then the header is rendered with both
// the record and that fragment in scope.
func Header(headerTpl, partialTpl string, data map[string]any) (string, error) {
	fragment, err := Render(partialTpl, map[string]any{"data": data})
	if err != nil {
		return "", fmt.Errorf("contact info: %w", err)
	}
	out, err := Render(headerTpl, map[string]any{
		"data":         data,
		ContactInfoKey: fragment,
	})
	if err != nil {
		return "", fmt.Errorf("header: %w", err)
	}
	return out, nil
}
