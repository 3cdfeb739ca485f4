package staging

import (
	"regexp"
)

// Binding points a reference found in bundle source at a staged file name.
type Binding struct {
	Placeholder string
	Target      string
}

// Rewrite replaces every whole-word occurrence of each placeholder with its
// target. Nothing else changes, and a rewritten document rewrites to itself
// as long as no target contains a placeholder.
//
// Bundle sources are Angular pages whose {{ }} interpolation belongs to the
// browser, so references are bound by name here instead of through a template
// engine.
func Rewrite(src string, bindings ...Binding) string {
	for _, b := range bindings {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(b.Placeholder) + `\b`)
		src = re.ReplaceAllLiteralString(src, b.Target)
	}
	return src
}
