package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Render pipeline (E101-E199)

	"E101": {
		Category:   CategoryRoute,
		Message:    "Route resolution failed",
		Detail:     "The request path could not be resolved against the route table.",
		Suggestion: "Check the path for backslashes, NUL bytes, malformed percent escapes or '..' segments above the root.",
	},
	"E102": {
		Category:   CategoryPrefetch,
		Message:    "Data prefetch failed",
		Detail:     "A component's data requirement could not be satisfied, so no page state was produced.",
		Suggestion: "Check that the store is reachable and that the record named by the route parameters exists.",
	},
	"E103": {
		Category: CategoryRender,
		Message:  "Component render failed",
		Detail:   "A view component returned an error or panicked while producing markup.",
	},
	"E104": {
		Category: CategoryRender,
		Message:  "Page assembly failed",
		Detail:   "The rendered markup or state could not be serialized into a document.",
	},

	// Configuration (E201-E299)

	"E201": {
		Category:   CategoryConfig,
		Message:    "Configuration file unreadable",
		Suggestion: "Pass an existing file with --config or remove the flag to use defaults.",
	},
	"E202": {
		Category:   CategoryConfig,
		Message:    "Configuration file malformed",
		Suggestion: "Configuration files may be JSON (.json) or YAML (.yaml, .yml).",
	},
	"E203": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
	},

	// Server lifecycle (E301-E399)

	"E301": {
		Category:   CategoryServer,
		Message:    "Server failed to start",
		Suggestion: "Check that the listen address is free.",
	},
	"E302": {
		Category: CategoryServer,
		Message:  "Backing service unavailable",
		Detail:   "A store or asset source could not be reached at startup.",
	},
}

// GetAllCodes returns all registered error codes in order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
