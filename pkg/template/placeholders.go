package template

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderPattern matches {variable_name}: ASCII letters, digits,
// underscore, and dot inside braces.
var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_.]+)\}`)

// ExtractVariables returns the distinct placeholder names in content, in order
// of first appearance. Pure string scanning; usable for validation and preview.
func ExtractVariables(content string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(content, -1)

	seen := make(map[string]bool, len(matches))

	var names []string

	for _, match := range matches {
		name := match[1]
		if !seen[name] {
			seen[name] = true

			names = append(names, name)
		}
	}

	return names
}

// ValidateRequiredVariables reports the placeholders in content that have no
// value in vars. An empty result means the content can render completely.
func ValidateRequiredVariables(content string, vars map[string]any) []string {
	var missing []string

	for _, name := range ExtractVariables(content) {
		if _, exists := lookup(vars, name); !exists {
			missing = append(missing, name)
		}
	}

	return missing
}

// Render substitutes {placeholders} in content with values from vars. Unknown
// placeholders are left intact so partial renders remain diagnosable.
func Render(content string, vars map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := strings.Trim(match, "{}")

		value, exists := lookup(vars, name)
		if !exists {
			return match
		}

		return fmt.Sprintf("%v", value)
	})
}

// lookup resolves a dotted path ("contact.email") through nested maps.
func lookup(vars map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")

	var current any = vars

	for _, part := range parts {
		asMap, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = asMap[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}
