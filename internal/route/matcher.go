// Package route provides the immutable route table: pattern compilation,
// method matching, and most-specific-wins resolution.
package route

import (
	"net/http"
	"regexp"
	"strings"
)

// PathMatcher is the interface for compiled path patterns.
type PathMatcher interface {
	Match(path string) (bool, map[string]string)
	Pattern() string
	Type() string
}

// ExactMatcher matches a literal path.
type ExactMatcher struct {
	path string
}

// NewExactMatcher creates a new exact path matcher.
func NewExactMatcher(path string) *ExactMatcher {
	return &ExactMatcher{path: path}
}

// Match checks if the path matches exactly.
func (m *ExactMatcher) Match(path string) (matched bool, params map[string]string) {
	return path == m.path, nil
}

// Pattern returns the pattern.
func (m *ExactMatcher) Pattern() string { return m.path }

// Type returns the matcher type.
func (m *ExactMatcher) Type() string { return "exact" }

// TemplateMatcher matches path templates containing {param} segments.
type TemplateMatcher struct {
	pattern string
	regex   *regexp.Regexp
}

// NewTemplateMatcher compiles a template pattern like /users/{id}/bookings.
func NewTemplateMatcher(pattern string) (*TemplateMatcher, error) {
	regex, err := regexp.Compile(templateToRegex(pattern))
	if err != nil {
		return nil, err
	}
	return &TemplateMatcher{pattern: pattern, regex: regex}, nil
}

// Match checks the path and extracts named parameters.
func (m *TemplateMatcher) Match(path string) (matched bool, params map[string]string) {
	matches := m.regex.FindStringSubmatch(path)
	if matches == nil {
		return false, nil
	}

	params = make(map[string]string)
	for i, name := range m.regex.SubexpNames() {
		if i > 0 && name != "" && i < len(matches) {
			params[name] = matches[i]
		}
	}
	return true, params
}

// Pattern returns the pattern.
func (m *TemplateMatcher) Pattern() string { return m.pattern }

// Type returns the matcher type.
func (m *TemplateMatcher) Type() string { return "template" }

// WildcardMatcher matches patterns containing * or ** wildcards, possibly
// mixed with {param} segments.
type WildcardMatcher struct {
	pattern string
	regex   *regexp.Regexp
}

// NewWildcardMatcher compiles a wildcard pattern like /api/v1/flights/**.
func NewWildcardMatcher(pattern string) (*WildcardMatcher, error) {
	regex, err := regexp.Compile(templateToRegex(pattern))
	if err != nil {
		return nil, err
	}
	return &WildcardMatcher{pattern: pattern, regex: regex}, nil
}

// Match checks the path against the wildcard pattern.
func (m *WildcardMatcher) Match(path string) (matched bool, params map[string]string) {
	matches := m.regex.FindStringSubmatch(path)
	if matches == nil {
		return false, nil
	}

	for i, name := range m.regex.SubexpNames() {
		if i > 0 && name != "" && i < len(matches) {
			if params == nil {
				params = make(map[string]string)
			}
			params[name] = matches[i]
		}
	}
	return true, params
}

// Pattern returns the pattern.
func (m *WildcardMatcher) Pattern() string { return m.pattern }

// Type returns the matcher type.
func (m *WildcardMatcher) Type() string { return "wildcard" }

// templateToRegex converts a route pattern to an anchored regex. {param}
// becomes a named single-segment group, ** matches across segments, * within
// one segment.
func templateToRegex(pattern string) string {
	var result strings.Builder
	result.WriteString("^")

	i := 0
	for i < len(pattern) {
		switch {
		case pattern[i] == '{':
			end := strings.IndexByte(pattern[i:], '}')
			if end < 0 {
				result.WriteString(regexp.QuoteMeta(pattern[i:]))
				i = len(pattern)
				continue
			}
			name := pattern[i+1 : i+end]
			result.WriteString("(?P<")
			result.WriteString(name)
			result.WriteString(">[^/]+)")
			i += end + 1
		case i+1 < len(pattern) && pattern[i:i+2] == "**":
			result.WriteString(".*")
			i += 2
		case pattern[i] == '*':
			result.WriteString("[^/]*")
			i++
		default:
			result.WriteString(regexp.QuoteMeta(string(pattern[i])))
			i++
		}
	}

	result.WriteString("$")
	return result.String()
}

// CompilePattern picks the matcher type for a pattern.
func CompilePattern(pattern string) (PathMatcher, error) {
	hasWildcard := strings.Contains(pattern, "*")
	hasParam := strings.Contains(pattern, "{")

	switch {
	case hasWildcard:
		return NewWildcardMatcher(pattern)
	case hasParam:
		return NewTemplateMatcher(pattern)
	default:
		return NewExactMatcher(pattern), nil
	}
}

// MethodMatcher matches HTTP methods.
type MethodMatcher struct {
	methods map[string]bool
}

// NewMethodMatcher creates a method matcher. "*" matches every method.
func NewMethodMatcher(methods []string) *MethodMatcher {
	m := &MethodMatcher{methods: make(map[string]bool)}
	for _, method := range methods {
		m.methods[strings.ToUpper(method)] = true
	}
	return m
}

// Match checks if the method matches. HEAD matches GET routes.
func (m *MethodMatcher) Match(method string) bool {
	method = strings.ToUpper(method)

	if m.methods["*"] {
		return true
	}

	if method == http.MethodHead && m.methods[http.MethodGet] {
		return true
	}

	return m.methods[method]
}

// specificity scores a pattern so the most specific one wins on ambiguity:
// exact patterns beat templates, templates beat wildcards, and within a class
// more literal segments rank higher.
func specificity(pattern string) int {
	segments := strings.Split(strings.Trim(pattern, "/"), "/")

	literal := 0
	wildcards := 0
	params := 0
	for _, seg := range segments {
		switch {
		case seg == "":
			continue
		case strings.Contains(seg, "*"):
			wildcards++
		case strings.Contains(seg, "{"):
			params++
		default:
			literal++
		}
	}

	switch {
	case wildcards > 0:
		return 100 + literal*10 - wildcards
	case params > 0:
		return 500 + literal*10 - params
	default:
		return 1000 + literal*10
	}
}
