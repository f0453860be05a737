package utils

import (
	"regexp"
	"strings"
)

// CompileRewritePattern compiles the configured URL rewrite pattern, case-insensitively.
// An empty pattern returns a nil regexp which callers treat as "no rewrite".
func CompileRewritePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, WrapErrorf(ErrConfigValidation, "invalid url_regex ('%s'): %v", pattern, err)
	}
	return re, nil
}

// SplitCommaList splits a comma-separated configuration value, trimming blanks and dropping empty entries.
func SplitCommaList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
