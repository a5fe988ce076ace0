package logpipeline

import (
	"regexp"
	"strings"
)

// FilterConfig is the optional keyword/operator inclusion filter applied to
// parsed messages before they reach the dedup buffer. It is not a spec.md
// requirement; it is the teacher's content-filter feature (NewServer's
// keyword/operator compilation, meetsCriteria/areLogsCurated) carried over
// because it does not conflict with spec.md's redaction non-goal — it is
// an inclusion filter, not a removal/redaction one.
type FilterConfig struct {
	// Operator is "or" (default, any keyword matches) or "and" (every
	// keyword, and the 4xx/5xx shorthand if present, must match). Under
	// "and", a message matching a configured 4xx/5xx shorthand that also
	// contains "failed" or "error" is accepted even when other keywords do
	// not match.
	Operator string
	// Keywords are matched case-insensitively. The tokens "4xx" and "5xx"
	// are shorthand for the teacher's numeric HTTP status regexes rather
	// than literal substrings.
	Keywords []string
}

const (
	regexp4xx = `\b4(?:[01][0-9]|2[1-689]|31|51)\b`
	regexp5xx = `\b(500|501|502|503|504|505|506|507|508|510|511)\b`
)

// contentFilter is the compiled form of a FilterConfig. A nil contentFilter
// (or one built from an empty FilterConfig) accepts everything.
type contentFilter struct {
	operator      string
	coreFilter    *regexp.Regexp
	filters       []*regexp.Regexp
	regexp4xx     *regexp.Regexp
	regexp5xx     *regexp.Regexp
	failedRegex   *regexp.Regexp
	errorRegex    *regexp.Regexp
	hasConstraint bool
}

// newContentFilter compiles cfg into a reusable matcher, following the
// teacher's NewServer keyword partitioning verbatim.
func newContentFilter(cfg FilterConfig) *contentFilter {
	if len(cfg.Keywords) == 0 {
		return nil
	}

	f := &contentFilter{
		operator:    strings.ToLower(cfg.Operator),
		failedRegex: regexp.MustCompile(`(?i)failed`),
		errorRegex:  regexp.MustCompile(`(?i)error`),
	}
	if f.operator != "and" {
		f.operator = "or"
	}

	var (
		has4xx, has5xx   bool
		filteredKeywords = make([]string, 0, len(cfg.Keywords))
	)
	for _, keyword := range cfg.Keywords {
		switch {
		case strings.EqualFold(keyword, "4xx"):
			has4xx = true
			f.regexp4xx = regexp.MustCompile(regexp4xx)
		case strings.EqualFold(keyword, "5xx"):
			has5xx = true
			f.regexp5xx = regexp.MustCompile(regexp5xx)
		default:
			filteredKeywords = append(filteredKeywords, keyword)
			f.filters = append(f.filters, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(keyword)))
		}
	}

	var builder strings.Builder
	if has4xx || has5xx {
		switch {
		case has4xx && has5xx:
			builder.WriteString(regexp4xx + "|" + regexp5xx)
		case has5xx:
			builder.WriteString(regexp5xx)
		default:
			builder.WriteString(regexp4xx)
		}
		if has4xx {
			f.filters = append(f.filters, f.regexp4xx)
		}
		if has5xx {
			f.filters = append(f.filters, f.regexp5xx)
		}
	}
	if len(filteredKeywords) > 0 {
		if builder.Len() > 0 {
			builder.WriteString("|")
		}
		builder.WriteString(`(?i)` + strings.Join(filteredKeywords, "|"))
	}

	f.coreFilter = regexp.MustCompile(builder.String())
	f.hasConstraint = true
	return f
}

// accept reports whether message passes the configured filter.
func (f *contentFilter) accept(message string) bool {
	if f == nil || !f.hasConstraint {
		return true
	}
	raw := []byte(message)
	if len(raw) == 0 {
		return false
	}
	if f.operator != "and" {
		return f.coreFilter.Match(raw)
	}

	if f.regexp4xx != nil && f.regexp4xx.Match(raw) && (f.failedRegex.Match(raw) || f.errorRegex.Match(raw)) {
		return true
	}
	if f.regexp5xx != nil && f.regexp5xx.Match(raw) && (f.failedRegex.Match(raw) || f.errorRegex.Match(raw)) {
		return true
	}
	for _, filter := range f.filters {
		if !filter.Match(raw) {
			return false
		}
	}
	return true
}
