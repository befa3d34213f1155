package mapping

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/c360/i3xbridge/errors"
)

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Pattern is a compiled topic pattern. Placeholders match one topic
// segment each; everything else matches literally.
type Pattern struct {
	Raw        string
	ParamNames []string
	re         *regexp.Regexp
}

// CompilePattern compiles a topic pattern string. Literal characters
// are regex-escaped, each {name} becomes a single-segment capturing
// group, and the whole pattern is anchored.
func CompilePattern(raw string) (*Pattern, error) {
	if raw == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidPattern,
			"mapping", "CompilePattern", "compile empty pattern")
	}
	if strings.ContainsAny(raw, "+#") {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: MQTT wildcards are not allowed in %q", errors.ErrInvalidPattern, raw),
			"mapping", "CompilePattern", "compile pattern")
	}

	var sb strings.Builder
	var params []string
	sb.WriteString("^")
	last := 0
	for _, loc := range placeholderRe.FindAllStringSubmatchIndex(raw, -1) {
		sb.WriteString(regexp.QuoteMeta(raw[last:loc[0]]))
		sb.WriteString(`([^/]+)`)
		params = append(params, raw[loc[2]:loc[3]])
		last = loc[1]
	}
	sb.WriteString(regexp.QuoteMeta(raw[last:]))
	sb.WriteString("$")

	// Any brace left over did not form a valid placeholder.
	if rest := placeholderRe.ReplaceAllString(raw, ""); strings.ContainsAny(rest, "{}") {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: malformed placeholder in %q", errors.ErrInvalidPattern, raw),
			"mapping", "CompilePattern", "compile pattern")
	}

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrInvalidPattern, err),
			"mapping", "CompilePattern", "compile pattern")
	}

	return &Pattern{Raw: raw, ParamNames: params, re: re}, nil
}

// Match matches a topic against the pattern. On success it returns the
// captures keyed by placeholder name; on no match it returns (nil, false).
func (p *Pattern) Match(topic string) (map[string]string, bool) {
	groups := p.re.FindStringSubmatch(topic)
	if groups == nil {
		return nil, false
	}
	captures := make(map[string]string, len(p.ParamNames))
	for i, name := range p.ParamNames {
		captures[name] = groups[i+1]
	}
	return captures, true
}

// SubscriptionTopic derives the MQTT broker-side subscription string by
// replacing each placeholder with the single-level wildcard.
func (p *Pattern) SubscriptionTopic() string {
	return placeholderRe.ReplaceAllString(p.Raw, "+")
}
