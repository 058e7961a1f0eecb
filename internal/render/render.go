// Package render substitutes delimiter-wrapped variable references inside
// semi-structured (JSON-like) template documents.
//
// A document is serialized to its JSON form before substitution so that
// variable references can appear inside any nested string leaf, then parsed
// back into the structured form afterwards. Substitution is therefore
// textual: a variable cannot introduce new structural nodes unless the
// substituted value still yields valid JSON once re-embedded.
package render

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/google/uuid"

	"notico/internal/common"
)

// Policy decides what happens to variables referenced by the template but
// absent from the render context.
type Policy string

const (
	// PolicyRandom injects a synthetic random placeholder value.
	PolicyRandom Policy = "random"

	// PolicyShowTemplateVar re-emits the delimited reference verbatim.
	PolicyShowTemplateVar Policy = "show_as_template_var"

	// PolicyRemove replaces the reference with an empty string.
	PolicyRemove Policy = "remove"
)

// DefaultPolicy is applied when no policy is given.
const DefaultPolicy = PolicyRandom

// Valid reports whether p is a recognized policy.
func (p Policy) Valid() bool {
	switch p {
	case PolicyRandom, PolicyShowTemplateVar, PolicyRemove:
		return true
	}
	return false
}

// Default delimiter pair. Individual template managers may override it,
// e.g. alimtalk templates use "#{" and "}".
const (
	DefaultDelimiterStart = "{{"
	DefaultDelimiterEnd   = "}}"
)

// Options configures one render pass.
type Options struct {
	Start     string
	End       string
	Undefined Policy
}

func (o *Options) applyDefaults() {
	if o.Start == "" {
		o.Start = DefaultDelimiterStart
	}
	if o.End == "" {
		o.End = DefaultDelimiterEnd
	}
	if o.Undefined == "" {
		o.Undefined = DefaultPolicy
	}
}

// variablePattern compiles the reference pattern for a delimiter pair,
// tolerating whitespace around the variable name.
func variablePattern(start, end string) (*regexp.Regexp, error) {
	expr := regexp.QuoteMeta(start) + `\s*([A-Za-z_][A-Za-z0-9_]*)\s*` + regexp.QuoteMeta(end)
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, common.NewTemplateParseError(fmt.Sprintf("invalid delimiter pair %q %q", start, end), err)
	}
	return re, nil
}

// ExtractVariables returns the sorted set of free variable names referenced
// anywhere inside doc, using the given delimiter pair.
func ExtractVariables(doc any, start, end string) ([]string, error) {
	if start == "" {
		start = DefaultDelimiterStart
	}
	if end == "" {
		end = DefaultDelimiterEnd
	}

	serialized, err := json.Marshal(doc)
	if err != nil {
		return nil, common.NewTemplateParseError("serializing template body", err)
	}

	re, err := variablePattern(start, end)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var names []string
	for _, m := range re.FindAllStringSubmatch(string(serialized), -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}

	sort.Strings(names)
	return names, nil
}

// Render substitutes context values into doc and returns the resulting
// document. If the result is a string-keyed map, the caller's context is
// overlaid on top of it (context wins on collision) so ad hoc fields
// requested by the caller survive into the result even when the template
// body never references them.
func Render(doc any, context map[string]any, opts Options) (any, error) {
	opts.applyDefaults()
	if !opts.Undefined.Valid() {
		return nil, common.NewSchemaValidationError(fmt.Sprintf("unknown undefined-variable policy: %s", opts.Undefined))
	}

	serialized, err := json.Marshal(doc)
	if err != nil {
		return nil, common.NewTemplateParseError("serializing template body", err)
	}

	re, err := variablePattern(opts.Start, opts.End)
	if err != nil {
		return nil, err
	}

	substituted := re.ReplaceAllStringFunc(string(serialized), func(match string) string {
		name := re.FindStringSubmatch(match)[1]

		value, ok := context[name]
		if !ok {
			switch opts.Undefined {
			case PolicyShowTemplateVar:
				return match
			case PolicyRemove:
				return ""
			default:
				return uuid.NewString()
			}
		}
		return encodeValue(value)
	})

	var rendered any
	if err := json.Unmarshal([]byte(substituted), &rendered); err != nil {
		return nil, common.NewTemplateParseError("substituted template is not valid JSON", err)
	}

	if m, ok := rendered.(map[string]any); ok {
		for k, v := range context {
			m[k] = v
		}
	}

	return rendered, nil
}

// encodeValue turns a context value into substitution text. Strings are
// embedded as escaped string content (without the surrounding quotes) so
// they stay safe inside string leaves; every other value is embedded as
// its JSON encoding, which only survives the post-substitution parse when
// it lands in a structurally valid position.
func encodeValue(value any) string {
	if s, ok := value.(string); ok {
		quoted, err := json.Marshal(s)
		if err != nil {
			return s
		}
		return string(quoted[1 : len(quoted)-1])
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(encoded)
}
