package evaluation

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

var fenceRe = regexp.MustCompile("(?s)```[ \t]*(?:json|JSON)?[ \t]*\\n?(.*?)```")

// resultSchema is the minimum an object must carry to be taken as an
// evaluation.
const resultSchema = `{
  "type": "object",
  "required": ["questionDetails", "totalScore"],
  "properties": {
    "questionDetails": {"type": "array"},
    "totalScore": {"type": ["number", "string"]}
  }
}`

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
)

func loadSchema() *gojsonschema.Schema {
	schemaOnce.Do(func() {
		s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(resultSchema))
		if err != nil {
			panic("evaluation: invalid result schema: " + err.Error())
		}
		schema = s
	})
	return schema
}

// extract finds the evaluation object in free text. It tries fenced code
// blocks, then the span from the first '{' to the last '}', then every
// balanced brace-delimited substring. A candidate is taken only when it
// satisfies resultSchema; otherwise the next one is tried.
func extract(raw string) (wireResult, bool) {
	for _, m := range fenceRe.FindAllStringSubmatch(raw, -1) {
		if r, ok := decode(m[1]); ok {
			return r, true
		}
	}

	if start, end := strings.IndexByte(raw, '{'), strings.LastIndexByte(raw, '}'); start >= 0 && end > start {
		if r, ok := decode(raw[start : end+1]); ok {
			return r, true
		}
	}

	for _, candidate := range braceSpans(raw) {
		if r, ok := decode(candidate); ok {
			return r, true
		}
	}
	return wireResult{}, false
}

func decode(s string) (wireResult, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return wireResult{}, false
	}
	res, err := loadSchema().Validate(gojsonschema.NewStringLoader(s))
	if err != nil || !res.Valid() {
		slog.Debug("evaluation candidate rejected", "reason", "schema", "error", err)
		return wireResult{}, false
	}
	var r wireResult
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		slog.Debug("evaluation candidate rejected", "error", err)
		return wireResult{}, false
	}
	return r, true
}

// braceSpans returns every balanced {...} substring of s, outermost first
// for each opening brace. Braces inside JSON strings are ignored.
func braceSpans(s string) []string {
	var spans []string
	for start := 0; start < len(s); start++ {
		if s[start] != '{' {
			continue
		}
		depth := 0
		inString, escaped := false, false
	scan:
		for i := start; i < len(s); i++ {
			c := s[i]
			switch {
			case escaped:
				escaped = false
			case inString && c == '\\':
				escaped = true
			case c == '"':
				inString = !inString
			case inString:
			case c == '{':
				depth++
			case c == '}':
				depth--
				if depth == 0 {
					spans = append(spans, s[start:i+1])
					break scan
				}
			}
		}
	}
	return spans
}
