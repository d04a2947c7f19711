// Package contract owns the summary schema and the rule set the validation
// agent enforces. The schema is versioned independently of the pipeline; the
// pipeline only consumes Check and ParseCandidate.
package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Version identifies the rule set in effect. Bump when caps or fields change.
const Version = "2024-06"

// Field caps, counted in runes.
const (
	MaxTitleLen      = 200
	MaxTLDRLen       = 600
	MaxSummary250Len = 250
	MaxKeyIdeas      = 10
	MaxKeyIdeaLen    = 200
	MaxTopicTags     = 10
	MaxTopicTagLen   = 64
	MaxEntities      = 20
	MaxEntityLen     = 120
)

// readingCharsPerMin approximates reading speed for the reading-time bound.
const readingCharsPerMin = 1000

// AllowedLanguages lists the ISO 639-1 codes a summary may declare.
var AllowedLanguages = []string{"de", "en", "es", "fr", "it", "pt", "ru"}

// Summary is the structured output the model must produce.
type Summary struct {
	Title                   string   `json:"title"`
	TLDR                    string   `json:"tldr"`
	Summary250              string   `json:"summary_250"`
	KeyIdeas                []string `json:"key_ideas"`
	TopicTags               []string `json:"topic_tags"`
	Entities                []string `json:"entities,omitempty"`
	Language                string   `json:"language"`
	EstimatedReadingTimeMin int      `json:"estimated_reading_time_min"`
}

// Violation describes a single failed rule on a candidate summary.
type Violation struct {
	FieldPath string `json:"field_path"`
	Rule      string `json:"rule"`
	Message   string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s [%s]: %s", v.FieldPath, v.Rule, v.Message)
}

// ParseCandidate decodes a model response into a Summary. It tolerates
// markdown code fences around the JSON but nothing else: any other shape
// problem is a parse error, which the validation agent reports as a crash.
func ParseCandidate(raw []byte) (Summary, error) {
	cleaned := stripFences(raw)
	if len(cleaned) == 0 {
		return Summary{}, fmt.Errorf("empty candidate")
	}
	var s Summary
	if err := json.Unmarshal(cleaned, &s); err != nil {
		return Summary{}, fmt.Errorf("candidate is not valid summary JSON: %w", err)
	}
	return s, nil
}

// stripFences removes a surrounding ```json ... ``` block if present.
// Models often wrap JSON in fences even when told not to.
func stripFences(data []byte) []byte {
	s := bytes.TrimSpace(data)
	if !bytes.HasPrefix(s, []byte("```")) {
		return s
	}
	if idx := bytes.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	}
	if bytes.HasSuffix(s, []byte("```")) {
		s = s[:len(s)-3]
	}
	return bytes.TrimSpace(s)
}

// Check runs every rule against the summary in a fixed order: required
// fields, size caps, enumerations, duplicate list members, then cross-field
// consistency against the source content length. The returned slice is
// deterministic for a given input.
func Check(s Summary, contentLength int) []Violation {
	var out []Violation

	// 1. required-field presence
	out = appendRequired(out, "title", s.Title)
	out = appendRequired(out, "tldr", s.TLDR)
	out = appendRequired(out, "summary_250", s.Summary250)
	if len(s.KeyIdeas) == 0 {
		out = append(out, Violation{"key_ideas", "required", "at least one key idea is required"})
	}
	if len(s.TopicTags) == 0 {
		out = append(out, Violation{"topic_tags", "required", "at least one topic tag is required"})
	}
	out = appendRequired(out, "language", s.Language)

	// 2. per-field length and size caps
	out = appendMaxLen(out, "title", s.Title, MaxTitleLen)
	out = appendMaxLen(out, "tldr", s.TLDR, MaxTLDRLen)
	out = appendMaxLen(out, "summary_250", s.Summary250, MaxSummary250Len)
	out = appendListCaps(out, "key_ideas", s.KeyIdeas, MaxKeyIdeas, MaxKeyIdeaLen)
	out = appendListCaps(out, "topic_tags", s.TopicTags, MaxTopicTags, MaxTopicTagLen)
	out = appendListCaps(out, "entities", s.Entities, MaxEntities, MaxEntityLen)

	// 3. enumerated-value membership
	if s.Language != "" && !languageAllowed(s.Language) {
		out = append(out, Violation{"language", "enum",
			fmt.Sprintf("language %q is not one of %s", s.Language, strings.Join(AllowedLanguages, ", "))})
	}

	// 4. duplicate list members, reported rather than normalized
	out = appendDuplicates(out, "topic_tags", s.TopicTags)
	out = appendDuplicates(out, "entities", s.Entities)

	// 5. cross-field consistency with the source text
	if maxMin := maxReadingMinutes(contentLength); s.EstimatedReadingTimeMin < 1 || s.EstimatedReadingTimeMin > maxMin {
		out = append(out, Violation{"estimated_reading_time_min", "range",
			fmt.Sprintf("estimated reading time %d is outside [1, %d] for content of %d chars",
				s.EstimatedReadingTimeMin, maxMin, contentLength)})
	}

	return out
}

func appendRequired(out []Violation, path, value string) []Violation {
	if strings.TrimSpace(value) == "" {
		out = append(out, Violation{path, "required", path + " is required"})
	}
	return out
}

func appendMaxLen(out []Violation, path, value string, max int) []Violation {
	if n := len([]rune(value)); n > max {
		out = append(out, Violation{path, "max_length",
			fmt.Sprintf("%s is %d chars, cap is %d", path, n, max)})
	}
	return out
}

func appendListCaps(out []Violation, path string, items []string, maxItems, maxItemLen int) []Violation {
	if len(items) > maxItems {
		out = append(out, Violation{path, "max_items",
			fmt.Sprintf("%s has %d items, cap is %d", path, len(items), maxItems)})
	}
	for i, item := range items {
		if n := len([]rune(item)); n > maxItemLen {
			out = append(out, Violation{fmt.Sprintf("%s[%d]", path, i), "max_length",
				fmt.Sprintf("item is %d chars, cap is %d", n, maxItemLen)})
		}
	}
	return out
}

// appendDuplicates flags every repeated member after its first occurrence.
// Comparison is case-insensitive and whitespace-trimmed; the caller decides
// whether to normalize and retry.
func appendDuplicates(out []Violation, path string, items []string) []Violation {
	seen := make(map[string]int, len(items))
	for i, item := range items {
		key := strings.ToLower(strings.TrimSpace(item))
		if first, ok := seen[key]; ok {
			out = append(out, Violation{fmt.Sprintf("%s[%d]", path, i), "duplicate",
				fmt.Sprintf("duplicates %s[%d] (%q)", path, first, item)})
			continue
		}
		seen[key] = i
	}
	return out
}

func languageAllowed(code string) bool {
	for _, l := range AllowedLanguages {
		if l == code {
			return true
		}
	}
	return false
}

// maxReadingMinutes bounds the plausible reading time for a text of the given
// length. Always at least 1 so a valid value exists for short content.
func maxReadingMinutes(contentLength int) int {
	m := contentLength/readingCharsPerMin + 2
	if m < 1 {
		m = 1
	}
	return m
}

// Instructions renders the schema for inclusion in a generation prompt.
func Instructions() string {
	return fmt.Sprintf(`Respond ONLY with valid JSON in the following format:
{
  "title": "article title, up to %d chars",
  "tldr": "one-paragraph takeaway, up to %d chars",
  "summary_250": "compressed summary, up to %d chars",
  "key_ideas": ["up to %d ideas, each up to %d chars"],
  "topic_tags": ["up to %d unique lowercase tags"],
  "entities": ["up to %d unique named entities"],
  "language": "ISO 639-1 code, one of: %s",
  "estimated_reading_time_min": 1
}
Do not include any other text, explanation, or markdown fences.
Lists must not contain duplicates.`,
		MaxTitleLen, MaxTLDRLen, MaxSummary250Len,
		MaxKeyIdeas, MaxKeyIdeaLen, MaxTopicTags, MaxEntities,
		strings.Join(AllowedLanguages, ", "))
}
