package enrich

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"github.com/schoolcrm/enrichment/internal/core"
	"github.com/schoolcrm/enrichment/internal/domain/model"
)

// Classify task names sent to the model router.
const (
	TaskIntent      = "intent_classification"
	TaskBatchIntent = "batch_intent_classification"
)

var (
	// ErrNoJSON is returned when a model reply contains no JSON value of the expected kind.
	ErrNoJSON = errors.New("no JSON value in model output")
	// ErrInvalidClassification is returned when the JSON does not match the classification schema.
	ErrInvalidClassification = errors.New("classification does not match schema")
)

const classificationSchema = `{
  "type": "object",
  "required": ["intent", "stage"],
  "properties": {
    "intent": {"type": "string", "minLength": 1},
    "stage":  {"type": "string", "minLength": 1}
  }
}`

var classificationValidator = jsonschema.MustCompileString("classification.json", classificationSchema)

const intentSystemPrompt = `You classify messages sent to a school's admissions and parent chat.
Reply with a single JSON object {"intent": "...", "stage": "..."} and nothing else.
intent is a short snake_case label such as enrollment_question, tuition_question,
schedule_question, complaint, greeting or other.
stage is the funnel stage of the sender: lead, prospect, applicant, enrolled or unknown.`

const batchSystemPrompt = `You classify messages sent to a school's admissions and parent chat.
Each message is given on its own line as "[i] text".
Reply with a JSON array whose element i is {"intent": "...", "stage": "..."} for message [i],
in the same order, and nothing else.
intent is a short snake_case label such as enrollment_question, tuition_question,
schedule_question, complaint, greeting or other.
stage is the funnel stage of the sender: lead, prospect, applicant, enrolled or unknown.`

// IntentRequest builds the router request for one normalized text.
func IntentRequest(text string) core.ClassifyRequest {
	return core.ClassifyRequest{
		Task: TaskIntent,
		Messages: []core.ChatMessage{
			{Role: "system", Content: intentSystemPrompt},
			{Role: "user", Content: text},
		},
	}
}

// BatchIntentRequest builds one router request covering texts, numbered by position.
func BatchIntentRequest(texts []string) core.ClassifyRequest {
	var b strings.Builder
	for i, t := range texts {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%d] %s", i, t)
	}
	return core.ClassifyRequest{
		Task: TaskBatchIntent,
		Messages: []core.ChatMessage{
			{Role: "system", Content: batchSystemPrompt},
			{Role: "user", Content: b.String()},
		},
	}
}

// ParseClassification extracts {intent, stage} from a model reply. Code fences
// and surrounding prose are tolerated; the first JSON object is used.
func ParseClassification(content string) (model.Classification, error) {
	raw, ok := extractJSON(stripCodeFences(content), '{', '}')
	if !ok {
		return model.Classification{}, ErrNoJSON
	}
	return classificationFrom(gjson.Parse(raw))
}

// ParseBatchClassifications extracts a positional array of classifications.
// The result has length n; entries missing from the reply or not matching the
// schema are nil.
func ParseBatchClassifications(content string, n int) ([]*model.Classification, error) {
	raw, ok := extractJSON(stripCodeFences(content), '[', ']')
	if !ok {
		return nil, ErrNoJSON
	}
	arr := gjson.Parse(raw)
	if !arr.IsArray() {
		return nil, ErrNoJSON
	}

	out := make([]*model.Classification, n)
	for i, item := range arr.Array() {
		if i >= n {
			break
		}
		c, err := classificationFrom(item)
		if err != nil {
			continue
		}
		out[i] = &c
	}
	return out, nil
}

func classificationFrom(v gjson.Result) (model.Classification, error) {
	if !v.IsObject() {
		return model.Classification{}, ErrInvalidClassification
	}
	var doc any
	if err := json.Unmarshal([]byte(v.Raw), &doc); err != nil {
		return model.Classification{}, fmt.Errorf("%w: %w", ErrInvalidClassification, err)
	}
	if err := classificationValidator.Validate(doc); err != nil {
		return model.Classification{}, fmt.Errorf("%w: %w", ErrInvalidClassification, err)
	}
	c := model.Classification{
		Intent: strings.TrimSpace(v.Get("intent").String()),
		Stage:  strings.TrimSpace(v.Get("stage").String()),
	}
	if c.Intent == "" || c.Stage == "" {
		return model.Classification{}, ErrInvalidClassification
	}
	return c, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	body := s[start+3:]
	// Drop the opening fence line only when it holds a bare language tag.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && isFenceTag(body[:nl]) {
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func isFenceTag(s string) bool {
	return !strings.ContainsFunc(strings.TrimSpace(s), func(r rune) bool {
		return r != '_' && r != '-' && !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// extractJSON returns the first balanced open..close span of s, skipping
// brackets that appear inside JSON strings.
func extractJSON(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	for start >= 0 {
		if end, ok := matchBracket(s, start, open, close); ok {
			candidate := s[start : end+1]
			if gjson.Valid(candidate) {
				return candidate, true
			}
		}
		next := strings.IndexByte(s[start+1:], open)
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBracket(s string, start int, open, close byte) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
