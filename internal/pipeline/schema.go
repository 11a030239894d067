package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/pai-courses/internal/textclean"
)

const (
	minLessons = 3
	maxLessons = 5
)

var titleSchema = map[string]any{"type": "string", "minLength": 1}

func indexSchema(numSubtopics int) map[string]any {
	lesson := map[string]any{
		"type":     "object",
		"required": []string{"title"},
		"properties": map[string]any{
			"title":        titleSchema,
			"titleEnglish": map[string]any{"type": "string"},
		},
	}
	subtopic := map[string]any{
		"type":     "object",
		"required": []string{"title", "lessons"},
		"properties": map[string]any{
			"title":        titleSchema,
			"titleEnglish": map[string]any{"type": "string"},
			"lessons": map[string]any{
				"type":     "array",
				"minItems": minLessons,
				"maxItems": maxLessons,
				"items":    lesson,
			},
		},
	}
	return map[string]any{
		"type":     "object",
		"required": []string{"subtopics"},
		"properties": map[string]any{
			"subtopics": map[string]any{
				"type":     "array",
				"minItems": numSubtopics,
				"maxItems": numSubtopics,
				"items":    subtopic,
			},
		},
	}
}

var quizSchema = gojsonschema.NewGoLoader(map[string]any{
	"type":     "object",
	"required": []string{"questions"},
	"properties": map[string]any{
		"questions": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":     "object",
				"required": []string{"question", "options", "correctAnswer"},
				"properties": map[string]any{
					"question": titleSchema,
					"options": map[string]any{
						"type":     "array",
						"minItems": 4,
						"maxItems": 4,
						"items":    titleSchema,
					},
					"correctAnswer": titleSchema,
				},
			},
		},
	},
})

// decodeStrict extracts the JSON value from model output, validates it
// against schema and decodes it into v. Any failure is ErrMalformedGeneration.
func decodeStrict(output string, schema gojsonschema.JSONLoader, v any) error {
	raw := textclean.ExtractJSON(output)

	result, err := gojsonschema.Validate(schema, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedGeneration, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrMalformedGeneration, strings.Join(msgs, "; "))
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedGeneration, err)
	}
	return nil
}
