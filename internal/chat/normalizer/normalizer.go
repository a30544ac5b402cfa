// internal/chat/normalizer/normalizer.go
package normalizer

import (
	"strings"

	"answer-gateway/internal/completion"
	"answer-gateway/internal/models"
)

// PlaceholderText is returned when a response carries no extractable text.
const PlaceholderText = "No answer was produced."

const fileCitationType = "file_citation"

type Normalized struct {
	Text      string
	Citations []models.Citation
}

// Normalize never fails. The flattened output_text wins when present;
// otherwise text blocks are joined with newlines in document order. Citations
// are collected from every block independently of which text source won.
func Normalize(raw completion.RawResponse) Normalized {
	blocks := contentBlocks(raw)

	text := strings.TrimSpace(stringField(raw, "output_text"))
	if text == "" {
		parts := make([]string, 0, len(blocks))
		for _, b := range blocks {
			if t := blockText(b); strings.TrimSpace(t) != "" {
				parts = append(parts, t)
			}
		}
		text = strings.TrimSpace(strings.Join(parts, "\n"))
	}
	if text == "" {
		text = PlaceholderText
	}

	return Normalized{Text: text, Citations: collectCitations(blocks)}
}

// contentBlocks returns every content block under output[*].content[*]
// followed by top-level content[*].
func contentBlocks(raw completion.RawResponse) []map[string]interface{} {
	var blocks []map[string]interface{}
	for _, item := range objects(raw["output"]) {
		blocks = append(blocks, objects(item["content"])...)
	}
	blocks = append(blocks, objects(raw["content"])...)
	return blocks
}

func blockText(block map[string]interface{}) string {
	switch t := block["text"].(type) {
	case string:
		return t
	case map[string]interface{}:
		return stringField(t, "value")
	}
	return ""
}

func blockAnnotations(block map[string]interface{}) []map[string]interface{} {
	anns := objects(block["annotations"])
	if t, ok := block["text"].(map[string]interface{}); ok {
		anns = append(anns, objects(t["annotations"])...)
	}
	return anns
}

func collectCitations(blocks []map[string]interface{}) []models.Citation {
	citations := []models.Citation{}
	seen := make(map[string]bool)

	for _, b := range blocks {
		for _, ann := range blockAnnotations(b) {
			nested, _ := ann["file_citation"].(map[string]interface{})
			if stringField(ann, "type") != fileCitationType && nested == nil {
				continue
			}

			id := firstNonEmpty(stringField(ann, "file_id"), stringField(nested, "file_id"))
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true

			name := firstNonEmpty(stringField(ann, "filename"), stringField(nested, "filename"))
			if name == "" {
				name = models.PlaceholderName(id)
			}
			citations = append(citations, models.Citation{
				SourceID:    id,
				DisplayName: name,
				Preview:     firstNonEmpty(stringField(ann, "quote"), stringField(nested, "quote")),
			})
		}
	}
	return citations
}

// Wrap builds the simplest raw response that normalizes to n.
func Wrap(n Normalized) completion.RawResponse {
	anns := make([]interface{}, 0, len(n.Citations))
	for _, c := range n.Citations {
		ann := map[string]interface{}{
			"type":    fileCitationType,
			"file_id": c.SourceID,
		}
		if !c.HasPlaceholderName() {
			ann["filename"] = c.DisplayName
		}
		if c.Preview != "" {
			ann["quote"] = c.Preview
		}
		anns = append(anns, ann)
	}

	return completion.RawResponse{
		"output_text": n.Text,
		"output": []interface{}{
			map[string]interface{}{
				"type": "message",
				"content": []interface{}{
					map[string]interface{}{
						"type":        "output_text",
						"text":        n.Text,
						"annotations": anns,
					},
				},
			},
		},
	}
}

func objects(v interface{}) []map[string]interface{} {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func stringField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
