package llm

import "strings"

// ExtractJSON pulls the JSON object out of raw model output. It tolerates
// markdown code fences and leading or trailing prose around the object.
// Returns an empty string when no braces are found.
func ExtractJSON(raw string) string {
	cleaned := stripCodeFences(raw)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end < start {
		return ""
	}
	return cleaned[start : end+1]
}

// stripCodeFences removes markdown code fence markers (```json ... ```),
// keeping the fenced content itself.
func stripCodeFences(s string) string {
	var result []string
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		result = append(result, line)
	}
	return strings.Join(result, "\n")
}
