package anthropic

import "strings"

// ExtractJSON strips a markdown code fence from model output, returning the
// raw JSON payload. Models frequently wrap structured output in ```json
// fences even when asked not to.
func ExtractJSON(text string) string {
	return stripFence(text, "json")
}

// ExtractHTML strips a markdown code fence from model output, returning the
// raw HTML payload.
func ExtractHTML(text string) string {
	return stripFence(text, "html")
}

func stripFence(text, lang string) string {
	s := strings.TrimSpace(text)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, lang)
		s = strings.TrimPrefix(s, "\n")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		return strings.TrimSpace(s)
	}

	// Fenced block embedded in surrounding prose.
	marker := "```" + lang
	if start := strings.Index(s, marker); start >= 0 {
		rest := s[start+len(marker):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}

	return s
}
