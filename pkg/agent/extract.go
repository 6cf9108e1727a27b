package agent

import "strings"

// extractScript pulls the first fenced code block out of a model
// response, generalizing pkg/orchestra/worker.go's parseChanges "### File:"
// markdown-section parsing into
// "### Script:"-free fenced-block extraction: a script response is a
// single ```lua (or unlabeled) block rather than a sequence of per-file
// sections. A response with no fence is treated as already being bare
// script source, so a terse model reply still runs.
func extractScript(text string) string {
	const fence = "```"
	start := strings.Index(text, fence)
	if start < 0 {
		return strings.TrimSpace(text)
	}

	rest := text[start+len(fence):]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}

	end := strings.Index(rest, fence)
	if end < 0 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}
