package learning

import (
	"encoding/json"
	"strings"
	"unicode"
)

const codeFence = "```"

// ExtractAnalysis parses model output into an Analysis. A surrounding code
// fence and its language tag are removed first. Text that does not decode as
// a JSON object is kept verbatim in RawResponse, so the second return value
// reports which of the two outcomes happened.
func ExtractAnalysis(text string) (Analysis, bool) {
	cleaned := stripFence(text)

	var analysis Analysis
	if strings.HasPrefix(cleaned, "{") {
		if err := json.Unmarshal([]byte(cleaned), &analysis); err == nil {
			analysis.RawResponse = ""
			return analysis, true
		}
	}
	return Analysis{RawResponse: cleaned}, false
}

func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if body, ok := strings.CutPrefix(text, codeFence); ok {
		if end := strings.Index(body, codeFence); end >= 0 {
			body = body[:end]
		}
		text = dropLanguageTag(body)
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), codeFence)
	return strings.TrimSpace(text)
}

// dropLanguageTag removes a fence language tag such as json, JSON or jsonc
// from the start of a fenced body. A tag is a run of letters, digits, '-' or
// '+' ending the line or directly followed by the payload.
func dropLanguageTag(body string) string {
	end := strings.IndexFunc(body, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '+'
	})
	switch {
	case end < 0:
		return ""
	case end == 0:
		return body
	}
	rest := strings.TrimLeft(body[end:], " \t")
	if strings.HasPrefix(rest, "\n") || strings.HasPrefix(rest, "\r") || strings.HasPrefix(rest, "{") {
		return rest
	}
	return body
}
