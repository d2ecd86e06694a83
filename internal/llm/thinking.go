package llm

import (
	"regexp"
	"strings"
)

var thinkPattern = regexp.MustCompile(`(?s)<think>(.*?)</think>(.*)`)

// ParseThinking splits a model response into its <think> block and the
// visible answer. Responses without a think block return empty thoughts
// and the trimmed output.
func ParseThinking(output string) (thoughts, answer string) {
	if output == "" {
		return "", ""
	}
	if m := thinkPattern.FindStringSubmatch(output); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return "", strings.TrimSpace(output)
}
