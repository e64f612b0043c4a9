package parser

import (
	"regexp"
	"strings"
)

// BlankPlaceholder replaces every {answer} span in fill-blank text.
const BlankPlaceholder = "___"

var blankRe = regexp.MustCompile(`\{([^{}]*)\}`)

// extractBlanks returns text with each {answer} span replaced by the
// placeholder, and the captured answers in order of appearance.
func extractBlanks(text string) (string, []string) {
	var answers []string
	processed := blankRe.ReplaceAllStringFunc(text, func(span string) string {
		answers = append(answers, strings.TrimSpace(span[1:len(span)-1]))
		return BlankPlaceholder
	})
	return processed, answers
}
