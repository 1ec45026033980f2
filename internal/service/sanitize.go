package service

import (
	"regexp"
	"strings"
)

// Prompt-injection override phrases stripped from user input before it is
// sent to the model.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|above|prior)\s+instructions?`),
	regexp.MustCompile(`(?i)forget\s+(all\s+)?(previous|above|prior)\s+instructions?`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|above|prior)\s+instructions?`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+`),
	regexp.MustCompile(`(?i)act\s+as\s+(if\s+you\s+are\s+)?`),
	regexp.MustCompile(`(?i)pretend\s+(to\s+be|you\s+are)\s+`),
	regexp.MustCompile(`(?i)system\s*:\s*`),
	regexp.MustCompile(`(?i)assistant\s*:\s*`),
	regexp.MustCompile(`(?i)user\s*:\s*`),
}

// SanitizeMessage truncates to maxLength and strips override phrases.
func SanitizeMessage(input string, maxLength int) string {
	if input == "" {
		return ""
	}
	if len(input) > maxLength {
		input = input[:maxLength]
	}
	for _, pattern := range injectionPatterns {
		input = pattern.ReplaceAllString(input, "")
	}
	return strings.TrimSpace(input)
}

// SanitizeJobDescription applies the same stripping with the larger
// job-description length cap.
func SanitizeJobDescription(input string, maxLength int) string {
	return SanitizeMessage(input, maxLength)
}
