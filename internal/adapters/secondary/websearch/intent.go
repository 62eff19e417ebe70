package websearch

import (
	"strings"
	"unicode"

	"github.com/vibin/wa-bridge/internal/logger"
)

// detectIntent reports whether message contains one of keywords.
// Single-word keywords must match a whole word, phrases match as substrings.
func detectIntent(keywords []string, message string, log logger.Logger) bool {
	lower := strings.ToLower(message)
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = struct{}{}
	}

	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if strings.ContainsRune(keyword, ' ') {
			if strings.Contains(lower, keyword) {
				return true
			}
			continue
		}
		if _, ok := words[keyword]; ok {
			log.Debug("Search intent detected", "keyword", keyword)
			return true
		}
	}
	return false
}
