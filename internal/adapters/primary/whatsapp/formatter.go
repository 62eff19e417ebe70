package whatsapp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const boldMark = "\x01"

var (
	codeFenceRegex  = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\n?(.*?)```")
	codeTokenRegex  = regexp.MustCompile("\x00(\\d+)\x00")
	headingRegex    = regexp.MustCompile(`(?m)^#{1,6}\s+(.+?)\s*#*\s*$`)
	strongRegex     = regexp.MustCompile(`\*\*([^*\n]+)\*\*|__([^_\n]+)__`)
	bulletRegex     = regexp.MustCompile(`(?m)^(\s*)[-*+]\s+`)
	emphasisRegex   = regexp.MustCompile(`\*([^*\n]+)\*`)
	strikeRegex     = regexp.MustCompile(`~~([^~\n]+)~~`)
	linkRegex       = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	extraBlankRegex = regexp.MustCompile(`\n{3,}`)
)

// WhatsAppFormatter converts the markdown an LLM tends to produce into
// WhatsApp's own markup
type WhatsAppFormatter struct{}

// NewWhatsAppFormatter creates a new WhatsApp message formatter
func NewWhatsAppFormatter() *WhatsAppFormatter {
	return &WhatsAppFormatter{}
}

// Format rewrites headings and **bold** as *bold*, *emphasis* as _emphasis_,
// ~~strike~~ as ~strike~, list bullets as •, and [text](url) as "text (url)".
// Code blocks are kept verbatim without their language tag.
func (f *WhatsAppFormatter) Format(message string) string {
	var blocks []string
	result := codeFenceRegex.ReplaceAllStringFunc(message, func(match string) string {
		body := codeFenceRegex.FindStringSubmatch(match)[1]
		blocks = append(blocks, "```"+strings.TrimRight(body, "\n")+"```")
		return fmt.Sprintf("\x00%d\x00", len(blocks)-1)
	})

	result = headingRegex.ReplaceAllString(result, boldMark+"$1"+boldMark)
	result = strongRegex.ReplaceAllStringFunc(result, func(match string) string {
		sub := strongRegex.FindStringSubmatch(match)
		inner := sub[1]
		if inner == "" {
			inner = sub[2]
		}
		return boldMark + inner + boldMark
	})
	result = bulletRegex.ReplaceAllString(result, "${1}• ")
	result = emphasisRegex.ReplaceAllString(result, "_${1}_")
	result = strikeRegex.ReplaceAllString(result, "~${1}~")
	result = linkRegex.ReplaceAllString(result, "$1 ($2)")
	result = strings.ReplaceAll(result, boldMark, "*")

	result = codeTokenRegex.ReplaceAllStringFunc(result, func(token string) string {
		i, err := strconv.Atoi(strings.Trim(token, "\x00"))
		if err != nil || i >= len(blocks) {
			return token
		}
		return blocks[i]
	})

	result = extraBlankRegex.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}
