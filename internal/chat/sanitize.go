package chat

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/wolfman30/discovery-widget/internal/leads"
)

var leadInfoBlockRE = regexp.MustCompile(`(?s)<lead_info>\s*(.*?)\s*</lead_info>`)

// splitLeadInfo removes every <lead_info>{json}</lead_info> block from text
// and returns the cleaned reply with the fields of the last parsable block.
// An unterminated trailing block is dropped.
func splitLeadInfo(text string) (string, leads.Info) {
	var info leads.Info
	for _, m := range leadInfoBlockRE.FindAllStringSubmatch(text, -1) {
		var parsed leads.Info
		if err := json.Unmarshal([]byte(m[1]), &parsed); err == nil {
			info = parsed
		}
	}
	cleaned := leadInfoBlockRE.ReplaceAllString(text, "")
	if idx := strings.Index(cleaned, "<lead_info>"); idx >= 0 {
		cleaned = cleaned[:idx]
	}
	return strings.TrimSpace(cleaned), info
}

// stripEmoji drops the pictograph, misc-symbol and dingbat ranges.
func stripEmoji(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 0x1F300 && r <= 0x1F9FF,
			r >= 0x2600 && r <= 0x26FF,
			r >= 0x2700 && r <= 0x27BF:
			return -1
		}
		return r
	}, text)
}
