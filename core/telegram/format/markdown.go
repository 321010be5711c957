package format

import (
	"fmt"
	"strings"
)

// Telegram formatting modes.
const (
	MarkdownV1 = 1
	MarkdownV2 = 2
)

var (
	mdV1Escaper = newEscaper("_*[`")
	mdV2Escaper = newEscaper("_*[]()~`>#+-=|{}.!")
)

func newEscaper(specials string) *strings.Replacer {
	pairs := make([]string, 0, len(specials)*2)
	for _, r := range specials {
		pairs = append(pairs, string(r), `\`+string(r))
	}
	return strings.NewReplacer(pairs...)
}

// EscapeMarkdown escapes text for the requested Telegram markdown
// version so arbitrary video titles survive formatted replies.
func EscapeMarkdown(text string, version int) (string, error) {
	switch version {
	case MarkdownV1:
		return mdV1Escaper.Replace(text), nil
	case MarkdownV2:
		return mdV2Escaper.Replace(text), nil
	}
	return "", fmt.Errorf("unsupported markdown version: %d", version)
}
