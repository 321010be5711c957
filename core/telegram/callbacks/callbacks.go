// Package callbacks decodes the data telebot packs into callback
// queries. Handlers registered for a specific unique receive a parsed
// Callback, but the generic OnCallback endpoint hands over the raw
// "\f<unique>|<payload>" string, so both shapes are handled here.
package callbacks

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Decode splits raw callback data into unique and payload. The leading
// form feed telebot prepends is stripped along with surrounding space.
func Decode(cb *tele.Callback) (unique, payload string) {
	if cb == nil {
		return "", ""
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	raw = strings.TrimPrefix(raw, `\f`)
	unique, payload, _ = strings.Cut(raw, "|")
	return strings.TrimSpace(unique), payload
}

// Split resolves unique and payload regardless of whether telebot has
// already consumed the prefix for a handler bound to the button. When
// Unique is set, Data holds only the payload.
func Split(cb *tele.Callback) (unique, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	return Decode(cb)
}

// CallbackKey resolves the unique used for routing.
func CallbackKey(c tele.Context) string {
	key, _ := Split(c.Callback())
	return key
}

// CallbackPayload extracts the payload part of the pressed button.
func CallbackPayload(c tele.Context) string {
	_, payload := Split(c.Callback())
	return payload
}

// PayloadParts splits the payload on sep. An empty payload is an error
// so handlers can bail out before indexing parts.
func PayloadParts(c tele.Context, sep string) ([]string, error) {
	payload := CallbackPayload(c)
	if payload == "" {
		return nil, strconv.ErrSyntax
	}
	return strings.Split(payload, sep), nil
}
