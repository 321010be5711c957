// Package keyboard builds the small set of reply markups the bot uses.
package keyboard

import tele "gopkg.in/telebot.v4"

const cancelLabel = "❌ Cancel"

// ForceReply makes the next user message arrive as a reply, which is
// how the URL prompt ties the answer back to the request.
func ForceReply() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{ForceReply: true}
}

// CancelButton attaches an inline cancel button carrying payload to
// markup under the given callback action.
func CancelButton(markup *tele.ReplyMarkup, action, payload string) tele.Btn {
	if payload == "" {
		payload = "cancel"
	}
	return markup.Data(cancelLabel, action, payload)
}

// SingleCancelMarkup is the one-button keyboard attached to progress
// messages so a running download can be aborted.
func SingleCancelMarkup(action, payload string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	btn := CancelButton(markup, action, payload)
	markup.InlineKeyboard = [][]tele.InlineButton{{*btn.Inline()}}
	return markup
}
