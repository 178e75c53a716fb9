// Package reply provides the deterministic, non-AI keyword replies used when
// no provider can answer. For returns a non-empty string for every input.
package reply

import "strings"

// DefaultReply is returned when no keyword matches.
const DefaultReply = "您好！我已收到您的訊息，會盡快回覆。"

// keywordReplies pairs a lowercase keyword with its canned reply. A slice
// keeps the match order deterministic.
var keywordReplies = []struct {
	keyword string
	reply   string
}{
	{"你好", "你好！有什麼可以幫您的嗎？"},
	{"hi", "Hi! How can I help you?"},
	{"再見", "再見，祝您有美好的一天！"},
	{"謝謝", "不客氣！"},
}

// For decides the reply for a user message. It never returns an empty
// string: blank input and unmatched input both get the fixed default.
func For(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return DefaultReply
	}
	lower := strings.ToLower(trimmed)
	for _, kr := range keywordReplies {
		if strings.Contains(lower, strings.ToLower(kr.keyword)) {
			return kr.reply
		}
	}
	return DefaultReply
}
