package domain

import (
	"regexp"
	"strings"
)

const attachmentPrefix = "[Attachment: "

var attachmentPattern = regexp.MustCompile(`(?m)^\[Attachment: ([^\]\n]+)\]\s*$`)

// AnnotateAttachment embeds an attachment reference into a chat message so the
// reasoning engine can locate the uploaded file. The reference is kept verbatim.
func AnnotateAttachment(message, ref string) string {
	if ref == "" {
		return message
	}
	annotation := attachmentPrefix + ref + "]"
	if strings.TrimSpace(message) == "" {
		return annotation
	}
	return message + "\n\n" + annotation
}

// ExtractAttachment returns the message text without its annotation and the
// embedded reference, if any.
func ExtractAttachment(message string) (text, ref string) {
	m := attachmentPattern.FindStringSubmatchIndex(message)
	if m == nil {
		return message, ""
	}
	ref = message[m[2]:m[3]]
	text = strings.TrimSpace(message[:m[0]] + message[m[1]:])
	return text, ref
}
