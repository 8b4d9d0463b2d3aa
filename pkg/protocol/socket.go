package protocol

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// TextFrame is the provider-native content shape pushed on the socket binding.
type TextFrame struct {
	Text string `json:"text" mapstructure:"text"`
}

// ClientFrame is what a socket client sends for each user message.
type ClientFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ClientMessage wraps user text in a ClientFrame.
func ClientMessage(content string) ClientFrame {
	return ClientFrame{Type: "message", Content: content}
}

// DecodeSocketPayload turns one socket payload into an event.
// Structured records are tried first, then {text} and [{text}] shapes.
// Anything else is literal text and becomes a message event.
func DecodeSocketPayload(data []byte) domain.Event {
	trimmed := bytes.TrimSpace(data)

	if ev, err := ParseFrame(trimmed); err == nil {
		return ev
	}

	var raw any
	if err := json.Unmarshal(trimmed, &raw); err == nil {
		if text, ok := decodeText(raw); ok {
			return domain.MessageEvent(text)
		}
	}
	return domain.MessageEvent(string(data))
}

func decodeText(raw any) (string, bool) {
	switch v := raw.(type) {
	case map[string]any:
		if _, ok := v["text"]; !ok {
			return "", false
		}
		var tf TextFrame
		if err := mapstructure.Decode(v, &tf); err != nil {
			return "", false
		}
		return tf.Text, true
	case []any:
		if len(v) == 0 {
			return "", false
		}
		var frames []TextFrame
		if err := mapstructure.Decode(v, &frames); err != nil {
			return "", false
		}
		var sb strings.Builder
		for i, f := range frames {
			if m, ok := v[i].(map[string]any); !ok || m["text"] == nil {
				return "", false
			}
			sb.WriteString(f.Text)
		}
		return sb.String(), true
	}
	return "", false
}
