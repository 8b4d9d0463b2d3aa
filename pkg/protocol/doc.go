// Package protocol implements the turn event stream on the wire.
//
// The chunked binding carries one JSON record per line (NDJSON). The socket
// binding carries one payload per message, which may be a structured record,
// a provider-native {text} shape, or plain text.
package protocol
