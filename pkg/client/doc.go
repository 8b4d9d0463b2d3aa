// Package client consumes the turn event stream.
//
// A Reconciler replays events into a transcript and an active responder,
// whichever binding carried them. VisualSync derives the graph highlight
// from active responder changes. HTTPBinding and SocketBinding are the two
// carriers; Conversation ties the chunked binding to a Reconciler with the
// upload-then-chat sequence.
package client
