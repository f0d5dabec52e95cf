// Package signaling implements the WebSocket relay used by call clients:
// presence tracking, verbatim offer/answer/candidate forwarding, call
// teardown fan-out, chat and media-sync broadcasts.
package signaling
