package signaling

import "net/http"

// Authorizer gates the WebSocket upgrade. Implementations extract and verify
// credentials from the upgrade request and return the username the
// connection is allowed to join as. An empty username means the client may
// join as any name.
type Authorizer interface {
	Authorize(r *http.Request) (username string, err error)
}

// NoopAuthorizer admits every connection and leaves the username to the
// join frame.
type NoopAuthorizer struct{}

func (NoopAuthorizer) Authorize(*http.Request) (string, error) { return "", nil }
