// Package client is the Go-side call client: a signaling connection plus a
// peer connection manager that allows exactly one active call at a time.
package client

import (
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

// NewAPI builds the shared pion API. Verbose pion internals are kept at
// warning level so application logs stay readable.
func NewAPI(debug bool) *webrtc.API {
	factory := logging.NewDefaultLoggerFactory()
	if debug {
		factory.DefaultLogLevel = logging.LogLevelDebug
	} else {
		factory.DefaultLogLevel = logging.LogLevelWarn
	}

	se := webrtc.SettingEngine{LoggerFactory: factory}
	return webrtc.NewAPI(webrtc.WithSettingEngine(se))
}
