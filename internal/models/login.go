package models

import (
	"fmt"
	"time"
)

// LoginState is the state of the QR-code login handshake
type LoginState string

const (
	LoginStateUnauthenticated  LoginState = "unauthenticated"
	LoginStateHandshakePending LoginState = "handshake_pending"
	LoginStateAuthenticated    LoginState = "authenticated"
	LoginStateExpired          LoginState = "expired"
)

// LoginStatus is the result of a status check
type LoginStatus struct {
	LoggedIn bool   `json:"is_logged_in"`
	Username string `json:"username"`
}

// Challenge is the scannable QR image shown during a handshake
type Challenge struct {
	MimeType string `json:"mime_type"` // e.g. "image/png"
	Base64   string `json:"base64"`    // payload with the data-URL prefix stripped
	Data     []byte `json:"-"`         // decoded image bytes
}

// HandshakeResult is returned by BeginHandshake without waiting for the scan
type HandshakeResult struct {
	LoggedIn  bool          `json:"is_logged_in"`
	Challenge *Challenge    `json:"challenge,omitempty"`
	Remaining time.Duration `json:"remaining"`
	Reused    bool          `json:"reused"`            // an already active handshake was returned
	Warning   string        `json:"warning,omitempty"` // set when the page showed neither a QR code nor a login indicator
}

// RemainingText formats the remaining budget as whole seconds rounded up, e.g. "240s"
func (r HandshakeResult) RemainingText() string {
	secs := int64(r.Remaining / time.Second)
	if r.Remaining%time.Second > 0 {
		secs++
	}
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%ds", secs)
}
