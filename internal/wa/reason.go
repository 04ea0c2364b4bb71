package wa

import (
	"go.mau.fi/whatsmeow/types/events"
)

// CloseReason classifies why a session's socket closed. The reason decides
// whether the session reconnects, purges its credentials, or gives up.
type CloseReason string

const (
	ReasonLoggedOut          CloseReason = "logged-out"
	ReasonSessionExpired     CloseReason = "session-expired"
	ReasonConnectionClosed   CloseReason = "connection-closed"
	ReasonConnectionLost     CloseReason = "connection-lost"
	ReasonConnectionReplaced CloseReason = "connection-replaced"
	ReasonTimedOut           CloseReason = "timed-out"
	ReasonBadSession         CloseReason = "bad-session"
	ReasonRestartRequired    CloseReason = "restart-required"
	ReasonUnknown            CloseReason = "unknown"
)

const loggedOutStatusCode = 401

// classifyClose maps a disconnect-style event to a close reason and whether
// the stored credentials must be purged before the next pairing.
func classifyClose(evt interface{}) (CloseReason, bool) {
	switch v := evt.(type) {
	case *events.LoggedOut:
		return ReasonLoggedOut, true
	case *events.StreamReplaced:
		return ReasonConnectionReplaced, false
	case *events.KeepAliveTimeout:
		return ReasonTimedOut, false
	case *events.ClientOutdated:
		return ReasonRestartRequired, false
	case *events.TemporaryBan:
		return ReasonBadSession, false
	case *events.ConnectFailure:
		if int(v.Reason) == loggedOutStatusCode {
			return ReasonSessionExpired, true
		}
		return ReasonConnectionClosed, false
	case *events.Disconnected:
		return ReasonConnectionLost, false
	}
	return ReasonUnknown, false
}

// isConnectedEvent reports whether evt marks the socket as open.
func isConnectedEvent(evt interface{}) bool {
	_, ok := evt.(*events.Connected)
	return ok
}

// isCloseEvent reports whether evt is one of the lifecycle events handled by
// classifyClose.
func isCloseEvent(evt interface{}) bool {
	switch evt.(type) {
	case *events.LoggedOut, *events.StreamReplaced, *events.KeepAliveTimeout,
		*events.ClientOutdated, *events.TemporaryBan, *events.ConnectFailure,
		*events.Disconnected:
		return true
	}
	return false
}
