package session

import "bytes"

// Datachannel echo micro-protocol markers. Custom-data messages come
// back verbatim; liveness checks come back with the marker swapped for
// its reply counterpart and the payload suffix untouched.
var (
	customMarker   = []byte("[custom]")
	livenessMarker = []byte("ping")
	livenessReply  = []byte("pong")
)

// EchoReply computes the reply for one datachannel text message.
// Messages matching neither marker are ignored (ok=false).
func EchoReply(msg []byte) ([]byte, bool) {
	switch {
	case bytes.HasPrefix(msg, customMarker):
		return msg, true
	case bytes.HasPrefix(msg, livenessMarker):
		reply := make([]byte, 0, len(livenessReply)+len(msg)-len(livenessMarker))
		reply = append(reply, livenessReply...)
		reply = append(reply, msg[len(livenessMarker):]...)
		return reply, true
	default:
		return nil, false
	}
}
