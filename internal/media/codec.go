package media

import (
	"strings"
	"sync"

	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

// Codec turns encoded samples into frames and back. Encode must carry
// the frame's PTS through to the emitted sample. Implementations are
// external collaborators; the server only defines the seam and falls
// back to packet passthrough when no codec is registered for the
// negotiated MIME type.
type Codec interface {
	Decode(sample pionmedia.Sample) (*Frame, error)
	Encode(frame *Frame) (pionmedia.Sample, error)
	Close() error
}

// CodecFactory builds one codec instance per session track.
type CodecFactory func() (Codec, error)

var (
	codecRegistryMu sync.RWMutex
	codecRegistry   = make(map[string]CodecFactory)
)

// RegisterCodec makes a codec available for a MIME type (e.g.
// webrtc.MimeTypeVP8). Later registrations win, mirroring
// database/sql driver registration.
func RegisterCodec(mimeType string, f CodecFactory) {
	codecRegistryMu.Lock()
	defer codecRegistryMu.Unlock()
	codecRegistry[strings.ToLower(mimeType)] = f
}

// LookupCodec returns the registered factory for a MIME type.
func LookupCodec(mimeType string) (CodecFactory, bool) {
	codecRegistryMu.RLock()
	defer codecRegistryMu.RUnlock()
	f, ok := codecRegistry[strings.ToLower(mimeType)]
	return f, ok
}
