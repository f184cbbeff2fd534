// Package record wraps the media file writers behind a per-session
// sink with a start/stop lifecycle keyed to track lifetime.
package record

import (
	"fmt"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/rs/zerolog/log"
)

const (
	oggSampleRate   = 48000
	oggChannelCount = 2
)

// Sink receives a session's media for archival. Start is called once
// per session before track data can arrive; Stop at most once, after
// the last track has ended. Write calls before Start or after Stop are
// dropped.
type Sink interface {
	Start() error
	Stop() error
	WriteAudio(*rtp.Packet) error
	WriteVideo(*rtp.Packet) error
	Enabled() bool
}

// Blackhole is the sink used when recording is disabled: every
// lifecycle call is a no-op and never an error.
type Blackhole struct{}

func (Blackhole) Start() error                 { return nil }
func (Blackhole) Stop() error                  { return nil }
func (Blackhole) WriteAudio(*rtp.Packet) error { return nil }
func (Blackhole) WriteVideo(*rtp.Packet) error { return nil }
func (Blackhole) Enabled() bool                { return false }

// FileSink archives audio to <base>.ogg (Opus) and video to <base>.ivf
// (VP8). Files are created lazily on the first packet of each kind so
// an audio-only session does not leave an empty video file behind.
type FileSink struct {
	base string

	mu      sync.Mutex
	started bool
	stopped bool
	audio   *oggwriter.OggWriter
	video   *ivfwriter.IVFWriter
}

func NewFileSink(base string) *FileSink {
	return &FileSink{base: base}
}

func (s *FileSink) Enabled() bool { return true }

func (s *FileSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("record: sink already started")
	}
	s.started = true
	log.Info().Str("module", "record").Str("base", s.base).Msg("recording started")
	return nil
}

// Stop closes whatever writers were opened. Idempotent.
func (s *FileSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopped {
		return nil
	}
	s.stopped = true

	var firstErr error
	if s.audio != nil {
		if err := s.audio.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("record: close audio: %w", err)
		}
		s.audio = nil
	}
	if s.video != nil {
		if err := s.video.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("record: close video: %w", err)
		}
		s.video = nil
	}
	log.Info().Str("module", "record").Str("base", s.base).Msg("recording stopped")
	return firstErr
}

func (s *FileSink) WriteAudio(pkt *rtp.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopped {
		return nil
	}
	if s.audio == nil {
		w, err := oggwriter.New(s.base+".ogg", oggSampleRate, oggChannelCount)
		if err != nil {
			return fmt.Errorf("record: open audio writer: %w", err)
		}
		s.audio = w
	}
	return s.audio.WriteRTP(pkt)
}

func (s *FileSink) WriteVideo(pkt *rtp.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopped {
		return nil
	}
	if s.video == nil {
		w, err := ivfwriter.New(s.base + ".ivf")
		if err != nil {
			return fmt.Errorf("record: open video writer: %w", err)
		}
		s.video = w
	}
	return s.video.WriteRTP(pkt)
}
