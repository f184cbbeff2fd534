package record

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pion/rtp"
)

func TestBlackholeIsInert(t *testing.T) {
	t.Parallel()

	var s Sink = Blackhole{}
	if s.Enabled() {
		t.Error("blackhole reports enabled")
	}
	if err := s.Start(); err != nil {
		t.Errorf("Start: %v", err)
	}
	if err := s.WriteAudio(&rtp.Packet{}); err != nil {
		t.Errorf("WriteAudio: %v", err)
	}
	if err := s.WriteVideo(&rtp.Packet{}); err != nil {
		t.Errorf("WriteVideo: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestFileSinkLifecycle(t *testing.T) {
	t.Parallel()

	base := filepath.Join(t.TempDir(), "rec")
	s := NewFileSink(base)
	if !s.Enabled() {
		t.Error("file sink reports disabled")
	}

	// writes before Start are dropped
	if err := s.WriteAudio(&rtp.Packet{}); err != nil {
		t.Errorf("WriteAudio before Start: %v", err)
	}
	if _, err := os.Stat(base + ".ogg"); !os.IsNotExist(err) {
		t.Error("audio file created before Start")
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Error("second Start did not fail")
	}

	if err := s.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}

	// files are lazy: a session with no media leaves nothing behind
	if _, err := os.Stat(base + ".ogg"); !os.IsNotExist(err) {
		t.Error("empty audio file left behind")
	}
	if _, err := os.Stat(base + ".ivf"); !os.IsNotExist(err) {
		t.Error("empty video file left behind")
	}

	// writes after Stop are dropped, not errors
	if err := s.WriteVideo(&rtp.Packet{}); err != nil {
		t.Errorf("WriteVideo after Stop: %v", err)
	}
}

func TestFileSinkCreatesAudioFileOnFirstPacket(t *testing.T) {
	t.Parallel()

	base := filepath.Join(t.TempDir(), "rec")
	s := NewFileSink(base)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	pkt := &rtp.Packet{
		Header:  rtp.Header{Version: 2, PayloadType: 111, SequenceNumber: 1, Timestamp: 960},
		Payload: []byte{0xfc, 0xff, 0xfe},
	}
	if err := s.WriteAudio(pkt); err != nil {
		t.Fatalf("WriteAudio: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	info, err := os.Stat(base + ".ogg")
	if err != nil {
		t.Fatalf("audio file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("audio file is empty")
	}
}
