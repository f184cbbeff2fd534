// Package media holds the decoded-frame model and the codec seam
// between the negotiation engine's packet world and the per-frame
// transform pipeline.
package media

import "image"

// Rational is an exact time base (seconds per PTS tick).
type Rational struct {
	Num int64
	Den int64
}

// VideoTimeBase is the 90 kHz RTP video clock.
var VideoTimeBase = Rational{Num: 1, Den: 90000}

func (r Rational) Seconds(pts int64) float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(pts) * float64(r.Num) / float64(r.Den)
}

// Frame is one decoded video picture. Transient: produced per received
// sample, consumed and re-emitted by the transform stage. PTS and
// TimeBase travel with the pixels and must survive every transform
// untouched.
type Frame struct {
	Image    *image.RGBA
	PTS      int64
	TimeBase Rational
}

// PresentationSeconds is the frame's presentation time in seconds.
func (f *Frame) PresentationSeconds() float64 {
	return f.TimeBase.Seconds(f.PTS)
}
