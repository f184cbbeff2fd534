// Package vision implements the per-frame video effects applied
// between an inbound and an outbound track. Every transform is a pure
// function of one frame and must forward the input's PTS and time base
// verbatim.
package vision

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
	"github.com/anthonynsimon/bild/transform"

	"github.com/peerglass/peerglass/internal/media"
)

// Mode selects the effect applied to a session's video track.
type Mode string

const (
	ModeNone    Mode = "none"
	ModeCartoon Mode = "cartoon"
	ModeEdges   Mode = "edges"
	ModeRotate  Mode = "rotate"
)

// ParseMode maps the wire value of video_transform to a Mode. Absent
// and unknown values behave as ModeNone.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeCartoon, ModeEdges, ModeRotate:
		return Mode(s)
	default:
		return ModeNone
	}
}

const (
	// cartoon smoothing passes over the downsampled color layer
	cartoonSmoothPasses = 6
	cartoonSmoothSize   = 5
	cartoonMaskBlurSize = 7
	// adaptive threshold window radius and bias for the edge mask
	cartoonMaskRadius = 4
	cartoonMaskBias   = 2

	edgesRadius = 1.0
	edgesLevel  = 96

	rotateDegreesPerSecond = 45.0
)

// Apply runs one frame through the transform for mode. The returned
// frame has the same resolution, PTS and time base as the input.
// ModeNone returns the input frame itself.
func Apply(f *media.Frame, mode Mode) *media.Frame {
	switch mode {
	case ModeCartoon:
		return remake(f, cartoon(f.Image))
	case ModeEdges:
		return remake(f, edges(f.Image))
	case ModeRotate:
		return remake(f, rotate(f.Image, f.PresentationSeconds()))
	default:
		return f
	}
}

func remake(f *media.Frame, img *image.RGBA) *media.Frame {
	return &media.Frame{Image: img, PTS: f.PTS, TimeBase: f.TimeBase}
}

// cartoon combines a smoothed color layer with a binary edge mask.
// The color layer is built at quarter resolution and resampled back,
// so minor resampling artifacts are expected.
func cartoon(img *image.RGBA) *image.RGBA {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()

	smooth := transform.Resize(img, max(1, w/2), max(1, h/2), transform.Linear)
	smooth = transform.Resize(smooth, max(1, w/4), max(1, h/4), transform.Linear)
	for range cartoonSmoothPasses {
		smooth = effect.Median(smooth, cartoonSmoothSize)
	}
	smooth = transform.Resize(smooth, max(1, w/2), max(1, h/2), transform.Linear)
	smooth = transform.Resize(smooth, w, h, transform.Linear)

	gray := effect.Grayscale(img)
	gray = effect.Median(gray, cartoonMaskBlurSize)
	mask := adaptiveThreshold(gray, cartoonMaskRadius, cartoonMaskBias)

	out := image.NewRGBA(img.Bounds())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := smooth.PixOffset(x+smooth.Rect.Min.X, y+smooth.Rect.Min.Y)
			o := out.PixOffset(x+out.Rect.Min.X, y+out.Rect.Min.Y)
			m := mask.GrayAt(x+mask.Rect.Min.X, y+mask.Rect.Min.Y).Y
			out.Pix[o+0] = smooth.Pix[i+0] & m
			out.Pix[o+1] = smooth.Pix[i+1] & m
			out.Pix[o+2] = smooth.Pix[i+2] & m
			out.Pix[o+3] = 0xff
		}
	}
	return out
}

// edges produces a binary edge map broadcast back to three channels.
func edges(img *image.RGBA) *image.RGBA {
	e := effect.EdgeDetection(img, edgesRadius)
	bin := segment.Threshold(e, edgesLevel)
	return grayToRGB(bin)
}

// rotate spins the frame about its center at 45°/s of presentation
// time. The canvas keeps the source dimensions; content rotated out of
// bounds is clipped.
func rotate(img *image.RGBA, seconds float64) *image.RGBA {
	deg := rotateDegreesPerSecond * seconds
	if math.Mod(deg, 360) == 0 {
		return clone.AsRGBA(img)
	}
	return transform.Rotate(img, deg, &transform.RotationOptions{ResizeBounds: false})
}

// adaptiveThreshold binarizes a grayscale image against its local mean
// (box window of the given radius), minus a small bias. Pixels above
// the local mean stay white.
func adaptiveThreshold(img *image.RGBA, radius, bias int) *image.Gray {
	mean := blur.Box(img, float64(radius))
	out := image.NewGray(img.Bounds())
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px := int(img.Pix[img.PixOffset(x, y)])
			m := int(mean.Pix[mean.PixOffset(x, y)])
			if px > m-bias {
				out.SetGray(x, y, color.Gray{Y: 0xff})
			}
		}
	}
	return out
}

func grayToRGB(g *image.Gray) *image.RGBA {
	out := image.NewRGBA(g.Bounds())
	b := g.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := g.GrayAt(x, y).Y
			o := out.PixOffset(x, y)
			out.Pix[o+0] = v
			out.Pix[o+1] = v
			out.Pix[o+2] = v
			out.Pix[o+3] = 0xff
		}
	}
	return out
}
