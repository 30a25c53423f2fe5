// Package screenshot implements spec.md §4.5: capture -> annotate -> resize
// -> budget-adaptive JPEG encode.
package screenshot

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	ximagedraw "golang.org/x/image/draw"

	"github.com/Godeaux/Godot-AI-Bridge/enginehost"
	"github.com/Godeaux/Godot-AI-Bridge/snapshot"
)

// MaxBase64Length bounds the encoded response size (spec.md §4.5's budget
// adaptation).
const MaxBase64Length = 1_500_000

const qualityStep = 0.15
const qualityFloor = 0.2

// Result is spec.md §4.5's capture response shape.
type Result struct {
	ImageBase64 string  `json:"image"`
	Mime        string  `json:"mime"`
	Width       int     `json:"-"`
	Height      int     `json:"-"`
	Context     string  `json:"context,omitempty"`
	Frame       uint64  `json:"frame"`
	Timestamp   float64 `json:"timestamp"`
	Quality     float64 `json:"-"`
}

// Size reports the capture's resolved dimensions as spec.md §4.5's [w,h]
// pair; it is what the JSON "size" field is derived from (MarshalJSON
// below), since Width/Height themselves stay unexported from the wire shape
// to keep a single source of truth.
func (r Result) Size() [2]int { return [2]int{r.Width, r.Height} }

// MarshalJSON emits Result per spec.md §4.5's contract, adding the
// computed "size" pair alongside the struct's own tagged fields.
func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	return json.Marshal(struct {
		alias
		Size [2]int `json:"size"`
	}{alias: alias(r), Size: r.Size()})
}

// Pipeline bundles what Capture needs from one live host session.
type Pipeline struct {
	Viewport enginehost.Viewport
	Clock    enginehost.Clock
	Engine   *snapshot.Engine
}

// Capture runs the full pipeline: acquire, optionally annotate, resize,
// encode with budget adaptation (spec.md §4.5's five stages).
func (p *Pipeline) Capture(width, height int, quality float64, annotate bool, rootRef string) (Result, error) {
	pixels, vw, vh, ok := p.Viewport.CaptureRGBA()
	if !ok {
		return Result{}, fmt.Errorf("screenshot: no captured frame available yet")
	}

	img := rgbaToImage(pixels, vw, vh)

	if annotate {
		annotations := p.collectAnnotations(rootRef)
		drawAnnotations(img, annotations)
	}

	if width <= 0 {
		width = vw
	}
	if height <= 0 {
		height = vh
	}
	resized := resize(img, width, height)

	return p.encodeWithBudget(resized, quality)
}

// CaptureNode crops around one node's screen-space rectangle (spec.md
// §4.5's node-focused crop rule) before running the resize/encode stages.
func (p *Pipeline) CaptureNode(ref string, width, height int, quality float64) (Result, error) {
	pixels, vw, vh, ok := p.Viewport.CaptureRGBA()
	if !ok {
		return Result{}, fmt.Errorf("screenshot: no captured frame available yet")
	}
	img := rgbaToImage(pixels, vw, vh)

	rect, err := p.nodeScreenRect(ref, vw, vh)
	if err != nil {
		return Result{}, err
	}
	if rect.Empty() {
		return Result{}, fmt.Errorf("screenshot: node %q has an empty or off-screen rect", ref)
	}

	cropped := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(cropped, cropped.Bounds(), img, rect.Min, draw.Src)

	if width <= 0 {
		width = rect.Dx()
	}
	if height <= 0 {
		height = rect.Dy()
	}
	resized := resize(cropped, width, height)

	result, err := p.encodeWithBudget(resized, quality)
	if err != nil {
		return Result{}, err
	}
	result.Context = ref
	return result, nil
}

func (p *Pipeline) nodeScreenRect(ref string, vw, vh int) (image.Rectangle, error) {
	node, ok := p.Engine.Resolve(ref)
	if !ok {
		return image.Rectangle{}, fmt.Errorf("screenshot: no node for ref/path %q", ref)
	}

	const pad = 8
	if rn, ok := node.(enginehost.RectNode); ok && hasRect(node) {
		x, y, w, h := rn.GlobalRect()
		rect := image.Rect(int(x)-pad, int(y)-pad, int(x+w)+pad, int(y+h)+pad)
		return rect.Intersect(image.Rect(0, 0, vw, vh)), nil
	}

	if sn, ok := node.(enginehost.SpatialNode); ok && hasSpatial(node) {
		x, y, z, is3D := sn.GlobalPosition()
		const half = 48
		if !is3D {
			rect := image.Rect(int(x)-half, int(y)-half, int(x)+half, int(y)+half)
			return rect.Intersect(image.Rect(0, 0, vw, vh)), nil
		}
		project, ok := p.Viewport.ActiveCamera3D()
		if !ok {
			return image.Rectangle{}, fmt.Errorf("screenshot: no active 3D camera to project node %q", ref)
		}
		sx, sy, behind := project(x, y, z)
		if behind {
			return image.Rectangle{}, fmt.Errorf("screenshot: node %q is behind the active 3D camera", ref)
		}
		rect := image.Rect(int(sx)-half, int(sy)-half, int(sx)+half, int(sy)+half)
		return rect.Intersect(image.Rect(0, 0, vw, vh)), nil
	}

	return image.Rectangle{}, fmt.Errorf("screenshot: node %q has no screen-space geometry", ref)
}

func hasRect(n enginehost.Node) bool {
	if c, ok := n.(enginehost.RectCapable); ok {
		return c.HasRect()
	}
	return true
}

func hasSpatial(n enginehost.Node) bool {
	if c, ok := n.(enginehost.SpatialCapable); ok {
		return c.HasSpatial()
	}
	return true
}

// encodeWithBudget encodes img as JPEG at quality, stepping quality down by
// qualityStep to qualityFloor until the base64 length is within
// MaxBase64Length or the floor is reached (spec.md §4.5's budget
// adaptation).
func (p *Pipeline) encodeWithBudget(img image.Image, quality float64) (Result, error) {
	if quality <= 0 {
		quality = 0.85
	}

	var encoded []byte
	q := quality
	for {
		buf := &bytes.Buffer{}
		if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: int(q * 100)}); err != nil {
			return Result{}, fmt.Errorf("screenshot: jpeg encode: %w", err)
		}
		encoded = buf.Bytes()
		b64Len := base64.StdEncoding.EncodedLen(len(encoded))
		if b64Len <= MaxBase64Length || q <= qualityFloor {
			break
		}
		q -= qualityStep
		if q < qualityFloor {
			q = qualityFloor
		}
	}

	bounds := img.Bounds()
	frame := uint64(0)
	timestamp := 0.0
	if p.Clock != nil {
		frame = p.Clock.Frame()
		timestamp = p.Clock.Time()
	}

	return Result{
		ImageBase64: base64.StdEncoding.EncodeToString(encoded),
		Mime:        "image/jpeg",
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Frame:       frame,
		Timestamp:   timestamp,
		Quality:     q,
	}, nil
}

func rgbaToImage(pixels []byte, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	copy(img.Pix, pixels)
	return img
}

// resize uses golang.org/x/image/draw's CatmullRom scaler, a high-quality
// interpolating filter, matching spec.md §4.5's resize stage.
func resize(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	ximagedraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), ximagedraw.Over, nil)
	return dst
}

// pillColor and dotColor are the annotation overlay's palette.
var (
	pillColor = color.RGBA{0, 0, 0, 180}
	textColor = color.RGBA{255, 255, 255, 255}
	dotColor  = color.RGBA{255, 64, 64, 255}
	lineColor = color.RGBA{64, 200, 255, 255}
)
