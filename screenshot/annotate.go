package screenshot

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/Godeaux/Godot-AI-Bridge/enginehost"
)

// annotation is one overlay-eligible node's screen-space marker (spec.md
// §4.5's collect_annotations contract).
type annotation struct {
	Ref        string
	Type       string
	ScreenX    int
	ScreenY    int
	HasRect    bool
	RectX      int
	RectY      int
	RectW      int
	RectH      int
}

// containerClasses are purely organizational classes skipped unless they
// carry script properties or text (spec.md §4.5's eligibility rule).
var containerClasses = map[string]bool{
	"Node": true, "Node2D": true, "Node3D": true, "Control": true,
}

// collectAnnotations walks the resolved root's subtree, producing one
// annotation per eligible node.
func (p *Pipeline) collectAnnotations(rootRef string) []annotation {
	root, ok := p.Engine.Resolve(rootRef)
	if !ok {
		root = p.Engine.Tree.Root()
	}
	if root == nil {
		return nil
	}

	vw, vh := 0, 0
	if p.Viewport != nil {
		vw, vh = p.Viewport.Size()
	}

	var out []annotation
	var walk func(n enginehost.Node)
	walk = func(n enginehost.Node) {
		if a, ok := p.annotationFor(n, vw, vh); ok {
			out = append(out, a)
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(root)
	return out
}

func (p *Pipeline) annotationFor(n enginehost.Node, vw, vh int) (annotation, bool) {
	if vr, ok := n.(interface{ Visible() bool }); ok && !vr.Visible() {
		return annotation{}, false
	}

	hasText := false
	if tn, ok := n.(enginehost.TextNode); ok && hasTextGate(n) {
		hasText = tn.Text() != ""
	}
	hasProps := len(n.ExportedProperties()) > 0

	if containerClasses[n.ClassName()] && !hasText && !hasProps {
		return annotation{}, false
	}

	ref := p.Engine.Refs.RefFor(n)

	if rn, ok := n.(enginehost.RectNode); ok && hasRect(n) {
		x, y, w, h := rn.GlobalRect()
		rect := image.Rect(int(x), int(y), int(x+w), int(y+h))
		if rect.Intersect(image.Rect(0, 0, vw, vh)).Empty() {
			return annotation{}, false
		}
		return annotation{Ref: ref, Type: n.ClassName(), ScreenX: int(x + w/2), ScreenY: int(y + h/2), HasRect: true, RectX: int(x), RectY: int(y), RectW: int(w), RectH: int(h)}, true
	}

	if sn, ok := n.(enginehost.SpatialNode); ok && hasSpatial(n) {
		x, y, z, is3D := sn.GlobalPosition()
		if !is3D {
			if x < 0 || y < 0 || int(x) > vw || int(y) > vh {
				return annotation{}, false
			}
			return annotation{Ref: ref, Type: n.ClassName(), ScreenX: int(x), ScreenY: int(y)}, true
		}
		project, ok := p.Viewport.ActiveCamera3D()
		if !ok {
			return annotation{}, false
		}
		sx, sy, behind := project(x, y, z)
		if behind || sx < 0 || sy < 0 || int(sx) > vw || int(sy) > vh {
			return annotation{}, false
		}
		return annotation{Ref: ref, Type: n.ClassName(), ScreenX: int(sx), ScreenY: int(sy)}, true
	}

	return annotation{}, false
}

func hasTextGate(n enginehost.Node) bool {
	if c, ok := n.(enginehost.TextCapable); ok {
		return c.HasText()
	}
	return true
}

// drawAnnotations renders an offscreen overlay surface the size of img and
// alpha-blends it on top (spec.md §4.5's annotation render stage: bounding
// outline, pill-shaped labeled ref, and a position dot).
func drawAnnotations(img *image.RGBA, annotations []annotation) {
	if len(annotations) == 0 {
		return
	}
	overlay := image.NewRGBA(img.Bounds())

	for _, a := range annotations {
		if a.HasRect {
			drawRectOutline(overlay, a.RectX, a.RectY, a.RectW, a.RectH, lineColor)
		}
		drawDot(overlay, a.ScreenX, a.ScreenY, dotColor)
		drawPillLabel(overlay, a.ScreenX, a.ScreenY, a.Ref)
	}

	draw.Draw(img, img.Bounds(), overlay, image.Point{}, draw.Over)
}

func drawRectOutline(img *image.RGBA, x, y, w, h int, c color.Color) {
	for i := x; i < x+w; i++ {
		setIfInBounds(img, i, y, c)
		setIfInBounds(img, i, y+h-1, c)
	}
	for j := y; j < y+h; j++ {
		setIfInBounds(img, x, j, c)
		setIfInBounds(img, x+w-1, j, c)
	}
}

func drawDot(img *image.RGBA, cx, cy int, c color.Color) {
	const r = 3
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				setIfInBounds(img, cx+dx, cy+dy, c)
			}
		}
	}
}

func drawPillLabel(img *image.RGBA, cx, cy int, label string) {
	if label == "" {
		return
	}
	face := basicfont.Face7x13
	textWidth := len(label) * 7
	const padX, padY = 6, 4
	const lineHeight = 13

	x0 := cx - textWidth/2 - padX
	y0 := cy - lineHeight/2 - padY - 14 // float the pill above the dot
	w := textWidth + padX*2
	h := lineHeight + padY*2

	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			setIfInBounds(img, x0+dx, y0+dy, pillColor)
		}
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(textColor),
		Face: face,
		Dot:  fixed.P(x0+padX, y0+padY+10),
	}
	drawer.DrawString(strings.TrimSpace(label))
}

func setIfInBounds(img *image.RGBA, x, y int, c color.Color) {
	if x < 0 || y < 0 || x >= img.Bounds().Dx() || y >= img.Bounds().Dy() {
		return
	}
	img.Set(x, y, c)
}
