package layout

import "image"

// Rect is an axis aligned pixel region. Rects stored in a VirtualGroup are
// device-local; Offset produces canvas coordinates.
type Rect struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
	W int `yaml:"w" json:"w"`
	H int `yaml:"h" json:"h"`
}

func R(x, y, w, h int) Rect { return Rect{X: x, Y: y, W: w, H: h} }

// Offset returns r translated by p. The receiver is left untouched.
func (r Rect) Offset(p image.Point) Rect {
	r.X += p.X
	r.Y += p.Y
	return r
}

func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Image converts r to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// In reports whether r lies fully inside a w x h area anchored at the origin.
func (r Rect) In(w, h int) bool {
	return r.X >= 0 && r.Y >= 0 && r.X+r.W <= w && r.Y+r.H <= h
}
