package models

import "math"

// Rect is an axis-aligned box in normalized coordinates (fractions of frame size)
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Area returns the normalized area of the rect
func (r Rect) Area() float64 {
	return r.W * r.H
}

// Center returns the center point of the rect
func (r Rect) Center() (float64, float64) {
	return r.X + r.W/2, r.Y + r.H/2
}

// IoU returns the intersection-over-union of two rects, 0 when disjoint
func (r Rect) IoU(o Rect) float64 {
	ix := math.Max(r.X, o.X)
	iy := math.Max(r.Y, o.Y)
	ix2 := math.Min(r.X+r.W, o.X+o.W)
	iy2 := math.Min(r.Y+r.H, o.Y+o.H)

	if ix2 <= ix || iy2 <= iy {
		return 0
	}

	inter := (ix2 - ix) * (iy2 - iy)
	union := r.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// CenterDistance returns the euclidean distance between two rect centers
func (r Rect) CenterDistance(o Rect) float64 {
	cx1, cy1 := r.Center()
	cx2, cy2 := o.Center()
	return hypot(cx2-cx1, cy2-cy1)
}

// Intersects reports whether two rects overlap, optionally expanded by gap
func (r Rect) Intersects(o Rect, gap float64) bool {
	return r.X-gap < o.X+o.W && o.X-gap < r.X+r.W &&
		r.Y-gap < o.Y+o.H && o.Y-gap < r.Y+r.H
}

// Union returns the smallest rect containing both rects
func (r Rect) Union(o Rect) Rect {
	x := math.Min(r.X, o.X)
	y := math.Min(r.Y, o.Y)
	x2 := math.Max(r.X+r.W, o.X+o.W)
	y2 := math.Max(r.Y+r.H, o.Y+o.H)
	return Rect{X: x, Y: y, W: x2 - x, H: y2 - y}
}

func hypot(x, y float64) float64 {
	return math.Sqrt(x*x + y*y)
}
