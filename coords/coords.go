// Package coords implements PDF user-space affine transforms: 2x3 matrices
// in the [a b c d e f] convention used by the cm/Tm operators, plus the
// rectangle arithmetic the bbox resolver needs.
package coords

import (
	"errors"
	"math"
)

// Matrix is a PDF transformation matrix [a b c d e f], representing
//
//	| a b 0 |
//	| c d 0 |
//	| e f 1 |
type Matrix [6]float64

// Identity returns the identity matrix.
func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

// Translate returns a matrix that translates by (tx, ty).
func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }

// Scale returns a matrix that scales by (sx, sy).
func Scale(sx, sy float64) Matrix { return Matrix{sx, 0, 0, sy, 0, 0} }

// Rotate returns a matrix that rotates by angle radians.
func Rotate(angle float64) Matrix {
	c, s := math.Cos(angle), math.Sin(angle)
	return Matrix{c, s, -s, c, 0, 0}
}

// Multiply composes m followed by o (m is applied first), matching PDF's
// "cm" operator semantics where the new CTM is m x o.
func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

// Point is a 2D point in user space.
type Point struct{ X, Y float64 }

// Transform maps p through m.
func (m Matrix) Transform(p Point) Point {
	return Point{
		X: m[0]*p.X + m[2]*p.Y + m[4],
		Y: m[1]*p.X + m[3]*p.Y + m[5],
	}
}

// Inverse returns the inverse of m, or an error if m is singular.
func (m Matrix) Inverse() (Matrix, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-10 {
		return Matrix{}, errors.New("coords: matrix is singular")
	}
	return Matrix{
		m[3] / det, -m[1] / det,
		-m[2] / det, m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det,
		(m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}

// Rect is an axis-aligned rectangle in user space. Width and Height may
// be negative; Normalized returns the same rectangle with non-negative
// extents.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Left, Right, Bottom, Top return the rectangle's edges.
func (r Rect) Left() float64   { return r.X }
func (r Rect) Right() float64  { return r.X + r.Width }
func (r Rect) Bottom() float64 { return r.Y }
func (r Rect) Top() float64    { return r.Y + r.Height }

// Normalized returns r with non-negative Width/Height.
func (r Rect) Normalized() Rect {
	x, w := r.X, r.Width
	if w < 0 {
		x, w = x+w, -w
	}
	y, h := r.Y, r.Height
	if h < 0 {
		y, h = y+h, -h
	}
	return Rect{X: x, Y: y, Width: w, Height: h}
}

// Inflate grows r by d on every side.
func (r Rect) Inflate(d float64) Rect {
	return Rect{X: r.X - d, Y: r.Y - d, Width: r.Width + 2*d, Height: r.Height + 2*d}
}

// Intersects reports whether r and o overlap using open intervals: edges
// that merely touch do not count as intersecting.
func (r Rect) Intersects(o Rect) bool {
	return r.Left() < o.Right() && r.Right() > o.Left() &&
		r.Bottom() < o.Top() && r.Top() > o.Bottom()
}

// BoundsOf returns the axis-aligned bounding rectangle of a set of points.
func BoundsOf(pts []Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
