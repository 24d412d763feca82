// Package geom defines the screen-space primitives shared by perception,
// targeting and movement.
//
// Major Types:
//   - Point: 2D coordinate in capture space (also the shape of an entity
//     candidate produced by template search)
//   - Bounds: rectangle with centre/containment helpers
//   - Color: RGB triple with per-channel tolerance matching
//
// All types are small values and are copied freely between goroutines.
package geom

import (
	"fmt"
	"image"
	"image/color"
)

// Point represents a 2D coordinate in screen space.
//
// Used for:
//   - Template match centres (monsters, ropes, the character)
//   - Click targets for scripted sequences
//   - Horizontal/vertical offset calculations
type Point struct {
	X int `mapstructure:"x"`
	Y int `mapstructure:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y int) Point {
	return Point{X: x, Y: y}
}

// Sub returns the offset from other to p.
func (p Point) Sub(other Point) Point {
	return Point{X: p.X - other.X, Y: p.Y - other.Y}
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Bounds represents a rectangular area
type Bounds struct {
	X int `mapstructure:"x"` // Top-left X coordinate
	Y int `mapstructure:"y"` // Top-left Y coordinate
	W int `mapstructure:"w"` // Width
	H int `mapstructure:"h"` // Height
}

// NewBounds creates a new Bounds
func NewBounds(x, y, w, h int) Bounds {
	return Bounds{X: x, Y: y, W: w, H: h}
}

// FromRect converts an image.Rectangle.
func FromRect(r image.Rectangle) Bounds {
	return Bounds{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// Empty reports whether the bounds cover no pixels. An empty region means
// "whole frame" wherever a region is optional.
func (b Bounds) Empty() bool {
	return b.W <= 0 || b.H <= 0
}

// Center returns the center point of the bounds
func (b Bounds) Center() Point {
	return Point{
		X: b.X + b.W/2,
		Y: b.Y + b.H/2,
	}
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.X && p.X < b.X+b.W &&
		p.Y >= b.Y && p.Y < b.Y+b.H
}

// Rect converts to an image.Rectangle.
func (b Bounds) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

func (b Bounds) String() string {
	return fmt.Sprintf("%dx%d@(%d,%d)", b.W, b.H, b.X, b.Y)
}

// Color represents an RGB color
type Color struct {
	R uint8 `mapstructure:"r"`
	G uint8 `mapstructure:"g"`
	B uint8 `mapstructure:"b"`
}

// NewColor creates a new Color
func NewColor(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// Matches checks if another color matches within tolerance
func (c Color) Matches(other Color, tolerance uint8) bool {
	return absDiff(c.R, other.R) <= tolerance &&
		absDiff(c.G, other.G) <= tolerance &&
		absDiff(c.B, other.B) <= tolerance
}

// MatchesRGBA checks a pixel read from a frame. Alpha is ignored because
// captured frames are opaque.
func (c Color) MatchesRGBA(px color.RGBA, tolerance uint8) bool {
	return c.Matches(Color{R: px.R, G: px.G, B: px.B}, tolerance)
}

// absDiff returns absolute difference between two uint8 values
func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

// Abs returns the absolute value of an integer.
func Abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
