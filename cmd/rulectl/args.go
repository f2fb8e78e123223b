package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/inamate/tripwire/internal/geometry"
)

// sizeFlag parses WIDTHxHEIGHT.
type sizeFlag struct {
	W, H int
}

func (s *sizeFlag) String() string { return fmt.Sprintf("%dx%d", s.W, s.H) }

func (s *sizeFlag) Set(v string) error {
	ws, hs, ok := strings.Cut(strings.ToLower(v), "x")
	if !ok {
		return fmt.Errorf("size %q: want WIDTHxHEIGHT", v)
	}
	w, errW := strconv.Atoi(ws)
	h, errH := strconv.Atoi(hs)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return fmt.Errorf("size %q: want positive integers", v)
	}
	s.W, s.H = w, h
	return nil
}

func (s sizeFlag) Size() geometry.Size { return geometry.Sz(float64(s.W), float64(s.H)) }

// parsePoint parses "x,y" in surface pixels.
func parsePoint(v string) (geometry.Point, error) {
	xs, ys, ok := strings.Cut(v, ",")
	if !ok {
		return geometry.Point{}, fmt.Errorf("point %q: want x,y", v)
	}
	x, errX := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	y, errY := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if errX != nil || errY != nil {
		return geometry.Point{}, fmt.Errorf("point %q: want numbers", v)
	}
	return geometry.Pt(x, y), nil
}
