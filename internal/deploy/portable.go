package deploy

import (
	"encoding/json"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/inamate/tripwire/internal/geometry"
)

// PortableConfig is an active rule resolved to integer pixels for a given
// stream resolution, for detectors that do not speak normalized space.
type PortableConfig struct {
	CameraID string    `json:"camera_id" yaml:"camera_id"`
	URL      string    `json:"url" yaml:"url"`
	Width    int       `json:"width" yaml:"width"`
	Height   int       `json:"height" yaml:"height"`
	Polygon  [][2]int  `json:"polygon" yaml:"polygon,flow"`
	Line     PixelLine `json:"line" yaml:"line"`
}

type PixelLine struct {
	X1 int `json:"x1" yaml:"x1"`
	Y1 int `json:"y1" yaml:"y1"`
	X2 int `json:"x2" yaml:"x2"`
	Y2 int `json:"y2" yaml:"y2"`
}

// Portable denormalizes cfg for a width×height stream.
func Portable(cfg ActiveConfig, width, height int) (PortableConfig, error) {
	size := geometry.Sz(float64(width), float64(height))
	zone, err := geometry.DenormalizePolygon(geometry.NormalizedPolygon{Points: cfg.Polygon}, size)
	if err != nil {
		return PortableConfig{}, err
	}
	line, err := geometry.DenormalizeLine(cfg.Line, size)
	if err != nil {
		return PortableConfig{}, err
	}
	out := PortableConfig{
		CameraID: cfg.CameraID,
		URL:      cfg.URL,
		Width:    width,
		Height:   height,
		Polygon:  make([][2]int, len(zone.Points)),
		Line: PixelLine{
			X1: round(line.P1.X), Y1: round(line.P1.Y),
			X2: round(line.P2.X), Y2: round(line.P2.Y),
		},
	}
	for i, p := range zone.Points {
		out.Polygon[i] = [2]int{round(p.X), round(p.Y)}
	}
	return out, nil
}

func round(v float64) int { return int(math.Round(v)) }

// Encode renders p as "json" or "yaml" and returns the content type.
func (p PortableConfig) Encode(format string) ([]byte, string, error) {
	switch format {
	case "", "json":
		data, err := json.MarshalIndent(p, "", "  ")
		return data, "application/json", err
	case "yaml", "yml":
		data, err := yaml.Marshal(p)
		return data, "application/yaml", err
	}
	return nil, "", fmt.Errorf("unsupported format %q", format)
}
