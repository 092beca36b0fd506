package pipeline

import (
	"fmt"
	"strings"

	"github.com/dudu/headcut/internal/detector"
	"github.com/dudu/headcut/internal/geometry"
	"github.com/dudu/headcut/internal/segment"
)

// Quality names a set of framing and segmentation parameters.
type Quality string

const (
	// QualityFast frames the head tightly and runs a short labelling pass.
	QualityFast Quality = "fast"
	// QualityBalanced keeps the fast framing with more labelling iterations.
	QualityBalanced Quality = "balanced"
	// QualityHigh leaves room for tall hair, denoises first and tightens the edge.
	QualityHigh Quality = "high"
)

// swapFeather softens the segmentation mask used to cut the source face.
const swapFeather = 7

// Config holds pipeline configuration
type Config struct {
	Quality  Quality
	Detector detector.Config
	// Debug attaches an annotated JPEG to every face cutout.
	Debug bool

	Margins     geometry.Margins
	Hint        geometry.HintBands
	Segment     segment.Options
	SwapSegment segment.Options
	BlurSize    int
}

// ParseQuality accepts a preset name, case-insensitively.
func ParseQuality(s string) (Quality, error) {
	switch q := Quality(strings.ToLower(strings.TrimSpace(s))); q {
	case QualityFast, QualityBalanced, QualityHigh:
		return q, nil
	default:
		return "", fmt.Errorf("unknown quality %q (use %q, %q or %q)", s, QualityFast, QualityBalanced, QualityHigh)
	}
}

// ConfigFor returns the configuration of a quality preset with the default detector.
func ConfigFor(q Quality) (Config, error) {
	config := Config{
		Quality:  q,
		Detector: detector.DefaultConfig(),
		BlurSize: 5,
	}
	switch q {
	case QualityFast:
		config.Margins = geometry.CompactMargins
		config.Hint = geometry.NeckHint
		config.Segment = segment.Fast
	case QualityBalanced:
		config.Margins = geometry.CompactMargins
		config.Hint = geometry.NeckHint
		config.Segment = segment.Balanced
	case QualityHigh:
		config.Margins = geometry.WideMargins
		config.Hint = geometry.HeadHint
		config.Segment = segment.High
	default:
		return Config{}, fmt.Errorf("unknown quality %q", q)
	}
	config.SwapSegment = config.Segment.WithFeather(swapFeather)
	return config, nil
}

// DefaultConfig returns the fast preset.
func DefaultConfig() Config {
	config, _ := ConfigFor(QualityFast)
	return config
}
