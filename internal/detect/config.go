// Package detect implements color/shape region detection on video frames.
// One engine serves every front end: live stream, still image, batch video
// and the web dashboard all run the same HSV threshold, morphology and
// contour filter.
package detect

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrConfig is returned when persisted detection settings are malformed or
// out of range. Callers fall back to defaults instead of crashing.
var ErrConfig = errors.New("detect: invalid config")

// Default detection parameters, tuned for green vegetation against mulch.
var (
	DefaultLowerBound = [3]int{35, 40, 40}
	DefaultUpperBound = [3]int{85, 255, 255}
)

const (
	DefaultMinArea = 100
	DefaultMaxArea = 50000

	// HueMax is the upper bound of the OpenCV hue channel.
	HueMax = 179
)

// Config holds the HSV threshold bounds and the candidate area window.
// Channel order is H, S, V; hue spans 0-179, saturation and value 0-255.
type Config struct {
	LowerBound [3]int `json:"lower_bound"`
	UpperBound [3]int `json:"upper_bound"`
	MinArea    int    `json:"min_area"`
	MaxArea    int    `json:"max_area"`
}

// DefaultConfig returns the documented default detection parameters.
func DefaultConfig() Config {
	return Config{
		LowerBound: DefaultLowerBound,
		UpperBound: DefaultUpperBound,
		MinArea:    DefaultMinArea,
		MaxArea:    DefaultMaxArea,
	}
}

// Validate checks channel ranges and the area window.
func (c Config) Validate() error {
	for i := 0; i < 3; i++ {
		max := 255
		if i == 0 {
			max = HueMax
		}
		if c.LowerBound[i] < 0 || c.LowerBound[i] > max {
			return fmt.Errorf("%w: lower_bound[%d]=%d out of range 0-%d", ErrConfig, i, c.LowerBound[i], max)
		}
		if c.UpperBound[i] < 0 || c.UpperBound[i] > max {
			return fmt.Errorf("%w: upper_bound[%d]=%d out of range 0-%d", ErrConfig, i, c.UpperBound[i], max)
		}
	}

	if c.MinArea < 0 {
		return fmt.Errorf("%w: min_area=%d must be >= 0", ErrConfig, c.MinArea)
	}
	if c.MaxArea <= c.MinArea {
		return fmt.Errorf("%w: max_area=%d must be > min_area=%d", ErrConfig, c.MaxArea, c.MinArea)
	}

	return nil
}

// LoadConfig reads detection settings from a JSON file. A missing file is
// not an error: the documented defaults are returned. A malformed or
// out-of-range file returns the defaults along with an error wrapping
// ErrConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return DefaultConfig(), fmt.Errorf("%w: %v", ErrConfig, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("%w: %v", ErrConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), err
	}

	return cfg, nil
}

// SaveConfig writes detection settings as human-inspectable JSON. The file
// is replaced atomically via a temp file in the same directory.
func SaveConfig(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), path)
}
