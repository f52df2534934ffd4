package robot

import (
	"encoding/json"
	"os"
	"time"

	"github.com/gwillem/iaroc/pkg/control"
	"github.com/gwillem/iaroc/pkg/create"
	"github.com/gwillem/iaroc/pkg/sonar"
)

const DefaultConfigFile = "iaroc.json"

// Config holds the robot configuration
type Config struct {
	Create  CreateConfig `json:"create"`
	Sonar   SonarConfig  `json:"sonar"`
	StopPin int          `json:"stop_pin,omitempty"` // BCM pin of the stop button, 0 for none
	Speed   int          `json:"speed"`
	DwellMS int          `json:"dwell_ms"`
	Maze    MazeGeometry `json:"maze"`
	Start   Pose         `json:"start"`
}

// CreateConfig holds the serial settings of the Create base
type CreateConfig struct {
	Port     string      `json:"port"`
	BaudRate int         `json:"baud,omitempty"`
	Mode     create.Mode `json:"mode,omitempty"`
}

// SonarConfig holds the range finder wiring
type SonarConfig struct {
	Calibration    sonar.Calibration `json:"calibration,omitempty"`
	PollIntervalMS int               `json:"poll_interval_ms,omitempty"`
}

// IsCalibrated returns true if all three range finders are wired
func (s *SonarConfig) IsCalibrated() bool {
	for _, side := range sonar.AllSides() {
		if _, ok := s.Calibration.BySide(side); !ok {
			return false
		}
	}
	return true
}

// PollInterval returns the sonar polling interval
func (s *SonarConfig) PollInterval() time.Duration {
	if s.PollIntervalMS <= 0 {
		return sonar.DefaultInterval
	}
	return time.Duration(s.PollIntervalMS) * time.Millisecond
}

// DefaultConfig returns a configuration with the competition defaults
func DefaultConfig() *Config {
	return (&Config{}).WithDefaults()
}

// WithDefaults fills unset fields with defaults and returns c
func (c *Config) WithDefaults() *Config {
	if c.Create.BaudRate == 0 {
		c.Create.BaudRate = 57600
	}
	if c.Create.Mode == "" {
		c.Create.Mode = create.ModeFull
	}
	if c.Sonar.Calibration == nil {
		c.Sonar.Calibration = sonar.DefaultCalibration()
	}
	if c.Speed <= 0 {
		c.Speed = control.DefaultSpeed
	}
	if c.DwellMS <= 0 {
		c.DwellMS = int(control.DefaultDwell / time.Millisecond)
	}
	if c.Maze == (MazeGeometry{}) {
		c.Maze = DefaultMaze()
	}
	return c
}

// MergeCalibration overrides the range finder wiring with the sides found in
// a calibration file. Sides missing from the file keep their wiring.
func (c *Config) MergeCalibration(path string) error {
	cal, err := sonar.LoadCalibration(path)
	if err != nil {
		return err
	}
	if c.Sonar.Calibration == nil {
		c.Sonar.Calibration = make(sonar.Calibration, len(cal))
	}
	for side, rc := range cal {
		c.Sonar.Calibration[side] = rc
	}
	return nil
}

// Dwell returns the recovery dwell time
func (c *Config) Dwell() time.Duration {
	return time.Duration(c.DwellMS) * time.Millisecond
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return cfg.WithDefaults(), nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the config file exists
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
