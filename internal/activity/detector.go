// Package activity provides voice-activity detection over audio energy.
package activity

import (
	"sync"
	"time"
)

// Defaults for voice-activity detection.
const (
	DefaultCalibration  = 800 * time.Millisecond
	DefaultAlpha        = 0.05
	DefaultMinThreshold = 0.004
	DefaultGainFactor   = 3.0
	DefaultRelease      = 200 * time.Millisecond
)

// Config holds the detector thresholds and timing parameters.
type Config struct {
	Calibration  time.Duration `mapstructure:"calibration"`   // noise-floor learning period after Start
	Alpha        float64       `mapstructure:"alpha"`         // EMA weight of each calibration sample
	MinThreshold float64       `mapstructure:"min_threshold"` // absolute RMS floor for speech
	GainFactor   float64       `mapstructure:"gain_factor"`   // speech must exceed noiseFloor*GainFactor
	Release      time.Duration `mapstructure:"release"`       // sub-threshold time before speech ends
}

func DefaultConfig() Config {
	return Config{
		Calibration:  DefaultCalibration,
		Alpha:        DefaultAlpha,
		MinThreshold: DefaultMinThreshold,
		GainFactor:   DefaultGainFactor,
		Release:      DefaultRelease,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Calibration <= 0 {
		c.Calibration = d.Calibration
	}
	if c.Alpha <= 0 || c.Alpha > 1 {
		c.Alpha = d.Alpha
	}
	if c.MinThreshold <= 0 {
		c.MinThreshold = d.MinThreshold
	}
	if c.GainFactor <= 0 {
		c.GainFactor = d.GainFactor
	}
	if c.Release < 0 {
		c.Release = d.Release
	}
	return c
}

// State is a snapshot of one detector.
type State struct {
	RMS                 float64       `json:"rms"`
	NoiseFloor          float64       `json:"noiseFloor"`
	Speaking            bool          `json:"speaking"`
	SilenceDuration     time.Duration `json:"silenceDurationMs"`
	Calibrating         bool          `json:"calibrating"`
	CalibrationDeadline time.Time     `json:"calibrationDeadline"`
}

// Update is the result of feeding one analysis tick.
type Update struct {
	State
	Changed bool // Speaking flipped on this tick
}

// Detector tracks speaking state with noise-floor calibration and release
// hysteresis. It is safe for concurrent use.
type Detector struct {
	mu           sync.Mutex
	cfg          Config
	state        State
	seeded       bool
	silenceStart time.Time // first sub-threshold tick while speaking
}

func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg.WithDefaults()}
}

// Start begins a calibration period at now, discarding previous state.
func (d *Detector) Start(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = State{
		Calibrating:         true,
		CalibrationDeadline: now.Add(d.cfg.Calibration),
	}
	d.seeded = false
	d.silenceStart = time.Time{}
}

// SetConfig swaps thresholds without restarting calibration.
func (d *Detector) SetConfig(cfg Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg.WithDefaults()
}

// Threshold returns the current dynamic speech threshold.
func (d *Detector) Threshold() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.threshold()
}

func (d *Detector) threshold() float64 {
	return max(d.cfg.MinThreshold, d.state.NoiseFloor*d.cfg.GainFactor)
}

// Update feeds one tick's RMS level. A detector that was never started
// calibrates from the first tick.
func (d *Detector) Update(rms float64, muted bool, now time.Time) Update {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.CalibrationDeadline.IsZero() {
		d.state.Calibrating = true
		d.state.CalibrationDeadline = now.Add(d.cfg.Calibration)
	}
	d.state.RMS = rms
	was := d.state.Speaking

	if d.state.Calibrating {
		if now.Before(d.state.CalibrationDeadline) {
			if !d.seeded {
				d.state.NoiseFloor = rms
				d.seeded = true
			} else {
				d.state.NoiseFloor = d.cfg.Alpha*rms + (1-d.cfg.Alpha)*d.state.NoiseFloor
			}
			return Update{State: d.state}
		}
		d.state.Calibrating = false
	}

	switch {
	case muted:
		d.state.Speaking = false
		d.silenceStart = time.Time{}
		d.state.SilenceDuration = 0
	case rms > d.threshold():
		d.state.Speaking = true
		d.silenceStart = time.Time{}
		d.state.SilenceDuration = 0
	case d.state.Speaking:
		if d.silenceStart.IsZero() {
			d.silenceStart = now
		}
		d.state.SilenceDuration = now.Sub(d.silenceStart)
		if d.state.SilenceDuration >= d.cfg.Release {
			d.state.Speaking = false
			d.silenceStart = time.Time{}
		}
	default:
		d.state.SilenceDuration = 0
	}

	return Update{State: d.state, Changed: was != d.state.Speaking}
}

// Snapshot returns the current state.
func (d *Detector) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Reset clears all state including calibration.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = State{}
	d.seeded = false
	d.silenceStart = time.Time{}
}
