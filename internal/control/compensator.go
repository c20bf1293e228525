package control

import (
	"gonum.org/v1/gonum/floats"

	"github.com/fs19062005-design/VIrtual-Slope/internal/monitoring"
)

// CompensatorConfig holds the error compensation gains and bounds.
type CompensatorConfig struct {
	// GainP scales the latest commanded-vs-achieved error.
	GainP float64
	// GainI scales the integrated error over the history window.
	GainI float64
	// MaxComp clamps the integral contribution (anti-windup).
	MaxComp float64
	// HistorySize bounds the error history window.
	HistorySize int
	// ReversalRun is the number of consecutive errors opposing the sign of
	// the accumulated integral that trigger an integral reset.
	ReversalRun int
}

// DefaultReversalRun applies when CompensatorConfig.ReversalRun is zero.
const DefaultReversalRun = 5

// Compensator tracks the commanded-vs-achieved depth error and produces the
// compensation term added to the instantaneous ramp output. The term never
// moves a phase's end target.
type Compensator struct {
	cfg CompensatorConfig

	// history holds err*dt samples, oldest first, bounded at HistorySize.
	history  []float64
	lastErr  float64
	lastComp float64
	// oppositeRun counts consecutive updates whose error sign opposed the
	// integral's sign.
	oppositeRun int
}

// NewCompensator creates a compensator with the given configuration.
func NewCompensator(cfg CompensatorConfig) *Compensator {
	if cfg.HistorySize < 1 {
		cfg.HistorySize = 1
	}
	if cfg.ReversalRun < 1 {
		cfg.ReversalRun = DefaultReversalRun
	}
	return &Compensator{cfg: cfg}
}

// Update records one cycle's tracking error and returns the compensation
// term: gainP*err + clamp(gainI*integral, ±maxComp). dt is the cycle period
// in seconds; the integral accumulates err*dt so retuning the control period
// does not retune the gains.
func (c *Compensator) Update(commandedDepth, achievedDepth, dt float64) float64 {
	err := commandedDepth - achievedDepth

	integral := floats.Sum(c.history)
	if integral != 0 && err*integral < 0 {
		c.oppositeRun++
		if c.oppositeRun >= c.cfg.ReversalRun {
			// Sustained reversal: the accumulated integral is fighting the
			// current error. Drop it rather than unwinding slowly.
			monitoring.Logf("compensator: integral reset after %d opposing errors", c.oppositeRun)
			c.history = c.history[:0]
			c.oppositeRun = 0
			integral = 0
		}
	} else {
		c.oppositeRun = 0
	}

	c.history = append(c.history, err*dt)
	if len(c.history) > c.cfg.HistorySize {
		c.history = c.history[len(c.history)-c.cfg.HistorySize:]
	}
	integral = floats.Sum(c.history)

	term := c.cfg.GainP*err + clamp(c.cfg.GainI*integral, -c.cfg.MaxComp, c.cfg.MaxComp)
	c.lastErr = err
	c.lastComp = term
	return term
}

// IntegralTerm returns the clamped integral contribution of the current
// history window.
func (c *Compensator) IntegralTerm() float64 {
	return clamp(c.cfg.GainI*floats.Sum(c.history), -c.cfg.MaxComp, c.cfg.MaxComp)
}

// LastCompensation returns the most recently computed term.
func (c *Compensator) LastCompensation() float64 {
	return c.lastComp
}

// Reset clears all accumulated state. Called on mission restart.
func (c *Compensator) Reset() {
	c.history = c.history[:0]
	c.lastErr = 0
	c.lastComp = 0
	c.oppositeRun = 0
}

// clamp keeps value inside [lo, hi].
func clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
