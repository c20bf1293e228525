package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fs19062005-design/VIrtual-Slope/internal/config"
)

func TestControllerConfigFromDefaults(t *testing.T) {
	cfg := config.Default()
	got := controllerConfig(cfg)

	assert.Equal(t, cfg.WarningAltitude, got.Safety.WarningAltitude)
	assert.Equal(t, cfg.EmergencyAltitude, got.Safety.EmergencyAltitude)
	assert.Equal(t, 3*time.Second, got.Safety.StalenessWindow)
	assert.Equal(t, cfg.GainP, got.Compensator.GainP)
	assert.Equal(t, cfg.ErrorHistory, got.Compensator.HistorySize)
	assert.Equal(t, 120*time.Second, got.Manager.HoldTimeout)
	assert.Equal(t, 5*time.Second, got.Manager.BlendWindow)
	// The hysteresis duration serves both the safety downgrade and the
	// phase machine's resume.
	assert.Equal(t, got.Safety.HysteresisDuration, got.Manager.SafetyResumeDuration)
	assert.Equal(t, time.Second, got.ControlPeriod)
	assert.Equal(t, cfg.MinDepth, got.MinDepth)
	assert.Equal(t, cfg.MaxDepth, got.MaxDepth)
}
