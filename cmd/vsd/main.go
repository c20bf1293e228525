// vsd is the virtual slope depth controller daemon. It listens for
// navigation data from the vehicle, follows the backseat driver's mission
// advisory, and drives the depth overload channel with one setpoint per
// control period.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fs19062005-design/VIrtual-Slope/internal/backseat"
	"github.com/fs19062005-design/VIrtual-Slope/internal/config"
	"github.com/fs19062005-design/VIrtual-Slope/internal/control"
	"github.com/fs19062005-design/VIrtual-Slope/internal/mission"
	"github.com/fs19062005-design/VIrtual-Slope/internal/monitoring"
	"github.com/fs19062005-design/VIrtual-Slope/internal/nav"
	"github.com/fs19062005-design/VIrtual-Slope/internal/timeutil"
)

var (
	configPath  = flag.String("config", "vsd.yaml", "Path to the YAML configuration file")
	missionFlag = flag.String("mission", "", "Mission name override (default: follow the backseat advisory)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	bridge := nav.NewBridge(cfg.BridgeListenAddr, timeutil.RealClock{})
	if err := bridge.Listen(); err != nil {
		log.Fatalf("failed to open navigation bridge: %v", err)
	}
	log.Printf("navigation bridge listening on %s", bridge.Addr())

	var source nav.Source = bridge
	if cfg.SimMode {
		log.Printf("sim mode: synthesizing altitude from a %.1fm bottom", cfg.SimInitialBottomDepth)
		source = nav.NewSimSource(bridge, cfg.SimInitialBottomDepth, timeutil.RealClock{})
	}

	client := backseat.NewClient(backseat.ClientConfig{
		Host:                    cfg.BackseatHost,
		Port:                    cfg.BackseatPort,
		Timeout:                 cfg.BackseatTimeout.D(),
		OverloadCommandDuration: cfg.OverloadCommandDuration.D(),
		MinDepth:                cfg.MinDepth,
		MaxDepth:                cfg.MaxDepth,
	}, timeutil.RealClock{})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := bridge.Serve(ctx); err != nil && err != context.Canceled {
			log.Printf("navigation bridge stopped: %v", err)
		}
	}()

	run(ctx, cfg, source, client, *missionFlag)

	stop()
	wg.Wait()
	log.Print("shutdown complete")
}

// run is the fixed-period control loop. It keeps a monotonic schedule: a
// cycle that overruns its slot logs the slip and reschedules from now
// instead of bursting to catch up.
func run(ctx context.Context, cfg config.Config, source nav.Source, client *backseat.Client, missionOverride string) {
	checker := mission.NewChecker(mission.CheckerConfig{
		LineStartToleranceMeters:  cfg.LineStartToleranceMeters,
		LineStartToleranceDepth:   cfg.LineStartToleranceDepth,
		LineStartToleranceHeading: cfg.LineStartToleranceHeading,
		WaypointToleranceMeters:   cfg.WaypointToleranceMeters,
	})
	ctrlCfg := controllerConfig(cfg)
	onChange := func(pc control.PhaseChange) {
		monitoring.Logf("phase change [%s]: %s -> %s reason=%s", pc.EventID, pc.OldState, pc.NewState, pc.Reason)
	}

	var ctrl *control.Controller
	var activeMission string
	var loadFailed string

	period := cfg.ControlPeriod.D()
	next := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		now := time.Now()

		name := missionOverride
		if name == "" {
			if info, ok := client.CurrentPhase(ctx); ok {
				name = info.Name
			}
		}
		if name != "" && name != activeMission && name != loadFailed {
			m, err := mission.LoadForMission(cfg.ParamsDirectory, name)
			if err != nil {
				monitoring.Logf("mission %q not started: %v", name, err)
				loadFailed = name
			} else if ctrl == nil {
				ctrl, err = control.NewController(ctrlCfg, m, checker, now, onChange)
				if err != nil {
					monitoring.Logf("mission %q not started: %v", name, err)
					loadFailed = name
				} else {
					monitoring.Logf("mission %q started with %d phases", name, len(m.Phases))
					activeMission = name
				}
			} else {
				if err := ctrl.ResetMission(m, now); err != nil {
					monitoring.Logf("mission %q not started: %v", name, err)
					loadFailed = name
				} else {
					monitoring.Logf("mission changed to %q, compensation reset", name)
					activeMission = name
				}
			}
		}

		if ctrl != nil {
			snap, ok := source.Snapshot()
			cmd := ctrl.Cycle(snap, ok, now)
			if err := client.SendDepthCommand(ctx, cmd.TargetDepth); err != nil {
				monitoring.Logf("depth command failed: %v", err)
			}
		}

		next = next.Add(period)
		wait := time.Until(next)
		if wait <= 0 {
			monitoring.Logf("control loop behind schedule by %s", -wait)
			next = time.Now()
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func controllerConfig(cfg config.Config) control.ControllerConfig {
	return control.ControllerConfig{
		Safety: control.SafetyConfig{
			WarningAltitude:    cfg.WarningAltitude,
			EmergencyAltitude:  cfg.EmergencyAltitude,
			Margin:             cfg.SafetyMargin,
			StalenessWindow:    cfg.AltitudeStalenessWindow.D(),
			HysteresisDuration: cfg.SafetyHysteresisDuration.D(),
		},
		Compensator: control.CompensatorConfig{
			GainP:       cfg.GainP,
			GainI:       cfg.GainI,
			MaxComp:     cfg.MaxComp,
			HistorySize: cfg.ErrorHistory,
		},
		Manager: control.ManagerConfig{
			HoldTimeout:          cfg.HoldTimeout.D(),
			BlendWindow:          cfg.BlendWindow.D(),
			DepthTolerance:       cfg.DepthTolerance,
			SafetyResumeDuration: cfg.SafetyHysteresisDuration.D(),
		},
		ControlPeriod:   cfg.ControlPeriod.D(),
		MaxAngleDegrees: cfg.MaxAngleDegrees,
		MinDepth:        cfg.MinDepth,
		MaxDepth:        cfg.MaxDepth,
	}
}
