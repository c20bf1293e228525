// missionlint validates VS params files offline and prints the depth
// profile the controller would fly, so a malformed mission is caught on the
// bench instead of at mission start.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fs19062005-design/VIrtual-Slope/internal/control"
	"github.com/fs19062005-design/VIrtual-Slope/internal/mission"
	"github.com/fs19062005-design/VIrtual-Slope/internal/monitoring"
)

var (
	blendWindow = flag.Float64("blend-window", 5.0, "Transition blend window in seconds")
	blendSteps  = flag.Int("blend-steps", 5, "Samples to print per blend profile")
	quiet       = flag.Bool("q", false, "Only report validation results")
)

func main() {
	log.SetFlags(0)
	monitoring.SetLogger(nil)
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatal("usage: missionlint [flags] <VS_params_file.yaml> ...")
	}

	failed := false
	for _, path := range flag.Args() {
		m, err := mission.Load(path)
		if err != nil {
			log.Printf("%s: INVALID: %v", path, err)
			failed = true
			continue
		}
		log.Printf("%s: OK, %d phases", path, len(m.Phases))
		if !*quiet {
			printProfile(m)
		}
	}
	if failed {
		os.Exit(1)
	}
}

func printProfile(m *mission.Mission) {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  line\tdir\tdepth\trate\tlength\tspeed\tramp time")
	for i := range m.Phases {
		p := &m.Phases[i]
		fmt.Fprintf(w, "  %s\t%s\t%.1f -> %.1fm\t%.4f m/s\t%.0fm\t%.1f m/s\t%.0fs\n",
			p.ID, p.Direction, p.StartDepth, p.TargetDepth,
			p.SlopeRate, p.DistanceMeters, p.SpeedMps, rampSeconds(p))
	}
	w.Flush()

	for i := 0; i+1 < len(m.Phases); i++ {
		out := &m.Phases[i]
		in := &m.Phases[i+1]
		profile := control.BlendRates(control.SignedRate(out), control.SignedRate(in), *blendWindow, *blendSteps)
		fmt.Printf("  blend %s -> %s over %.1fs: %s\n", out.ID, in.ID, *blendWindow, formatRates(profile))
	}
}

// rampSeconds is how long the ramp takes to reach the target, or the full
// line duration for a level run.
func rampSeconds(p *mission.Phase) float64 {
	dz := p.TargetDepth - p.StartDepth
	if dz < 0 {
		dz = -dz
	}
	if p.SlopeRate == 0 {
		return p.DistanceMeters / p.SpeedMps
	}
	return dz / p.SlopeRate
}

func formatRates(rates []float64) string {
	parts := make([]string, len(rates))
	for i, r := range rates {
		parts[i] = fmt.Sprintf("%+.4f", r)
	}
	return strings.Join(parts, " ") + " m/s"
}
