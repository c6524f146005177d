// Command collapse runs the voltage-collapse study on the Nordic test
// system: initialize at the operating point, trip generator g7 at t=10 s,
// simulate to t=150 s and plot the response of generator g5.
package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/sps-lab/ramses-go/internal/pkg/casedef"
	"github.com/sps-lab/ramses-go/internal/pkg/datastreams/mongodb"
	"github.com/sps-lab/ramses-go/internal/pkg/datastreams/natshandler"
	"github.com/sps-lab/ramses-go/internal/pkg/datastreams/sqldb"
	"github.com/sps-lab/ramses-go/internal/pkg/engine"
	"github.com/sps-lab/ramses-go/internal/pkg/engine/ramses"
	"github.com/sps-lab/ramses-go/internal/pkg/engine/virtualengine"
	"github.com/sps-lab/ramses-go/internal/pkg/extractor"
	"github.com/sps-lab/ramses-go/internal/pkg/hil"
	"github.com/sps-lab/ramses-go/internal/pkg/msg"
	"github.com/sps-lab/ramses-go/internal/pkg/plot"
	"github.com/sps-lab/ramses-go/internal/pkg/run"
	"github.com/sps-lab/ramses-go/internal/pkg/trajectory"
)

const (
	tripTime    = 10.0
	tripCommand = "BREAKER SYNC_MACH g7 0"
	runTime     = 150.0
)

func main() {
	log.Println("[Main] Configuring simulation case")
	caze, err := casedef.Load("./config/case/nordic.json")
	if err != nil {
		panic(err)
	}
	if err := caze.Validate(); err != nil {
		panic(err)
	}

	log.Println("[Main] Cleaning up previous simulation outputs")
	removed, err := casedef.CleanOutputs(filepath.Dir(caze.GetTrj()))
	if err != nil {
		panic(err)
	}
	for _, path := range removed {
		log.Println("[Main] Removed", path)
	}

	log.Println("[Main] Building engine")
	eng := buildEngine()

	runner, err := run.New(caze, eng)
	if err != nil {
		panic(err)
	}

	log.Println("[Main] Attaching datastreams")
	attachDatastreams(runner)

	log.Printf("[Main] Scheduling disturbance: t=%.2f %v", tripTime, tripCommand)
	if err := runner.AddDisturb(tripTime, tripCommand); err != nil {
		panic(err)
	}

	log.Printf("[Main] Running simulation to t=%.1f s", runTime)
	ext, err := runner.Run(runTime)
	if err != nil {
		// a lost network solution is the expected end of this study; the
		// trajectory up to that point is still plotted
		log.Println("[Main]", err)
		log.Println("[Main] Engine trace:", eng.LastErr())
	}
	if ext == nil {
		log.Println("[Main] No trajectory recorded, nothing to plot")
		os.Exit(1)
	}

	log.Println("[Main] Plotting results")
	if err := renderPlots(ext, "./plots"); err != nil {
		panic(err)
	}
	log.Println("[Main] Done")
}

// buildEngine prefers the external solver when its config is present and
// falls back to the virtual engine otherwise.
func buildEngine() engine.Engine {
	ramsesConfig := "./config/engine/ramses.json"
	if _, err := os.Stat(ramsesConfig); err == nil {
		eng, err := ramses.New(ramsesConfig)
		if err != nil {
			panic(err)
		}
		return eng
	}

	log.Println("[Main] External solver not configured, using virtual engine")
	eng, err := virtualengine.New("./config/engine/virtual.json")
	if err != nil {
		panic(err)
	}
	return eng
}

// attachDatastreams starts every handler whose config file exists.
func attachDatastreams(publisher msg.Publisher) {
	if path := "./config/datastream/mongodb.json"; exists(path) {
		handler, err := mongodb.New(path, publisher)
		if err != nil {
			panic(err)
		}
		go handler.Process()
	}
	if path := "./config/datastream/nats.json"; exists(path) {
		handler, err := natshandler.New(path, publisher)
		if err != nil {
			panic(err)
		}
		go handler.Process()
	}
	if path := "./config/datastream/sqldb.json"; exists(path) {
		handler, err := sqldb.New(path, publisher)
		if err != nil {
			panic(err)
		}
		go handler.Process()
	}
	if path := "./config/datastream/hil.json"; exists(path) {
		handler, err := hil.New(path, publisher)
		if err != nil {
			panic(err)
		}
		go handler.Process()
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// renderPlots draws the six tutorial plots for generator g5.
func renderPlots(ext *extractor.Extractor, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	sync, err := ext.GetSync("g5")
	if err != nil {
		return err
	}
	tor, err := ext.GetTor("g5")
	if err != nil {
		return err
	}
	bus, err := ext.GetBus("g5")
	if err != nil {
		return err
	}

	plots := []struct {
		series trajectory.Series
		title  string
		yLabel string
		file   string
	}{
		{sync.S, "g5 speed deviation", "pu", "g5_speed.png"},
		{tor.Z, "g5 governor valve opening", "pu", "g5_valve.png"},
		{tor.Pm, "g5 mechanical power", "MW", "g5_pm.png"},
		{sync.P, "g5 electrical active power", "MW", "g5_p.png"},
		{bus.Mag, "g5 terminal voltage", "pu", "g5_voltage.png"},
		{sync.Q, "g5 electrical reactive power", "Mvar", "g5_q.png"},
	}
	for _, p := range plots {
		if err := plot.Series(p.series, p.title, p.yLabel, filepath.Join(dir, p.file)); err != nil {
			return err
		}
		log.Println("[Main] Wrote", filepath.Join(dir, p.file))
	}
	return nil
}
