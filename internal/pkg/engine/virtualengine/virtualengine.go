// Package virtualengine is a deterministic surrogate for the external
// simulation engine. It reproduces the engine's case lifecycle and output
// contract with a reduced aggregate model: system frequency follows the
// active-power balance, governors recover through a first-order droop
// response, and bus voltages decline when the online reactive capability
// falls below the operating-point margin.
//
// It exists for the same reason the virtual devices elsewhere in this tree
// do: tests and demos run against it without the external solver installed.
// It is not a power-system simulator.
package virtualengine

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sps-lab/ramses-go/internal/pkg/casedef"
	"github.com/sps-lab/ramses-go/internal/pkg/disturbance"
	"github.com/sps-lab/ramses-go/internal/pkg/dynfile"
	"github.com/sps-lab/ramses-go/internal/pkg/observation"
	"github.com/sps-lab/ramses-go/internal/pkg/powerflow"
	"github.com/sps-lab/ramses-go/internal/pkg/solverparam"
	"github.com/sps-lab/ramses-go/internal/pkg/trajectory"
)

// Config tunes the surrogate response.
type Config struct {
	Droop        float64 `json:"Droop"`        // governor droop, pu speed per pu power
	GovernorT    float64 `json:"GovernorT"`    // governor time constant, s
	QCapFactor   float64 `json:"QCapFactor"`   // reactive capability per machine, fraction of Snom
	VoltDecayK   float64 `json:"VoltDecayK"`   // voltage decline gain under reactive deficit, 1/s
	CollapseVolt float64 `json:"CollapseVolt"` // pu voltage below which the run is declared collapsed
}

func defaultConfig() Config {
	return Config{
		Droop:        0.04,
		GovernorT:    5.0,
		QCapFactor:   0.6,
		VoltDecayK:   0.02,
		CollapseVolt: 0.5,
	}
}

type machineState struct {
	online bool
	pm     float64 // mechanical = electrical power, MW
	pm0    float64 // operating point, MW
}

// VirtualEngine implements engine.Engine.
type VirtualEngine struct {
	pid    uuid.UUID
	config Config

	caze     *casedef.Case
	model    *dynfile.Model
	solution powerflow.Solution
	settings solverparam.Settings
	obs      observation.List
	schedule *disturbance.Schedule

	now       float64
	applied   int // events already executed, index into the sorted schedule
	machines  map[string]*machineState
	machOrder []string
	busOrder  []string
	vfactor   float64 // shared voltage multiplier, 1.0 at the operating point
	speedDev  float64 // pu
	marginRef float64

	trj          *trajectory.Trajectory
	frames       chan trajectory.Frame
	framesClosed bool
	stepCnt      int
	lastErr      string
}

// New builds a virtual engine from a JSON config file. An empty path uses
// built-in defaults.
func New(configPath string) (*VirtualEngine, error) {
	cfg := defaultConfig()
	if configPath != "" {
		jsonConfig, err := ioutil.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
			return nil, err
		}
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &VirtualEngine{
		pid:    pid,
		config: cfg,
		frames: make(chan trajectory.Frame, 100),
	}, nil
}

// PID returns the engine instance id.
func (e *VirtualEngine) PID() uuid.UUID {
	return e.pid
}

// LastErr returns the last error trace.
func (e *VirtualEngine) LastErr() string {
	return e.lastErr
}

// Frames exposes the output sample stream.
func (e *VirtualEngine) Frames() <-chan trajectory.Frame {
	return e.frames
}

func (e *VirtualEngine) fail(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	e.lastErr = err.Error()
	return err
}

// ExecSim loads the case files, initializes every machine at its operating
// point and advances to t=until.
func (e *VirtualEngine) ExecSim(c *casedef.Case, until float64) error {
	if err := c.Validate(); err != nil {
		return e.fail("virtualengine: %v", err)
	}
	e.caze = c

	if err := e.loadData(c.GetData()); err != nil {
		return err
	}
	if e.model == nil {
		return e.fail("virtualengine: case binds no dynamic data file")
	}
	if e.solution == nil {
		return e.fail("virtualengine: case binds no power-flow solution")
	}

	obs, err := observation.Read(c.GetObs())
	if err != nil {
		return e.fail("virtualengine: %v", err)
	}
	if err := obs.Validate(e.model); err != nil {
		return e.fail("virtualengine: %v", err)
	}
	e.obs = obs

	if c.GetDst() != "" {
		sched, err := disturbance.Read(c.GetDst())
		if err != nil {
			return e.fail("virtualengine: %v", err)
		}
		e.schedule = sched
	} else {
		e.schedule = disturbance.New()
	}

	if err := e.initialize(); err != nil {
		return err
	}

	e.trj = trajectory.New(e.pid.String(), e.obs.Keys())
	e.record()
	if until > 0 {
		return e.ContSim(until)
	}
	return nil
}

// loadData classifies each data file by its first record keyword and hands
// it to the matching reader.
func (e *VirtualEngine) loadData(paths []string) error {
	var err error
	for _, path := range paths {
		kind, sniffErr := sniff(path)
		if sniffErr != nil {
			return e.fail("virtualengine: %v", sniffErr)
		}
		switch kind {
		case "dyn":
			e.model, err = dynfile.Read(path)
		case "powerflow":
			e.solution, err = powerflow.Read(path)
		case "settings":
			e.settings, err = solverparam.Read(path)
		}
		if err != nil {
			return e.fail("virtualengine: %v", err)
		}
	}
	return nil
}

var dynKeywords = map[string]bool{
	"BUS": true, "LINE": true, "TRFO": true, "LOAD": true,
	"SYNC_MACH": true, "EXC": true, "TOR": true, "PSS": true,
}

// sniff returns the data-file class from the first significant token:
// dynamic records, LFRESV records or solver settings.
func sniff(path string) (string, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(raw), "\n") {
		if i := strings.Index(line, "!"); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch {
		case fields[0] == "LFRESV":
			return "powerflow", nil
		case dynKeywords[fields[0]]:
			return "dyn", nil
		default:
			return "settings", nil
		}
	}
	return "", fmt.Errorf("%v: no records", path)
}

// initialize places every machine at its operating point. A machine or load
// bus missing from the power-flow solution is an initialization failure.
func (e *VirtualEngine) initialize() error {
	initTrace := &strings.Builder{}
	fmt.Fprintf(initTrace, "VIRTUAL ENGINE INIT run %v\n", e.pid)

	e.machines = make(map[string]*machineState)
	e.machOrder = e.machOrder[:0]
	for name := range e.model.Generators {
		e.machOrder = append(e.machOrder, name)
	}
	sort.Strings(e.machOrder)

	for _, name := range e.machOrder {
		g := e.model.Generators[name]
		if _, err := e.solution.At(g.Bus); err != nil {
			e.writeTrace(e.caze.GetInit(), initTrace.String())
			return e.fail("virtualengine: init: machine %v: %v", name, err)
		}
		e.machines[name] = &machineState{online: true, pm: g.Pgen, pm0: g.Pgen}
		fmt.Fprintf(initTrace, "SYNC_MACH %v Pm=%.1f MW at equilibrium\n", name, g.Pgen)
	}

	e.busOrder = e.busOrder[:0]
	for name := range e.model.Buses {
		e.busOrder = append(e.busOrder, name)
	}
	sort.Strings(e.busOrder)

	for _, l := range e.model.Loads {
		if _, err := e.solution.At(l.Bus); err != nil {
			e.writeTrace(e.caze.GetInit(), initTrace.String())
			return e.fail("virtualengine: init: load %v: %v", l.Name, err)
		}
	}

	e.now = 0
	e.applied = 0
	e.speedDev = 0
	e.vfactor = 1.0
	e.stepCnt = 0
	e.marginRef = e.reactiveMargin()
	fmt.Fprintf(initTrace, "reactive margin at operating point %.4f\n", e.marginRef)
	e.writeTrace(e.caze.GetInit(), initTrace.String())
	return nil
}

func (e *VirtualEngine) writeTrace(path, content string) {
	if path == "" {
		return
	}
	if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
		log.Println("[VirtualEngine] trace write:", err)
	}
}

func (e *VirtualEngine) appendTrace(path, line string) {
	if path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Println("[VirtualEngine] trace write:", err)
		return
	}
	defer f.Close()
	fmt.Fprintln(f, line)
}

// AddDisturb schedules an engine command on top of the case's disturbance
// file. Must be called after ExecSim.
func (e *VirtualEngine) AddDisturb(tm float64, command string) error {
	if e.schedule == nil {
		return e.fail("virtualengine: AddDisturb before ExecSim")
	}
	if tm < e.now {
		return e.fail("virtualengine: cannot schedule event at %.2f, simulation already at %.2f", tm, e.now)
	}
	if err := e.schedule.Add(tm, command); err != nil {
		return e.fail("virtualengine: %v", err)
	}
	return nil
}

// ContSim advances the simulation to t=until with the fixed surrogate step,
// applying due disturbances and recording observed signals.
func (e *VirtualEngine) ContSim(until float64) error {
	if e.trj == nil {
		return e.fail("virtualengine: ContSim before ExecSim")
	}
	if until <= e.now {
		return e.fail("virtualengine: ContSim target %.2f not ahead of t=%.2f", until, e.now)
	}

	dt := e.settings.StepMax
	if dt <= 0 {
		dt = solverparam.Defaults().StepMax
	}
	dec := e.settings.OutputDec
	if dec < 1 {
		dec = 1
	}
	for e.now < until {
		step := math.Min(dt, until-e.now)

		events := e.schedule.Events()
		for e.applied < len(events) && events[e.applied].Time <= e.now {
			if err := e.apply(events[e.applied]); err != nil {
				return err
			}
			e.applied++
		}

		e.advance(step)
		e.now += step
		e.stepCnt++

		if e.stepCnt%dec == 0 {
			e.record()
		}
		if e.vfactor < e.config.CollapseVolt {
			e.record()
			return e.fail("virtualengine: voltage collapse at t=%.2f s, solution lost", e.now)
		}
	}
	return nil
}

// apply executes one scheduled command. Only breaker operations on
// synchronous machines are modelled.
func (e *VirtualEngine) apply(ev disturbance.Event) error {
	fields := strings.Fields(ev.Command)
	if len(fields) != 4 || fields[0] != "BREAKER" || fields[1] != "SYNC_MACH" {
		return e.fail("virtualengine: t=%.2f: unsupported command %q", ev.Time, ev.Command)
	}
	m, ok := e.machines[fields[2]]
	if !ok {
		return e.fail("virtualengine: t=%.2f: unknown machine %v", ev.Time, fields[2])
	}
	switch fields[3] {
	case "0":
		m.online = false
		m.pm = 0
	case "1":
		m.online = true
		m.pm = m.pm0
	default:
		return e.fail("virtualengine: t=%.2f: bad breaker status %q", ev.Time, fields[3])
	}
	log.Printf("[VirtualEngine] t=%.2f %v", ev.Time, ev.Command)
	e.appendTrace(e.caze.GetDisc(), fmt.Sprintf("%.4f %s", ev.Time, ev.Command))
	return nil
}

// advance integrates the aggregate model over one step.
func (e *VirtualEngine) advance(dt float64) {
	totalLoad := e.model.TotalLoad()

	totalGen := 0.0
	inertia := 0.0
	for _, name := range e.machOrder {
		m := e.machines[name]
		if !m.online {
			continue
		}
		g := e.model.Generators[name]
		totalGen += m.pm
		inertia += 2 * g.H * g.Snom
	}

	if inertia > 0 {
		e.speedDev += dt * (totalGen - totalLoad) / inertia
	}

	// droop response, machines without a governor hold their set point
	for _, name := range e.machOrder {
		m := e.machines[name]
		g := e.model.Generators[name]
		if !m.online || g.Governor == nil {
			continue
		}
		target := m.pm0 - e.speedDev/e.config.Droop*g.Snom
		if target > g.Snom {
			target = g.Snom
		}
		if target < 0 {
			target = 0
		}
		m.pm += dt * (target - m.pm) / e.config.GovernorT
	}

	// voltages hold at the operating point while the online reactive
	// capability covers the margin seen at initialization, and decline
	// proportionally to the deficit once it no longer does
	deficit := e.marginRef - e.reactiveMargin()
	if deficit > 0 {
		e.vfactor -= dt * e.config.VoltDecayK * deficit * e.vfactor
		if e.vfactor < 0 {
			e.vfactor = 0
		}
	}
}

// reactiveMargin is the online reactive capability minus demand, normalized
// by demand.
func (e *VirtualEngine) reactiveMargin() float64 {
	demand := 0.0
	for _, l := range e.model.Loads {
		demand += l.Q
	}
	capability := 0.0
	for _, name := range e.machOrder {
		if !e.machines[name].online {
			continue
		}
		capability += e.config.QCapFactor * e.model.Generators[name].Snom
	}
	if demand <= 0 {
		return 1.0
	}
	return (capability - demand) / demand
}

// record appends the current observed values as one frame.
func (e *VirtualEngine) record() {
	values := make([]float64, len(e.obs))
	for i, s := range e.obs {
		values[i] = e.observe(s)
	}
	frame := trajectory.Frame{Time: e.now, Values: values}
	if err := e.trj.Append(frame); err != nil {
		log.Println("[VirtualEngine]", err)
		return
	}
	select {
	case e.frames <- frame:
	default:
	}
}

func (e *VirtualEngine) observe(s observation.Signal) float64 {
	switch s.Kind {
	case observation.BusVoltage:
		v, _ := e.solution.At(s.Target)
		return v.Magnitude * e.vfactor
	case observation.Speed:
		return e.speedDev
	}

	m := e.machines[s.Target]
	g := e.model.Generators[s.Target]
	if !m.online {
		return 0
	}
	switch s.Kind {
	case observation.ActivePwr, observation.MechPwr:
		return m.pm
	case observation.ValvePos:
		return m.pm / g.Snom
	case observation.ReactivePwr:
		// reactive output tracks the machine's share of demand and rises
		// as voltage support degrades
		demand := 0.0
		for _, l := range e.model.Loads {
			demand += l.Q
		}
		capability := 0.0
		for _, name := range e.machOrder {
			if e.machines[name].online {
				capability += e.model.Generators[name].Snom
			}
		}
		if capability == 0 || e.vfactor == 0 {
			return 0
		}
		return demand * g.Snom / capability / e.vfactor
	}
	return 0
}

// EndSim writes the trajectory file and closes the frame stream. The stream
// is closed on the failure path too, so consumers ranging over Frames never
// hang on a finalize error.
func (e *VirtualEngine) EndSim() error {
	if e.trj == nil {
		return e.fail("virtualengine: EndSim before ExecSim")
	}
	defer e.closeFrames()
	if err := e.trj.Write(e.caze.GetTrj()); err != nil {
		return e.fail("virtualengine: %v", err)
	}
	e.appendTrace(e.caze.GetOut(), fmt.Sprintf("run %v finished at t=%.2f s, %v frames", e.pid, e.now, e.trj.Len()))
	return nil
}

func (e *VirtualEngine) closeFrames() {
	if !e.framesClosed {
		e.framesClosed = true
		close(e.frames)
	}
}
