// Package dynfile reads the fixed-format dynamic data file: network topology
// plus the dynamic machine and controller records consumed by the engine.
//
// One record per line, whitespace separated, `!` starts a comment and a
// trailing `;` terminates a record. Record kinds:
//
//	BUS       name  kV  role
//	LINE      name  from  to  R  X  B/2  rating
//	TRFO      name  from  to  R  X  ratio  rating
//	LOAD      name  bus  P  Q
//	SYNC_MACH name  bus  Snom  Pgen  H  Xd  Xq  Xdp  Xqp
//	EXC       mach  model  params...
//	TOR       mach  model  params...
//	PSS       mach  params...
package dynfile

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// BusRole distinguishes load, generation and interconnection buses.
type BusRole string

const (
	RoleLoad       BusRole = "LOAD"
	RoleGeneration BusRole = "GEN"
	RoleIntercon   BusRole = "INTERCON"
)

// Bus is a network node.
type Bus struct {
	Name string
	KV   float64
	Role BusRole
}

// Branch is a line or transformer connecting two buses.
type Branch struct {
	Name        string
	From        string
	To          string
	R           float64
	X           float64
	HalfB       float64 // line charging, zero for transformers
	Ratio       float64 // transformer ratio, zero for lines
	Rating      float64
	Transformer bool
}

// Load is a constant-power demand record.
type Load struct {
	Name string
	Bus  string
	P    float64
	Q    float64
}

// Controller is an EXC, TOR or PSS record bound to a machine.
type Controller struct {
	Model  string
	Params []float64
}

// Generator is a synchronous machine with its controller bindings.
type Generator struct {
	Name     string
	Bus      string
	Snom     float64 // MVA
	Pgen     float64 // MW at the operating point
	H        float64 // inertia constant, s
	Xd       float64
	Xq       float64
	Xdp      float64
	Xqp      float64
	AVR      *Controller
	Governor *Controller
	PSS      *Controller
}

// Model is the parsed dynamic data file.
type Model struct {
	Buses      map[string]*Bus
	Branches   map[string]*Branch
	Loads      map[string]*Load
	Generators map[string]*Generator
}

// Read parses the dynamic data file at path.
func Read(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m := &Model{
		Buses:      make(map[string]*Bus),
		Branches:   make(map[string]*Branch),
		Loads:      make(map[string]*Load),
		Generators: make(map[string]*Generator),
	}

	scanner := bufio.NewScanner(f)
	lineno := 0
	for scanner.Scan() {
		lineno++
		fields, ok := recordFields(scanner.Text())
		if !ok {
			continue
		}
		if err := m.addRecord(fields); err != nil {
			return nil, fmt.Errorf("%v:%v: %v", path, lineno, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := m.check(); err != nil {
		return nil, fmt.Errorf("%v: %v", path, err)
	}
	return m, nil
}

// check verifies that every branch, load and machine sits on a declared bus.
// Bus records may appear anywhere in the file, so this runs after parsing.
func (m *Model) check() error {
	for _, b := range m.Branches {
		for _, bus := range []string{b.From, b.To} {
			if !m.HasBus(bus) {
				return fmt.Errorf("branch %v references undeclared bus %v", b.Name, bus)
			}
		}
	}
	for _, l := range m.Loads {
		if !m.HasBus(l.Bus) {
			return fmt.Errorf("LOAD %v references undeclared bus %v", l.Name, l.Bus)
		}
	}
	for _, g := range m.Generators {
		if !m.HasBus(g.Bus) {
			return fmt.Errorf("SYNC_MACH %v references undeclared bus %v", g.Name, g.Bus)
		}
	}
	return nil
}

// recordFields strips comments and the record terminator, returning the
// whitespace-split tokens. ok is false for blank and comment-only lines.
func recordFields(line string) ([]string, bool) {
	if i := strings.Index(line, "!"); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSuffix(strings.TrimSpace(line), ";")
	fields := strings.Fields(line)
	return fields, len(fields) > 0
}

func (m *Model) addRecord(fields []string) error {
	kind := fields[0]
	args := fields[1:]
	switch kind {
	case "BUS":
		return m.addBus(args)
	case "LINE":
		return m.addBranch(args, false)
	case "TRFO":
		return m.addBranch(args, true)
	case "LOAD":
		return m.addLoad(args)
	case "SYNC_MACH":
		return m.addGenerator(args)
	case "EXC", "TOR", "PSS":
		return m.addController(kind, args)
	}
	return fmt.Errorf("unknown record kind %v", kind)
}

func (m *Model) addBus(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("BUS record wants 3 fields, got %v", len(args))
	}
	kv, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("BUS %v: bad voltage level %q", args[0], args[1])
	}
	role := BusRole(args[2])
	switch role {
	case RoleLoad, RoleGeneration, RoleIntercon:
	default:
		return fmt.Errorf("BUS %v: unknown role %q", args[0], args[2])
	}
	m.Buses[args[0]] = &Bus{Name: args[0], KV: kv, Role: role}
	return nil
}

func (m *Model) addBranch(args []string, trfo bool) error {
	if len(args) != 7 {
		return fmt.Errorf("branch record wants 7 fields, got %v", len(args))
	}
	vals, err := parseFloats(args[3:])
	if err != nil {
		return fmt.Errorf("branch %v: %v", args[0], err)
	}
	b := &Branch{
		Name:        args[0],
		From:        args[1],
		To:          args[2],
		R:           vals[0],
		X:           vals[1],
		Rating:      vals[3],
		Transformer: trfo,
	}
	if trfo {
		b.Ratio = vals[2]
	} else {
		b.HalfB = vals[2]
	}
	m.Branches[b.Name] = b
	return nil
}

func (m *Model) addLoad(args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("LOAD record wants 4 fields, got %v", len(args))
	}
	vals, err := parseFloats(args[2:])
	if err != nil {
		return fmt.Errorf("LOAD %v: %v", args[0], err)
	}
	m.Loads[args[0]] = &Load{Name: args[0], Bus: args[1], P: vals[0], Q: vals[1]}
	return nil
}

func (m *Model) addGenerator(args []string) error {
	if len(args) != 9 {
		return fmt.Errorf("SYNC_MACH record wants 9 fields, got %v", len(args))
	}
	vals, err := parseFloats(args[2:])
	if err != nil {
		return fmt.Errorf("SYNC_MACH %v: %v", args[0], err)
	}
	m.Generators[args[0]] = &Generator{
		Name: args[0],
		Bus:  args[1],
		Snom: vals[0],
		Pgen: vals[1],
		H:    vals[2],
		Xd:   vals[3],
		Xq:   vals[4],
		Xdp:  vals[5],
		Xqp:  vals[6],
	}
	return nil
}

func (m *Model) addController(kind string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%v record wants a machine name", kind)
	}
	gen, ok := m.Generators[args[0]]
	if !ok {
		return fmt.Errorf("%v record references unknown machine %v", kind, args[0])
	}

	ctl := &Controller{}
	params := args[1:]
	if kind != "PSS" {
		if len(params) < 1 {
			return fmt.Errorf("%v %v: missing model name", kind, args[0])
		}
		ctl.Model = params[0]
		params = params[1:]
	}
	vals, err := parseFloats(params)
	if err != nil {
		return fmt.Errorf("%v %v: %v", kind, args[0], err)
	}
	ctl.Params = vals

	switch kind {
	case "EXC":
		gen.AVR = ctl
	case "TOR":
		gen.Governor = ctl
	case "PSS":
		gen.PSS = ctl
	}
	return nil
}

func parseFloats(args []string) ([]float64, error) {
	vals := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("bad numeric field %q", a)
		}
		vals[i] = v
	}
	return vals, nil
}

// HasBus reports whether the model contains the named bus.
func (m *Model) HasBus(name string) bool {
	_, ok := m.Buses[name]
	return ok
}

// HasGenerator reports whether the model contains the named machine.
func (m *Model) HasGenerator(name string) bool {
	_, ok := m.Generators[name]
	return ok
}

// TotalGeneration returns the summed operating-point output of all machines, MW.
func (m *Model) TotalGeneration() float64 {
	total := 0.0
	for _, g := range m.Generators {
		total += g.Pgen
	}
	return total
}

// TotalLoad returns the summed demand, MW.
func (m *Model) TotalLoad() float64 {
	total := 0.0
	for _, l := range m.Loads {
		total += l.P
	}
	return total
}
