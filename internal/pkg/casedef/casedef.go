// Package casedef binds the input and output files of a single simulation
// case. It holds paths only; the file contents are read by the format
// packages and by the engine.
package casedef

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
)

// Case is a simulation case definition.
type Case struct {
	data []string
	dst  string
	obs  string
	trj  string
	out  string
	init string
	cont string
	disc string
}

type jsonCase struct {
	Data []string `json:"Data"`
	Dst  string   `json:"Dst"`
	Obs  string   `json:"Obs"`
	Trj  string   `json:"Trj"`
	Out  string   `json:"Out"`
	Init string   `json:"Init"`
	Cont string   `json:"Cont"`
	Disc string   `json:"Disc"`
}

// New returns an empty case.
func New() *Case {
	return &Case{}
}

// Load reads a case definition from a JSON config file. Relative paths in the
// config are resolved against the config file's directory.
func Load(configPath string) (*Case, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg := jsonCase{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return nil, err
	}

	dir := filepath.Dir(configPath)
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}

	c := New()
	for _, p := range cfg.Data {
		c.AddData(resolve(p))
	}
	c.AddDst(resolve(cfg.Dst))
	c.AddObs(resolve(cfg.Obs))
	c.AddTrj(resolve(cfg.Trj))
	c.AddOut(resolve(cfg.Out))
	c.AddInit(resolve(cfg.Init))
	c.AddCont(resolve(cfg.Cont))
	c.AddDisc(resolve(cfg.Disc))
	return c, nil
}

// AddData appends a data file (dynamic data, power-flow solution or solver
// settings, distinguished by their records, not their names).
func (c *Case) AddData(path string) { c.data = append(c.data, path) }

// AddDst sets the disturbance file.
func (c *Case) AddDst(path string) { c.dst = path }

// AddObs sets the observation file.
func (c *Case) AddObs(path string) { c.obs = path }

// AddTrj sets the trajectory output file.
func (c *Case) AddTrj(path string) { c.trj = path }

// AddOut sets the main output trace file.
func (c *Case) AddOut(path string) { c.out = path }

// AddInit sets the initialization trace file.
func (c *Case) AddInit(path string) { c.init = path }

// AddCont sets the continuous-variables trace file.
func (c *Case) AddCont(path string) { c.cont = path }

// AddDisc sets the discrete-events trace file.
func (c *Case) AddDisc(path string) { c.disc = path }

// GetData returns the data file paths in the order added.
func (c *Case) GetData() []string { return c.data }

// GetDst returns the disturbance file path.
func (c *Case) GetDst() string { return c.dst }

// GetObs returns the observation file path.
func (c *Case) GetObs() string { return c.obs }

// GetTrj returns the trajectory output path.
func (c *Case) GetTrj() string { return c.trj }

// GetOut returns the output trace path.
func (c *Case) GetOut() string { return c.out }

// GetInit returns the initialization trace path.
func (c *Case) GetInit() string { return c.init }

// GetCont returns the continuous trace path.
func (c *Case) GetCont() string { return c.cont }

// GetDisc returns the discrete trace path.
func (c *Case) GetDisc() string { return c.disc }

// Validate checks that every input file the case references exists. Output
// paths (trj and traces) are not required to exist. An empty disturbance file
// path is allowed and denotes a baseline run.
func (c *Case) Validate() error {
	if len(c.data) == 0 {
		return fmt.Errorf("case: no data files bound")
	}
	inputs := append([]string{}, c.data...)
	if c.dst != "" {
		inputs = append(inputs, c.dst)
	}
	if c.obs != "" {
		inputs = append(inputs, c.obs)
	}
	for _, path := range inputs {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("case: input file %v: %v", path, err)
		}
	}
	if c.trj == "" {
		return fmt.Errorf("case: no trajectory output bound")
	}
	return nil
}

// CleanOutputs removes stale output files (*.trace, *.trj) from dir so a new
// run starts from a clean slate.
func CleanOutputs(dir string) ([]string, error) {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	removed := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".trace") || strings.HasSuffix(name, ".trj") {
			path := filepath.Join(dir, name)
			if err := os.Remove(path); err != nil {
				return removed, err
			}
			removed = append(removed, path)
		}
	}
	return removed, nil
}
