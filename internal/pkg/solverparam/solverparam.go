// Package solverparam reads the solver settings file. Values are passed
// through to the engine unchanged; this package gives them names but does not
// interpret them.
package solverparam

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Settings are the integration parameters forwarded to the engine.
type Settings struct {
	StepMin   float64 // s
	StepMax   float64 // s
	Tolerance float64
	RunTime   float64 // s
	OutputDec int     // record every n-th accepted step
	Extra     map[string]string
}

// Defaults mirror the engine's built-in values, used when the settings file
// omits a keyword.
func Defaults() Settings {
	return Settings{
		StepMin:   0.001,
		StepMax:   0.02,
		Tolerance: 1e-4,
		RunTime:   150.0,
		OutputDec: 1,
		Extra:     make(map[string]string),
	}
}

// Read parses the settings file at path. Unknown keywords are preserved in
// Extra and forwarded verbatim.
func Read(path string) (Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	s := Defaults()
	scanner := bufio.NewScanner(f)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if i := strings.Index(line, "!"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSuffix(strings.TrimSpace(line), ";")
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return Settings{}, fmt.Errorf("%v:%v: settings record wants `KEYWORD value`", path, lineno)
		}
		if err := s.set(fields[0], fields[1]); err != nil {
			return Settings{}, fmt.Errorf("%v:%v: %v", path, lineno, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) set(keyword, value string) error {
	switch keyword {
	case "TIME_STEP_MIN":
		return parse(value, &s.StepMin)
	case "TIME_STEP_MAX":
		return parse(value, &s.StepMax)
	case "TOLERANCE":
		return parse(value, &s.Tolerance)
	case "RUN_TIME":
		return parse(value, &s.RunTime)
	case "OUTPUT_DEC":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("bad OUTPUT_DEC %q", value)
		}
		s.OutputDec = n
		return nil
	default:
		s.Extra[keyword] = value
		return nil
	}
}

func parse(value string, dst *float64) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("bad numeric value %q", value)
	}
	*dst = v
	return nil
}
