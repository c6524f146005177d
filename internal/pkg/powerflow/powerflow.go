// Package powerflow reads the power-flow solution file: one LFRESV record
// per bus giving the voltage magnitude (pu) and angle (rad) used as the
// simulation initial condition.
package powerflow

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Voltage is a per-bus operating-point record.
type Voltage struct {
	Bus       string
	Magnitude float64 // pu
	Angle     float64 // rad
}

// Solution maps bus names to their operating-point voltage.
type Solution map[string]Voltage

// Read parses the power-flow solution file at path.
func Read(path string) (Solution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sol := make(Solution)
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
		if fields[0] != "LFRESV" || len(fields) != 4 {
			return nil, fmt.Errorf("%v:%v: malformed LFRESV record", path, lineno)
		}
		mag, err1 := strconv.ParseFloat(fields[2], 64)
		ang, err2 := strconv.ParseFloat(fields[3], 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%v:%v: bad numeric field in LFRESV record", path, lineno)
		}
		sol[fields[1]] = Voltage{Bus: fields[1], Magnitude: mag, Angle: ang}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(sol) == 0 {
		return nil, fmt.Errorf("%v: no LFRESV records", path)
	}
	return sol, nil
}

// At returns the operating-point voltage for bus, or an error if the
// power-flow solution does not cover it.
func (s Solution) At(bus string) (Voltage, error) {
	v, ok := s[bus]
	if !ok {
		return Voltage{}, fmt.Errorf("powerflow: no solution for bus %v", bus)
	}
	return v, nil
}
