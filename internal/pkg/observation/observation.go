// Package observation reads the observation file: the list of signals the
// engine records during a run.
package observation

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/sps-lab/ramses-go/internal/pkg/dynfile"
)

// Kind names an observable signal class.
type Kind string

const (
	BusVoltage  Kind = "BV" // bus voltage magnitude, pu
	Speed       Kind = "MS" // machine speed deviation, pu
	ActivePwr   Kind = "PG" // machine active power, MW
	ReactivePwr Kind = "QG" // machine reactive power, Mvar
	MechPwr     Kind = "TM" // turbine mechanical power, MW
	ValvePos    Kind = "ZG" // governor valve opening, pu
)

// Signal is a single entry of the observation list.
type Signal struct {
	Kind   Kind
	Target string // bus or machine name
}

// Key is the signal identifier used in trajectory headers.
func (s Signal) Key() string {
	return string(s.Kind) + " " + s.Target
}

// List is an ordered observation spec; order fixes trajectory column order.
type List []Signal

// Read parses the observation file at path.
func Read(path string) (List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var list List
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
			return nil, fmt.Errorf("%v:%v: observation record wants `KIND target`", path, lineno)
		}
		kind := Kind(fields[0])
		switch kind {
		case BusVoltage, Speed, ActivePwr, ReactivePwr, MechPwr, ValvePos:
		default:
			return nil, fmt.Errorf("%v:%v: unknown signal kind %q", path, lineno, fields[0])
		}
		list = append(list, Signal{Kind: kind, Target: fields[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// Validate checks every observation target against the dynamic data. An
// unknown target is a configuration-time failure, never a silent empty
// series.
func (l List) Validate(m *dynfile.Model) error {
	for _, s := range l {
		switch s.Kind {
		case BusVoltage:
			if !m.HasBus(s.Target) {
				return fmt.Errorf("observation %v: bus %v not in dynamic data", s.Key(), s.Target)
			}
		default:
			if !m.HasGenerator(s.Target) {
				return fmt.Errorf("observation %v: machine %v not in dynamic data", s.Key(), s.Target)
			}
		}
	}
	return nil
}

// Keys returns the signal keys in list order.
func (l List) Keys() []string {
	keys := make([]string, len(l))
	for i, s := range l {
		keys[i] = s.Key()
	}
	return keys
}
