// Package trajectory holds the recorded result of a run: one sample frame
// per accepted output step, one column per observed signal. The .trj format
// is text: a header naming the run and the signal keys, then sample rows.
package trajectory

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Frame is one output sample: simulation time plus one value per observed
// signal, in observation-list order.
type Frame struct {
	Time   float64
	Values []float64
}

// Series is a single named signal over the run.
type Series struct {
	Key   string
	Time  []float64
	Value []float64
}

// Trajectory is a fully recorded run.
type Trajectory struct {
	RunID string
	Keys  []string
	Times []float64
	Data  [][]float64 // Data[i] is the column for Keys[i]
}

// New returns an empty trajectory for the given signal keys.
func New(runID string, keys []string) *Trajectory {
	data := make([][]float64, len(keys))
	return &Trajectory{RunID: runID, Keys: append([]string{}, keys...), Data: data}
}

// Append records one frame. The frame must carry one value per signal.
func (t *Trajectory) Append(f Frame) error {
	if len(f.Values) != len(t.Keys) {
		return fmt.Errorf("trajectory: frame carries %v values, want %v", len(f.Values), len(t.Keys))
	}
	t.Times = append(t.Times, f.Time)
	for i, v := range f.Values {
		t.Data[i] = append(t.Data[i], v)
	}
	return nil
}

// Len returns the number of recorded frames.
func (t *Trajectory) Len() int {
	return len(t.Times)
}

// Get returns the series for key, or an error if the signal was not
// observed.
func (t *Trajectory) Get(key string) (Series, error) {
	for i, k := range t.Keys {
		if k == key {
			return Series{Key: key, Time: t.Times, Value: t.Data[i]}, nil
		}
	}
	return Series{}, fmt.Errorf("trajectory: signal %q not recorded", key)
}

// Write serializes the trajectory to path. Values are written with full
// float64 precision so a read-back is bit-identical.
func (t *Trajectory) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "TRJ 1 %s\n", t.RunID)
	for _, key := range t.Keys {
		fmt.Fprintf(w, "OBS %s\n", key)
	}
	fmt.Fprintln(w, "DATA")
	for row := 0; row < t.Len(); row++ {
		w.WriteString(strconv.FormatFloat(t.Times[row], 'g', -1, 64))
		for col := range t.Keys {
			w.WriteByte(' ')
			w.WriteString(strconv.FormatFloat(t.Data[col][row], 'g', -1, 64))
		}
		w.WriteByte('\n')
	}
	fmt.Fprintln(w, "END")
	return w.Flush()
}

// Read loads a trajectory file written by Write.
func Read(path string) (*Trajectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		return nil, fmt.Errorf("%v: empty trajectory file", path)
	}
	header := strings.Fields(scanner.Text())
	if len(header) != 3 || header[0] != "TRJ" || header[1] != "1" {
		return nil, fmt.Errorf("%v: bad trajectory header", path)
	}

	t := &Trajectory{RunID: header[2]}
	inData := false
	lineno := 1
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "END" {
			return t, nil
		}
		if !inData {
			if line == "DATA" {
				t.Data = make([][]float64, len(t.Keys))
				inData = true
				continue
			}
			if !strings.HasPrefix(line, "OBS ") {
				return nil, fmt.Errorf("%v:%v: expected OBS or DATA", path, lineno)
			}
			t.Keys = append(t.Keys, strings.TrimSpace(line[4:]))
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != len(t.Keys)+1 {
			return nil, fmt.Errorf("%v:%v: sample row wants %v columns, got %v", path, lineno, len(t.Keys)+1, len(fields))
		}
		vals := make([]float64, len(fields))
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%v:%v: bad sample value %q", path, lineno, field)
			}
			vals[i] = v
		}
		t.Times = append(t.Times, vals[0])
		for i := range t.Keys {
			t.Data[i] = append(t.Data[i], vals[i+1])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%v: truncated trajectory, no END record", path)
}

// Equal reports whether two trajectories carry identical samples.
func (t *Trajectory) Equal(o *Trajectory) bool {
	if len(t.Keys) != len(o.Keys) || t.Len() != o.Len() {
		return false
	}
	for i := range t.Keys {
		if t.Keys[i] != o.Keys[i] {
			return false
		}
	}
	for i := range t.Times {
		if t.Times[i] != o.Times[i] {
			return false
		}
	}
	for col := range t.Data {
		for row := range t.Data[col] {
			if t.Data[col][row] != o.Data[col][row] {
				return false
			}
		}
	}
	return true
}
