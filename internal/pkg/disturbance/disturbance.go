// Package disturbance reads and writes the disturbance schedule (.dst): an
// ordered list of timed engine commands. An empty file denotes the
// no-disturbance baseline run.
package disturbance

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Event is a single scheduled engine command, e.g.
// {10.0, "BREAKER SYNC_MACH g7 0"}.
type Event struct {
	Time    float64 // s
	Command string
}

// Schedule is the ordered event list. Events are kept sorted by time;
// simultaneous events keep their file order.
type Schedule struct {
	events []Event
}

// New returns an empty schedule (a baseline run).
func New() *Schedule {
	return &Schedule{}
}

// Read parses the disturbance file at path.
func Read(path string) (*Schedule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s := New()
	scanner := bufio.NewScanner(f)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if i := strings.Index(line, "!"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSuffix(strings.TrimSpace(line), ";")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("%v:%v: disturbance record wants `time command`", path, lineno)
		}
		tm, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%v:%v: bad event time %q", path, lineno, fields[0])
		}
		if err := s.Add(tm, strings.Join(fields[1:], " ")); err != nil {
			return nil, fmt.Errorf("%v:%v: %v", path, lineno, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

// Add schedules a command at time tm.
func (s *Schedule) Add(tm float64, command string) error {
	if tm < 0 {
		return fmt.Errorf("disturbance: negative event time %v", tm)
	}
	if command == "" {
		return fmt.Errorf("disturbance: empty command")
	}
	s.events = append(s.events, Event{Time: tm, Command: command})
	sort.SliceStable(s.events, func(i, j int) bool {
		return s.events[i].Time < s.events[j].Time
	})
	return nil
}

// Events returns the schedule in time order.
func (s *Schedule) Events() []Event {
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Empty reports whether this is a baseline (no-disturbance) schedule.
func (s *Schedule) Empty() bool {
	return len(s.events) == 0
}

// Write serializes the schedule to path in the canonical format. A schedule
// written and re-read yields the same event set.
func (s *Schedule) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range s.events {
		fmt.Fprintf(w, "%s %s ;\n", strconv.FormatFloat(e.Time, 'g', -1, 64), e.Command)
	}
	return w.Flush()
}

// Equal reports whether two schedules hold the same event set in the same
// order.
func (s *Schedule) Equal(o *Schedule) bool {
	if len(s.events) != len(o.events) {
		return false
	}
	for i := range s.events {
		if s.events[i] != o.events[i] {
			return false
		}
	}
	return true
}
