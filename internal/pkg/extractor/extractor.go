// Package extractor gives named access to the time series of a completed
// run. A signal that was not observed is an error, never an empty series.
package extractor

import (
	"github.com/sps-lab/ramses-go/internal/pkg/observation"
	"github.com/sps-lab/ramses-go/internal/pkg/trajectory"
)

// Extractor wraps a loaded trajectory.
type Extractor struct {
	trj *trajectory.Trajectory
}

// New loads the trajectory file at path.
func New(path string) (*Extractor, error) {
	trj, err := trajectory.Read(path)
	if err != nil {
		return nil, err
	}
	return &Extractor{trj: trj}, nil
}

// FromTrajectory wraps an in-memory trajectory.
func FromTrajectory(trj *trajectory.Trajectory) *Extractor {
	return &Extractor{trj: trj}
}

// RunID returns the id of the recorded run.
func (e *Extractor) RunID() string {
	return e.trj.RunID
}

// Keys returns the recorded signal keys in column order.
func (e *Extractor) Keys() []string {
	return e.trj.Keys
}

// Series returns the recorded series for one signal.
func (e *Extractor) Series(kind observation.Kind, target string) (trajectory.Series, error) {
	return e.trj.Get(observation.Signal{Kind: kind, Target: target}.Key())
}

// Bus bundles the observed signals of one bus.
type Bus struct {
	Mag trajectory.Series // voltage magnitude, pu
}

// GetBus returns the recorded voltage of the named bus.
func (e *Extractor) GetBus(name string) (Bus, error) {
	mag, err := e.Series(observation.BusVoltage, name)
	if err != nil {
		return Bus{}, err
	}
	return Bus{Mag: mag}, nil
}

// Sync bundles the observed electrical signals of one machine.
type Sync struct {
	S trajectory.Series // speed deviation, pu
	P trajectory.Series // active power, MW
	Q trajectory.Series // reactive power, Mvar
}

// GetSync returns the recorded electrical signals of the named machine. All
// three signals must have been observed.
func (e *Extractor) GetSync(name string) (Sync, error) {
	s, err := e.Series(observation.Speed, name)
	if err != nil {
		return Sync{}, err
	}
	p, err := e.Series(observation.ActivePwr, name)
	if err != nil {
		return Sync{}, err
	}
	q, err := e.Series(observation.ReactivePwr, name)
	if err != nil {
		return Sync{}, err
	}
	return Sync{S: s, P: p, Q: q}, nil
}

// Tor bundles the observed turbine and governor signals of one machine.
type Tor struct {
	Pm trajectory.Series // mechanical power, MW
	Z  trajectory.Series // valve opening, pu
}

// GetTor returns the recorded turbine signals of the named machine.
func (e *Extractor) GetTor(name string) (Tor, error) {
	pm, err := e.Series(observation.MechPwr, name)
	if err != nil {
		return Tor{}, err
	}
	z, err := e.Series(observation.ValvePos, name)
	if err != nil {
		return Tor{}, err
	}
	return Tor{Pm: pm, Z: z}, nil
}
