// Package engine defines the boundary to the dynamic-simulation engine. The
// numerical work (DAE integration, machine and controller models, network
// solution) happens behind this interface, never in this repository.
package engine

import (
	"github.com/sps-lab/ramses-go/internal/pkg/casedef"
	"github.com/sps-lab/ramses-go/internal/pkg/trajectory"
)

// Engine drives one simulation case from configuration to a finalized
// trajectory. Calls follow the case lifecycle in order: ExecSim, AddDisturb
// (zero or more), ContSim, EndSim.
type Engine interface {
	// ExecSim loads the case files, initializes all dynamic models to
	// equilibrium and advances to t=until.
	ExecSim(c *casedef.Case, until float64) error

	// AddDisturb schedules an engine command at simulation time tm, on top
	// of the case's disturbance file.
	AddDisturb(tm float64, command string) error

	// ContSim advances the simulation to t=until, recording observed
	// signals.
	ContSim(until float64) error

	// EndSim finalizes the trajectory output and releases the engine.
	EndSim() error

	// Frames exposes output samples as they are produced. The channel is
	// closed by EndSim. Slow consumers lose frames rather than stalling
	// the solver.
	Frames() <-chan trajectory.Frame

	// LastErr returns the engine's last error trace, empty if none.
	LastErr() string
}
