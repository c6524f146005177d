// Package run executes one simulation case end to end: configure,
// initialize, disturb, simulate, extract. The flow is strictly linear and
// single-pass; failures propagate to the caller, nothing is retried.
package run

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/sps-lab/ramses-go/internal/pkg/casedef"
	"github.com/sps-lab/ramses-go/internal/pkg/disturbance"
	"github.com/sps-lab/ramses-go/internal/pkg/engine"
	"github.com/sps-lab/ramses-go/internal/pkg/extractor"
	"github.com/sps-lab/ramses-go/internal/pkg/msg"
	"github.com/sps-lab/ramses-go/internal/pkg/observation"
)

// Info is the run configuration payload published on the Config topic before
// the simulation starts. Frame payloads carry values in Keys order.
type Info struct {
	RunID string   `json:"RunID"`
	Keys  []string `json:"Keys"`
}

// Runner drives one case through an engine and publishes its progress.
type Runner struct {
	pid    uuid.UUID
	caze   *casedef.Case
	eng    engine.Engine
	extra  *disturbance.Schedule
	pubsub *msg.PubSub
}

// New builds a runner for the given case and engine.
func New(c *casedef.Case, eng engine.Engine) (*Runner, error) {
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &Runner{
		pid:    pid,
		caze:   c,
		eng:    eng,
		extra:  disturbance.New(),
		pubsub: msg.NewPublisher(pid),
	}, nil
}

// PID returns the run id.
func (r *Runner) PID() uuid.UUID {
	return r.pid
}

// Subscribe attaches a consumer to the runner's message stream.
func (r *Runner) Subscribe(pid uuid.UUID, topic msg.Topic) (<-chan msg.Msg, error) {
	return r.pubsub.Subscribe(pid, topic)
}

// Unsubscribe detaches a consumer.
func (r *Runner) Unsubscribe(pid uuid.UUID) {
	r.pubsub.Unsubscribe(pid)
}

// AddDisturb schedules an engine command on top of the case's disturbance
// file, before Run is called.
func (r *Runner) AddDisturb(tm float64, command string) error {
	return r.extra.Add(tm, command)
}

// Run executes the case to t=until and returns an extractor over the
// recorded trajectory. When the engine stops early (for instance when the
// network solution is lost in a collapse) the trajectory recorded up to that
// point is still finalized and returned alongside the error.
func (r *Runner) Run(until float64) (*extractor.Extractor, error) {
	defer r.pubsub.Close()

	log.Println("[Run] Configuring case")
	if err := r.caze.Validate(); err != nil {
		return nil, err
	}
	obs, err := observation.Read(r.caze.GetObs())
	if err != nil {
		return nil, err
	}
	r.pubsub.Publish(msg.Config, Info{RunID: r.pid.String(), Keys: obs.Keys()})
	r.pubsub.Publish(msg.Event, "configured")

	log.Println("[Run] Initializing engine")
	if err := r.eng.ExecSim(r.caze, 0.0); err != nil {
		r.pubsub.Publish(msg.Event, "initialization failed")
		return nil, fmt.Errorf("run: initialization: %v (%v)", err, r.eng.LastErr())
	}
	r.pubsub.Publish(msg.Event, "initialized")

	for _, ev := range r.extra.Events() {
		log.Printf("[Run] Scheduling disturbance t=%.2f %v", ev.Time, ev.Command)
		if err := r.eng.AddDisturb(ev.Time, ev.Command); err != nil {
			return nil, fmt.Errorf("run: disturbance: %v", err)
		}
	}
	r.pubsub.Publish(msg.Event, "disturbed")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for frame := range r.eng.Frames() {
			r.pubsub.Publish(msg.Frame, frame)
		}
	}()

	log.Printf("[Run] Simulating to t=%.1f s", until)
	simErr := r.eng.ContSim(until)
	if simErr != nil {
		simErr = fmt.Errorf("run: simulation: %v", simErr)
		log.Println("[Run]", simErr)
	}

	if err := r.eng.EndSim(); err != nil {
		if simErr == nil {
			simErr = fmt.Errorf("run: finalize: %v", err)
		}
	}
	wg.Wait()
	r.pubsub.Publish(msg.Event, "complete")

	ext, err := extractor.New(r.caze.GetTrj())
	if err != nil {
		if simErr != nil {
			return nil, simErr
		}
		return nil, fmt.Errorf("run: extract: %v", err)
	}
	return ext, simErr
}
