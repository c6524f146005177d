// Package ramses drives the external dynamic-simulation solver as a
// subprocess. The solver exposes a line protocol on its standard streams:
// the driver sends one command per line and the solver answers with OK or
// ERR, streaming FRAME lines while it integrates.
//
//	DATA <path>        bind a data file
//	DST <path>         bind the disturbance file
//	OBS <path>         bind the observation file
//	TRJ <path>         bind the trajectory output
//	OUT|INIT|CONT|DISC <path>
//	EXEC <t>           initialize and advance to t
//	DISTURB <t> <cmd>  schedule an event
//	CONTSIM <t>        advance to t
//	END                finalize and exit
package ramses

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/sps-lab/ramses-go/internal/pkg/casedef"
	"github.com/sps-lab/ramses-go/internal/pkg/trajectory"
)

type config struct {
	Binary  string   `json:"Binary"`
	Args    []string `json:"Args"`
	WorkDir string   `json:"WorkDir"`
}

// Driver implements engine.Engine over a solver subprocess.
type Driver struct {
	config   config
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   *bufio.Scanner
	stderrWg sync.WaitGroup
	frames   chan trajectory.Frame
	lastErr  string
}

// New reads the driver config and starts the solver process.
func New(configPath string) (*Driver, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg := config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return nil, err
	}
	if cfg.Binary == "" {
		return nil, fmt.Errorf("ramses: config %v names no solver binary", configPath)
	}

	cmd := exec.Command(cfg.Binary, cfg.Args...)
	cmd.Dir = cfg.WorkDir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ramses: starting %v: %v", cfg.Binary, err)
	}
	log.Println("[RAMSES] solver started:", cfg.Binary)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	d := &Driver{
		config: cfg,
		cmd:    cmd,
		stdin:  stdin,
		stdout: scanner,
		frames: make(chan trajectory.Frame, 100),
	}

	// solver diagnostics, forwarded to the log like stdout chatter
	d.stderrWg.Add(1)
	go func() {
		defer d.stderrWg.Done()
		errScanner := bufio.NewScanner(stderr)
		for errScanner.Scan() {
			log.Println("[RAMSES]", errScanner.Text())
		}
	}()

	return d, nil
}

// LastErr returns the solver's last error trace.
func (d *Driver) LastErr() string {
	return d.lastErr
}

// Frames exposes the solver's output sample stream.
func (d *Driver) Frames() <-chan trajectory.Frame {
	return d.frames
}

// send writes one command and consumes solver output until OK or ERR,
// forwarding FRAME lines to the sample stream.
func (d *Driver) send(command string) error {
	if _, err := io.WriteString(d.stdin, command+"\n"); err != nil {
		return fmt.Errorf("ramses: writing %q: %v", command, err)
	}
	for d.stdout.Scan() {
		line := strings.TrimSpace(d.stdout.Text())
		switch {
		case line == "OK":
			return nil
		case strings.HasPrefix(line, "ERR"):
			d.lastErr = strings.TrimSpace(strings.TrimPrefix(line, "ERR"))
			return fmt.Errorf("ramses: %v: %v", command, d.lastErr)
		case strings.HasPrefix(line, "FRAME "):
			frame, err := parseFrame(line)
			if err != nil {
				log.Println("[RAMSES]", err)
				continue
			}
			select {
			case d.frames <- frame:
			default:
			}
		default:
			// solver chatter, forwarded to the log like the output trace
			log.Println("[RAMSES]", line)
		}
	}
	if err := d.stdout.Err(); err != nil {
		return fmt.Errorf("ramses: reading solver output: %v", err)
	}
	return fmt.Errorf("ramses: solver exited during %q", command)
}

func parseFrame(line string) (trajectory.Frame, error) {
	fields := strings.Fields(line)[1:]
	if len(fields) < 1 {
		return trajectory.Frame{}, fmt.Errorf("empty FRAME line")
	}
	vals := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return trajectory.Frame{}, fmt.Errorf("bad FRAME value %q", field)
		}
		vals[i] = v
	}
	return trajectory.Frame{Time: vals[0], Values: vals[1:]}, nil
}

// ExecSim binds the case files and initializes the solver to t=until.
func (d *Driver) ExecSim(c *casedef.Case, until float64) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("ramses: %v", err)
	}
	for _, path := range c.GetData() {
		if err := d.send("DATA " + path); err != nil {
			return err
		}
	}
	binds := []struct{ word, path string }{
		{"DST", c.GetDst()},
		{"OBS", c.GetObs()},
		{"TRJ", c.GetTrj()},
		{"OUT", c.GetOut()},
		{"INIT", c.GetInit()},
		{"CONT", c.GetCont()},
		{"DISC", c.GetDisc()},
	}
	for _, b := range binds {
		if b.path == "" {
			continue
		}
		if err := d.send(b.word + " " + b.path); err != nil {
			return err
		}
	}
	return d.send(fmt.Sprintf("EXEC %g", until))
}

// AddDisturb schedules a command at simulation time tm.
func (d *Driver) AddDisturb(tm float64, command string) error {
	return d.send(fmt.Sprintf("DISTURB %g %s", tm, command))
}

// ContSim advances the simulation to t=until.
func (d *Driver) ContSim(until float64) error {
	return d.send(fmt.Sprintf("CONTSIM %g", until))
}

// EndSim finalizes the trajectory and waits for the solver to exit.
func (d *Driver) EndSim() error {
	err := d.send("END")
	d.stdin.Close()
	close(d.frames)
	// the solver has exited by now, so its stderr drains to EOF before Wait
	// closes the pipe
	d.stderrWg.Wait()
	if waitErr := d.cmd.Wait(); waitErr != nil && err == nil {
		err = fmt.Errorf("ramses: solver exit: %v", waitErr)
	}
	return err
}
