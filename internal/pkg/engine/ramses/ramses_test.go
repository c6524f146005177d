package ramses

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sps-lab/ramses-go/internal/pkg/casedef"
	"gotest.tools/v3/assert"
)

const stubSolver = `#!/bin/sh
while read cmd rest; do
	case "$cmd" in
	EXEC)
		echo "initialization converged"
		echo "step size reduced near t=0" >&2
		echo "FRAME 0 1.0"
		echo "OK"
		;;
	CONTSIM)
		echo "FRAME 0.5 0.99"
		echo "FRAME 1.0 0.98"
		echo "OK"
		;;
	DATA)
		case "$rest" in
		*missing*) echo "ERR cannot open $rest" ;;
		*) echo "OK" ;;
		esac
		;;
	END)
		echo "OK"
		exit 0
		;;
	*)
		echo "OK"
		;;
	esac
done
`

func stubDriver(t *testing.T) (*Driver, string) {
	t.Helper()
	dir, err := ioutil.TempDir("", "ramses")
	assert.NilError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	script := filepath.Join(dir, "solver.sh")
	assert.NilError(t, ioutil.WriteFile(script, []byte(stubSolver), 0755))

	cfgPath := filepath.Join(dir, "ramses.json")
	cfg := fmt.Sprintf(`{"Binary": "/bin/sh", "Args": [%q]}`, script)
	assert.NilError(t, ioutil.WriteFile(cfgPath, []byte(cfg), 0644))

	d, err := New(cfgPath)
	assert.NilError(t, err)
	return d, dir
}

func stubCase(t *testing.T, dir, dataName string) *casedef.Case {
	t.Helper()
	data := filepath.Join(dir, dataName)
	assert.NilError(t, ioutil.WriteFile(data, []byte("!\n"), 0644))

	c := casedef.New()
	c.AddData(data)
	c.AddTrj(filepath.Join(dir, "output.trj"))
	return c
}

func TestLifecycle(t *testing.T) {
	d, dir := stubDriver(t)
	c := stubCase(t, dir, "dyn.dat")

	assert.NilError(t, d.ExecSim(c, 0.0))
	assert.NilError(t, d.AddDisturb(10.0, "BREAKER SYNC_MACH g7 0"))
	assert.NilError(t, d.ContSim(1.0))

	frames := d.Frames()
	assert.NilError(t, d.EndSim())

	count := 0
	last := 0.0
	for f := range frames {
		count++
		last = f.Time
	}
	assert.Equal(t, count, 3, "expected the stub's three FRAME lines")
	assert.Equal(t, last, 1.0)
}

func TestSolverStderrForwarded(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	d, dir := stubDriver(t)
	c := stubCase(t, dir, "dyn.dat")

	assert.NilError(t, d.ExecSim(c, 0.0))
	// EndSim drains stderr before returning
	assert.NilError(t, d.EndSim())

	assert.Assert(t, strings.Contains(buf.String(), "step size reduced"),
		"solver stderr diagnostics missing from the log: %v", buf.String())
}

func TestSolverError(t *testing.T) {
	d, dir := stubDriver(t)
	c := stubCase(t, dir, "missing_grammar.dat")

	err := d.ExecSim(c, 0.0)
	assert.ErrorContains(t, err, "cannot open")
	assert.Assert(t, d.LastErr() != "", "LastErr empty after solver ERR")
}

func TestConfigWithoutBinary(t *testing.T) {
	dir, err := ioutil.TempDir("", "ramses")
	assert.NilError(t, err)
	defer os.RemoveAll(dir)

	cfgPath := filepath.Join(dir, "ramses.json")
	assert.NilError(t, ioutil.WriteFile(cfgPath, []byte(`{"WorkDir": "."}`), 0644))

	_, err = New(cfgPath)
	assert.ErrorContains(t, err, "no solver binary")
}
