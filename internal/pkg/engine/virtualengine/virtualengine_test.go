package virtualengine

import (
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sps-lab/ramses-go/internal/pkg/casedef"
	"github.com/sps-lab/ramses-go/internal/pkg/trajectory"
	"gotest.tools/v3/assert"
)

func testCase(t *testing.T, dst string) *casedef.Case {
	t.Helper()
	dir, err := ioutil.TempDir("", "virtualengine")
	assert.NilError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	c := casedef.New()
	c.AddData("testdata/dyn.dat")
	c.AddData("testdata/volt_rat.dat")
	c.AddData("testdata/settings.dat")
	c.AddObs("testdata/obs.dat")
	if dst != "" {
		c.AddDst(filepath.Join("testdata", dst))
	}
	c.AddTrj(filepath.Join(dir, "output.trj"))
	c.AddOut(filepath.Join(dir, "output.trace"))
	c.AddInit(filepath.Join(dir, "init.trace"))
	c.AddDisc(filepath.Join(dir, "disc.trace"))
	return c
}

func drain(e *VirtualEngine) {
	for range e.Frames() {
	}
}

func runCase(t *testing.T, c *casedef.Case, until float64) (*trajectory.Trajectory, error) {
	t.Helper()
	e, err := New("")
	assert.NilError(t, err)
	go drain(e)

	assert.NilError(t, e.ExecSim(c, 0.0))
	simErr := e.ContSim(until)
	assert.NilError(t, e.EndSim())

	trj, err := trajectory.Read(c.GetTrj())
	assert.NilError(t, err)
	return trj, simErr
}

func TestBaselineHoldsOperatingPoint(t *testing.T) {
	c := testCase(t, "nothing.dst")
	trj, simErr := runCase(t, c, 150.0)
	assert.NilError(t, simErr)
	assert.Assert(t, trj.Len() > 100, "baseline run recorded too few frames")

	for _, key := range trj.Keys {
		s, err := trj.Get(key)
		assert.NilError(t, err)
		for i, v := range s.Value {
			if math.Abs(v-s.Value[0]) > 1e-9 {
				t.Fatalf("signal %q drifted from its t=0 value at frame %d: %v -> %v", key, i, s.Value[0], v)
			}
		}
	}
}

func TestTripRemovesRatedOutput(t *testing.T) {
	c := testCase(t, "trip_g7.dst")
	trj, _ := runCase(t, c, 12.0)

	total := func(row int) float64 {
		sum := 0.0
		for _, key := range []string{"PG g5", "PG g7", "PG g15"} {
			s, err := trj.Get(key)
			assert.NilError(t, err)
			sum += s.Value[row]
		}
		return sum
	}

	before, after := -1, -1
	for i, tm := range trj.Times {
		if tm < 10.0 {
			before = i
		}
		if after < 0 && tm > 10.05 {
			after = i
		}
	}
	assert.Assert(t, before >= 0 && after > before, "no frames bracket the trip time")

	// g7 carries 700 MW at the operating point
	drop := total(before) - total(after)
	assert.Assert(t, math.Abs(drop-700.0) < 15.0,
		"generation change across the trip is %v MW, want about 700", drop)

	g7, err := trj.Get("PG g7")
	assert.NilError(t, err)
	assert.Equal(t, g7.Value[after], 0.0, "g7 still producing after its breaker opened")
}

func TestTripDepressesVoltageAndFrequency(t *testing.T) {
	c := testCase(t, "trip_g7.dst")
	trj, _ := runCase(t, c, 40.0)

	last := trj.Len() - 1
	bv, err := trj.Get("BV 1041")
	assert.NilError(t, err)
	assert.Assert(t, bv.Value[last] < bv.Value[0], "voltage did not decline after losing reactive support")

	ms, err := trj.Get("MS g5")
	assert.NilError(t, err)
	assert.Assert(t, ms.Value[last] < 0, "frequency did not drop after losing 700 MW")
}

func TestDeterminism(t *testing.T) {
	c1 := testCase(t, "trip_g7.dst")
	trj1, _ := runCase(t, c1, 30.0)

	c2 := testCase(t, "trip_g7.dst")
	trj2, _ := runCase(t, c2, 30.0)

	// run ids differ, samples must not
	trj2.RunID = trj1.RunID
	assert.Assert(t, trj1.Equal(trj2), "identical configuration produced different trajectories")
}

func TestUnknownObservationFailsAtConfiguration(t *testing.T) {
	dir, err := ioutil.TempDir("", "virtualengine")
	assert.NilError(t, err)
	defer os.RemoveAll(dir)

	obs := filepath.Join(dir, "obs.dat")
	assert.NilError(t, ioutil.WriteFile(obs, []byte("MS g99 ;\n"), 0644))

	c := testCase(t, "nothing.dst")
	c.AddObs(obs)

	e, err := New("")
	assert.NilError(t, err)
	err = e.ExecSim(c, 0.0)
	assert.ErrorContains(t, err, "not in dynamic data")
	assert.Assert(t, e.LastErr() != "", "LastErr empty after configuration failure")
}

func TestAddDisturbInThePast(t *testing.T) {
	c := testCase(t, "nothing.dst")
	e, err := New("")
	assert.NilError(t, err)
	go drain(e)

	assert.NilError(t, e.ExecSim(c, 5.0))
	err = e.AddDisturb(1.0, "BREAKER SYNC_MACH g7 0")
	assert.ErrorContains(t, err, "already at")
}

func TestEndSimWriteFailureClosesFrames(t *testing.T) {
	c := testCase(t, "nothing.dst")
	c.AddTrj(filepath.Join(filepath.Dir(c.GetTrj()), "no_such_dir", "output.trj"))

	e, err := New("")
	assert.NilError(t, err)

	assert.NilError(t, e.ExecSim(c, 0.0))
	assert.NilError(t, e.ContSim(5.0))
	err = e.EndSim()
	assert.Assert(t, err != nil, "EndSim succeeded with an unwritable trajectory path")

	// the stream must still terminate so consumers do not hang
	for range e.Frames() {
	}
}

func TestUnsupportedCommand(t *testing.T) {
	c := testCase(t, "nothing.dst")
	e, err := New("")
	assert.NilError(t, err)
	go drain(e)

	assert.NilError(t, e.ExecSim(c, 0.0))
	assert.NilError(t, e.AddDisturb(1.0, "SETPOINT LOAD L1041 500"))
	err = e.ContSim(5.0)
	assert.ErrorContains(t, err, "unsupported command")
}
