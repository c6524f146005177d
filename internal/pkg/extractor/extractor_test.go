package extractor

import (
	"testing"

	"github.com/sps-lab/ramses-go/internal/pkg/trajectory"
	"gotest.tools/v3/assert"
)

func recorded() *trajectory.Trajectory {
	trj := trajectory.New("run-1", []string{"MS g5", "PG g5", "QG g5", "TM g5", "ZG g5", "BV 1041"})
	trj.Append(trajectory.Frame{Time: 0.0, Values: []float64{0, 540, 120, 540, 0.72, 0.9987}})
	trj.Append(trajectory.Frame{Time: 0.1, Values: []float64{-0.001, 542, 121, 541, 0.7201, 0.9985}})
	return trj
}

func TestGetSync(t *testing.T) {
	e := FromTrajectory(recorded())

	sync, err := e.GetSync("g5")
	assert.NilError(t, err)
	assert.Equal(t, sync.S.Value[1], -0.001)
	assert.Equal(t, sync.P.Value[0], 540.0)
	assert.Equal(t, sync.Q.Value[1], 121.0)
}

func TestGetTor(t *testing.T) {
	e := FromTrajectory(recorded())

	tor, err := e.GetTor("g5")
	assert.NilError(t, err)
	assert.Equal(t, tor.Pm.Value[1], 541.0)
	assert.Equal(t, tor.Z.Value[0], 0.72)
}

func TestGetBus(t *testing.T) {
	e := FromTrajectory(recorded())

	bus, err := e.GetBus("1041")
	assert.NilError(t, err)
	assert.Equal(t, bus.Mag.Value[0], 0.9987)
}

func TestMissingSignalIsAnError(t *testing.T) {
	e := FromTrajectory(recorded())

	_, err := e.GetSync("g9")
	assert.ErrorContains(t, err, "not recorded")

	_, err = e.GetBus("4041")
	assert.ErrorContains(t, err, "not recorded")
}
