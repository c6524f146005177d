package plot

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/sps-lab/ramses-go/internal/pkg/trajectory"
	"gotest.tools/v3/assert"
)

func TestSeries(t *testing.T) {
	dir, err := ioutil.TempDir("", "plot")
	assert.NilError(t, err)
	defer os.RemoveAll(dir)

	s := trajectory.Series{
		Key:   "BV 1041",
		Time:  []float64{0, 0.1, 0.2, 0.3},
		Value: []float64{0.9987, 0.9985, 0.9981, 0.9978},
	}

	path := filepath.Join(dir, "voltage.png")
	assert.NilError(t, Series(s, "Bus 1041 voltage", "V (pu)", path))

	info, err := os.Stat(path)
	assert.NilError(t, err)
	assert.Assert(t, info.Size() > 0, "plot file is empty")
}

func TestSeriesEmpty(t *testing.T) {
	s := trajectory.Series{Key: "MS g5"}
	err := Series(s, "speed", "pu", "unused.png")
	assert.ErrorContains(t, err, "no samples")
}
