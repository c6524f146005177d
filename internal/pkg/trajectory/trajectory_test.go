package trajectory

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func sample() *Trajectory {
	t := New("run-1", []string{"MS g5", "BV 1041"})
	t.Append(Frame{Time: 0.0, Values: []float64{0.0, 0.9987}})
	t.Append(Frame{Time: 0.02, Values: []float64{-0.0003, 0.9981}})
	t.Append(Frame{Time: 0.04, Values: []float64{-0.00061, 0.99752}})
	return t
}

func TestAppendAndGet(t *testing.T) {
	trj := sample()
	assert.Equal(t, trj.Len(), 3)

	s, err := trj.Get("BV 1041")
	assert.NilError(t, err)
	assert.Equal(t, s.Value[0], 0.9987)
	assert.Equal(t, s.Value[2], 0.99752)

	_, err = trj.Get("MS g9")
	assert.ErrorContains(t, err, "not recorded")
}

func TestAppendWrongWidth(t *testing.T) {
	trj := sample()
	err := trj.Append(Frame{Time: 0.06, Values: []float64{1.0}})
	assert.ErrorContains(t, err, "frame carries")
}

func TestWriteRead(t *testing.T) {
	dir, err := ioutil.TempDir("", "trajectory")
	assert.NilError(t, err)
	defer os.RemoveAll(dir)

	trj := sample()
	path := filepath.Join(dir, "output.trj")
	assert.NilError(t, trj.Write(path))

	got, err := Read(path)
	assert.NilError(t, err)
	assert.Equal(t, got.RunID, "run-1")
	assert.Assert(t, trj.Equal(got), "trajectory changed across write/read")
}

func TestReadTruncated(t *testing.T) {
	dir, err := ioutil.TempDir("", "trajectory")
	assert.NilError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "output.trj")
	body := "TRJ 1 run-1\nOBS MS g5\nDATA\n0 0\n"
	assert.NilError(t, ioutil.WriteFile(path, []byte(body), 0644))

	_, err = Read(path)
	assert.ErrorContains(t, err, "no END record")
}
