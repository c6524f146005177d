package powerflow

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func writeSolution(t *testing.T, body string) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "powerflow")
	assert.NilError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "volt_rat.dat")
	assert.NilError(t, ioutil.WriteFile(path, []byte(body), 0644))
	return path
}

func TestRead(t *testing.T) {
	path := writeSolution(t, `! operating point
LFRESV 1041 0.9987 -0.1432 ;
LFRESV 4041 1.0042 -0.0918 ;
LFRESV g7   1.0300  0.2104 ;
`)
	sol, err := Read(path)
	assert.NilError(t, err)
	assert.Equal(t, len(sol), 3)

	v, err := sol.At("1041")
	assert.NilError(t, err)
	assert.Equal(t, v.Magnitude, 0.9987)
	assert.Equal(t, v.Angle, -0.1432)
}

func TestReadMalformed(t *testing.T) {
	path := writeSolution(t, "LFRESV 1041 0.9987 ;\n")
	_, err := Read(path)
	assert.ErrorContains(t, err, "malformed LFRESV")
}

func TestAtUnknownBus(t *testing.T) {
	path := writeSolution(t, "LFRESV 1041 0.9987 -0.1432 ;\n")
	sol, err := Read(path)
	assert.NilError(t, err)

	_, err = sol.At("9999")
	assert.ErrorContains(t, err, "no solution for bus")
}
