package observation

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/sps-lab/ramses-go/internal/pkg/dynfile"
	"gotest.tools/v3/assert"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "observation")
	assert.NilError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, name)
	assert.NilError(t, ioutil.WriteFile(path, []byte(body), 0644))
	return path
}

func smallModel(t *testing.T) *dynfile.Model {
	t.Helper()
	path := writeFile(t, "dyn.dat", `BUS 1041 130.0 LOAD ;
BUS g5 15.0 GEN ;
SYNC_MACH g5 g5 850.0 720.0 3.0 2.2 2.0 0.3 0.4 ;
`)
	m, err := dynfile.Read(path)
	assert.NilError(t, err)
	return m
}

func TestRead(t *testing.T) {
	path := writeFile(t, "obs.dat", `! tutorial observation list
MS g5 ;
ZG g5 ;
TM g5 ;
PG g5 ;
BV 1041 ;
QG g5 ;
`)
	list, err := Read(path)
	assert.NilError(t, err)
	assert.Equal(t, len(list), 6)
	assert.Equal(t, list[0].Key(), "MS g5")
	assert.Equal(t, list[4].Key(), "BV 1041")
}

func TestReadUnknownKind(t *testing.T) {
	path := writeFile(t, "obs.dat", "XX g5 ;\n")
	_, err := Read(path)
	assert.ErrorContains(t, err, "unknown signal kind")
}

func TestValidate(t *testing.T) {
	m := smallModel(t)

	list := List{{Kind: Speed, Target: "g5"}, {Kind: BusVoltage, Target: "1041"}}
	assert.NilError(t, list.Validate(m))
}

func TestValidateUnknownTarget(t *testing.T) {
	m := smallModel(t)

	list := List{{Kind: Speed, Target: "g99"}}
	err := list.Validate(m)
	assert.ErrorContains(t, err, "not in dynamic data")

	list = List{{Kind: BusVoltage, Target: "9999"}}
	err = list.Validate(m)
	assert.ErrorContains(t, err, "not in dynamic data")
}
