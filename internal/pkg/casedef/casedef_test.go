package casedef

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	err := ioutil.WriteFile(path, []byte("!\n"), 0644)
	assert.NilError(t, err)
	return path
}

func TestValidate(t *testing.T) {
	dir, err := ioutil.TempDir("", "casedef")
	assert.NilError(t, err)
	defer os.RemoveAll(dir)

	c := New()
	c.AddData(touch(t, dir, "dyn.dat"))
	c.AddData(touch(t, dir, "volt_rat.dat"))
	c.AddData(touch(t, dir, "settings.dat"))
	c.AddObs(touch(t, dir, "obs.dat"))
	c.AddDst(touch(t, dir, "trip_g7.dst"))
	c.AddTrj(filepath.Join(dir, "output.trj"))
	c.AddOut(filepath.Join(dir, "output.trace"))

	assert.NilError(t, c.Validate())
}

func TestValidateMissingInput(t *testing.T) {
	dir, err := ioutil.TempDir("", "casedef")
	assert.NilError(t, err)
	defer os.RemoveAll(dir)

	c := New()
	c.AddData(filepath.Join(dir, "no_such.dat"))
	c.AddTrj(filepath.Join(dir, "output.trj"))

	err = c.Validate()
	assert.Assert(t, err != nil, "missing data file passed validation")
}

func TestValidateNoTrajectory(t *testing.T) {
	dir, err := ioutil.TempDir("", "casedef")
	assert.NilError(t, err)
	defer os.RemoveAll(dir)

	c := New()
	c.AddData(touch(t, dir, "dyn.dat"))

	err = c.Validate()
	assert.Assert(t, err != nil, "case without trajectory output passed validation")
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	dir, err := ioutil.TempDir("", "casedef")
	assert.NilError(t, err)
	defer os.RemoveAll(dir)

	touch(t, dir, "dyn.dat")
	cfg := `{"Data": ["dyn.dat"], "Obs": "obs.dat", "Trj": "output.trj"}`
	cfgPath := filepath.Join(dir, "case.json")
	assert.NilError(t, ioutil.WriteFile(cfgPath, []byte(cfg), 0644))

	c, err := Load(cfgPath)
	assert.NilError(t, err)
	assert.Equal(t, c.GetData()[0], filepath.Join(dir, "dyn.dat"))
	assert.Equal(t, c.GetObs(), filepath.Join(dir, "obs.dat"))
	assert.Equal(t, c.GetTrj(), filepath.Join(dir, "output.trj"))
}

func TestCleanOutputs(t *testing.T) {
	dir, err := ioutil.TempDir("", "casedef")
	assert.NilError(t, err)
	defer os.RemoveAll(dir)

	touch(t, dir, "output.trace")
	touch(t, dir, "init.trace")
	touch(t, dir, "output.trj")
	keep := touch(t, dir, "dyn.dat")

	removed, err := CleanOutputs(dir)
	assert.NilError(t, err)
	assert.Equal(t, len(removed), 3)

	_, err = os.Stat(keep)
	assert.NilError(t, err, "data file was removed by cleanup")
}
