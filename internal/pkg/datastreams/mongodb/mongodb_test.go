package mongodb

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/sps-lab/ramses-go/internal/pkg/msg"
	"gotest.tools/v3/assert"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "mongodb")
	assert.NilError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "mongodb.json")
	cfg := `{"URI": "mongodb://localhost", "Port": "27017", "Database": "ramses"}`
	assert.NilError(t, ioutil.WriteFile(path, []byte(cfg), 0644))
	return path
}

func TestNewSubscribes(t *testing.T) {
	pid, _ := uuid.NewUUID()
	pubsub := msg.NewPublisher(pid)

	h, err := New(writeConfig(t), pubsub)
	assert.NilError(t, err)
	assert.Assert(t, h.PID() != uuid.UUID{}, "handler has no PID")
}

func TestNewMissingConfig(t *testing.T) {
	pid, _ := uuid.NewUUID()
	pubsub := msg.NewPublisher(pid)

	_, err := New("no_such_config.json", pubsub)
	assert.Assert(t, err != nil, "missing config accepted")
}
