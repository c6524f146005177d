package natshandler

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/sps-lab/ramses-go/internal/pkg/msg"
	"gotest.tools/v3/assert"
)

func TestNewSubscribes(t *testing.T) {
	dir, err := ioutil.TempDir("", "natshandler")
	assert.NilError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "nats.json")
	assert.NilError(t, ioutil.WriteFile(path, []byte(`{"Server": "nats://localhost:4222"}`), 0644))

	pid, _ := uuid.NewUUID()
	pubsub := msg.NewPublisher(pid)

	h, err := New(path, pubsub)
	assert.NilError(t, err)
	assert.Assert(t, h.PID() != uuid.UUID{}, "handler has no PID")
}

func TestFrameMsgWireFormat(t *testing.T) {
	data, err := json.Marshal(FrameMsg{
		RunID:  "run-1",
		Keys:   []string{"MS g5", "BV 1041"},
		Time:   10.1,
		Values: []float64{-0.004, 0.991},
	})
	assert.NilError(t, err)

	decoded := FrameMsg{}
	assert.NilError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, decoded.RunID, "run-1")
	assert.Equal(t, decoded.Time, 10.1)
	assert.Equal(t, len(decoded.Values), 2)
}
