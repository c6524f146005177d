// Package natshandler publishes live run telemetry: one JSON message per
// recorded frame on ramses.<runID>.frame, lifecycle strings on
// ramses.<runID>.event.
package natshandler

import (
	"encoding/json"
	"io/ioutil"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/sps-lab/ramses-go/internal/pkg/msg"
	"github.com/sps-lab/ramses-go/internal/pkg/run"
	"github.com/sps-lab/ramses-go/internal/pkg/trajectory"

	nats "github.com/nats-io/nats.go"
)

type Handler struct {
	mux    *sync.Mutex
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	stop   chan bool
}

type config struct {
	Server string `json:"Server"`
}

// FrameMsg is the wire format of one published frame.
type FrameMsg struct {
	RunID  string    `json:"RunID"`
	Keys   []string  `json:"Keys,omitempty"`
	Time   float64   `json:"Time"`
	Values []float64 `json:"Values"`
}

func (h Handler) PID() uuid.UUID {
	return h.pid
}

func redirectMsg(chIn <-chan msg.Msg, chOut chan<- msg.Msg) {
	for m := range chIn {
		chOut <- m
	}
}

// New subscribes a handler to the runner's streams.
func New(configPath string, system msg.Publisher) (Handler, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return Handler{}, err
	}
	cfg := config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Handler{}, err
	}

	pid, err := uuid.NewUUID()
	if err != nil {
		return Handler{}, err
	}

	inbox := make(chan msg.Msg, 50)
	for _, topic := range []msg.Topic{msg.Config, msg.Frame, msg.Event} {
		ch, err := system.Subscribe(pid, topic)
		if err != nil {
			return Handler{}, err
		}
		go redirectMsg(ch, inbox)
	}

	return Handler{
		mux:    &sync.Mutex{},
		inbox:  inbox,
		pid:    pid,
		config: cfg,
		stop:   make(chan bool),
	}, nil
}

func (h *Handler) Stop() {
	h.stop <- true
}

// Process consumes the inbox and publishes to the NATS server until stopped.
func (h Handler) Process() {
	log.Println("[NATS client] Process Started")
	server := h.config.Server
	if server == "" {
		server = nats.DefaultURL
	}
	nc, err := nats.Connect(server)
	if err != nil {
		log.Println("[NATS client]", err)
		return
	}
	defer nc.Close()

	runID := ""
	var keys []string
loop:
	for {
		select {
		case m := <-h.inbox:
			switch m.Topic() {
			case msg.Config:
				if info, ok := m.Payload().(run.Info); ok {
					runID = info.RunID
					keys = info.Keys
				}

			case msg.Frame:
				frame, ok := m.Payload().(trajectory.Frame)
				if !ok || runID == "" {
					continue
				}
				data, err := json.Marshal(FrameMsg{
					RunID:  runID,
					Keys:   keys,
					Time:   frame.Time,
					Values: frame.Values,
				})
				if err != nil {
					continue
				}
				if err := nc.Publish("ramses."+runID+".frame", data); err != nil {
					log.Printf("[NATS client] unable to publish: %v", err)
				}

			case msg.Event:
				status, ok := m.Payload().(string)
				if !ok || runID == "" {
					continue
				}
				if err := nc.Publish("ramses."+runID+".event", []byte(status)); err != nil {
					log.Printf("[NATS client] unable to publish: %v", err)
				}
			}

		case <-h.stop:
			nc.Close()
			break loop
		}
	}
	log.Println("[NATS client] Process Shutdown")
}
