// Package hil bridges a run to a hardware-in-the-loop target: each recorded
// frame, the mapped signals are written to holding registers of a Modbus TCP
// device, so protection or control hardware under test sees the simulated
// system live.
package hil

import (
	"encoding/json"
	"io/ioutil"
	"log"
	"os"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/google/uuid"
	"github.com/sps-lab/ramses-go/internal/pkg/msg"
	"github.com/sps-lab/ramses-go/internal/pkg/run"
	"github.com/sps-lab/ramses-go/internal/pkg/trajectory"
)

type Handler struct {
	mux     *sync.Mutex
	handler *modbus.TCPClientHandler
	inbox   <-chan msg.Msg
	pid     uuid.UUID
	config  config
	stop    chan bool
}

type config struct {
	IPAddr       string     `json:"IPAddr"`
	Port         string     `json:"Port"`
	SlaveID      byte       `json:"SlaveID"`
	Timeout      int        `json:"Timeout"`
	EnableLogger bool       `json:"EnableLogger"`
	Registers    []Register `json:"Registers"`
}

func (h Handler) PID() uuid.UUID {
	return h.pid
}

func redirectMsg(chIn <-chan msg.Msg, chOut chan<- msg.Msg) {
	for m := range chIn {
		chOut <- m
	}
}

// New reads the bridge config and subscribes to the runner's streams.
func New(configPath string, system msg.Publisher) (Handler, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return Handler{}, err
	}
	cfg := config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Handler{}, err
	}
	if err := validateRegisters(cfg.Registers); err != nil {
		return Handler{}, err
	}

	handler := modbus.NewTCPClientHandler(cfg.IPAddr + ":" + cfg.Port)
	handler.Timeout = time.Millisecond * time.Duration(cfg.Timeout)
	handler.SlaveId = cfg.SlaveID
	if cfg.EnableLogger {
		handler.Logger = log.New(os.Stdout, "modbus: ", log.LstdFlags)
	}

	pid, err := uuid.NewUUID()
	if err != nil {
		return Handler{}, err
	}

	inbox := make(chan msg.Msg, 50)
	for _, topic := range []msg.Topic{msg.Config, msg.Frame} {
		ch, err := system.Subscribe(pid, topic)
		if err != nil {
			return Handler{}, err
		}
		go redirectMsg(ch, inbox)
	}

	return Handler{
		mux:     &sync.Mutex{},
		handler: handler,
		inbox:   inbox,
		pid:     pid,
		config:  cfg,
		stop:    make(chan bool),
	}, nil
}

func (h *Handler) Stop() {
	h.stop <- true
}

// columns maps each configured register to its frame column, -1 if the
// signal is not observed.
func (h Handler) columns(keys []string) []int {
	cols := make([]int, len(h.config.Registers))
	for i, r := range h.config.Registers {
		cols[i] = -1
		for j, key := range keys {
			if key == r.Signal {
				cols[i] = j
				break
			}
		}
		if cols[i] < 0 {
			log.Printf("[HIL] signal %q not observed, register %v will not update", r.Signal, r.Address)
		}
	}
	return cols
}

// Process consumes frames and writes mapped registers until stopped.
func (h Handler) Process() {
	log.Println("[HIL] Process Started")
	if err := h.handler.Connect(); err != nil {
		log.Println("[HIL]", err)
		return
	}
	defer h.handler.Close()
	client := modbus.NewClient(h.handler)

	var cols []int
loop:
	for {
		select {
		case m := <-h.inbox:
			switch m.Topic() {
			case msg.Config:
				if info, ok := m.Payload().(run.Info); ok {
					cols = h.columns(info.Keys)
				}

			case msg.Frame:
				frame, ok := m.Payload().(trajectory.Frame)
				if !ok || cols == nil {
					continue
				}
				h.writeFrame(client, cols, frame)
			}

		case <-h.stop:
			break loop
		}
	}
	log.Println("[HIL] Process Shutdown")
}

func (h Handler) writeFrame(client modbus.Client, cols []int, frame trajectory.Frame) {
	for i, r := range h.config.Registers {
		if cols[i] < 0 || cols[i] >= len(frame.Values) {
			continue
		}
		val := r.scaled(frame.Values[cols[i]])
		_, err := client.WriteMultipleRegisters(r.Address, sizeOf(r.DataType), encode(val, r))
		if err != nil {
			log.Printf("[HIL] register %v (%v): %v", r.Address, r.Signal, err)
		}
	}
}
