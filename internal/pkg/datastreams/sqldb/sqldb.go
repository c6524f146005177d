// Package sqldb streams recorded samples into Postgres, one row per signal
// per frame, for the webservice to query.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sps-lab/ramses-go/internal/pkg/msg"
	"github.com/sps-lab/ramses-go/internal/pkg/run"
	"github.com/sps-lab/ramses-go/internal/pkg/trajectory"

	_ "github.com/lib/pq"
)

type Handler struct {
	mux    *sync.Mutex
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	stop   chan bool
}

type config struct {
	Server   string `json:"Server"`
	Port     int    `json:"Port"`
	Username string `json:"Username"`
	Password string `json:"Password"`
	Database string `json:"Database"`
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

// DB opens the configured Postgres database.
func (h Handler) DB() (*sql.DB, error) {
	uri := fmt.Sprintf("postgres://%v:%v@%v:%v/%v?sslmode=disable",
		h.config.Username, h.config.Password, h.config.Server, h.config.Port, h.config.Database)
	return sql.Open("postgres", uri)
}

// Process consumes the inbox and writes rows until stopped.
func (h Handler) Process() {
	db, err := h.DB()
	if err != nil {
		log.Println("[SQL]", err)
		return
	}
	defer db.Close()

	if err := initDBTables(db); err != nil {
		log.Println("[SQL]", err)
		return
	}

	runID := ""
	var keys []string
loop:
	for {
		select {
		case m := <-h.inbox:
			switch m.Topic() {
			case msg.Config:
				info, ok := m.Payload().(run.Info)
				if !ok {
					continue
				}
				runID = info.RunID
				keys = info.Keys
				ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
				_, err := db.ExecContext(ctx,
					`INSERT INTO runs (runid, keys, status) VALUES ($1, $2, $3)
					 ON CONFLICT (runid) DO UPDATE SET keys = $2, status = $3`,
					runID, strings.Join(keys, ","), "configured")
				cancel()
				if err != nil {
					log.Printf("[SQL] run insert: %v", err)
				}

			case msg.Frame:
				frame, ok := m.Payload().(trajectory.Frame)
				if !ok || runID == "" || len(frame.Values) != len(keys) {
					continue
				}
				ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
				for i, key := range keys {
					_, err := db.ExecContext(ctx,
						`INSERT INTO samples (runid, t, signal, value) VALUES ($1, $2, $3, $4)`,
						runID, frame.Time, key, frame.Values[i])
					if err != nil {
						log.Printf("[SQL] sample insert: %v", err)
						break
					}
				}
				cancel()

			case msg.Event:
				status, ok := m.Payload().(string)
				if !ok || runID == "" {
					continue
				}
				ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
				_, err := db.ExecContext(ctx,
					`UPDATE runs SET status = $2 WHERE runid = $1`, runID, status)
				cancel()
				if err != nil {
					log.Printf("[SQL] status update: %v", err)
				}
			}

		case <-h.stop:
			break loop
		}
	}
	log.Println("[SQL] Process Shutdown")
}

func initDBTables(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			runid VARCHAR(36) PRIMARY KEY,
			keys TEXT NOT NULL,
			status VARCHAR(32) NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS samples (
			runid VARCHAR(36) NOT NULL,
			t DOUBLE PRECISION NOT NULL,
			signal TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL)`,
		`CREATE INDEX IF NOT EXISTS samples_run_signal ON samples (runid, signal)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
