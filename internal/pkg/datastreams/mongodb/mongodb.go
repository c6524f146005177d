// Package mongodb archives runs: one document per run in the runs
// collection, one document per recorded frame in the trajectories
// collection.
package mongodb

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/sps-lab/ramses-go/internal/pkg/msg"
	"github.com/sps-lab/ramses-go/internal/pkg/run"
	"github.com/sps-lab/ramses-go/internal/pkg/trajectory"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Handler struct {
	mux    *sync.Mutex
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	stop   chan bool
}

type config struct {
	URI      string `json:"URI"`
	Port     string `json:"Port"`
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

// New subscribes a handler to the runner's config, frame and event streams.
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

// Process consumes the inbox and writes to MongoDB until stopped.
func (h Handler) Process() {
	client, err := mongo.NewClient(options.Client().ApplyURI(h.config.URI + ":" + h.config.Port))
	if err != nil {
		log.Println("[Mongo]", err)
		return
	}

	ctx := context.TODO()
	if err := client.Connect(ctx); err != nil {
		log.Println("[Mongo]", err)
		return
	}
	defer client.Disconnect(ctx)

	runs := client.Database(h.config.Database).Collection("runs")
	trajectories := client.Database(h.config.Database).Collection("trajectories")

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
				opts := options.Update().SetUpsert(true)
				_, err := runs.UpdateOne(ctx,
					bson.M{"runid": runID},
					bson.D{{Key: "$set", Value: bson.M{"runid": runID, "keys": keys, "status": "configured"}}},
					opts,
				)
				if err != nil {
					log.Println("[Mongo]", err)
				}

			case msg.Frame:
				frame, ok := m.Payload().(trajectory.Frame)
				if !ok || runID == "" {
					continue
				}
				_, err := trajectories.InsertOne(ctx, bson.M{
					"runid":  runID,
					"t":      frame.Time,
					"values": frame.Values,
				})
				if err != nil {
					log.Println("[Mongo]", err)
				}

			case msg.Event:
				status, ok := m.Payload().(string)
				if !ok || runID == "" {
					continue
				}
				opts := options.Update().SetUpsert(true)
				_, err := runs.UpdateOne(ctx,
					bson.M{"runid": runID},
					bson.D{{Key: "$set", Value: bson.M{"status": status}}},
					opts,
				)
				if err != nil {
					log.Println("[Mongo]", err)
				}
			}

		case <-h.stop:
			break loop
		}
	}
	log.Println("[Mongo] Process Shutdown")
}
