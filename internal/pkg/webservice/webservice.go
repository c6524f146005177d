// Package webservice serves recorded runs over HTTP, reading the rows the
// sqldb datastream wrote.
package webservice

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	_ "github.com/lib/pq"
)

type Config struct {
	URL      string   `json:"URL"`
	Port     string   `json:"Port"`
	Database DBConfig `json:"Database"`
}

// DBConfig locates the Postgres database the sqldb datastream writes to.
type DBConfig struct {
	Server   string `json:"Server"`
	Port     int    `json:"Port"`
	Username string `json:"Username"`
	Password string `json:"Password"`
	Database string `json:"Database"`
}

// Open connects to the configured database.
func (c DBConfig) Open() (*sql.DB, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Server, c.Port, c.Username, c.Password, c.Database)
	return sql.Open("postgres", psqlInfo)
}

// App bundles the router's dependencies.
type App struct {
	DB     *sql.DB
	Config Config
}

// LoadConfig reads the service config from a JSON file.
func LoadConfig(configPath string) (Config, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{}
	err = json.Unmarshal(jsonConfig, &cfg)
	return cfg, err
}

// Router returns the service's route table.
func (app *App) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", app.BaseHandler)
	r.HandleFunc("/runs", app.RunsHandler).Methods("GET")
	r.HandleFunc("/runs/{runid}", app.RunHandler).Methods("GET")
	r.HandleFunc("/runs/{runid}/signals/{signal}", app.SignalHandler).Methods("GET")
	return r
}

func (app *App) BaseHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
}

type runSummary struct {
	RunID  string   `json:"RunID"`
	Keys   []string `json:"Keys"`
	Status string   `json:"Status"`
}

// RunsHandler lists archived runs.
func (app *App) RunsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	if app.DB == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	rows, err := app.DB.Query(`SELECT runid, keys, status FROM runs ORDER BY runid`)
	if err != nil {
		log.Println("[Webservice]", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	summaries := []runSummary{}
	for rows.Next() {
		var s runSummary
		var keys string
		if err := rows.Scan(&s.RunID, &keys, &s.Status); err != nil {
			log.Println("[Webservice]", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		s.Keys = strings.Split(keys, ",")
		summaries = append(summaries, s)
	}
	json.NewEncoder(w).Encode(summaries)
}

// RunHandler returns one run's summary.
func (app *App) RunHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	if app.DB == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	var s runSummary
	var keys string
	err := app.DB.QueryRow(
		`SELECT runid, keys, status FROM runs WHERE runid = $1`, vars["runid"],
	).Scan(&s.RunID, &keys, &s.Status)
	switch {
	case err == sql.ErrNoRows:
		w.WriteHeader(http.StatusNotFound)
		return
	case err != nil:
		log.Println("[Webservice]", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.Keys = strings.Split(keys, ",")
	json.NewEncoder(w).Encode(s)
}

type seriesResponse struct {
	RunID  string    `json:"RunID"`
	Signal string    `json:"Signal"`
	Time   []float64 `json:"Time"`
	Value  []float64 `json:"Value"`
}

// SignalHandler returns one recorded series. The signal path segment uses
// `+` in place of the key's space, e.g. /runs/<id>/signals/BV+1041.
func (app *App) SignalHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	if app.DB == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	signal := strings.ReplaceAll(vars["signal"], "+", " ")
	rows, err := app.DB.Query(
		`SELECT t, value FROM samples WHERE runid = $1 AND signal = $2 ORDER BY t`,
		vars["runid"], signal)
	if err != nil {
		log.Println("[Webservice]", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	resp := seriesResponse{RunID: vars["runid"], Signal: signal}
	for rows.Next() {
		var tm, val float64
		if err := rows.Scan(&tm, &val); err != nil {
			log.Println("[Webservice]", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp.Time = append(resp.Time, tm)
		resp.Value = append(resp.Value, val)
	}
	if len(resp.Time) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(resp)
}
