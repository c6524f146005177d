package main

import (
	"log"
	"net/http"

	"github.com/sps-lab/ramses-go/internal/pkg/webservice"
)

func main() {
	cfg, err := webservice.LoadConfig("./config/webservice/webservice.json")
	if err != nil {
		panic(err)
	}

	db, err := cfg.Database.Open()
	if err != nil {
		panic(err)
	}
	defer db.Close()

	app := webservice.App{DB: db, Config: cfg}
	r := app.Router()
	http.Handle("/", r)

	addr := cfg.URL + ":" + cfg.Port
	log.Println("Starting Server on", addr)
	http.ListenAndServe(addr, r)
}
