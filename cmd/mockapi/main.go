package main

import (
	"errors"
	"log"
	"net/http"

	"github.com/countwatch/countwatch/pkg/config"
	"github.com/countwatch/countwatch/pkg/mockapi"
)

func main() {
	cfg := config.LoadMockAPI()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mockapi.NewRouter(),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	log.Printf("Mock counter API listening on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Mock API server failed: %v", err)
	}
}
