package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/minhng-dev/social-moderation-api/api/handlers"
	"github.com/minhng-dev/social-moderation-api/config"
)

func main() {
	a := handlers.App{}
	a.Config = *config.New()

	if err := a.Initialize(); err != nil {
		log.Fatal(err)
	}
	defer a.Scheduler.Stop()

	port := os.Getenv("PORT")
	baseURL := os.Getenv("BASE_URL")
	zap.S().Infow("social-moderation-api is up and running",
		"port", port,
		"url", baseURL,
	)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%v", port), a.Router))
}
