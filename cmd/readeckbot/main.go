package main

import (
	"log"

	"github.com/jmfederico/readeckbot/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("readeckbot failed to start: %v", err)
	}
}
