package main

import (
	"log"

	"github.com/MrSnakeDoc/xrrecorder/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("❌ xrrecorder failed to initialize: %v", err)
	}
	if err := a.Run(); err != nil {
		log.Fatalf("❌ xrrecorder failed to start: %v", err)
	}
}
