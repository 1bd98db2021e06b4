package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/handiism/image-scraper/internal/config"
	"github.com/handiism/image-scraper/internal/tui"
)

func main() {
	_ = godotenv.Load()

	settings := config.DefaultSettings()
	if path := os.Getenv(config.EnvPrefix + "CONFIG"); path != "" {
		var err error
		settings, err = config.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	if err := settings.ApplyEnv(os.LookupEnv); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := tui.Run(settings); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
