package main

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	cli "github.com/andrewkylim/chatkin-chat-sub002/cmd/chatkin"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/config"
)

//go:embed etc/chatkin.yaml
var embeddedConfig []byte

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	c, err := config.LoadFromBytes(embeddedConfig)
	if err != nil {
		fmt.Printf("Failed to load embedded config: %v\n", err)
		os.Exit(1)
	}
	if path := os.Getenv("CHATKIN_CONFIG"); path != "" {
		c, err = config.Load(path)
		if err != nil {
			fmt.Printf("Failed to load config %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	if err := cli.SetupRootCmd(&c).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
