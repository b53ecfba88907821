package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/andrewkylim/chatkin-chat-sub002/internal/config"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/middleware"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/server"
)

// ServerConfig is the loaded configuration shared by the subcommands
var ServerConfig *config.Config

// SetupRootCmd builds the CLI with the given configuration
func SetupRootCmd(c *config.Config) *cobra.Command {
	ServerConfig = c

	rootCmd := &cobra.Command{
		Use:   "chatkin",
		Short: "Chat-driven task, note and project assistant",
		Run: func(cmd *cobra.Command, args []string) {
			RunServe()
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Run: func(cmd *cobra.Command, args []string) {
			RunServe()
		},
	}
}

// RunServe starts the server and blocks until interrupted
func RunServe() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal: %v - shutting down...\n", sig)
		cancel()
	}()

	if err := server.Run(ctx, *ServerConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// tokenCmd issues a development JWT for a user id, handy for curl sessions
// against a local server.
func tokenCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development access token for a user id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			token, err := middleware.IssueToken(ServerConfig.Auth.AccessSecret, userID, ServerConfig.Auth.AccessExpire)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to issue the token for")
	return cmd
}
