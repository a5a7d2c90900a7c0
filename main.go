// Package main is the entry point for the Argus security-operations dashboard.
package main

import (
	"context"
	"fmt"
	"os"

	"argus/bootstrap"
	"argus/cmd"
	_ "argus/docs"
)

// run initializes and starts the dashboard server.
func run() error {
	ctx := context.Background()

	app, err := bootstrap.NewApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	errCh := app.Start()
	app.WaitForShutdown(errCh)
	app.Shutdown()

	return nil
}

// main is the entry point.
func main() {
	// Check if running as CLI command
	if len(os.Args) > 1 && os.Args[1] == "users" {
		// Strip "users" from os.Args since the command already knows it's the users command
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)

		usersCmd := cmd.NewUsersCmd()
		if err := usersCmd.Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Otherwise run as normal server
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
