// Package main runs the terminal chat frontend against an orderdesk server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/orderdeskai/orderdesk/internal/client"
	"github.com/orderdeskai/orderdesk/internal/ui"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8000", "orderdesk server URL")
	flag.Parse()

	c := client.New(*serverURL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	health, err := c.Health(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot reach server at %s: %v\n", *serverURL, err)
		os.Exit(1)
	}
	if health.Status == "degraded" {
		fmt.Fprintln(os.Stderr, "Warning: server is running degraded (no model API key); responses will be limited.")
	}

	renderer, err := ui.NewGlamourRenderer(100)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize renderer: %v\n", err)
		os.Exit(1)
	}

	program := tea.NewProgram(ui.NewChatModel(c, renderer), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running chat: %v\n", err)
		os.Exit(1)
	}
}
