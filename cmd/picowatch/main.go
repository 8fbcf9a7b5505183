// Package main watches a device from the terminal the way the browser
// dashboard does: poll the snapshot every second and show freshness.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwulff/picorelay/internal/dashboard"
	"github.com/jwulff/picorelay/internal/domain"
)

func main() {
	if len(os.Args) < 4 {
		showUsage()
		os.Exit(1)
	}

	baseURL := os.Args[1]
	username := os.Args[2]
	deviceID := os.Args[3]

	password := os.Getenv("RELAY_PASSWORD")
	if password == "" {
		fmt.Println("Error: RELAY_PASSWORD not set")
		os.Exit(1)
	}

	client, err := dashboard.NewClient(baseURL)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	loginCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = client.Login(loginCtx, username, password)
	cancel()
	if err != nil {
		fmt.Printf("Login failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Watching %q on %s\n", deviceID, baseURL)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	poller := dashboard.NewPoller(client, deviceID, dashboard.DefaultPollInterval)
	poller.OnUpdate = printState

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poller.Run(ctx)
	fmt.Println("\nStopping...")
}

func showUsage() {
	fmt.Println("Usage:")
	fmt.Println("  picowatch <base-url> <username> <device-id>")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  RELAY_PASSWORD - dashboard password for <username>")
}

func printState(state dashboard.State) {
	ts := state.CheckedAt.Format("15:04:05")

	switch state.Status {
	case dashboard.StatusNeedsLogin:
		fmt.Printf("[%s] session rejected - log in again\n", ts)
	case dashboard.StatusError:
		fmt.Printf("[%s] poll failed - retrying next interval\n", ts)
	case dashboard.StatusNoData:
		fmt.Printf("[%s] no telemetry yet\n", ts)
	default:
		fmt.Printf("[%s] %-6s door=%v led=%v distance=%v cm\n", ts, state.Status,
			field(state.Snapshot, "door"), field(state.Snapshot, "led"),
			field(state.Snapshot, "distance_cm"))
	}
}

func field(p domain.Payload, key string) any {
	if p == nil {
		return "-"
	}
	if v, ok := p[key]; ok {
		return v
	}
	return "-"
}
