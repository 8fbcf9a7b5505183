// Package main is a device simulator for the relay. It behaves like the
// real firmware: push telemetry on an interval, pull the command mailbox,
// act on whatever comes back.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
)

func main() {
	fmt.Println("picodev - relay device simulator")
	fmt.Println()

	if len(os.Args) < 3 {
		showUsage()
		os.Exit(1)
	}

	baseURL := strings.TrimRight(os.Args[1], "/")
	deviceID := os.Args[2]

	interval := time.Second
	if len(os.Args) > 3 {
		secs, err := strconv.Atoi(os.Args[3])
		if err != nil || secs <= 0 {
			fmt.Printf("Error: invalid interval %q\n", os.Args[3])
			os.Exit(1)
		}
		interval = time.Duration(secs) * time.Second
	}

	sim := newSimulator(baseURL, deviceID)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("Reporting as %q to %s every %s\n", deviceID, baseURL, interval)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	sim.tick()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sim.tick()
		case <-sigChan:
			fmt.Println("\nStopping...")
			return
		}
	}
}

func showUsage() {
	fmt.Println("Usage:")
	fmt.Println("  picodev <base-url> <device-id> [interval-seconds]")
	fmt.Println()
	fmt.Println("Example:")
	fmt.Println("  picodev http://localhost:8080 garage-01 1")
	fmt.Println()
	fmt.Println("The device must already be registered by an owner on the dashboard.")
}

// simulator holds the simulated hardware state.
type simulator struct {
	baseURL  string
	deviceID string
	client   *http.Client

	door  string
	led   string
	ldr   int
	timer int64
}

func newSimulator(baseURL, deviceID string) *simulator {
	return &simulator{
		baseURL:  baseURL,
		deviceID: deviceID,
		client:   &http.Client{Timeout: 5 * time.Second},
		door:     "closed",
		led:      "off",
		ldr:      512,
	}
}

// tick pushes one telemetry reading, then drains the command mailbox.
func (s *simulator) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now()
	if err := s.pushTelemetry(ctx); err != nil {
		fmt.Printf("[%s] telemetry error: %v\n", now.Format("15:04:05"), err)
		return
	}

	cmd, err := s.pullCommand(ctx)
	if err != nil {
		fmt.Printf("[%s] command error: %v\n", now.Format("15:04:05"), err)
		return
	}

	if cmd == "" {
		fmt.Printf("[%s] reported door=%s led=%s\n", now.Format("15:04:05"), s.door, s.led)
		return
	}

	s.apply(cmd)
	fmt.Printf("[%s] reported and applied %s (door=%s led=%s)\n", now.Format("15:04:05"), cmd, s.door, s.led)
}

func (s *simulator) pushTelemetry(ctx context.Context) error {
	// Drift the light sensor a little each tick; night below the
	// firmware's usual threshold.
	s.ldr += rand.Intn(61) - 30
	if s.ldr < 0 {
		s.ldr = 0
	}
	if s.ldr > 1023 {
		s.ldr = 1023
	}

	payload := map[string]any{
		"door":        s.door,
		"led":         s.led,
		"distance_cm": 10 + rand.Intn(5),
		"pir":         rand.Intn(2),
		"ldr":         s.ldr,
		"night":       boolToInt(s.ldr < 300),
		"t_left_ms":   s.timer,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/api/telemetry/"+s.deviceID, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("device %q is not registered", s.deviceID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// pullCommand consumes the pending command, or returns "" when the
// mailbox is empty. A command returned here will never be redelivered.
func (s *simulator) pullCommand(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+"/api/cmd/"+s.deviceID, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("pull failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("pull failed with status %d", resp.StatusCode)
	}

	var result *struct {
		Cmd string `json:"cmd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to parse command: %w", err)
	}
	if result == nil {
		return "", nil
	}
	return result.Cmd, nil
}

func (s *simulator) apply(cmd string) {
	switch cmd {
	case "OPEN":
		s.door = "open"
		s.timer = 30000
	case "CLOSE":
		s.door = "closed"
		s.timer = 0
	case "LED_ON":
		s.led = "on"
	case "LED_OFF":
		s.led = "off"
	default:
		fmt.Printf("  ignoring unknown command %q\n", cmd)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
