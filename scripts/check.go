package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"uscview/config"
	"uscview/services"
	"uscview/view"
)

// Connectivity check for a deployment: calls view-channel once, renders the
// reply and reports which backend the display container would use.
// Usage: go run ./scripts -controller http://odl:8181
func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so deferred cleanup happens before exit
func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Printf("❌ Config: %v\n", err)
		return 1
	}

	fmt.Println("=== USC Connectivity Check ===")
	fmt.Printf("Controller: %s\n", cfg.Controller.BaseURL)
	fmt.Printf("Topology:   %s\n", cfg.Controller.TopologyID)
	fmt.Println()

	failed := false

	fmt.Println("Test 1: view-channel...")
	if !checkController(cfg) {
		failed = true
	}
	fmt.Println()

	fmt.Println("Test 2: display container...")
	display := services.NewDisplayStore(cfg)
	defer display.Stop()
	mode := display.Mode()
	if cfg.Redis.Enabled && mode != services.DisplayModeRedis {
		fmt.Printf("❌ Redis enabled but unreachable at %s, running %s\n", cfg.Redis.Address, mode)
		failed = true
	} else {
		fmt.Printf("✅ Mode: %s\n", mode)
	}

	if failed {
		return 1
	}
	return 0
}

func checkController(cfg *config.Config) bool {
	client := services.NewControllerClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ControllerTimeoutDuration()+time.Second)
	defer cancel()

	start := time.Now()
	resp, err := client.ViewChannels(ctx)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Printf("❌ FAILED: %v (took %v)\n", err, elapsed)
		return false
	}
	fmt.Printf("✅ SUCCESS: %s (took %v)\n", client.Endpoint(), elapsed)

	frag, err := view.Render(resp, view.Options{StopOnMissingChannels: cfg.Render.StopOnMissingChannels})
	if err != nil {
		fmt.Printf("❌ Render failed: %v\n", err)
		return false
	}
	fmt.Printf("✅ %d channels, %d sessions, %d alarms\n", frag.ChannelCount(), frag.SessionCount(), frag.AlarmTotal())
	return true
}
