package emergency_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jihwankim/chaos-monkey/pkg/emergency"
)

// Example demonstrates emergency controller usage
func Example() {
	dir, err := os.MkdirTemp("", "chaos-emergency")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer os.RemoveAll(dir)

	controller := emergency.New(emergency.Config{
		StopFile:             filepath.Join(dir, emergency.StopFileName),
		PollInterval:         10 * time.Millisecond,
		EnableSignalHandlers: false, // Disable signal handling in example
	})

	// The callback only flags the stop; the runner observes it between actions
	var stopRequested bool
	controller.OnStop(func(reason string) {
		stopRequested = true
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	controller.Start(ctx)

	fmt.Println("Controller started, monitoring for stop requests...")

	// Another process (for example "chaos-runner stop") creates the stop file
	if err := controller.CreateStopFile(); err != nil {
		fmt.Println(err)
		return
	}

	select {
	case <-controller.StopChannel():
		fmt.Printf("Stop detected: %s\n", controller.Reason())
	case <-time.After(3 * time.Second):
		fmt.Println("No stop triggered (timeout)")
	}
	fmt.Printf("Stop requested: %v\n", stopRequested)

	// Output:
	// Controller started, monitoring for stop requests...
	// Stop detected: stop file detected
	// Stop requested: true
}
