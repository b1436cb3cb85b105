// Package emergency turns operator stop requests (SIGINT, SIGTERM or a stop
// file) into a single graceful-stop notification.
package emergency

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// StopFileName is the default stop file inside a workspace
const StopFileName = "chaos_runner.stop"

// Controller watches for stop conditions and notifies registered callbacks
// exactly once. Callbacks run on the watcher goroutine and must only flip
// flags; they must never touch the host.
type Controller struct {
	stopFile       string
	stopCh         chan struct{}
	stopped        bool
	reason         string
	mutex          sync.RWMutex
	callbacks      []func(reason string)
	pollInterval   time.Duration
	signalHandlers bool
	signals        []os.Signal
}

// Config contains emergency controller configuration
type Config struct {
	// StopFile is the path to watch for a stop request; empty disables it
	StopFile string

	// PollInterval for checking stop file
	PollInterval time.Duration

	// EnableSignalHandlers enables signal handling
	EnableSignalHandlers bool

	// Signals to handle, SIGINT and SIGTERM when empty
	Signals []os.Signal
}

// New creates a new emergency controller
func New(config Config) *Controller {
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}

	if len(config.Signals) == 0 {
		config.Signals = []os.Signal{unix.SIGINT, unix.SIGTERM}
	}

	return &Controller{
		stopFile:       config.StopFile,
		stopCh:         make(chan struct{}),
		callbacks:      make([]func(string), 0),
		pollInterval:   config.PollInterval,
		signalHandlers: config.EnableSignalHandlers,
		signals:        config.Signals,
	}
}

// Start begins monitoring for stop conditions until ctx is done
func (c *Controller) Start(ctx context.Context) {
	if c.stopFile != "" {
		go c.watchStopFile(ctx)
	}

	if c.signalHandlers {
		// Register synchronously so no signal is lost between Start and
		// the goroutine being scheduled
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, c.signals...)
		go c.watchSignals(ctx, sigCh)
	}
}

// watchStopFile polls for the existence of the stop file
func (c *Controller) watchStopFile(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			if c.checkStopFile() {
				log.Info().Str("file", c.stopFile).Msg("Stop file detected")
				c.triggerStop("stop file detected")
				return
			}
		}
	}
}

// watchSignals keeps the handlers installed for the whole run: repeated
// signals are logged and ignored so the process always exits gracefully
func (c *Controller) watchSignals(ctx context.Context, sigCh chan os.Signal) {
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			if c.IsStopped() {
				log.Warn().Str("signal", sig.String()).Msg("Stop already requested, waiting for graceful exit")
				continue
			}
			log.Info().Str("signal", sig.String()).Msg("Caught signal, waiting for graceful exit")
			c.triggerStop(fmt.Sprintf("signal: %v", sig))
		}
	}
}

// checkStopFile checks if the stop file exists
func (c *Controller) checkStopFile() bool {
	_, err := os.Stat(c.stopFile)
	return err == nil
}

// triggerStop marks the controller stopped and runs callbacks once
func (c *Controller) triggerStop(reason string) {
	c.mutex.Lock()
	if c.stopped {
		c.mutex.Unlock()
		return
	}
	c.stopped = true
	c.reason = reason
	callbacks := make([]func(string), len(c.callbacks))
	copy(callbacks, c.callbacks)
	c.mutex.Unlock()

	log.Debug().Str("reason", reason).Int("callbacks", len(callbacks)).Msg("Flagging stop")

	for _, callback := range callbacks {
		callback(reason)
	}

	// Closed after the callbacks so waiters observe their effects
	close(c.stopCh)
}

// Stop manually triggers a stop
func (c *Controller) Stop(reason string) {
	c.triggerStop(reason)
}

// IsStopped returns true if a stop has been triggered
func (c *Controller) IsStopped() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.stopped
}

// Reason returns why the stop was triggered, empty before that
func (c *Controller) Reason() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.reason
}

// StopChannel returns a channel that closes once stop callbacks have run
func (c *Controller) StopChannel() <-chan struct{} {
	return c.stopCh
}

// OnStop registers a callback to execute when stop is triggered
func (c *Controller) OnStop(callback func(reason string)) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.callbacks = append(c.callbacks, callback)
}

// CreateStopFile creates the stop file, asking a running controller to stop
func (c *Controller) CreateStopFile() error {
	if c.stopFile == "" {
		return fmt.Errorf("no stop file configured")
	}

	f, err := os.Create(c.stopFile)
	if err != nil {
		return fmt.Errorf("failed to create stop file: %w", err)
	}
	defer f.Close()

	_, err = f.WriteString(fmt.Sprintf("Stop requested at %s by pid %d\n", time.Now().Format(time.RFC3339), os.Getpid()))
	if err != nil {
		return fmt.Errorf("failed to write to stop file: %w", err)
	}

	return nil
}

// RemoveStopFile removes the stop file
func (c *Controller) RemoveStopFile() error {
	if c.stopFile == "" {
		return nil
	}
	err := os.Remove(c.stopFile)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stop file: %w", err)
	}
	return nil
}

// GetStopFilePath returns the path to the stop file
func (c *Controller) GetStopFilePath() string {
	return c.stopFile
}
