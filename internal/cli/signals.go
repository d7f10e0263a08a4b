package cli

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Backland-Labs/reportrun/internal/logger"
)

// terminator asks the service to stop its generation process
type terminator interface {
	Terminate(ctx context.Context) error
}

// watchSignals cancels the run on SIGINT or SIGTERM. On SIGTERM, when
// terminateOnQuit is set, the service is also asked to stop. The returned
// function stops watching and waits for a pending terminate call.
func watchSignals(cancel context.CancelFunc, svc terminator, terminateOnQuit bool, timeout time.Duration) func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case sig := <-sigChan:
			handleSignal(sig, cancel, svc, terminateOnQuit, timeout)
		case <-done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigChan)
			close(done)
			wg.Wait()
		})
	}
}

func handleSignal(sig os.Signal, cancel context.CancelFunc, svc terminator, terminateOnQuit bool, timeout time.Duration) {
	logger.Debugf("Received signal: %v", sig)
	cancel()

	if sig != syscall.SIGTERM || !terminateOnQuit || svc == nil {
		return
	}
	ctx, stop := context.WithTimeout(context.Background(), timeout)
	defer stop()
	if err := svc.Terminate(ctx); err != nil {
		logger.GetLogger().WithError(err).Warn("Failed to terminate report generation")
		return
	}
	logger.Info("Report generation terminated")
}
