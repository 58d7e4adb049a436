package serverapp

import (
	"fmt"
	"log/slog"
	"os"
)

// StopReason names why the records server stopped serving.
type StopReason string

const (
	// StopSignal means an OS signal asked for a graceful shutdown.
	StopSignal StopReason = "signal"
	// StopListenFailed means the HTTP listener returned an error.
	StopListenFailed StopReason = "listen_failed"
	// StopServerExited means the server goroutine closed its error channel
	// without reporting a failure.
	StopServerExited StopReason = "server_exited"
)

// Start launches the records server. It requires Init to have completed and
// is a no-op returning the same channel when already started.
func (a *App) Start() (<-chan error, error) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if !a.initialized {
		return nil, fmt.Errorf("records server is not initialized")
	}
	if a.started {
		return a.serverErrors, nil
	}

	a.serverErrors = startServer(a.cfg, a.logger, a.srv, a.serverAddr)
	a.started = true

	if a.logger != nil {
		var records []string
		if a.catalog != nil {
			records = a.catalog.Names()
		}
		a.logger.Info("records server started",
			slog.String("address", a.serverAddr),
			slog.Any("record_types", records),
		)
	}
	return a.serverErrors, nil
}

// WaitForStop blocks until a shutdown signal arrives or the server reports a
// failure. A nil serverErrors falls back to the channel returned by Start.
func (a *App) WaitForStop(stop <-chan os.Signal, serverErrors <-chan error) (StopReason, error) {
	if serverErrors == nil {
		a.stateMu.Lock()
		serverErrors = a.serverErrors
		a.stateMu.Unlock()
	}
	if stop == nil && serverErrors == nil {
		return "", fmt.Errorf("nothing to wait on: no signal or server error channel")
	}

	// Receiving from a nil channel blocks forever, so a missing side simply
	// never wins the select.
	select {
	case err, ok := <-serverErrors:
		return a.serverStopped(err, ok)
	case sig := <-stop:
		if a.logger != nil {
			a.logger.Info("shutdown requested",
				slog.String("signal", sig.String()),
				slog.String("reason", string(StopSignal)),
			)
		}
		return StopSignal, nil
	}
}

func (a *App) serverStopped(err error, ok bool) (StopReason, error) {
	if !ok || err == nil {
		if a.logger != nil {
			a.logger.Error("records server exited without an error", slog.String("reason", string(StopServerExited)))
		}
		return StopServerExited, fmt.Errorf("records server exited unexpectedly")
	}
	if a.logger != nil {
		a.logger.Error("records server failed",
			slog.String("reason", string(StopListenFailed)),
			slog.String("error", err.Error()),
		)
	}
	return StopListenFailed, err
}
