// Package process provides signal handling for interactive runs.
package process

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/breakwater/breakwater/pkg/logger"
)

// Manager turns termination signals into context cancellation so an
// in-flight run can wind down instead of being killed mid-wave.
// Shutdown handlers run once, in reverse registration order.
type Manager struct {
	logger           logger.Logger
	shutdownHandlers []func()
	ctx              context.Context
	cancel           context.CancelFunc
	stop             chan struct{}
	wg               sync.WaitGroup
	mu               sync.Mutex
	running          bool
	shutdownOnce     sync.Once
}

// NewManager creates a new process manager
func NewManager(log logger.Logger) *Manager {
	if log == nil {
		log = logger.CreateLogger("info")
	}
	return &Manager{
		logger:           log,
		shutdownHandlers: make([]func(), 0),
	}
}

// RegisterShutdownHandler adds a shutdown handler
func (m *Manager) RegisterShutdownHandler(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownHandlers = append(m.shutdownHandlers, handler)
}

// Start begins listening for SIGINT, SIGTERM, and SIGHUP. It returns
// a context that is cancelled when a signal arrives or the parent is
// cancelled. A second signal exits immediately.
func (m *Manager) Start(parent context.Context) context.Context {
	m.mu.Lock()
	if m.running {
		ctx := m.ctx
		m.mu.Unlock()
		return ctx
	}
	ctx, cancel := context.WithCancel(parent)
	m.ctx = ctx
	m.cancel = cancel
	m.stop = make(chan struct{})
	m.running = true
	m.mu.Unlock()

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer signal.Stop(sigChan)

		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			m.handleShutdown()
		case sig := <-sigChan:
			m.logger.Info("Received signal, shutting down",
				logger.WithField("signal", sig.String()))
			cancel()
			m.handleShutdown()

			select {
			case <-m.stop:
			case <-sigChan:
				m.logger.Warn("Forced exit")
				os.Exit(130)
			}
		}
	}()

	return ctx
}

// Stop releases the signal handler and waits for pending work.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stop)
	m.mu.Unlock()

	m.wg.Wait()
	m.cancel()
}

// IsRunning checks if the process manager is running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) handleShutdown() {
	m.shutdownOnce.Do(func() {
		m.logger.Info("Initiating graceful shutdown...")

		m.mu.Lock()
		handlers := make([]func(), len(m.shutdownHandlers))
		copy(handlers, m.shutdownHandlers)
		m.mu.Unlock()

		for i := len(handlers) - 1; i >= 0; i-- {
			handlers[i]()
		}
	})
}
