/* gandalf - usbmuxd TCP relay daemon
 *
 * Supervisor: boot sequence, retry wrapper, signal-driven reload and
 * shutdown
 */

package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// supervisorCmd is a message posted onto the Supervisor's command
// channel by a signal handler
type supervisorCmd int

// supervisorCmd values
const (
	cmdReload supervisorCmd = iota
	cmdShutdown
)

// Supervisor owns the running-tunnel list, the device inventory, and
// the lifecycle of the status and metrics servers. All module-level
// mutable state that the distilled spec described lives here instead
// of as package globals
type Supervisor struct {
	mappingPath string

	lock      sync.Mutex
	running   map[int]*Tunnel // local_port -> Tunnel
	inventory *DeviceInventory

	statusServer  *StatusServer
	metricsServer *MetricsServer

	cmd    chan supervisorCmd
	cancel context.CancelFunc
}

// NewSupervisor creates a Supervisor bound to the given mapping file
func NewSupervisor(mappingPath string) *Supervisor {
	return &Supervisor{
		mappingPath: mappingPath,
		running:     make(map[int]*Tunnel),
		cmd:         make(chan supervisorCmd, 4),
	}
}

// Run executes the boot sequence and then blocks, serving reload and
// shutdown requests, until a shutdown is requested. It returns the
// process exit code
func (sv *Supervisor) Run() int {
	sv.installSignalHandlers()

	err := sv.boot()
	if err != nil {
		Log.Error('!', "boot: %s", err)
		return sv.classifyBootError(err)
	}

	SystemdReady()
	stopWatchdog := SystemdWatchdog()
	defer stopWatchdog()

	for cmd := range sv.cmd {
		switch cmd {
		case cmdReload:
			sv.reload()
		case cmdShutdown:
			sv.shutdown()
			return 0
		}
	}

	return 0
}

// boot runs the Supervisor's boot sequence: bootstrap the device
// inventory, spawn tunnels for the current snapshot, and start the
// status/metrics servers
func (sv *Supervisor) boot() error {
	sv.inventory = NewDeviceInventory(sv.mappingPath)

	err := sv.withRetry(Conf.MaxRetries, Conf.RetryWait, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), BootstrapDeadline)
		defer cancel()
		return sv.inventory.Bootstrap(ctx)
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sv.cancel = cancel

	go func() {
		err := sv.withRetry(Conf.MaxRetries, Conf.RetryWait, func() error {
			return sv.inventory.Run(ctx)
		})
		if err != nil && ctx.Err() == nil {
			Log.Error('!', "device inventory: gave up: %s", err)
		}
	}()

	for _, spec := range sv.inventory.Snapshot() {
		sv.startTunnel(spec)
	}

	if Conf.StatusEnable {
		sv.statusServer, err = NewStatusServer(Conf.StatusPort, sv.inventory)
		if err != nil {
			return err
		}
		go sv.serveOrPanic(sv.statusServer.Serve)
	}

	if Conf.MetricsEnable {
		sv.metricsServer, err = NewMetricsServer(Conf.MetricsPort)
		if err != nil {
			return err
		}
		go sv.serveOrPanic(sv.metricsServer.Serve)
	}

	return nil
}

// serveOrPanic runs a Serve function used by a background server,
// routing any error other than a clean close through the top-level
// unhandled-error sink
func (sv *Supervisor) serveOrPanic(serve func() error) {
	defer func() {
		v := recover()
		if v != nil {
			Log.Panic(v)
		}
	}()

	err := serve()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		sv.handleUnhandledError(err)
	}
}

// handleUnhandledError classifies an unexpected error from a
// supervised background task and terminates the process accordingly
func (sv *Supervisor) handleUnhandledError(err error) {
	if errors.Is(err, context.Canceled) {
		Log.Info(' ', "connection timed out")
		return
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.EADDRINUSE) {
		Log.Error('!', "listener address already in use: %s", err)
		os.Exit(6)
	}

	Log.Error('!', "please report, unhandled error: %s", err)
	os.Exit(4)
}

// startTunnel creates and starts serving one tunnel, registering it
// in the running-tunnel list
func (sv *Supervisor) startTunnel(spec TunnelSpec) {
	sv.lock.Lock()
	defer sv.lock.Unlock()

	if _, exists := sv.running[spec.LocalPort]; exists {
		return
	}

	t, err := NewTunnel(spec)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			sv.handleUnhandledError(err)
		}
		Log.Error('!', "tunnel %s:%d: %s", spec.UDID, spec.LocalPort, err)
		return
	}

	sv.running[spec.LocalPort] = t
	go sv.serveOrPanic(t.Serve)
}

// stopAllTunnels closes every running tunnel's listener and clears
// the running-tunnel list
func (sv *Supervisor) stopAllTunnels() {
	sv.lock.Lock()
	defer sv.lock.Unlock()

	for port, t := range sv.running {
		t.Close()
		delete(sv.running, port)
	}
}

// reload re-reads the mapping and restarts tunnels to match. If the
// mapping file no longer exists, the reload is skipped and the
// daemon keeps running on its current tunnel set
func (sv *Supervisor) reload() {
	if _, err := os.Stat(sv.mappingPath); os.IsNotExist(err) {
		Log.Error('!', "reload: mapping file %s no longer exists, keeping current state",
			sv.mappingPath)
		return
	}

	SystemdReloading()

	if sv.cancel != nil {
		sv.cancel()
	}

	sv.stopAllTunnels()

	if sv.statusServer != nil {
		sv.statusServer.Close()
		sv.statusServer = nil
	}
	if sv.metricsServer != nil {
		sv.metricsServer.Close()
		sv.metricsServer = nil
	}

	err := sv.boot()
	if err != nil {
		Log.Error('!', "reload: %s", err)
		return
	}

	SystemdReady()
	Log.Info(' ', "reload: complete")
}

// shutdown stops every tunnel and the status/metrics servers
func (sv *Supervisor) shutdown() {
	if sv.cancel != nil {
		sv.cancel()
	}

	count := len(sv.running)
	sv.stopAllTunnels()

	if sv.statusServer != nil {
		sv.statusServer.Close()
	}
	if sv.metricsServer != nil {
		sv.metricsServer.Close()
	}

	Log.Info(' ', "shutdown: closed %d tunnels", count)
	SystemdStopping()
}

// installSignalHandlers wires SIGUSR1 (reload), SIGUSR2/SIGTERM
// (shutdown) and SIGPIPE (ignored) into the Supervisor's command
// channel. Handlers only post to the channel and return promptly
func (sv *Supervisor) installSignalHandlers() {
	sigs := make(chan os.Signal, 8)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGTERM, syscall.SIGPIPE)

	go func() {
		for sig := range sigs {
			switch sig {
			case syscall.SIGUSR1:
				sv.cmd <- cmdReload
			case syscall.SIGUSR2, syscall.SIGTERM:
				sv.cmd <- cmdShutdown
			case syscall.SIGPIPE:
				// ignored
			}
		}
	}()
}

// classifyBootError maps a boot failure to the process exit code:
// 6 for a listener address already in use, 2 for a file permission
// failure, 4 otherwise
func (sv *Supervisor) classifyBootError(err error) int {
	if errors.Is(err, syscall.EADDRINUSE) {
		return 6
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrPermission) {
		return 2
	}
	return 4
}

// withRetry runs task, retrying on failure up to maxRetries times
// with a fixed back-off. context.Canceled is treated as success
func (sv *Supervisor) withRetry(maxRetries int, wait time.Duration, task func() error) error {
	var err error

	for attempt := 1; maxRetries <= 0 || attempt <= maxRetries; attempt++ {
		err = task()
		if err == nil || errors.Is(err, context.Canceled) {
			return nil
		}

		Log.Info(' ', "attempt %d: %s", attempt, err)

		if maxRetries > 0 && attempt == maxRetries {
			break
		}

		time.Sleep(wait)
	}

	Log.Info(' ', "tried %d times and gave up", maxRetries)
	return err
}
