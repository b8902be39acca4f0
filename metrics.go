/* gandalf - usbmuxd TCP relay daemon
 *
 * Prometheus metrics registry, exposed over a loopback HTTP listener
 * alongside the status server
 */

package main

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsRegistry is a self-contained registry, not the global
// default one, so the daemon's metrics surface stays testable and
// isolated from anything else that might be linked into the process
var MetricsRegistry = prometheus.NewRegistry()

// Metrics collectors
var (
	MetricsTunnelsActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gandalf_tunnels_active",
		Help: "Number of tunnel listeners currently bound",
	}, []string{"local_port"})

	MetricsBytesRelayed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gandalf_bytes_relayed_total",
		Help: "Total bytes relayed through tunnels, by direction",
	}, []string{"direction"})

	MetricsUsbmuxdReconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gandalf_usbmuxd_reconnects_total",
		Help: "Total number of times the relay had to reconnect to usbmuxd",
	})

	MetricsDevicesAttached = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gandalf_devices_attached",
		Help: "Number of devices currently attached, per the live inventory",
	})
)

func init() {
	MetricsRegistry.MustRegister(
		MetricsTunnelsActive,
		MetricsBytesRelayed,
		MetricsUsbmuxdReconnects,
		MetricsDevicesAttached,
	)
}

// MetricsServer serves the Prometheus exposition format on a
// loopback-only HTTP listener
type MetricsServer struct {
	listener net.Listener
	server   *http.Server
}

// NewMetricsServer creates a MetricsServer bound to the configured
// metrics port
func NewMetricsServer(port int) (*MetricsServer, error) {
	l, err := NewListener(port)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(MetricsRegistry,
		promhttp.HandlerOpts{}))

	return &MetricsServer{
		listener: l,
		server:   &http.Server{Handler: mux},
	}, nil
}

// Serve runs the HTTP server until the listener is closed
func (m *MetricsServer) Serve() error {
	return m.server.Serve(m.listener)
}

// Close shuts the metrics server down
func (m *MetricsServer) Close() error {
	return m.server.Close()
}
