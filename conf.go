/* gandalf - usbmuxd TCP relay daemon
 *
 * Program configuration
 */

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

const (
	// ConfFileName defines a name of gandalf configuration file
	ConfFileName = "gandalf.conf"
)

// Configuration represents a program configuration
type Configuration struct {
	UsbmuxdSocket     string        // Path to usbmuxd's UNIX socket
	MaxRetries        int           // Retry-wrapper attempt count, 0 means unlimited
	RetryWait         time.Duration // Retry-wrapper back-off between attempts
	IdleTimeout       time.Duration // Tunnel idle timeout
	BufferSize        int           // Copy-loop buffer size, in bytes
	MappingFile       string        // Path to the UDID:LOCAL_PORT[:DEVICE_PORT] mapping file
	StatusEnable      bool          // Enable the status server
	StatusPort        int           // Status server loopback port
	MetricsEnable     bool          // Enable the Prometheus metrics server
	MetricsPort       int           // Metrics server loopback port
	LogMain           LogLevel      // Main log LogLevel mask
	LogConsole        LogLevel      // Console LogLevel mask
	LogMaxFileSize    int64         // Maximum log file size
	LogMaxBackupFiles uint          // Count of files preserved during rotation
	ColorConsole      bool          // Enable ANSI colors on console
	PidFile           string        // Path to the pidfile
	LockFile          string        // Path to the single-instance lock file
}

// Conf contains a global instance of program configuration
var Conf = Configuration{
	UsbmuxdSocket:     PathUsbmuxdSocket,
	MaxRetries:        DefaultMaxRetries,
	RetryWait:         DefaultRetryWait,
	IdleTimeout:       DefaultIdleTimeout,
	BufferSize:        DefaultBufferSize,
	MappingFile:       filepath.Join(PathConfDir, "mapping.conf"),
	StatusEnable:      true,
	StatusPort:        DefaultStatusPort,
	MetricsEnable:     true,
	MetricsPort:       DefaultMetricsPort,
	LogMain:           LogDebug,
	LogConsole:        LogInfo,
	LogMaxFileSize:    256 * 1024,
	LogMaxBackupFiles: 5,
	ColorConsole:      true,
	PidFile:           PathPidFile,
	LockFile:          PathLockFile,
}

// ConfLoad loads the program configuration
func ConfLoad() error {
	exepath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("conf: %s", err)
	}

	exepath = filepath.Dir(exepath)

	files := []string{
		filepath.Join(PathConfDir, ConfFileName),
		filepath.Join(exepath, ConfFileName),
	}

	for _, file := range files {
		err = confLoadInternal(file)
		if err != nil {
			return fmt.Errorf("conf: %s", err)
		}
	}

	return nil
}

// confLoadInternal loads the program configuration from a single file
func confLoadInternal(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	cfg, err := ini.Load(path)
	if err != nil {
		return err
	}

	usbmux := cfg.Section("usbmux")
	if k := usbmux.Key("socket-path"); k.String() != "" {
		Conf.UsbmuxdSocket = k.String()
	}
	if k := usbmux.Key("max-retries"); k.String() != "" {
		v, err := k.Int()
		if err != nil {
			return fmt.Errorf("max-retries: %s", err)
		}
		Conf.MaxRetries = v
	}
	if k := usbmux.Key("retry-wait-seconds"); k.String() != "" {
		v, err := k.Int()
		if err != nil {
			return fmt.Errorf("retry-wait-seconds: %s", err)
		}
		Conf.RetryWait = time.Duration(v) * time.Second
	}

	tunnel := cfg.Section("tunnel")
	if k := tunnel.Key("idle-timeout-seconds"); k.String() != "" {
		v, err := k.Int()
		if err != nil {
			return fmt.Errorf("idle-timeout-seconds: %s", err)
		}
		Conf.IdleTimeout = time.Duration(v) * time.Second
	}
	if k := tunnel.Key("buffer-size"); k.String() != "" {
		v, err := k.Int()
		if err != nil {
			return fmt.Errorf("buffer-size: %s", err)
		}
		Conf.BufferSize = v
	}
	if k := tunnel.Key("mapping-file"); k.String() != "" {
		Conf.MappingFile = k.String()
	}

	status := cfg.Section("status")
	if k := status.Key("enable"); k.String() != "" {
		v, err := k.Bool()
		if err != nil {
			return fmt.Errorf("status.enable: %s", err)
		}
		Conf.StatusEnable = v
	}
	if k := status.Key("port"); k.String() != "" {
		v, err := k.Int()
		if err != nil {
			return fmt.Errorf("status.port: %s", err)
		}
		Conf.StatusPort = v
	}

	metrics := cfg.Section("metrics")
	if k := metrics.Key("enable"); k.String() != "" {
		v, err := k.Bool()
		if err != nil {
			return fmt.Errorf("metrics.enable: %s", err)
		}
		Conf.MetricsEnable = v
	}
	if k := metrics.Key("port"); k.String() != "" {
		v, err := k.Int()
		if err != nil {
			return fmt.Errorf("metrics.port: %s", err)
		}
		Conf.MetricsPort = v
	}

	logging := cfg.Section("logging")
	if k := logging.Key("main-log"); k.String() != "" {
		v, err := confParseLogLevel(k.String())
		if err != nil {
			return err
		}
		Conf.LogMain = v
	}
	if k := logging.Key("console-log"); k.String() != "" {
		v, err := confParseLogLevel(k.String())
		if err != nil {
			return err
		}
		Conf.LogConsole = v
	}
	if k := logging.Key("console-color"); k.String() != "" {
		v, err := k.Bool()
		if err != nil {
			return fmt.Errorf("console-color: %s", err)
		}
		Conf.ColorConsole = v
	}
	if k := logging.Key("max-file-size"); k.String() != "" {
		v, err := k.Int64()
		if err != nil {
			return fmt.Errorf("max-file-size: %s", err)
		}
		Conf.LogMaxFileSize = v
	}
	if k := logging.Key("max-backup-files"); k.String() != "" {
		v, err := k.Uint()
		if err != nil {
			return fmt.Errorf("max-backup-files: %s", err)
		}
		Conf.LogMaxBackupFiles = v
	}

	daemon := cfg.Section("daemon")
	if k := daemon.Key("pidfile"); k.String() != "" {
		Conf.PidFile = k.String()
	}
	if k := daemon.Key("lockfile"); k.String() != "" {
		Conf.LockFile = k.String()
	}

	return nil
}

// confParseLogLevel parses a comma-separated list of log level names
func confParseLogLevel(s string) (LogLevel, error) {
	var mask LogLevel
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
		case "error":
			mask |= LogError
		case "info":
			mask |= LogInfo | LogError
		case "debug":
			mask |= LogDebug | LogInfo | LogError
		case "trace-mux":
			mask |= LogTraceMux | LogDebug | LogInfo | LogError
		case "trace-tunnel":
			mask |= LogTraceTunnel | LogDebug | LogInfo | LogError
		case "all", "trace-all":
			mask |= LogAll
		default:
			return 0, fmt.Errorf("invalid log level %q", part)
		}
	}
	return mask, nil
}
