package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/specialistvlad/imageburst/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// stringList is a repeatable flag that also splits comma-separated values.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

// headerFlags collects repeatable "Name: value" or "Name=value" flags.
type headerFlags map[string]string

func (h headerFlags) String() string {
	parts := make([]string, 0, len(h))
	for k, v := range h {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (h headerFlags) Set(v string) error {
	name, value, ok := strings.Cut(v, ":")
	if !ok {
		name, value, ok = strings.Cut(v, "=")
	}
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("header must be 'Name: value' or 'Name=value', got %q", v)
	}
	h[name] = strings.TrimSpace(value)
	return nil
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("imageburst", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
imageburst - Upload a batch of images over one persistent socket.

Every run sends a JSON header {"num_photos": N} followed by the N images
as binary frames, in path order.

Usage:
  imageburst [options] PATH [PATH...]

Arguments:
  PATH
    An image file or a directory searched recursively for images.

Options:
`)
		flagSet.PrintDefaults()
	}

	var configPaths, accept stringList
	headers := headerFlags{}
	flagSet.Var(&configPaths, "config", "Path to an .hcl config file or directory. Repeatable; flags override file values.")
	flagSet.Var(&accept, "accept", "Accepted MIME patterns, comma-separated. Default 'image/*'.")
	flagSet.Var(headers, "header", "Extra handshake header as 'Name: value'. Repeatable.")
	urlFlag := flagSet.String("url", "", "Endpoint URL, e.g. ws://localhost:8000/ws.")
	transportFlag := flagSet.String("transport", "", "Transport to use: 'websocket' or 'socketio'. Default 'websocket'.")
	namespaceFlag := flagSet.String("namespace", "", "Socket.IO namespace. Default '/'.")
	dialTimeoutFlag := flagSet.Duration("dial-timeout", 0, "Timeout for opening the connection. Default 10s.")
	writeTimeoutFlag := flagSet.Duration("write-timeout", 0, "Timeout for writing one frame. Default 10s.")
	insecureFlag := flagSet.Bool("insecure-skip-verify", false, "Skip TLS certificate verification.")
	repeatFlag := flagSet.Int("repeat", 0, "Send the batch this many times over the same connection. Default 1.")
	waitAcksFlag := flagSet.Duration("wait-acks", 0, "Keep the connection open this long after the last batch to collect acknowledgements.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health, status and metrics server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() == 0 && len(configPaths) == 0 {
		slog.Debug("No image paths or config provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	transportName := strings.ToLower(*transportFlag)
	for _, d := range []struct {
		name string
		v    time.Duration
	}{{"dial-timeout", *dialTimeoutFlag}, {"write-timeout", *writeTimeoutFlag}} {
		if d.v < 0 {
			return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("invalid %s: must not be negative", d.name)}
		}
	}
	slog.Debug("CLI parameter validation complete.")

	var headerMap map[string]string
	if len(headers) > 0 {
		headerMap = headers
	}

	config, err := app.NewConfig(app.Config{
		ConfigPaths:        configPaths,
		URL:                *urlFlag,
		Transport:          transportName,
		Namespace:          *namespaceFlag,
		Headers:            headerMap,
		DialTimeout:        *dialTimeoutFlag,
		WriteTimeout:       *writeTimeoutFlag,
		InsecureSkipVerify: *insecureFlag,
		Paths:              flagSet.Args(),
		Accept:             accept,
		Repeat:             *repeatFlag,
		WaitAcks:           *waitAcksFlag,
		HealthcheckPort:    *healthPortFlag,
		LogFormat:          logFormat,
		LogLevel:           logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "url", config.URL, "paths", config.Paths)
	return config, false, nil
}
