package app

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/specialistvlad/imageburst/internal/config"
	"github.com/specialistvlad/imageburst/internal/transport"
	"github.com/specialistvlad/imageburst/internal/transport/websocket"
)

// Config holds all the necessary configuration for an App instance to run.
// Zero values in the endpoint and upload fields mean "not given on the
// command line" and are filled from config files, then from defaults.
type Config struct {
	ConfigPaths []string // hcl files or directories

	URL                string
	Transport          string
	Namespace          string
	Headers            map[string]string
	DialTimeout        time.Duration
	WriteTimeout       time.Duration
	InsecureSkipVerify bool

	Paths    []string
	Accept   []string
	Repeat   int
	WaitAcks time.Duration

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

// Defaults applied after flags and config files are merged.
const (
	DefaultTransport = websocket.Name
	DefaultRepeat    = 1
)

// NewConfig validates the values that do not depend on config files.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.URL == "" && len(cfg.ConfigPaths) == 0 {
		return nil, errors.New("an endpoint URL is required: pass -url or a -config file")
	}
	if cfg.Repeat < 0 {
		return nil, fmt.Errorf("repeat must not be negative, got %d", cfg.Repeat)
	}
	if cfg.WaitAcks < 0 {
		return nil, fmt.Errorf("wait-acks must not be negative, got %s", cfg.WaitAcks)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("healthcheck-port out of range: %d", cfg.HealthcheckPort)
	}
	return &cfg, nil
}

// applyFile fills every field the command line left unset from m.
func (c *Config) applyFile(m *config.Model) {
	ep, up := m.Endpoint, m.Upload
	if c.URL == "" {
		c.URL = ep.URL
	}
	if c.Transport == "" {
		c.Transport = ep.Transport
	}
	if c.Namespace == "" {
		c.Namespace = ep.Namespace
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = ep.DialTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = ep.WriteTimeout
	}
	if !c.InsecureSkipVerify && ep.InsecureSkipVerify != nil {
		c.InsecureSkipVerify = *ep.InsecureSkipVerify
	}
	for k, v := range ep.Headers {
		if c.Headers == nil {
			c.Headers = make(map[string]string)
		}
		if _, set := c.Headers[k]; !set {
			c.Headers[k] = v
		}
	}
	if len(c.Paths) == 0 {
		c.Paths = up.Paths
	}
	if len(c.Accept) == 0 {
		c.Accept = up.Accept
	}
	if c.Repeat == 0 {
		c.Repeat = up.Repeat
	}
	if c.WaitAcks == 0 {
		c.WaitAcks = up.WaitAcks
	}
}

func (c *Config) applyDefaults() {
	if c.Transport == "" {
		c.Transport = DefaultTransport
	}
	if c.Repeat == 0 {
		c.Repeat = DefaultRepeat
	}
}

// validate checks the merged configuration and makes image paths absolute.
func (c *Config) validate() error {
	if c.URL == "" {
		return errors.New("no endpoint URL configured")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid endpoint URL %q: %w", c.URL, err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("invalid endpoint URL %q: unsupported scheme %q", c.URL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid endpoint URL %q: missing host", c.URL)
	}
	if len(c.Paths) == 0 {
		return errors.New("no image paths given")
	}
	for i, p := range c.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("invalid image path %q: %w", p, err)
		}
		c.Paths[i] = abs
	}
	return nil
}

func (c *Config) transportConfig() transport.Config {
	var headers http.Header
	if len(c.Headers) > 0 {
		headers = make(http.Header, len(c.Headers))
		for k, v := range c.Headers {
			headers.Set(k, v)
		}
	}
	return transport.Config{
		URL:                c.URL,
		Headers:            headers,
		DialTimeout:        c.DialTimeout,
		WriteTimeout:       c.WriteTimeout,
		InsecureSkipVerify: c.InsecureSkipVerify,
		Namespace:          c.Namespace,
	}.WithDefaults()
}
