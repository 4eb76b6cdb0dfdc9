// Package config loads settings for the vaultctl admin CLI.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/flagx"
	"github.com/dmitrijs2005/vaultkeeper/internal/timex"
)

const (
	envAddr  = "VAULTKEEPER_ADDR"
	envToken = "VAULTKEEPER_TOKEN"
)

// Config holds runtime settings for vaultctl.
type Config struct {
	ServerEndpointAddr string
	AccessToken        string
	Timeout            time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.Timeout = 10 * time.Second
}

// JsonConfig is the on-disk shape of the vaultctl config file.
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	AccessToken        string         `json:"access_token"`
	Timeout            timex.Duration `json:"timeout"`
}

func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.AccessToken != "" {
		cfg.AccessToken = jc.AccessToken
	}
	if jc.Timeout.Duration > 0 {
		cfg.Timeout = jc.Timeout.Duration
	}
	return nil
}

func parseEnv(cfg *Config) {
	if v, ok := os.LookupEnv(envAddr); ok && v != "" {
		cfg.ServerEndpointAddr = v
	}
	if v, ok := os.LookupEnv(envToken); ok && v != "" {
		cfg.AccessToken = v
	}
}

// Load builds a Config from defaults, the JSON file named by -c/-config,
// the VAULTKEEPER_ADDR and VAULTKEEPER_TOKEN variables, and finally the
// global flags. Flags must precede the command; the command and its
// arguments are returned as rest.
func Load(args []string) (cfg *Config, rest []string, err error) {
	cfg = &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, args); err != nil {
		return nil, nil, err
	}
	parseEnv(cfg)

	fs := flag.NewFlagSet("vaultctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var configFile string
	fs.StringVar(&configFile, "c", "", "path to JSON config")
	fs.StringVar(&configFile, "config", "", "path to JSON config")
	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port of the gRPC server")
	fs.StringVar(&cfg.AccessToken, "t", cfg.AccessToken, "access token")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-command timeout")

	if err := fs.Parse(args); err != nil {
		return nil, nil, fmt.Errorf("flags: %w", err)
	}

	return cfg, fs.Args(), nil
}
