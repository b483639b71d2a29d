// Configuration loading from various sources
//
// Precedence, highest to lowest:
//   1. command line flags
//   2. environment variables
//   3. optional YAML config file (--config)
//   4. struct defaults (see defaults.go)
//
// Positional arguments (listen-addr, listen-port, master-playlist-url,
// ad-server-endpoint) take precedence over everything except an explicit
// flag of the same name.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// BindFlags registers the proxy's command line flags on cmd.
func BindFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("config", "", "path to an optional YAML config file")
	flags.String("ad-insertion-mode", "", "ad insertion mode: static or dynamic")
	flags.String("interstitials-address", "", "base URL advertised in X-ASSET-LIST links")
	flags.Float64("default-ad-duration", 0, "default duration in seconds for statically scheduled breaks")
	flags.Float64("default-repeating-cycle", 0, "seconds between statically scheduled breaks")
	flags.Int("default-ad-number", 0, "number of breaks to materialize in static mode")
	flags.String("test-asset-url", "", "override URL substituted for every resolved creative asset")
	flags.String("osc-hostname", "", "optional persisted session store hostname")
	flags.Int("osc-port", 0, "optional persisted session store port")
	flags.String("osc-password", "", "optional persisted session store password")
}

// Load builds a Config from the cobra command's flags, the process
// environment, an optional YAML file and the positional arguments
// (listen-addr, listen-port, master-playlist-url, ad-server-endpoint).
func Load(cmd *cobra.Command, positional []string) (*Config, error) {
	cfg := &Config{}

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := loadYAMLFile(path, cfg); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := applyPositional(cfg, positional); err != nil {
		return nil, err
	}

	applyFlags(cmd, cfg)

	SetDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("ORIGIN_URL"); v != "" {
		cfg.Origin.MasterPlaylistURL = v
	}
	if v := os.Getenv("VAST_ENDPOINT"); v != "" {
		cfg.VAST.Endpoint = v
	}
	if v := os.Getenv("INSERTION_MODE"); v != "" {
		cfg.Insertion.Mode = v
	}
	if v := os.Getenv("OSC_HOSTNAME"); v != "" {
		cfg.Session.Address = v
		cfg.Session.Enabled = true
	}
	if v := os.Getenv("DEFAULT_AD_DURATION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Insertion.DefaultAdDuration = f
		}
	}
	if v := os.Getenv("DEFAULT_REPEATING_CYCLE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Insertion.DefaultRepeatingCycle = f
		}
	}
	if v := os.Getenv("DEFAULT_AD_NUMBER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Insertion.DefaultAdNumber = n
		}
	}
	if v := os.Getenv("TEST_ASSET_URL"); v != "" {
		cfg.VAST.TestAssetURL = v
	}
}

// applyPositional consumes the four positional CLI arguments, per the
// proxy's invocation contract: listen-addr listen-port master-playlist-url
// ad-server-endpoint.
func applyPositional(cfg *Config, args []string) error {
	if len(args) == 0 {
		return nil
	}
	if len(args) != 4 {
		return fmt.Errorf("expected 4 positional arguments (listen-addr listen-port master-playlist-url ad-server-endpoint), got %d", len(args))
	}
	cfg.Server.Address = args[0]
	port, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid listen-port %q: %w", args[1], err)
	}
	cfg.Server.Port = port
	cfg.Origin.MasterPlaylistURL = args[2]
	cfg.VAST.Endpoint = args[3]
	return nil
}

func applyFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()
	if flags.Changed("ad-insertion-mode") {
		cfg.Insertion.Mode, _ = flags.GetString("ad-insertion-mode")
	}
	if flags.Changed("interstitials-address") {
		cfg.Server.InterstitialsBase, _ = flags.GetString("interstitials-address")
	}
	if flags.Changed("default-ad-duration") {
		cfg.Insertion.DefaultAdDuration, _ = flags.GetFloat64("default-ad-duration")
	}
	if flags.Changed("default-repeating-cycle") {
		cfg.Insertion.DefaultRepeatingCycle, _ = flags.GetFloat64("default-repeating-cycle")
	}
	if flags.Changed("default-ad-number") {
		cfg.Insertion.DefaultAdNumber, _ = flags.GetInt("default-ad-number")
	}
	if flags.Changed("test-asset-url") {
		cfg.VAST.TestAssetURL, _ = flags.GetString("test-asset-url")
	}
	if flags.Changed("osc-hostname") {
		cfg.Session.Address, _ = flags.GetString("osc-hostname")
		cfg.Session.Enabled = true
	}
	if flags.Changed("osc-port") {
		cfg.Session.Port, _ = flags.GetInt("osc-port")
	}
	if flags.Changed("osc-password") {
		cfg.Session.Password, _ = flags.GetString("osc-password")
	}
}

func validate(cfg *Config) error {
	mode := strings.ToLower(cfg.Insertion.Mode)
	if mode != "static" && mode != "dynamic" {
		return fmt.Errorf("ad-insertion-mode must be 'static' or 'dynamic', got %q", cfg.Insertion.Mode)
	}
	cfg.Insertion.Mode = mode
	if cfg.Origin.MasterPlaylistURL == "" {
		return fmt.Errorf("master-playlist-url is required")
	}
	if cfg.VAST.Endpoint == "" {
		return fmt.Errorf("ad-server-endpoint is required")
	}
	if cfg.Server.InterstitialsBase == "" {
		cfg.Server.InterstitialsBase = fmt.Sprintf("http://%s:%d", cfg.Server.Address, cfg.Server.Port)
	}
	return nil
}
