// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Canonical role names. The French names are accepted as
// aliases on input.
const (
	RoleOperator = "operator"
	RoleClient   = "client"
)

// Config is the configuration of one sharedesk process.
type Config struct {
	// Role is operator (views and controls) or client (shares its
	// screen).
	Role string `yaml:"role" json:"role"`

	// SharedFolder is the directory both peers can reach. It holds
	// encryption.key, screen.enc, and the command mailbox.
	SharedFolder string `yaml:"shared_folder" json:"shared_folder"`

	// Target is what the client captures: "screen" or "window:<id>".
	// Ignored by the operator.
	Target string `yaml:"target" json:"target"`

	// RemoteControl lets the client execute commands from the operator.
	// When false the client never reads the mailbox.
	RemoteControl bool `yaml:"remote_control" json:"remote_control"`

	// Intervals are the base tick periods of the session loops.
	Intervals IntervalsConfig `yaml:"intervals" json:"intervals"`

	// StorageTimeout bounds the wait for the process-wide storage permit.
	StorageTimeout Duration `yaml:"storage_timeout" json:"storage_timeout"`

	// ErrorThreshold is the number of consecutive loop failures that
	// ends the session.
	ErrorThreshold int `yaml:"error_threshold" json:"error_threshold"`

	Frame   FrameConfig   `yaml:"frame" json:"frame"`
	Capture CaptureConfig `yaml:"capture" json:"capture"`
	Input   InputConfig   `yaml:"input" json:"input"`
	Display DisplayConfig `yaml:"display" json:"display"`
	Status  StatusConfig  `yaml:"status" json:"status"`
}

// IntervalsConfig holds the loop tick periods.
type IntervalsConfig struct {
	Capture  Duration `yaml:"capture" json:"capture"`
	Watch    Duration `yaml:"watch" json:"watch"`
	Dispatch Duration `yaml:"dispatch" json:"dispatch"`
	Receive  Duration `yaml:"receive" json:"receive"`
}

// FrameConfig configures frame compression on the client.
type FrameConfig struct {
	// Budget is the target compressed size in bytes.
	Budget int `yaml:"budget" json:"budget"`

	StartQuality int `yaml:"start_quality" json:"start_quality"`
	QualityStep  int `yaml:"quality_step" json:"quality_step"`
	FloorQuality int `yaml:"floor_quality" json:"floor_quality"`

	// Codec is jpeg, zstd, or lz4.
	Codec string `yaml:"codec" json:"codec"`

	// MaxDimension downscales frames whose longer side exceeds it.
	// Zero keeps the captured size.
	MaxDimension int  `yaml:"max_dimension" json:"max_dimension"`
	Grayscale    bool `yaml:"grayscale" json:"grayscale"`
}

// CaptureConfig configures how the client grabs frames.
type CaptureConfig struct {
	// Command is run on every capture tick and must write a PNG or JPEG
	// image to stdout. The token {window} is replaced with the target
	// window id. Empty selects ImageMagick's import, capturing the root
	// window or the target window as PNG.
	Command string `yaml:"command" json:"command"`

	// File, when set, is an image file some other program keeps
	// rewriting with the latest capture. It replaces Command; the
	// target only selects which window takes input.
	File string `yaml:"file" json:"file"`
}

// InputConfig configures input injection on the client.
type InputConfig struct {
	// Driver is xdotool (inject into the X session) or log (record
	// commands without executing them).
	Driver string `yaml:"driver" json:"driver"`

	// ClickSettle is the pause between pointer move, press, and release.
	ClickSettle Duration `yaml:"click_settle" json:"click_settle"`

	// FocusSettle is the pause after focusing the target window before
	// input is injected.
	FocusSettle Duration `yaml:"focus_settle" json:"focus_settle"`
}

// DisplayConfig configures where the operator shows received frames.
type DisplayConfig struct {
	// Output is a PNG file rewritten atomically with every new frame.
	// Empty disables the file sink.
	Output string `yaml:"output" json:"output"`
}

// StatusConfig configures the local status API.
type StatusConfig struct {
	// Listen is a TCP address such as 127.0.0.1:7040. Empty disables
	// the API.
	Listen string `yaml:"listen" json:"listen"`
}

// Default returns the default configuration. Role and SharedFolder have
// no default and must come from the file or flags.
func Default() *Config {
	return &Config{
		Target: "screen",
		Intervals: IntervalsConfig{
			Capture:  Duration(50 * time.Millisecond),
			Watch:    Duration(25 * time.Millisecond),
			Dispatch: Duration(time.Millisecond),
			Receive:  Duration(time.Millisecond),
		},
		StorageTimeout: Duration(5 * time.Second),
		ErrorThreshold: 5,
		Frame: FrameConfig{
			Budget:       1 << 20,
			StartQuality: 75,
			QualityStep:  5,
			FloorQuality: 10,
			Codec:        "jpeg",
		},
		Input: InputConfig{
			Driver:      "xdotool",
			ClickSettle: Duration(10 * time.Millisecond),
			FocusSettle: Duration(50 * time.Millisecond),
		},
	}
}

// Load loads configuration from the SHAREDESK_CONFIG environment
// variable.
func Load() (*Config, error) {
	configPath := os.Getenv("SHAREDESK_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("SHAREDESK_CONFIG environment variable not set; " +
			"set it to the path of your sharedesk.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path on top of
// [Default]. The result is not validated; call [Config.Validate] after
// applying flag overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	cfg.Normalize()
	return cfg, nil
}

// loadFile parses a single configuration file, merging into the
// current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		decoder.DisallowUnknownFields()
		return decoder.Decode(c)
	default:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	}
}

// Normalize canonicalizes role aliases and expands variables in path
// fields. The CLI calls it again after applying flag overrides.
func (c *Config) Normalize() {
	if role, ok := canonicalRole(c.Role); ok {
		c.Role = role
	}
	c.Target = strings.TrimSpace(c.Target)
	c.Input.Driver = strings.ToLower(strings.TrimSpace(c.Input.Driver))
	c.Frame.Codec = strings.ToLower(strings.TrimSpace(c.Frame.Codec))

	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.SharedFolder = expandVars(c.SharedFolder, vars)
	c.Display.Output = expandVars(c.Display.Output, vars)
	c.Capture.File = expandVars(c.Capture.File, vars)
}

func canonicalRole(name string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case RoleOperator, "dépanneur", "depanneur":
		return RoleOperator, true
	case RoleClient, "utilisateur":
		return RoleClient, true
	default:
		return name, false
	}
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	role, ok := canonicalRole(c.Role)
	if !ok {
		errs = append(errs, fmt.Errorf("role must be operator or client, got %q", c.Role))
	}
	if c.SharedFolder == "" {
		errs = append(errs, fmt.Errorf("shared_folder is required"))
	}

	if role == RoleClient {
		if err := validateTarget(c.Target); err != nil {
			errs = append(errs, err)
		}
		if c.Capture.File != "" && c.Capture.Command != "" {
			errs = append(errs, fmt.Errorf("capture.file and capture.command are mutually exclusive"))
		}
	}

	durations := []struct {
		name  string
		value Duration
	}{
		{"intervals.capture", c.Intervals.Capture},
		{"intervals.watch", c.Intervals.Watch},
		{"intervals.dispatch", c.Intervals.Dispatch},
		{"intervals.receive", c.Intervals.Receive},
		{"storage_timeout", c.StorageTimeout},
	}
	for _, duration := range durations {
		if duration.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", duration.name, duration.value))
		}
	}
	if c.ErrorThreshold < 1 {
		errs = append(errs, fmt.Errorf("error_threshold must be at least 1, got %d", c.ErrorThreshold))
	}

	if c.Frame.Budget <= 0 {
		errs = append(errs, fmt.Errorf("frame.budget must be positive, got %d", c.Frame.Budget))
	}
	if c.Frame.FloorQuality < 1 || c.Frame.StartQuality > 100 || c.Frame.FloorQuality > c.Frame.StartQuality {
		errs = append(errs, fmt.Errorf("frame quality range %d..%d must satisfy 1 <= floor_quality <= start_quality <= 100",
			c.Frame.FloorQuality, c.Frame.StartQuality))
	}
	if c.Frame.QualityStep <= 0 {
		errs = append(errs, fmt.Errorf("frame.quality_step must be positive, got %d", c.Frame.QualityStep))
	}
	if !contains([]string{"jpeg", "zstd", "lz4"}, c.Frame.Codec) {
		errs = append(errs, fmt.Errorf("frame.codec must be one of: jpeg, zstd, lz4"))
	}
	if c.Frame.MaxDimension < 0 {
		errs = append(errs, fmt.Errorf("frame.max_dimension must not be negative"))
	}

	if !contains([]string{"xdotool", "log"}, c.Input.Driver) {
		errs = append(errs, fmt.Errorf("input.driver must be one of: xdotool, log"))
	}
	if c.Input.ClickSettle < 0 || c.Input.FocusSettle < 0 {
		errs = append(errs, fmt.Errorf("input settle durations must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validateTarget(target string) error {
	if target == "screen" {
		return nil
	}
	if id, ok := strings.CutPrefix(target, "window:"); ok {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("target %q names no window", target)
		}
		return nil
	}
	return fmt.Errorf("target must be \"screen\" or \"window:<id>\", got %q", target)
}

// EnsureSharedFolder creates the shared folder if it does not exist.
func (c *Config) EnsureSharedFolder() error {
	if err := os.MkdirAll(c.SharedFolder, 0o700); err != nil {
		return fmt.Errorf("creating shared folder %s: %w", c.SharedFolder, err)
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
