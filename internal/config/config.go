package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/menta2k/image-registration/pkg/correlation"
	"github.com/menta2k/image-registration/pkg/shift"
	"github.com/menta2k/image-registration/pkg/stack"
	"github.com/menta2k/image-registration/pkg/transform"
)

// Config holds the application configuration
type Config struct {
	Registration RegistrationConfig `json:"registration" toml:"registration"`
	Output       OutputConfig       `json:"output" toml:"output"`
	Logging      LoggingConfig      `json:"logging" toml:"logging"`
}

// RegistrationConfig holds configuration for offset measurement and shifting
type RegistrationConfig struct {
	Transform    string   `json:"transform" toml:"transform"`
	ShiftMethod  string   `json:"shift_method" toml:"shift_method"`
	Capabilities []string `json:"capabilities" toml:"capabilities"`
	Reference    int      `json:"reference" toml:"reference"`
	AutoRef      bool     `json:"auto_reference" toml:"auto_reference"`
	Workers      int      `json:"workers" toml:"workers"`
	WithLog      bool     `json:"with_log" toml:"with_log"`
	MinImageSize int      `json:"min_image_size" toml:"min_image_size"`
}

// OutputConfig holds configuration for writing aligned frames
type OutputConfig struct {
	Format    string `json:"format" toml:"format"`
	Quality   int    `json:"quality" toml:"quality"`
	Lossless  bool   `json:"lossless" toml:"lossless"`
	OutputDir string `json:"output_dir" toml:"output_dir"`
	Prefix    string `json:"prefix" toml:"prefix"`
	Suffix    string `json:"suffix" toml:"suffix"`
	Crop      bool   `json:"crop" toml:"crop"`
	Normalize bool   `json:"normalize" toml:"normalize"`
}

// LoggingConfig holds configuration for the structured logger
type LoggingConfig struct {
	Level  string `json:"level" toml:"level"`
	Format string `json:"format" toml:"format"`
}

var (
	outputFormats = []string{"png", "jpg", "jpeg", "tif", "tiff", "webp"}
	methodNames   = []string{"auto", "fft", "bilinear", "library"}
	logLevels     = []string{"debug", "info", "warn", "warning", "error"}
	logFormats    = []string{"console", "json"}
)

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Registration: RegistrationConfig{
			Transform:    transform.Gonum,
			ShiftMethod:  "auto",
			Capabilities: []string{"fft", "bilinear", "library"},
			Reference:    0,
			AutoRef:      false,
			Workers:      0,
			WithLog:      false,
			MinImageSize: 8,
		},
		Output: OutputConfig{
			Format:    "png",
			Quality:   95,
			Lossless:  true,
			OutputDir: "./aligned",
			Prefix:    "",
			Suffix:    "_aligned",
			Crop:      true,
			Normalize: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromFile loads configuration from a JSON or TOML file. Values missing
// from the file keep their defaults.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isTOML(filename) {
		err = toml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON or TOML file, chosen by extension
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	if isTOML(filename) {
		data, err = toml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	r := c.Registration
	if _, err := transform.ByName(r.Transform); err != nil {
		return fmt.Errorf("registration.transform: %w", err)
	}

	if r.ShiftMethod != "" && !isOneOf(r.ShiftMethod, methodNames) {
		return fmt.Errorf("registration.shift_method must be one of %v", methodNames)
	}

	for _, name := range r.Capabilities {
		if !isOneOf(name, methodNames[1:]) {
			return fmt.Errorf("registration.capabilities: unknown method %q", name)
		}
	}

	if r.Reference < 0 {
		return fmt.Errorf("registration.reference must not be negative")
	}

	if r.Workers < 0 {
		return fmt.Errorf("registration.workers must not be negative")
	}

	if r.MinImageSize < 1 {
		return fmt.Errorf("registration.min_image_size must be positive")
	}

	if !isOneOf(c.Output.Format, outputFormats) {
		return fmt.Errorf("output.format must be one of %v", outputFormats)
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if c.Logging.Level != "" && !isOneOf(c.Logging.Level, logLevels) {
		return fmt.Errorf("logging.level must be one of %v", logLevels)
	}

	if c.Logging.Format != "" && !isOneOf(c.Logging.Format, logFormats) {
		return fmt.Errorf("logging.format must be one of %v", logFormats)
	}

	return nil
}

// Provider returns the configured transform provider
func (r RegistrationConfig) Provider() (transform.Provider, error) {
	return transform.ByName(r.Transform)
}

// Methods returns the enabled shift strategies. FFT is always included.
func (r RegistrationConfig) Methods() []shift.Method {
	methods := make([]shift.Method, 0, len(r.Capabilities))
	for _, name := range r.Capabilities {
		methods = append(methods, shift.ParseMethod(name))
	}
	return methods
}

// Method returns the requested shift method
func (r RegistrationConfig) Method() shift.Method {
	return shift.ParseMethod(r.ShiftMethod)
}

// Correlator builds a phase correlator on the configured transform
func (r RegistrationConfig) Correlator() (*correlation.PhaseCorrelator, error) {
	provider, err := r.Provider()
	if err != nil {
		return nil, err
	}
	return correlation.NewWithConfig(provider, correlation.DefaultConfig()), nil
}

// Shifter builds a shifter limited to the configured capabilities
func (r RegistrationConfig) Shifter() (*shift.Shifter, error) {
	provider, err := r.Provider()
	if err != nil {
		return nil, err
	}
	return shift.NewWithStrategies(shift.Capabilities(provider, r.Methods()...)...), nil
}

// StackConfig returns the stack aligner settings
func (c *Config) StackConfig() stack.Config {
	return stack.Config{
		Reference: c.Registration.Reference,
		Method:    c.Registration.Method(),
		Crop:      c.Output.Crop,
		Workers:   c.Registration.Workers,
		WithLog:   c.Registration.WithLog,
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "image-registration", "config.json")
}

func isTOML(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".toml")
}

func isOneOf(value string, allowed []string) bool {
	return slices.Contains(allowed, strings.ToLower(strings.TrimSpace(value)))
}
