// Package config loads the settings shared by mini-jsonrpc clients and servers from a
// JSON, YAML or TOML file.
//
//	codec: msgpack
//	allowUnknownFields: false
//	client:
//	  unmatched: reject
//	  singleSlot: false
//	server:
//	  logRequests: true
//	  recover: true
//	  rateLimit:
//	    rate: 100
//	    burst: 20
//	log:
//	  level: info
//	  development: false
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"mini-jsonrpc/client"
	"mini-jsonrpc/codec"
	"mini-jsonrpc/server"
)

// EnvConfigFile names the file Load reads when called with an empty path.
const EnvConfigFile = "MINI_JSONRPC_CONFIG"

type Config struct {
	Codec              string `json:"codec" yaml:"codec" toml:"codec"`
	AllowUnknownFields bool   `json:"allowUnknownFields" yaml:"allowUnknownFields" toml:"allowUnknownFields"`

	Client ClientConfig `json:"client" yaml:"client" toml:"client"`
	Server ServerConfig `json:"server" yaml:"server" toml:"server"`
	Log    LogConfig    `json:"log" yaml:"log" toml:"log"`
}

type ClientConfig struct {
	// Unmatched is "reject" or "accept".
	Unmatched  string `json:"unmatched" yaml:"unmatched" toml:"unmatched"`
	SingleSlot bool   `json:"singleSlot" yaml:"singleSlot" toml:"singleSlot"`
}

type ServerConfig struct {
	LogRequests bool            `json:"logRequests" yaml:"logRequests" toml:"logRequests"`
	Recover     bool            `json:"recover" yaml:"recover" toml:"recover"`
	RateLimit   RateLimitConfig `json:"rateLimit" yaml:"rateLimit" toml:"rateLimit"`
}

// RateLimitConfig is disabled when Rate is 0.
type RateLimitConfig struct {
	Rate  float64 `json:"rate" yaml:"rate" toml:"rate"`
	Burst int     `json:"burst" yaml:"burst" toml:"burst"`
}

type LogConfig struct {
	Level       string `json:"level" yaml:"level" toml:"level"`
	Development bool   `json:"development" yaml:"development" toml:"development"`
}

// configFormat represents supported configuration file formats.
type configFormat int

const (
	configFormatJSON configFormat = iota
	configFormatYAML
	configFormatTOML
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Codec:  codec.CodecTypeJSON.String(),
		Client: ClientConfig{Unmatched: client.RejectUnmatched.String()},
		Log:    LogConfig{Level: zapcore.InfoLevel.String()},
	}
}

// Load reads the file at path over the defaults and validates the result. An empty path
// falls back to $MINI_JSONRPC_CONFIG, and to the defaults when that is unset too.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := unmarshalConfig(data, cfg, detectConfigFormat(path)); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// detectConfigFormat determines the configuration file format based on file extension.
// Anything other than .yaml, .yml and .toml is read as JSON.
func detectConfigFormat(path string) configFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return configFormatYAML
	case ".toml":
		return configFormatTOML
	default:
		return configFormatJSON
	}
}

func unmarshalConfig(data []byte, cfg *Config, format configFormat) error {
	switch format {
	case configFormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// An empty document leaves the defaults alone.
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to parse YAML config file: %w", err)
		}
	case configFormatTOML:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return fmt.Errorf("failed to parse TOML config file: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("failed to parse TOML config file: unknown key %q", undecoded[0].String())
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %w", err)
		}
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := codec.ParseCodecType(c.Codec); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := parseUnmatched(c.Client.Unmatched); err != nil {
		return err
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	rl := c.Server.RateLimit
	if rl.Rate < 0 {
		return fmt.Errorf("config: server.rateLimit.rate must not be negative, got %v", rl.Rate)
	}
	if rl.Rate > 0 && rl.Burst < 1 {
		return fmt.Errorf("config: server.rateLimit.burst must be at least 1, got %d", rl.Burst)
	}
	return nil
}

// CodecType returns the configured wire format. c must be valid.
func (c *Config) CodecType() codec.CodecType {
	ct, _ := codec.ParseCodecType(c.Codec)
	return ct
}

// NewCodec returns the configured codec.
func (c *Config) NewCodec() codec.Codec {
	return codec.GetCodec(c.CodecType())
}

// Logger builds the zap logger described by the log section.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// ClientOptions converts the client section. c must be valid.
func (c *Config) ClientOptions(logger *zap.Logger) client.Options {
	unmatched, _ := parseUnmatched(c.Client.Unmatched)
	return client.Options{
		Logger:             logger,
		AllowUnknownFields: c.AllowUnknownFields,
		Unmatched:          unmatched,
		SingleSlot:         c.Client.SingleSlot,
	}
}

// ServerOptions converts the server section.
func (c *Config) ServerOptions(logger *zap.Logger) server.Options {
	return server.Options{
		Logger:             logger,
		AllowUnknownFields: c.AllowUnknownFields,
		LogRequests:        c.Server.LogRequests,
		Recover:            c.Server.Recover,
		RateLimit:          c.Server.RateLimit.Rate,
		Burst:              c.Server.RateLimit.Burst,
	}
}

func parseUnmatched(s string) (client.UnmatchedPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return client.RejectUnmatched, nil
	case "accept":
		return client.AcceptUnmatched, nil
	}
	return 0, fmt.Errorf("config: client.unmatched must be reject or accept, got %q", s)
}

func parseLevel(s string) (zapcore.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zapcore.InfoLevel, nil
	}
	level, err := zapcore.ParseLevel(s)
	if err != nil {
		return 0, fmt.Errorf("config: log.level: %w", err)
	}
	return level, nil
}
