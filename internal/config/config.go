// Package config loads client settings from a YAML file and REPLICA_*
// environment variables, in that order of precedence over the defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/replica/internal/core/interp"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/session"
	"github.com/zeusync/replica/internal/core/transport"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "REPLICA_"

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server      ServerConfig        `yaml:"server" envPrefix:"SERVER_"`
	Transport   TransportConfig     `yaml:"transport" envPrefix:"TRANSPORT_"`
	Client      ClientConfig        `yaml:"client" envPrefix:"CLIENT_"`
	Log         LogConfig           `yaml:"log" envPrefix:"LOG_"`
	Credentials session.Credentials `yaml:"credentials" envPrefix:"CREDENTIALS_"`
	Transform   TransformConfig     `yaml:"transform" envPrefix:"TRANSFORM_"`
}

type ServerConfig struct {
	Host string `yaml:"host" env:"HOST"`
	Port int    `yaml:"port" env:"PORT"`
}

type TransportConfig struct {
	// Kind is one of tcp, websocket or quic.
	Kind                   string        `yaml:"kind" env:"KIND"`
	WebSocketPath          string        `yaml:"websocket_path" env:"WEBSOCKET_PATH"`
	QUICALPN               []string      `yaml:"quic_alpn" env:"QUIC_ALPN"`
	QUICInsecureSkipVerify bool          `yaml:"quic_insecure_skip_verify" env:"QUIC_INSECURE_SKIP_VERIFY"`
	DialTimeout            time.Duration `yaml:"dial_timeout" env:"DIAL_TIMEOUT"`
	ResponseTimeout        time.Duration `yaml:"response_timeout" env:"RESPONSE_TIMEOUT"`
	WriteTimeout           time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	KeepAlive              time.Duration `yaml:"keep_alive" env:"KEEP_ALIVE"`
	MaxFrameSize           int           `yaml:"max_frame_size" env:"MAX_FRAME_SIZE"`
}

type ClientConfig struct {
	// TickRate is the number of simulation ticks per second.
	TickRate int `yaml:"tick_rate" env:"TICK_RATE"`
	// ServerTimeStepMS is the real time, in milliseconds, between two
	// consecutive server timestamps.
	ServerTimeStepMS int `yaml:"server_time_step_ms" env:"SERVER_TIME_STEP_MS"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
}

// TransformConfig holds the transform replication thresholds.
type TransformConfig struct {
	PositionThreshold float64 `yaml:"position_threshold" env:"POSITION_THRESHOLD"`
	// RotationThreshold is in degrees.
	RotationThreshold float64 `yaml:"rotation_threshold" env:"ROTATION_THRESHOLD"`
	// Easing names the playback curve for remote transforms; empty is linear.
	Easing string `yaml:"easing" env:"EASING"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 4000,
		},
		Transport: TransportConfig{
			Kind:            string(transport.KindTCP),
			WebSocketPath:   "/ws",
			QUICALPN:        []string{"replica"},
			DialTimeout:     10 * time.Second,
			ResponseTimeout: 10 * time.Second,
			WriteTimeout:    5 * time.Second,
			KeepAlive:       15 * time.Second,
			MaxFrameSize:    1024 * 1024, // 1MB
		},
		Client: ClientConfig{
			TickRate:         30,
			ServerTimeStepMS: 100,
		},
		Log: LogConfig{
			Level: "info",
		},
		Transform: TransformConfig{
			PositionThreshold: 0.01,
			RotationThreshold: 0.01,
		},
	}
}

// Load reads path (optional) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err = decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Server.Host == "" {
		errs = append(errs, errors.New("server.host is required"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if _, err := c.TransportKind(); err != nil {
		errs = append(errs, err)
	}
	if c.Transport.MaxFrameSize <= 0 {
		errs = append(errs, errors.New("transport.max_frame_size must be positive"))
	}
	if c.Transport.ResponseTimeout < 0 || c.Transport.DialTimeout < 0 || c.Transport.WriteTimeout < 0 {
		errs = append(errs, errors.New("transport timeouts must not be negative"))
	}
	if c.Client.TickRate <= 0 {
		errs = append(errs, errors.New("client.tick_rate must be positive"))
	}
	if c.Client.ServerTimeStepMS <= 0 {
		errs = append(errs, errors.New("client.server_time_step_ms must be positive"))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Transform.PositionThreshold < 0 || c.Transform.RotationThreshold < 0 {
		errs = append(errs, errors.New("transform thresholds must not be negative"))
	}
	if _, err := interp.Easing(c.Transform.Easing); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (c Config) TransportKind() (transport.Kind, error) {
	return transport.ParseKind(c.Transport.Kind)
}

// Dialer builds the dialer for the configured transport kind.
func (c Config) Dialer() (transport.Dialer, error) {
	kind, err := c.TransportKind()
	if err != nil {
		return nil, err
	}
	return transport.NewDialer(kind, transport.DialerOptions{
		WebSocketPath:          c.Transport.WebSocketPath,
		QUICALPN:               c.Transport.QUICALPN,
		QUICInsecureSkipVerify: c.Transport.QUICInsecureSkipVerify,
		KeepAlive:              c.Transport.KeepAlive,
	})
}

func (c Config) TransportConfig() transport.Config {
	return transport.Config{
		DialTimeout:     c.Transport.DialTimeout,
		ResponseTimeout: c.Transport.ResponseTimeout,
		WriteTimeout:    c.Transport.WriteTimeout,
		MaxFrameSize:    c.Transport.MaxFrameSize,
	}
}

func (c Config) LogLevel() (log.Level, error) {
	return log.ParseLevel(c.Log.Level)
}

func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Client.TickRate)
}

func (c Config) ServerTick() time.Duration {
	return time.Duration(c.Client.ServerTimeStepMS) * time.Millisecond
}

func (c Config) InterpTransformConfig() (interp.TransformConfig, error) {
	easing, err := interp.Easing(c.Transform.Easing)
	if err != nil {
		return interp.TransformConfig{}, err
	}
	return interp.TransformConfig{
		PositionThreshold: c.Transform.PositionThreshold,
		RotationThreshold: c.Transform.RotationThreshold,
		ServerTick:        c.ServerTick(),
		Easing:            easing,
	}, nil
}
