package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/replica/internal/config"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/sdk/go/client"
)

// ConfigPath is the YAML config file to load; empty means defaults and
// environment only.
type ConfigPath string

var ProviderSet = wire.NewSet(
	ProvideConfig,
	ProvideLogger,
	ProvideClient,
)

func ProvideConfig(path ConfigPath) (config.Config, error) {
	return config.Load(string(path))
}

func ProvideLogger(cfg config.Config) (*log.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	return log.New(level), nil
}

// ProvideClient builds the client; the cleanup closes it and flushes the
// logger.
func ProvideClient(cfg config.Config, logger *log.Logger) (*client.Client, func(), error) {
	c, err := client.New(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = c.Close()
		_ = logger.Sync()
	}
	return c, cleanup, nil
}
