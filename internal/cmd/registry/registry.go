// Package registry parses registry command flags and starts the runtime.
package registry

import (
	"context"
	"flag"

	entrypoint "github.com/deedflow/deedflow/internal/platform/cmd"
	"github.com/deedflow/deedflow/internal/registry/app"
)

// Config holds registry command configuration.
type Config struct {
	HTTPAddr    string   `env:"DEEDFLOW_HTTP_ADDR" envDefault:":8080"`
	HealthAddr  string   `env:"DEEDFLOW_HEALTH_ADDR"`
	DBPath      string   `env:"DEEDFLOW_DB_PATH"`
	Admin       string   `env:"DEEDFLOW_ADMIN_ADDRESS"`
	Notaries    []string `env:"DEEDFLOW_NOTARY_ADDRESSES" envSeparator:","`
	Governments []string `env:"DEEDFLOW_GOVERNMENT_ADDRESSES" envSeparator:","`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "The query API listen address")
	fs.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "The gRPC health listen address (empty disables)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "The SQLite database path (empty selects the in-memory store)")
	fs.StringVar(&cfg.Admin, "admin", cfg.Admin, "The identity seeded with the admin capability")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the registry runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRegistry, func(runCtx context.Context) error {
		return app.Run(runCtx, app.Config{
			HTTPAddr:    cfg.HTTPAddr,
			HealthAddr:  cfg.HealthAddr,
			DBPath:      cfg.DBPath,
			Admin:       cfg.Admin,
			Notaries:    cfg.Notaries,
			Governments: cfg.Governments,
		})
	})
}
