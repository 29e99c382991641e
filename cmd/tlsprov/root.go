package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"rubin.dev/tlsprovider/config"
	"rubin.dev/tlsprovider/logging"
)

type app struct {
	configPath string
	logLevel   string
	cacheDir   string
	noCache    bool

	cfg    *config.Config
	logger zerolog.Logger
	closer io.Closer
}

// overrides maps the flags the user actually set onto config keys.
func (a *app) overrides(cmd *cobra.Command) map[string]any {
	out := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		out["log.level"] = a.logLevel
	}
	if flags.Changed("cache-dir") {
		out["cache.dir"] = a.cacheDir
	}
	if flags.Changed("no-cache") {
		out["cache.enabled"] = !a.noCache
	}
	return out
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tlsprov",
		Short: "Exercise the TLS hash, signing and certificate compression providers",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath, a.overrides(cmd))
			if err != nil {
				return usageError{err}
			}
			logger, closer, err := logging.New(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return usageError{err}
			}
			a.cfg, a.logger, a.closer = cfg, logger, closer
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", os.Getenv("TLSPROV_CONFIG"), "YAML config file")
	pf.StringVar(&a.logLevel, "log-level", "info", "log level: trace|debug|info|warn|error")
	pf.StringVar(&a.cacheDir, "cache-dir", "", "directory of the persistent compression cache")
	pf.BoolVar(&a.noCache, "no-cache", false, "disable the amortized compression cache")

	cmd.AddCommand(
		newHashCmd(a),
		newCompressCmd(a),
		newDecompressCmd(a),
		newSignCmd(a),
		newSelftestCmd(a),
		newConfigCmd(a),
	)
	return cmd
}
