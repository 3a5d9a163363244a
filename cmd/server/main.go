package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/ReelDNA/pkg/logger"
	"github.com/himanishpuri/ReelDNA/pkg/reeldna"
)

func main() {
	if err := newServerCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServerCommand() *cobra.Command {
	var (
		configPath     string
		port           int
		uploadDir      string
		allowedOrigins string
		maxUploadMB    int64
		detectTimeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:           "reeldna-server",
		Short:         "HTTP API for suspect uploads and detection history",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := reeldna.LoadConfig(configPath)
			if err != nil {
				return err
			}

			logCfg := logger.DefaultConfig()
			logCfg.Level = logger.ParseLevel(cfg.Log.Level)
			logCfg.FilePath = cfg.Log.File
			log := logger.New(logCfg)
			defer log.Sync()

			service, err := reeldna.NewService(
				reeldna.WithConfig(cfg),
				reeldna.WithLogger(log),
			)
			if err != nil {
				return fmt.Errorf("failed to create service: %w", err)
			}
			defer service.Close()

			if uploadDir == "" {
				uploadDir = cfg.Ingest.Dir
			}
			config := &ServerConfig{
				Port:           port,
				DBPath:         cfg.Paths.DBPath,
				UploadDir:      uploadDir,
				MaxUploadMB:    maxUploadMB,
				MaxConcurrent:  cfg.Ingest.MaxConcurrentRuns,
				DetectTimeout:  detectTimeout,
				AllowedOrigins: parseOrigins(allowedOrigins),
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return NewServer(service, config, log).Start(ctx)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	f.IntVar(&port, "port", 8080, "HTTP server port")
	f.StringVar(&uploadDir, "uploads", "", "Directory for uploaded suspects (default: ingest.dir)")
	f.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
	f.Int64Var(&maxUploadMB, "max-upload-mb", 4096, "Maximum upload size in MB")
	f.DurationVar(&detectTimeout, "detect-timeout", 30*time.Minute, "Timeout for one detection run")
	return cmd
}

func parseOrigins(s string) []string {
	if strings.TrimSpace(s) == "*" {
		return []string{"*"}
	}
	origins := strings.Split(s, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}
