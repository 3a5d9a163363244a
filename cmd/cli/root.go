package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/ReelDNA/pkg/logger"
	"github.com/himanishpuri/ReelDNA/pkg/reeldna"
)

type globalFlags struct {
	configPath string
	envFile    string
	sessionDir string
	dbPath     string
	tempDir    string
	seed       int64
	logLevel   string
	quiet      bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *reeldna.Config
	configErr  error

	log *logger.Logger
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// ensureConfig loads the TOML file and environment once, then applies the
// command line overrides on top.
func (c *commandContext) ensureConfig() (*reeldna.Config, error) {
	c.configOnce.Do(func() {
		var envFiles []string
		if f := strings.TrimSpace(c.flags.envFile); f != "" {
			envFiles = append(envFiles, f)
		}
		cfg, err := reeldna.LoadConfig(strings.TrimSpace(c.flags.configPath), envFiles...)
		if err != nil {
			c.configErr = err
			return
		}
		if c.flags.sessionDir != "" {
			cfg.Paths.SessionDir = c.flags.sessionDir
		}
		if c.flags.dbPath != "" {
			cfg.Paths.DBPath = c.flags.dbPath
		}
		if c.flags.tempDir != "" {
			cfg.Paths.TempDir = c.flags.tempDir
		}
		if c.flags.seed != 0 {
			cfg.Seed = c.flags.seed
		}
		if c.flags.logLevel != "" {
			cfg.Log.Level = c.flags.logLevel
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() *logger.Logger {
	if c.log != nil {
		return c.log
	}
	cfg := logger.DefaultConfig()
	if c.config != nil {
		cfg.Level = logger.ParseLevel(c.config.Log.Level)
		cfg.FilePath = c.config.Log.File
	}
	c.log = logger.New(cfg)
	return c.log
}

// createService creates a ReelDNA service from the loaded configuration.
func (c *commandContext) createService() (reeldna.Service, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return reeldna.NewService(
		reeldna.WithConfig(cfg),
		reeldna.WithLogger(c.logger()),
	)
}

func (c *commandContext) withService(fn func(reeldna.Service) error) error {
	svc, err := c.createService()
	if err != nil {
		c.logger().Errorf("Service initialization failed: %v", err)
		return err
	}
	defer svc.Close()
	return fn(svc)
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	ctx := newCommandContext(flags)

	rootCmd := &cobra.Command{
		Use:           "reeldna",
		Short:         "Detect pirated recordings of a reference video",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !flags.quiet {
				printBanner()
			}
			if _, err := ctx.ensureConfig(); err != nil {
				return &usageError{err: err}
			}
			ctx.logger().Debugf("Executing command: %s", cmd.CommandPath())
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if ctx.log != nil {
				_ = ctx.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "TOML configuration file")
	pf.StringVar(&flags.envFile, "env-file", "", "dotenv file to load (default: .env when present)")
	pf.StringVar(&flags.sessionDir, "session", "", "Session directory (env: REELDNA_SESSION_DIR)")
	pf.StringVar(&flags.dbPath, "db", "", "Path to the detection history database (env: REELDNA_DB_PATH)")
	pf.StringVar(&flags.tempDir, "temp", "", "Directory for scratch media files (env: REELDNA_TEMP_DIR)")
	pf.Int64Var(&flags.seed, "seed", 0, "Seed for reference timestamp selection (0 draws a fresh seed)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVarP(&flags.quiet, "quiet", "q", false, "Do not print the banner")

	rootCmd.AddCommand(newSampleCommand(ctx))
	rootCmd.AddCommand(newSyncCommand(ctx))
	rootCmd.AddCommand(newCompareCommand(ctx))
	rootCmd.AddCommand(newDetectCommand(ctx))
	rootCmd.AddCommand(newReportCommand(ctx))
	rootCmd.AddCommand(newEvidenceCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newFetchCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newDeleteCommand(ctx))
	rootCmd.AddCommand(newDoctorCommand(ctx))

	return rootCmd
}
