package main

import (
	"fmt"
	"path/filepath"

	"github.com/eternalApril/redisdrs/internal/config"
	"github.com/eternalApril/redisdrs/internal/logger"
	"github.com/eternalApril/redisdrs/internal/transfer"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const Version = "1.0.0"

// uriKeyAnnotation names the config key the --uri flag of a command feeds
const uriKeyAnnotation = "redisdrs/uri-key"

// flagKeys maps command line flags to config keys
var flagKeys = map[string]string{
	"bulk-size":  "transfer.bulk_size",
	"pattern":    "transfer.pattern",
	"use-ttl":    "transfer.use_ttl",
	"file":       "dump.path",
	"source-uri": "source.uri",
	"target-uri": "target.uri",
	"log-level":  "log.level",
	"log-format": "log.format",
}

type application struct {
	cfg    *config.Config
	logger *zap.Logger
	engine *transfer.Engine
}

var (
	app *application

	rootCmd = &cobra.Command{
		Use:   "redisdrs",
		Short: "dump, restore and sync redis keys",
		Long: `redisdrs moves keys between a redis server and a dump file,
or between two redis servers.

Every key is written as one JSON line, together with its type and expiry.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	versionCmd = &cobra.Command{
		Use:               "version",
		Short:             "Print the version number of redisdrs",
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "redisdrs v%s\n", Version)
		},
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", ".", "directory holding redisdrs.yaml")
	flags.StringP("pattern", "p", "*", "pattern of the keys to transfer")
	flags.IntP("bulk-size", "b", 1000, "number of keys transferred concurrently")
	flags.BoolP("use-ttl", "t", true, "restore the remaining ttl instead of the absolute expiry")
	flags.String("log-level", "info", "debug, info, warn, error")
	flags.String("log-format", "console", "console, json")

	rootCmd.AddCommand(dumpCmd, restoreCmd, syncCmd, versionCmd)
}

// setup loads .env files and the config, binds the flags and builds the engine
func setup(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	if err := bindFlags(cmd); err != nil {
		return err
	}

	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	app = &application{
		cfg:    cfg,
		logger: log,
		engine: transfer.NewEngine(cfg, osfs.New("/"), log),
	}
	return nil
}

func bindFlags(cmd *cobra.Command) error {
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if f.Name == "uri" {
			key, ok = cmd.Annotations[uriKeyAnnotation]
		}
		if ok && err == nil {
			err = viper.BindPFlag(key, f)
		}
	})
	return err
}

// absPath resolves p against the working directory, the engine's filesystem is rooted at /
func absPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	return filepath.Abs(p)
}
