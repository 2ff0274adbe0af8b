// Command quackbench is a MotherDuck benchmark toolkit: it loads the
// Contoso sample dataset, runs labeled benchmark queries, reports on
// tables and storage, and scales tables to exact row counts.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quackbench/quackbench/pkg/config"
	"github.com/quackbench/quackbench/pkg/envfile"
	"github.com/quackbench/quackbench/pkg/errors"
)

// Version information set by build flags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfgFile string
	cfg     = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "quackbench",
	Short: "MotherDuck benchmark toolkit",
	Long: `quackbench loads the Contoso sample dataset into MotherDuck, runs
labeled benchmark queries with timing and resource profiling, reports
table and storage usage, and scales tables to exact row counts.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Path to config file (default searches . and $HOME/.quackbench)")
	pf.String("env-file", ".env", "Path to KEY=VALUE environment file")
	pf.String("database", config.DefaultDatabase, "MotherDuck database name")
	pf.String("schema", config.DefaultSchema, "Schema holding the benchmark tables")
	pf.String("token", "", "MotherDuck token (overrides MOTHERDUCK_TOKEN)")
	pf.Int("threads", config.DefaultThreads, "DuckDB thread count")
	pf.Int("max-memory-mb", config.DefaultMaxMemoryMB, "DuckDB memory ceiling in MB")
	pf.String("temp-directory", "", "Spill directory (default $TMPDIR/duckdb)")
	pf.String("extension-directory", "", "Extension directory (default <temp-directory>/extensions)")
	pf.String("log-level", "info", "Log level (trace, debug, info, warn, error)")

	for flag, key := range map[string]string{
		"env-file":            "env_file",
		"database":            "database",
		"schema":              "schema",
		"token":               "token",
		"threads":             "threads",
		"max-memory-mb":       "max_memory_mb",
		"temp-directory":      "temp_directory",
		"extension-directory": "extension_directory",
		"log-level":           "log_level",
	} {
		if err := viper.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(
		newInitCmd(),
		newQueryCmd(),
		newTablesCmd(),
		newStorageCmd(),
		newScaleCmd(),
		newScaleToCmd(),
		newTokenCmd(),
		newVersionCmd(),
	)
}

// initConfig resolves configuration in order: defaults, config file,
// env file, process environment, flags.
func initConfig(cmd *cobra.Command) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("quackbench")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home + "/.quackbench")
		}
	}
	viper.SetEnvPrefix("QUACKBENCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return errors.Wrap(err, errors.CodeConfigInvalid, "failed to read config file")
		}
	}

	// Seed the process environment from the env file before settings
	// are resolved, so QUACKBENCH_* entries in it take effect; process
	// variables that are already set win.
	envPath := viper.GetString("env_file")
	if envPath == "" {
		envPath = ".env"
	}
	if err := envfile.LoadAndApply(envPath); err != nil {
		return errors.Wrap(err, errors.CodeConfigInvalid, "failed to load env file")
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return errors.Wrap(err, errors.CodeConfigInvalid, "failed to parse configuration")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	setupLogging(cfg.LogLevel)
	return nil
}

func setupLogging(level string) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.IsCanceled(err) {
			log.Warn().Msg(err.Error())
			os.Exit(0)
		}
		log.Error().Err(err).Str("code", errors.GetCode(err)).Msg("Command failed")
		os.Exit(1)
	}
}

// confirm prompts on stdin and accepts only an explicit "yes".
func confirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s (yes/no): ", prompt)
	var response string
	if _, err := fmt.Fscanln(os.Stdin, &response); err != nil {
		return false
	}
	return strings.ToLower(strings.TrimSpace(response)) == "yes"
}
