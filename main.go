// Package main provides the entry point for the gameshell CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fheroes2/gameshell/announce"
	"github.com/fheroes2/gameshell/config"
	"github.com/fheroes2/gameshell/shell"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	logLevel   string
	cfg        config.Config

	// exitCode is the status of the program the shell handed control to.
	exitCode int

	rootCmd = &cobra.Command{
		Use:   "gameshell",
		Short: "Run fheroes2 with synchronized assets and spoken announcements",
		Long: paragraph(
			fmt.Sprintf("\nBrings the game assets up to date, connects the %s and starts the game. When game data is missing the toolset runs instead.",
				keyword("accessibility announcer")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	c, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		c.LogLevel = logLevel
	}
	if err := applyLogLevel(c.LogLevel); err != nil {
		return err
	}
	cfg = c
	return nil
}

// signalContext is canceled on interrupt or termination.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func execute(*cobra.Command, []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	sh := shell.New(cfg,
		shell.WithLogger(log.Default()),
		shell.WithAnnouncerHook(watchConfig),
	)
	code, err := sh.Run(ctx)
	if err != nil {
		return err
	}
	exitCode = code
	return nil
}

// watchConfig applies edits of the config file to a running announcer.
// Only the debounce window is live; everything else needs a restart.
func watchConfig(a *announce.Announcer) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		c, err := config.Load(viper.GetViper())
		if err != nil {
			log.Warn("ignoring invalid configuration change", "file", e.Name, "error", err)
			return
		}
		if err := a.SetDebounce(c.Announce.Debounce); err != nil {
			log.Debug("announcer gone, configuration change ignored", "error", err)
			return
		}
		log.Info("configuration reloaded", "file", e.Name, "debounce", c.Announce.Debounce)
	})
	viper.WatchConfig()
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	tryLoadConfigFromDefaultPlaces()
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
	os.Exit(exitCode)
}

func init() {
	config.SetDefaults(viper.GetViper())
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is gameshell.yml in the user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("bundle", "", "asset bundle directory or archive")
	rootCmd.PersistentFlags().String("speech", "", "speech engine (piper, gtts, mock, log, none)")

	_ = viper.BindPFlag("paths.bundle", rootCmd.PersistentFlags().Lookup("bundle"))
	_ = viper.BindPFlag("speech.engine", rootCmd.PersistentFlags().Lookup("speech"))

	rootCmd.AddCommand(configCmd, manCmd, syncCmd, statusCmd, digestCmd, announceCmd, consoleCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, config.AppName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, config.AppName)}, dirs...)
	}

	if c := os.Getenv("GAMESHELL_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(config.AppName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(config.AppName)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return
	}

	configFile = filepath.Join(dirs[0], config.AppName+".yml")
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}

func newShell() *shell.Shell {
	return shell.New(cfg, shell.WithLogger(log.Default()))
}
