package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const defaultConfig = `# log level: debug, info, warn or error
log_level: info

paths:
  # directory or zip/apk archive with the packaged assets
  bundle: "assets"
  # files_dir: "/path/to/files"
  # external_dir: "/path/to/external"

assets:
  # bundle roots copied into the external directory
  groups: ["files", "maps"]
  digest_name: "assets.digest"
  # glob patterns that must match under the external directory
  required: ["data/heroes2.agg"]

# program started when required game data is missing
toolset:
  command: "fheroes2-toolset"

engine:
  command: "fheroes2"
  args: []

announce:
  # repeats of the same text inside this window are not spoken again
  debounce: "300ms"
  # pitch for announcements starting with '~'
  low_pitch: 0.8
  queue_size: 64
  startup_message: "Accessibility patch connected. F-Heroes 2 is ready."

speech:
  # piper, gtts, mock, log or none
  engine: "piper"
  # engine used when the main one keeps failing: piper, gtts or mock
  # fallback: "gtts"
  fallback_after: 3
  sample_rate: 22050
  # 0.0 to 2.0
  volume: 1.0

  piper:
    binary: "piper"
    model: "en_US-lessac-medium.onnx"
    # speaker: "0"
    length_scale: 1.0
    timeout: "10s"

  gtts:
    binary: "gtts-cli"
    ffmpeg: "ffmpeg"
    language: "en"
    slow: false
    requests_per_minute: 50
    timeout: "15s"

  cache:
    enabled: true
    # dir: "/path/to/cache"
    memory_size: 16777216
    disk_size: 134217728
    compression_level: 3
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the gameshell config file",
	Long:    paragraph(fmt.Sprintf("\n%s the gameshell config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("gameshell config\ngameshell config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("gameshell", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  paragraph(fmt.Sprintf("\n%s the configuration after defaults, the config file and GAMESHELL_* environment variables were applied.", keyword("Print"))),
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintln(cmd.OutOrStdout(), faint("# "+used))
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("unable to encode config: %w", err)
		}
		return enc.Close()
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
