package main

import (
	"fmt"
	"os"

	"github.com/codefionn/codebridge/internal/config"
	"github.com/codefionn/codebridge/internal/logger"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	configFile string
	logLevel   string
	verbose    bool
	noColor    bool

	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "codebridge",
	Short: "Workspace, version control and presence tooling for a shared editor",
	Long: `codebridge is the core of a collaborative editor shell:

- tree:   list the workspace directory
- status: show the version control status of the workspace
- diff:   show the diff of one changed file
- serve:  run the collaboration session server
- join:   join a session and print roster changes

Use 'codebridge help <command>' for more information on a specific command.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Global().Close()
	},
}

func setup() error {
	path := configFile
	if path == "" {
		path = config.GetConfigPath()
	}

	var err error
	cfg, err = config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", path, err)
	}
	cfg.ApplyEnv()
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if err := logger.Init(logLevelFor(cfg.LogLevel, verbose), cfg.LogPath); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		logger.Global().SetMirror(os.Stderr)
	}

	color.NoColor = noColor || !term.IsTerminal(int(os.Stdout.Fd()))
	return nil
}

// logLevelFor parses name; --verbose lifts a disabled level to info so the
// mirror has something to print.
func logLevelFor(name string, verbose bool) logger.Level {
	level := logger.ParseLevel(name)
	if verbose && level == logger.LevelNone {
		return logger.LevelInfo
	}
	return level
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file (JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error, none")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Mirror log output to stderr (at least info level)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}
