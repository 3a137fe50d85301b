package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/CZERTAINLY/Paperwork/internal/log"
	"github.com/CZERTAINLY/Paperwork/internal/model"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	configName = "paperwork.yaml"
	configEnv  = "PAPERWORKCONFIG"
)

var (
	userConfigPath string // /default/config/path/paperwork on given OS
	configPath     string // actual config file used (if loaded)
	config         model.Config
	closeLog       = func() error { return nil }

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "paperwork")
}

func main() {
	rootCmd := newRootCmd()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("paperwork failed", "err", err)
	}
	_ = closeLog()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "paperwork",
		Short:        "Scan, index and search your paper documents",
		SilenceUsage: true,
		// never print messages
		SilenceErrors: true,
		// parse or create a config, setup logging
		PersistentPreRunE: initPaperwork,
	}
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is "+configName+" in "+userConfigPath+" or in current directory")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	rootCmd.AddCommand(
		newReindexCmd(),
		newSearchCmd(),
		newScanCmd(),
		newThumbnailsCmd(),
		newRenderCmd(),
		newLabelCmd(),
		newRunCmd(),
		versionCmd,
	)
	return rootCmd
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provides version of a paperwork",
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		if configPath != "" {
			fmt.Fprintf(w, "config:    %s\n", configPath)
		}
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Fprintln(w, "paperwork: version info not available")
			return
		}
		fmt.Fprintf(w, "paperwork: %s\n", info.Main.Version)
		fmt.Fprintf(w, "go:        %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Fprintf(w, "commit:    %s\n", s.Value)
			case "vcs.time":
				fmt.Fprintf(w, "date:      %s\n", s.Value)
			case "vcs.modified":
				fmt.Fprintf(w, "dirty:     %s\n", s.Value)
			}
		}
	},
}

func initPaperwork(cmd *cobra.Command, _ []string) error {
	path, err := findConfig()
	if err != nil {
		return err
	}
	configPath = path

	if exists(configPath) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		config = *cfg
	} else {
		// store default configuration
		config = model.DefaultConfig(cmd.Context())
		if err := storeConfig(configPath, config); err != nil {
			return err
		}
	}

	// --verbose has a precedence over config file
	if flagVerbose {
		config.Service.Verbose = true
	}

	w, closeFn, err := log.Output(config.Service.Log)
	if err != nil {
		return err
	}
	closeLog = closeFn
	slog.SetDefault(log.New(w, config.Service.Verbose))

	slog.Debug("paperwork run", "configPath", configPath)
	slog.Debug("paperwork run", "config", config)
	return nil
}

// findConfig returns the configuration path. A path which does not exist
// yet gets the default configuration.
func findConfig() (string, error) {
	if flagConfigFilePath != "" {
		return flagConfigFilePath, nil
	}
	if envConfig, ok := os.LookupEnv(configEnv); ok && envConfig != "" {
		return envConfig, nil
	}
	for _, d := range []string{userConfigPath, "."} {
		path := filepath.Join(d, configName)
		if exists(path) {
			return path, nil
		}
	}
	return filepath.Join(userConfigPath, configName), nil
}

func loadConfig(path string) (*model.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	cfg, err := model.LoadConfig(f)
	if err != nil {
		for _, d := range model.CueErrDetails(err) {
			slog.Error("invalid config", d.Attr("detail"))
		}
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func storeConfig(path string, cfg model.Config) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	if err := encodeConfig(f, cfg); err != nil {
		return fmt.Errorf("storing configuration: %w", err)
	}
	return nil
}

func encodeConfig(w io.Writer, cfg model.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
