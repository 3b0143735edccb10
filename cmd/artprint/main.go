package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/benoitkugler/artprint/artwork"
	"github.com/benoitkugler/artprint/assemble"
	"github.com/benoitkugler/artprint/config"
)

var (
	dataDir    string
	templateID string
	verbose    bool
	appVersion = "0.3.0"
)

var rootCmd = &cobra.Command{
	Use:           "artprint",
	Short:         "artprint: garment transfer artwork processing",
	Long:          "artprint measures uploaded artwork, converts its colors to CMYK and assembles press-ready PDF documents.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  "Manage artprint configuration files.",
}

var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a default configuration file",
	Long:  "Generate a default artprint.config file in the data directory (or current directory if not specified).",
	Run:   runConfigGenerate,
}

func init() {
	wd, _ := os.Getwd()
	rootCmd.Version = appVersion
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", wd, "Data directory holding artprint.config (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&templateID, "template", "template-A4", "Template the artwork is designed for")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log the degraded results and skipped elements")

	configCmd.AddCommand(configGenerateCmd)
	rootCmd.AddCommand(configCmd, boundsCmd, colorsCmd, patchCmd, assembleCmd, templatesCmd)
}

func runConfigGenerate(cmd *cobra.Command, args []string) {
	dataDirAbs, err := filepath.Abs(dataDir)
	if err != nil {
		log.Fatalf("resolve data dir: %v", err)
	}

	cfg := config.Default()
	cfg.DataDir = dataDirAbs

	cfgPath := filepath.Join(dataDirAbs, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		log.Fatalf("config file already exists: %s", cfgPath)
	}

	if err := config.Save(cfg); err != nil {
		log.Fatalf("failed to save config: %v", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Generated default config file: %s\n", cfgPath)
}

// newSession loads the configuration of the data directory
func newSession(tmplID string) (*artwork.Session, error) {
	cfg, err := config.Load(dataDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	tmpl, ok := assemble.LookupTemplate(tmplID)
	if !ok {
		return nil, fmt.Errorf("unknown template %q (see the templates command)", tmplID)
	}
	logger := log.New(io.Discard, "", 0)
	if verbose || cfg.Verbose {
		logger = log.New(os.Stderr, "artprint: ", log.LstdFlags)
	}
	return artwork.NewSession(cfg, tmpl, logger)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
