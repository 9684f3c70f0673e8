package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/HBIDamian/CustomJukebox/internal/sim/catalogs"
	"github.com/HBIDamian/CustomJukebox/internal/sim/tuning"
)

type commandContext struct {
	configPath string
	dataDir    string
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "admin",
		Short:         "CustomJukebox operator CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "./configs/jukebox.yaml", "Path to jukebox.yaml")
	rootCmd.PersistentFlags().StringVar(&ctx.dataDir, "data", "./data", "Server runtime data directory")

	rootCmd.AddCommand(newCatalogCommand(ctx))
	rootCmd.AddCommand(newBuildCommand(ctx))
	rootCmd.AddCommand(newBuildsCommand(ctx))
	rootCmd.AddCommand(newAuditCommand(ctx))
	rootCmd.AddCommand(newJukeboxesCommand())

	return rootCmd
}

func (c *commandContext) indexPath() string {
	return filepath.Join(c.dataDir, "index", "jukebox.sqlite")
}

// loadCatalog reads the config and normalizes its records. Skipped entries are
// reported on stderr; they never fail the command.
func (c *commandContext) loadCatalog(cmd *cobra.Command) (tuning.Tuning, *catalogs.Catalog, error) {
	tune, err := tuning.Load(c.configPath)
	if err != nil {
		return tune, nil, fmt.Errorf("load config: %w", err)
	}
	logger := log.New(cmd.ErrOrStderr(), "", 0)
	cat, err := catalogs.Load(tune.Records, catalogs.OptionsFromTuning(tune), logger)
	if err != nil {
		var lerr *catalogs.LoadError
		if !errors.As(err, &lerr) {
			return tune, nil, err
		}
	}
	return tune, cat, nil
}

func (c *commandContext) requireIndex() (string, error) {
	path := c.indexPath()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("no index at %s (run the server or `admin build` first)", path)
		}
		return "", err
	}
	return path, nil
}

func audioPresent(audioDir, file string) bool {
	st, err := os.Stat(filepath.Join(audioDir, filepath.FromSlash(file)))
	return err == nil && st.Mode().IsRegular()
}

func stderrLogger(w io.Writer, prefix string) *log.Logger {
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}
