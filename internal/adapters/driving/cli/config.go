package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sous/internal/adapters/driven/config/file"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "Inspect or create the configuration file",
	Annotations: map[string]string{annotationStandalone: "true"},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets redacted",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	cfg, err := file.Load(path)
	if err != nil {
		return err
	}
	out, err := file.Encode(cfg.Redacted())
	if err != nil {
		return err
	}
	cmd.Printf("# %s\n", path)
	cmd.Print(out)
	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("get home directory: %w", err)
	}
	if err := file.Save(path, file.Default(home)); err != nil {
		return err
	}
	cmd.Printf("Wrote %s\n", path)
	return nil
}
