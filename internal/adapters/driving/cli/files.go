package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var uploadName string

var uploadCmd = &cobra.Command{
	Use:   "upload [owner] [path]",
	Short: "Upload a markdown recipe for an owner",
	Long: `Stores a local markdown file under the owner's prefix and indexes it.
Uploading identical content again is reported as unchanged.`,
	Args: cobra.ExactArgs(2),
	RunE: runUpload,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [owner] [object]",
	Short: "Delete a recipe and purge its fragments",
	Long: `Removes an owner's object from the store and purges every fragment any of
its versions produced. The object may be given relative to the owner
("soup/tomato.md") or in full ("alice/soup/tomato.md").`,
	Args: cobra.ExactArgs(2),
	RunE: runDelete,
}

var filesCmd = &cobra.Command{
	Use:   "files [owner]",
	Short: "List an owner's recipe files",
	Args:  cobra.ExactArgs(1),
	RunE:  runFiles,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadName, "name", "", "object name to store (default: the file's base name)")
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(filesCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	if err := requireService(ingestService != nil, "ingest"); err != nil {
		return err
	}
	owner, path := args[0], args[1]

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	name := uploadName
	if name == "" {
		name = filepath.Base(path)
	}

	res, err := ingestService.Upload(cmd.Context(), owner, name, content)
	if res != nil {
		cmd.Printf("%s: %s", res.ObjectName, res.Status)
		if res.VersionNumber > 0 {
			cmd.Printf(" (version %d, %d fragments, %d orphans)", res.VersionNumber, res.Fragments, res.Orphans)
		}
		cmd.Println()
	}
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if err := requireService(ingestService != nil, "ingest"); err != nil {
		return err
	}

	res, err := ingestService.Delete(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	cmd.Printf("Deleted %s (%d fragments purged)\n", res.ObjectName, res.FragmentsDeleted)
	return nil
}

func runFiles(cmd *cobra.Command, args []string) error {
	if err := requireService(ingestService != nil, "ingest"); err != nil {
		return err
	}
	owner := args[0]

	files, err := ingestService.ListFiles(cmd.Context(), owner)
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}
	if len(files) == 0 {
		cmd.Printf("No files found for owner: %s\n", owner)
		return nil
	}
	for _, f := range files {
		cmd.Printf("  %s\n", f)
	}
	cmd.Printf("\nTotal: %d files\n", len(files))
	return nil
}
