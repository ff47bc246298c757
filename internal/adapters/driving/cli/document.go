package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var documentCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"document", "docs"},
	Short:   "Inspect recorded documents and their versions",
	Long:    `List recorded documents, show their version history, or print current content.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list [owner]",
	Short: "List documents, optionally for one owner",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDocumentList,
}

var documentVersionsCmd = &cobra.Command{
	Use:   "versions [doc-id]",
	Short: "Show a document's version history",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentVersions,
}

var documentShowCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Print a document's current content",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentShow,
}

func init() {
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentVersionsCmd)
	documentCmd.AddCommand(documentShowCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, args []string) error {
	if err := requireService(documentService != nil, "document"); err != nil {
		return err
	}

	owner := ""
	if len(args) == 1 {
		owner = args[0]
	}

	docs, err := documentService.List(cmd.Context(), owner)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		if owner != "" {
			cmd.Printf("No documents found for owner: %s\n", owner)
		} else {
			cmd.Println("No documents found")
		}
		return nil
	}

	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		cmd.Printf("    Location: %s\n", docs[i].SourceLocation)
		if docs[i].DishName != "" {
			cmd.Printf("    Dish:     %s\n", docs[i].DishName)
		}
		cmd.Printf("    Versions: %d\n", len(docs[i].VersionIDs))
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentVersions(cmd *cobra.Command, args []string) error {
	if err := requireService(documentService != nil, "document"); err != nil {
		return err
	}
	docID := args[0]

	doc, err := documentService.Get(cmd.Context(), docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	versions, err := documentService.Versions(cmd.Context(), docID)
	if err != nil {
		return fmt.Errorf("failed to list versions: %w", err)
	}

	cmd.Printf("Document: %s\n", doc.ID)
	cmd.Printf("  Location: %s\n", doc.SourceLocation)
	cmd.Printf("  Created:  %s\n\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))

	for i := range versions {
		v := &versions[i]
		marker := " "
		if v.Active {
			marker = "*"
		}
		hash := v.ContentHash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		cmd.Printf("  %s v%d  %s  %s  %s\n", marker, v.VersionNumber, v.ID, hash,
			v.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runDocumentShow(cmd *cobra.Command, args []string) error {
	if err := requireService(documentService != nil, "document"); err != nil {
		return err
	}

	content, err := documentService.GetContent(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document content: %w", err)
	}

	cmd.Println(content)
	return nil
}
