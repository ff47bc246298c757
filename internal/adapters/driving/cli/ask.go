package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sous/internal/core/domain"
)

var (
	askSources bool
	askJSON    bool
)

var askCmd = &cobra.Command{
	Use:   "ask [owner] [question...]",
	Short: "Ask a question about an owner's recipes",
	Long: `Classifies the question, retrieves matching recipes from the owner's
collection and answers from them.

Examples:
  sous ask alice what soups can I make
  sous ask alice "how long do I simmer the tomato soup?" --sources`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askSources, "sources", false, "list the recipes the answer was built from")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full turn result as JSON")
	rootCmd.AddCommand(askCmd)
}

// askResult is the JSON form of a turn.
type askResult struct {
	Intent  string      `json:"intent"`
	Query   string      `json:"query"`
	Answer  string      `json:"answer"`
	Sources []askSource `json:"sources"`
	Filter  *askFilter  `json:"filter,omitempty"`
}

type askSource struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Location   string `json:"location"`
	Category   string `json:"category,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Hits       int    `json:"hits"`
}

type askFilter struct {
	Categories   []string `json:"categories,omitempty"`
	Difficulties []string `json:"difficulties,omitempty"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := requireService(chatService != nil, "chat"); err != nil {
		return err
	}
	owner := args[0]
	query := strings.Join(args[1:], " ")

	result, err := chatService.Turn(cmd.Context(), owner, query)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		return printAskJSON(cmd, result)
	}

	cmd.Println(result.Answer)
	if askSources && len(result.Parents) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for i := range result.Parents {
			p := &result.Parents[i]
			cmd.Printf("  %d. %s (%s)\n", i+1, displayTitle(p), p.SourceLocation)
		}
	}
	return nil
}

func printAskJSON(cmd *cobra.Command, r *domain.TurnResult) error {
	out := askResult{
		Intent:  string(r.Intent),
		Query:   r.RewrittenQuery,
		Answer:  r.Answer,
		Sources: make([]askSource, 0, len(r.Parents)),
	}
	if r.Filter != nil {
		out.Filter = &askFilter{
			Categories:   r.Filter.Categories,
			Difficulties: r.Filter.Difficulties,
		}
	}
	for i := range r.Parents {
		p := &r.Parents[i]
		out.Sources = append(out.Sources, askSource{
			DocumentID: p.DocumentID,
			Title:      displayTitle(p),
			Location:   p.SourceLocation,
			Category:   p.Metadata.Category,
			Difficulty: p.Metadata.Difficulty,
			Hits:       p.Hits,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func displayTitle(p *domain.ParentDocument) string {
	switch {
	case p.Metadata.DishName != "":
		return p.Metadata.DishName
	case p.Title != "":
		return p.Title
	default:
		return p.SourceLocation
	}
}
