package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// AskRequest represents the ask API request.
type AskRequest struct {
	Question string `json:"question"`
}

// SourceResponse represents a retrieved source reference.
type SourceResponse struct {
	Source  string `json:"source"`
	Page    int    `json:"page"`
	Excerpt string `json:"content"`
}

// AskResponse represents the ask API response.
type AskResponse struct {
	Answer  string           `json:"answer"`
	Sources []SourceResponse `json:"sources"`
	Query   string           `json:"query"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var sessionID int64

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question against the indexed documents",
		Long: `Asks a question within a chat session. The answer is grounded in the
indexed documents and both turns are recorded in the session history.

Examples:
  doctalk ask "What is the capital of France?"
  doctalk ask --session 3 "What about Italy?"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAsk(sessionID, args[0], outputJSON)
		},
	}

	cmd.Flags().Int64VarP(&sessionID, "session", "s", 1, "Session ID to ask in")

	return cmd
}

func runAsk(sessionID int64, question string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Post(fmt.Sprintf("/sessions/%d/ask", sessionID), AskRequest{Question: question})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	var askResp AskResponse
	if err := json.Unmarshal(resp.Data, &askResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(askResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(askResp.Answer)

	if len(askResp.Sources) > 0 {
		fmt.Printf("\n%s\n", strings.Repeat("-", 40))
		fmt.Println("Sources:")
		for i, src := range askResp.Sources {
			fmt.Printf("%d. %s (page %d)\n", i+1, src.Source, src.Page)
		}
	}

	return nil
}
