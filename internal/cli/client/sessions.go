package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SessionResponse represents a session in API responses.
type SessionResponse struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

// SessionListResponse represents the session list API response.
type SessionListResponse struct {
	Sessions   []SessionResponse `json:"sessions"`
	NextCursor string            `json:"next_cursor,omitempty"`
	HasMore    bool              `json:"has_more"`
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID        int64            `json:"id"`
	SessionID int64            `json:"session_id"`
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
	Timestamp string           `json:"timestamp"`
}

// MessageMetadata carries the sources an assistant message drew on.
type MessageMetadata struct {
	Sources []SourceResponse `json:"sources"`
}

// SessionsCmd creates the sessions command group.
func SessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage chat sessions",
	}

	cmd.AddCommand(sessionsListCmd())
	cmd.AddCommand(sessionsNewCmd())
	cmd.AddCommand(sessionsDeleteCmd())
	cmd.AddCommand(sessionsHistoryCmd())

	return cmd
}

func sessionsListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List chat sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSessionsList(limit, cursor, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func runSessionsList(limit int, cursor string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/sessions?limit=%d", limit)
	if cursor != "" {
		path += "&cursor=" + cursor
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	var listResp SessionListResponse
	if err := json.Unmarshal(resp.Data, &listResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(listResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(listResp.Sessions) == 0 {
		fmt.Println("No sessions.")
		return nil
	}

	for _, s := range listResp.Sessions {
		fmt.Printf("%d\t%s\t%s\n", s.ID, s.CreatedAt, s.Title)
	}
	if listResp.HasMore && listResp.NextCursor != "" {
		fmt.Printf("\nMore sessions available. Use --cursor %s\n", listResp.NextCursor)
	}

	return nil
}

func sessionsNewCmd() *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a new chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSessionsNew(title, outputJSON)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Session title (defaults to 'New Chat')")

	return cmd
}

func runSessionsNew(title string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Post("/sessions", map[string]string{"title": title})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	var session SessionResponse
	if err := json.Unmarshal(resp.Data, &session); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(session, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Created session %d (%s)\n", session.ID, session.Title)
	}

	return nil
}

func sessionsDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a chat session and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsDelete(args[0])
		},
	}

	return cmd
}

func runSessionsDelete(id string) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	if _, err := api.Delete("/sessions/" + id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	fmt.Printf("Deleted session %s\n", id)
	return nil
}

func sessionsHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show a session's message history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSessionsHistory(args[0], outputJSON)
		},
	}

	return cmd
}

func runSessionsHistory(id string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Get("/sessions/" + id + "/messages")
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	var messages []MessageResponse
	if err := json.Unmarshal(resp.Data, &messages); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(messages, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(messages) == 0 {
		fmt.Println("No messages.")
		return nil
	}

	for i, msg := range messages {
		fmt.Printf("[%s] %s\n", msg.Role, msg.Content)
		if msg.Metadata != nil && len(msg.Metadata.Sources) > 0 {
			var refs []string
			for _, src := range msg.Metadata.Sources {
				refs = append(refs, fmt.Sprintf("%s p.%d", src.Source, src.Page))
			}
			fmt.Printf("  sources: %s\n", strings.Join(refs, ", "))
		}
		if i < len(messages)-1 {
			fmt.Println()
		}
	}

	return nil
}
