package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// IndexCmd creates the index command group.
func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect and manage the vector index",
	}

	cmd.AddCommand(indexStatusCmd())
	cmd.AddCommand(indexResetCmd())
	cmd.AddCommand(indexRebuildCmd())

	return cmd
}

func indexStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index contents",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runIndexStatus(outputJSON)
		},
	}

	return cmd
}

func runIndexStatus(outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Get("/index")
	if err != nil {
		return fmt.Errorf("failed to read index status: %w", err)
	}

	var status IndexStatusResponse
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Index holds %d chunks across %d documents.\n", status.Chunks, status.Documents)
	}

	return nil
}

func indexResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all indexed chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexReset()
		},
	}

	return cmd
}

func runIndexReset() error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	if _, err := api.Delete("/index"); err != nil {
		return fmt.Errorf("failed to reset index: %w", err)
	}

	fmt.Println("Index reset.")
	return nil
}

func indexRebuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the index from archived documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runIndexRebuild(outputJSON)
		},
	}

	return cmd
}

func runIndexRebuild(outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Post("/index/rebuild", nil)
	if err != nil {
		return fmt.Errorf("failed to rebuild index: %w", err)
	}

	var status IndexStatusResponse
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Rebuilt index: %d chunks across %d documents.\n", status.Chunks, status.Documents)
	}

	return nil
}
