package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// PageRequest represents one page of a document to ingest.
type PageRequest struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// DocumentRequest represents a document to ingest.
type DocumentRequest struct {
	Filename string        `json:"filename"`
	Pages    []PageRequest `json:"pages"`
}

// BuildIndexRequest represents the index build API request.
type BuildIndexRequest struct {
	Documents []DocumentRequest `json:"documents"`
}

// IndexStatusResponse represents the index status API response.
type IndexStatusResponse struct {
	Chunks    int64 `json:"chunks"`
	Documents int64 `json:"documents"`
}

// IngestCmd creates the ingest command.
func IngestCmd() *cobra.Command {
	var jsonFile string

	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Ingest documents into the index",
		Long: `Ingest text documents into the vector index.

Plain text files become single documents; a form feed character starts a
new page. Alternatively --json takes a file with a pre-paginated
documents array.

Examples:
  # Ingest text files
  doctalk ingest notes.txt chapter1.txt

  # Ingest pre-paginated documents
  doctalk ingest --json documents.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			if jsonFile != "" {
				return runIngestJSON(jsonFile, outputJSON)
			}
			if len(args) == 0 {
				return fmt.Errorf("no input files (pass file paths or --json)")
			}
			return runIngestFiles(args, outputJSON)
		},
	}

	cmd.Flags().StringVar(&jsonFile, "json", "", "JSON file with a documents array")

	return cmd
}

func runIngestFiles(paths []string, outputJSON bool) error {
	req := BuildIndexRequest{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		req.Documents = append(req.Documents, documentFromText(filepath.Base(path), string(data)))
	}
	return submitIngest(req, outputJSON)
}

func runIngestJSON(path string, outputJSON bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var req BuildIndexRequest
	if err := json.Unmarshal(data, &req); err != nil {
		// Accept a bare documents array too.
		if arrErr := json.Unmarshal(data, &req.Documents); arrErr != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return submitIngest(req, outputJSON)
}

func submitIngest(req BuildIndexRequest, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Post("/index", req)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	var status IndexStatusResponse
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Ingested %d document(s). Index now holds %d chunks across %d documents.\n",
			len(req.Documents), status.Chunks, status.Documents)
	}

	return nil
}

// documentFromText paginates raw text on form feed characters.
func documentFromText(filename, text string) DocumentRequest {
	doc := DocumentRequest{Filename: filename}
	for i, pageText := range strings.Split(text, "\f") {
		doc.Pages = append(doc.Pages, PageRequest{Number: i + 1, Text: pageText})
	}
	return doc
}
