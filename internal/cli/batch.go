package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/unkarelian/openvault/internal/store"
)

// batchEntry is one memory of an extraction batch file.
type batchEntry struct {
	Summary            string   `json:"summary" yaml:"summary"`
	Witnesses          []string `json:"witnesses" yaml:"witnesses"`
	CharactersInvolved []string `json:"characters_involved" yaml:"characters_involved"`
	IsSecret           bool     `json:"is_secret" yaml:"is_secret"`
	MessageIDs         []int    `json:"message_ids" yaml:"message_ids"`
	Importance         int      `json:"importance" yaml:"importance"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "Store the memories of one extraction run",
		Long: "Store a list of memories under a single new batch ID, which becomes the session's last batch. " +
			"Reads a JSON or YAML list from the file, or JSON from stdin.",
		Args: cobra.MaximumNArgs(1),
		Run:  runBatch,
	}

	sessionFlag(cmd)
	cmd.Flags().String("format", "", "Input format: json or yaml (default: from file extension)")

	RootCmd.AddCommand(cmd)
}

func runBatch(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	format, _ := cmd.Flags().GetString("format")

	var r io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			exitErr("open batch", err)
		}
		defer f.Close()
		r = f
		if format == "" {
			format = formatFromPath(args[0])
		}
	}

	entries, err := decodeBatch(r, format)
	if err != nil {
		exitErr("parse batch", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	params := make([]store.PutParams, len(entries))
	for i, e := range entries {
		params[i] = store.PutParams{
			Summary:            e.Summary,
			Witnesses:          e.Witnesses,
			CharactersInvolved: e.CharactersInvolved,
			IsSecret:           e.IsSecret,
			MessageIDs:         e.MessageIDs,
			Importance:         e.Importance,
		}
	}
	batchID, memories, err := s.PutBatch(cmd.Context(), sessionID, params)
	if err != nil {
		exitErr("batch", err)
	}
	printJSON(cmd.OutOrStdout(), map[string]any{"batch_id": batchID, "memories": memories})
}

func decodeBatch(r io.Reader, format string) ([]batchEntry, error) {
	var entries []batchEntry
	var err error
	switch strings.ToLower(format) {
	case "", "json":
		err = json.NewDecoder(r).Decode(&entries)
	case "yaml", "yml":
		err = yaml.NewDecoder(r).Decode(&entries)
	default:
		return nil, fmt.Errorf("unknown format %q (valid: json, yaml)", format)
	}
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("batch is empty")
	}
	return entries, nil
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return store.FormatYAML
	}
	return store.FormatJSON
}
