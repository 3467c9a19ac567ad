package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a session as JSON or YAML",
		Long:  "Export a session's participants, chat log, character state and memories.",
		Run:   runExport,
	}

	sessionFlag(cmd)
	cmd.Flags().String("format", "json", "Output format: json or yaml")
	cmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	doc, err := s.ExportScene(cmd.Context(), sessionID)
	if err != nil {
		exitErr("export", err)
	}

	var w io.Writer = cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			exitErr("create output", err)
		}
		defer f.Close()
		w = f
	}
	if err := doc.Encode(w, format); err != nil {
		exitErr("export", err)
	}
}
