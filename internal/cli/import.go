package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/unkarelian/openvault/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a session exported with export",
		Long:  "Import a session from a file or stdin. Existing memories with the same ID are skipped.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runImport,
	}

	cmd.Flags().String("format", "", "Input format: json or yaml (default: from file extension)")

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	format, _ := cmd.Flags().GetString("format")

	var r io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			exitErr("open import", err)
		}
		defer f.Close()
		r = f
		if format == "" {
			format = formatFromPath(args[0])
		}
	}

	doc, err := store.DecodeSceneDoc(r, format)
	if err != nil {
		exitErr("parse import", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	imported, err := s.ImportScene(cmd.Context(), doc)
	if err != nil {
		exitErr("import", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"session_id":%q,"imported":%d}`+"\n", doc.Session.ID, imported)
}
