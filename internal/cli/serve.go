package cli

import (
	"github.com/spf13/cobra"

	"github.com/unkarelian/openvault/internal/mcp"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long:  "Expose the memory_* tools over MCP over stdin/stdout.",
		Run:   runServe,
	}

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	v, log := openVault()
	defer v.Store.Close()

	log.Info("mcp server starting", "version", Version)
	h := mcp.NewHandlers(v.Orch, v.Settings, v.Status, v.Store, v, log)
	if err := mcp.Serve(h, Version); err != nil {
		exitErr("serve", err)
	}
}
