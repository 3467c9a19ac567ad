package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unkarelian/openvault/internal/model"
	"github.com/unkarelian/openvault/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a session's memories in chronological order",
		Run:   runList,
	}

	sessionFlag(cmd)
	cmd.Flags().StringP("witness", "w", "", "Only memories this character witnessed")
	cmd.Flags().String("batch", "", "Only memories from this batch")
	cmd.Flags().IntP("limit", "l", 0, "Max results (0 for all)")
	cmd.Flags().Bool("summaries", false, "Only output id and summary")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	witness, _ := cmd.Flags().GetString("witness")
	batch, _ := cmd.Flags().GetString("batch")
	limit, _ := cmd.Flags().GetInt("limit")
	summaries, _ := cmd.Flags().GetBool("summaries")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	memories, err := s.ListMemories(cmd.Context(), store.ListParams{
		SessionID: sessionID,
		Witness:   witness,
		BatchID:   batch,
		Limit:     limit,
	})
	if err != nil {
		exitErr("list", err)
	}

	if summaries {
		for _, m := range memories {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", m.ID, m.Summary)
		}
		return
	}
	if memories == nil {
		memories = []model.Memory{}
	}
	printJSON(cmd.OutOrStdout(), memories)
}
