package cli

import (
	"github.com/spf13/cobra"

	"github.com/unkarelian/openvault/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "relate [from] [to]",
		Short: "Set how one character regards another",
		Long:  "Create or update a relationship. New relationships start at closeness 10 unless --closeness is given.",
		Args:  cobra.ExactArgs(2),
		Run:   runRelate,
	}

	sessionFlag(cmd)
	cmd.Flags().StringP("attitude", "a", "", "Attitude, e.g. \"trusts\" or \"resents\"")
	cmd.Flags().Int("closeness", 0, "Closeness 0-100")
	cmd.Flags().Bool("rm", false, "Remove the relationship instead")

	RootCmd.AddCommand(cmd)
}

func runRelate(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	attitude, _ := cmd.Flags().GetString("attitude")
	remove, _ := cmd.Flags().GetBool("rm")

	var closeness *int
	if cmd.Flags().Changed("closeness") {
		n, _ := cmd.Flags().GetInt("closeness")
		closeness = &n
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	c, err := s.Relate(cmd.Context(), store.RelateParams{
		SessionID: sessionID,
		From:      args[0],
		To:        args[1],
		Attitude:  attitude,
		Closeness: closeness,
		Remove:    remove,
	})
	if err != nil {
		exitErr("relate", err)
	}
	printJSON(cmd.OutOrStdout(), c)
}
