package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "know [memory-id] [character...]",
		Short: "Tell characters about a memory they did not witness",
		Long:  "Add a memory to the known events of each character, making it visible from their point of view even when secret.",
		Args:  cobra.MinimumNArgs(2),
		Run:   runKnow,
	}

	sessionFlag(cmd)

	RootCmd.AddCommand(cmd)
}

func runKnow(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := s.DiscloseEvent(cmd.Context(), sessionID, args[0], args[1:]); err != nil {
		exitErr("know", err)
	}
	printJSON(cmd.OutOrStdout(), map[string]any{"ok": true, "memory_id": args[0], "characters": args[1:]})
}
