package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unkarelian/openvault/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "put [summary]",
		Short: "Store a memory",
		Long:  "Store a memory. The summary can be a positional arg or piped via stdin.",
		Run:   runPut,
	}

	sessionFlag(cmd)
	cmd.Flags().StringP("witnesses", "w", "", "Comma-separated characters who saw it")
	cmd.Flags().StringP("involved", "i", "", "Comma-separated characters it concerns")
	cmd.Flags().Bool("secret", false, "Only witnesses and those told may know it")
	cmd.Flags().StringP("messages", "m", "", "Comma-separated source message indices")
	cmd.Flags().IntP("importance", "p", 0, "Importance 1-5 (default 3)")

	RootCmd.AddCommand(cmd)
}

func runPut(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	witnesses, _ := cmd.Flags().GetString("witnesses")
	involved, _ := cmd.Flags().GetString("involved")
	secret, _ := cmd.Flags().GetBool("secret")
	messages, _ := cmd.Flags().GetString("messages")
	importance, _ := cmd.Flags().GetInt("importance")

	summary := readText(args)
	if summary == "" {
		exitErr("put", fmt.Errorf("summary is required (positional arg or stdin)"))
	}
	ids, err := splitInts(messages)
	if err != nil {
		exitErr("put", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	mem, err := s.PutMemory(cmd.Context(), store.PutParams{
		SessionID:          sessionID,
		Summary:            summary,
		Witnesses:          splitList(witnesses),
		CharactersInvolved: splitList(involved),
		IsSecret:           secret,
		MessageIDs:         ids,
		Importance:         importance,
	})
	if err != nil {
		exitErr("put", err)
	}
	printJSON(cmd.OutOrStdout(), mem)
}
