package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unkarelian/openvault/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "say [text]",
		Short: "Append a message to a session's chat log",
		Long:  "Append a message to the chat log. Text can be a positional arg or piped via stdin.",
		Run:   runSay,
	}

	sessionFlag(cmd)
	cmd.Flags().String("as", "", "Speaker name (required)")
	cmd.Flags().Bool("system", false, "Mark as a system message, hidden from recency checks")
	cmd.MarkFlagRequired("as")

	RootCmd.AddCommand(cmd)
}

func runSay(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	speaker, _ := cmd.Flags().GetString("as")
	system, _ := cmd.Flags().GetBool("system")

	text := readText(args)
	if text == "" {
		exitErr("say", fmt.Errorf("text is required (positional arg or stdin)"))
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	msg, err := s.AppendMessage(cmd.Context(), store.AppendParams{
		SessionID: sessionID,
		Speaker:   speaker,
		Text:      text,
		IsSystem:  system,
	})
	if err != nil {
		exitErr("say", err)
	}
	printJSON(cmd.OutOrStdout(), msg)
}
