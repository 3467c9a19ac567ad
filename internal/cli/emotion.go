package cli

import (
	"github.com/spf13/cobra"

	"github.com/unkarelian/openvault/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "emotion [character] [emotion]",
		Short: "Record a character's current emotion",
		Args:  cobra.ExactArgs(2),
		Run:   runEmotion,
	}

	sessionFlag(cmd)
	cmd.Flags().Int("from", 0, "First message the emotion was inferred from")
	cmd.Flags().Int("to", 0, "Last message the emotion was inferred from")

	RootCmd.AddCommand(cmd)
}

func runEmotion(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	from, _ := cmd.Flags().GetInt("from")
	to, _ := cmd.Flags().GetInt("to")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	c, err := s.SetEmotion(cmd.Context(), store.EmotionParams{
		SessionID: sessionID,
		Character: args[0],
		Emotion:   args[1],
		From:      from,
		To:        to,
	})
	if err != nil {
		exitErr("emotion", err)
	}
	printJSON(cmd.OutOrStdout(), c)
}
