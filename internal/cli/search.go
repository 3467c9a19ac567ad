package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/unkarelian/openvault/internal/model"
	"github.com/unkarelian/openvault/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories by keyword",
		Long:  "Search memory summaries, witnesses and involved characters for matching text.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	sessionFlag(cmd)
	cmd.Flags().String("character", "", "Only memories witnessed by or involving this character")
	cmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	character, _ := cmd.Flags().GetString("character")
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	results, err := s.Search(cmd.Context(), store.SearchParams{
		SessionID: sessionID,
		Query:     strings.Join(args, " "),
		Character: character,
		Limit:     limit,
	})
	if err != nil {
		exitErr("search", err)
	}
	if results == nil {
		results = []model.Memory{}
	}
	printJSON(cmd.OutOrStdout(), results)
}
