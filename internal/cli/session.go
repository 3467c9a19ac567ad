package cli

import (
	"github.com/spf13/cobra"

	"github.com/unkarelian/openvault/internal/store"
)

func init() {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage chat sessions",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a session",
		Run:   runSessionCreate,
	}
	create.Flags().String("id", "", "Session ID (generated when empty)")
	create.Flags().StringP("user", "u", "User", "Name of the human participant")
	create.Flags().String("secondary", "", "Character or narrator the user is talking to")
	create.Flags().Bool("group", false, "Group chat with several characters")
	create.Flags().StringP("participants", "p", "", "Comma-separated group participants")

	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Run:   runSessionList,
	}

	sessionCmd.AddCommand(create, list)
	RootCmd.AddCommand(sessionCmd)
}

func runSessionCreate(cmd *cobra.Command, args []string) {
	id, _ := cmd.Flags().GetString("id")
	user, _ := cmd.Flags().GetString("user")
	secondary, _ := cmd.Flags().GetString("secondary")
	group, _ := cmd.Flags().GetBool("group")
	participants, _ := cmd.Flags().GetString("participants")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	sess, err := s.CreateSession(cmd.Context(), store.CreateSessionParams{
		ID:                   id,
		PrimaryUser:          user,
		SecondaryParticipant: secondary,
		GroupChat:            group,
		Participants:         splitList(participants),
	})
	if err != nil {
		exitErr("create session", err)
	}
	printJSON(cmd.OutOrStdout(), sess)
}

func runSessionList(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	sessions, err := s.ListSessions(cmd.Context())
	if err != nil {
		exitErr("list sessions", err)
	}
	if sessions == nil {
		sessions = []store.SessionSummary{}
	}
	printJSON(cmd.OutOrStdout(), sessions)
}
