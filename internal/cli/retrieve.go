package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	retrieve := &cobra.Command{
		Use:   "retrieve",
		Short: "Select and inject the memories relevant to the current scene",
		Long: "Run on-demand retrieval: filter memories by what the scene's characters may know, " +
			"select the relevant ones and inject the packed block. Prints the result, or injected=false.",
		Run: runRetrieve,
	}
	sessionFlag(retrieve)
	retrieve.Flags().Bool("text", false, "Print only the injected text")

	update := &cobra.Command{
		Use:   "update",
		Short: "Refresh the injected memories before a generation",
		Long: "Run the automatic pre-generation update. Memories already visible in the recent " +
			"conversation or created by the last batch are skipped. Clears the injection when nothing applies.",
		Run: runUpdate,
	}
	sessionFlag(update)
	update.Flags().String("pending", "", "User message not yet in the chat log")
	update.Flags().Bool("text", false, "Print only the injected text")

	prompt := &cobra.Command{
		Use:   "prompt",
		Short: "Print the memory block currently injected for a session",
		Long: "Read back what the last retrieve or update injected. Prints nothing when the " +
			"injection is clear. Use inject.mode=file so separate runs share the block.",
		Run: runPrompt,
	}
	sessionFlag(prompt)

	RootCmd.AddCommand(retrieve, update, prompt)
}

func runRetrieve(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	textOnly, _ := cmd.Flags().GetBool("text")

	v, _ := openVault()
	defer v.Store.Close()

	res := v.Orch.Retrieve(cmd.Context(), sessionID, v.Settings)
	if textOnly {
		if res != nil {
			fmt.Fprintln(cmd.OutOrStdout(), res.Text)
		}
		return
	}
	if res == nil {
		fmt.Fprintln(cmd.OutOrStdout(), `{"injected":false}`)
		return
	}
	printJSON(cmd.OutOrStdout(), map[string]any{"injected": true, "result": res})
}

func runUpdate(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	pending, _ := cmd.Flags().GetString("pending")
	textOnly, _ := cmd.Flags().GetBool("text")

	v, _ := openVault()
	defer v.Store.Close()

	out := v.Orch.Update(cmd.Context(), sessionID, v.Settings, pending)
	if textOnly {
		if out.Text != "" {
			fmt.Fprintln(cmd.OutOrStdout(), out.Text)
		}
		return
	}
	printJSON(cmd.OutOrStdout(), out)
}

func runPrompt(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")

	v, _ := openVault()
	defer v.Store.Close()

	text, err := v.Prompt(cmd.Context(), sessionID)
	if err != nil {
		exitErr("prompt", err)
	}
	if text != "" {
		fmt.Fprintln(cmd.OutOrStdout(), text)
	}
}
