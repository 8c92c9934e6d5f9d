package cmd

import (
	"fmt"

	"github.com/jrsteele09/grantpilot-workspace/intent"
	"github.com/spf13/cobra"
)

var resolveNext string

var decodeStateCmd = &cobra.Command{
	Use:   "decode-state <state>",
	Short: "Show the opportunity id carried by an OAuth state value",
	Long: `Decodes a state value the way the sign-in callback does and prints the
opportunity id it carries, followed by the page a fresh browser would land on.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decodeState(cmd, args[0])
	},
}

func init() {
	decodeStateCmd.Flags().StringVar(&resolveNext, "next", "", "next query parameter to resolve together with the state")
}

func decodeState(cmd *cobra.Command, state string) error {
	out := cmd.OutOrStdout()
	if id, ok := intent.DecodeOpportunityID(state); ok {
		fmt.Fprintf(out, "opportunity_id: %s\n", id)
	} else {
		fmt.Fprintln(out, "opportunity_id: (none)")
	}

	target := intent.NewResolver(intent.NewInMemoryStore()).Resolve(resolveNext, state)
	fmt.Fprintf(out, "redirect: %s\n", target)
	return nil
}
