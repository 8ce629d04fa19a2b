package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"togglsync/internal/resolver"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <description>",
	Short: "Show how a time-entry description resolves to a ticket reference",
	Long: `resolve parses a description the way sync does and prints the detected
reference kind, identifier and residual title. Useful for checking how an
entry will behave before running a sync.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	ref, ok := resolver.Resolve(args[0])
	if !ok {
		fmt.Println("No ticket reference found; an issue would be matched or created by title.")
		return nil
	}
	fmt.Printf("  kind:       %s\n", ref.Kind)
	fmt.Printf("  identifier: %s\n", ref.Identifier)
	fmt.Printf("  title:      %q\n", ref.Title)
	return nil
}
