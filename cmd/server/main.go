// Command cardbox runs the folder and card organizer.
//
//	cardbox                 same as "cardbox serve"
//	cardbox serve           run the HTTP server
//	cardbox migrate         apply database migrations and exit
//	cardbox hash-password   print a bcrypt hash for ADMIN_PASSWORD_HASH
//
// Settings come from the environment, a .env file and an optional YAML file
// named by CONFIG_FILE; see internal/config.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cardbox",
		Short:         "Folders of cards with drag-and-drop ordering",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newHashPasswordCmd())

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w\n\n%s", err, cmd.UsageString())
	})
	return root
}
