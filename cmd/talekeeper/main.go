package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "talekeeper",
		Short: "Event-sourced narrative state tracker for branching roleplay chats",
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.AddCommand(initCmd())
	root.AddCommand(ingestCmd())
	root.AddCommand(stateCmd())
	root.AddCommand(eventsCmd())
	root.AddCommand(milestonesCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(sessionsCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
