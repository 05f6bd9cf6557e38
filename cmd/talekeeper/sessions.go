package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsList()
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <session>",
		Short: "Delete a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsDelete(args[0])
		},
	})
	return cmd
}

func runSessionsList() error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	infos, err := db.List(ctx)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(os.Stdout, "No sessions stored.")
		return nil
	}
	for _, info := range infos {
		fmt.Fprintf(os.Stdout, "%s  v%d  %d narrative / %d state  (%s)\n",
			info.SessionID, info.Version, info.NarrativeEvents, info.StateEvents,
			info.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runSessionsDelete(sessionID string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	if err := db.Delete(ctx, sessionID); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Deleted %s.\n", sessionID)
	return nil
}
