package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"talekeeper/internal/migrate"
)

func migrateCmd() *cobra.Command {
	var fromFile string
	var statesFile string
	cmd := &cobra.Command{
		Use:   "migrate <session>",
		Short: "Upgrade a session's store to the current schema generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(args[0], fromFile, statesFile)
		},
	}
	cmd.Flags().StringVar(&fromFile, "from-file", "", "Migrate a legacy store JSON file into the session instead of the stored document")
	cmd.Flags().StringVar(&statesFile, "states", "", "JSON file of tracked per-message states, for v3 stores without embedded states")
	return cmd
}

func runMigrate(sessionID, fromFile, statesFile string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	var raw []byte
	if fromFile != "" {
		raw, err = os.ReadFile(fromFile)
	} else {
		raw, err = db.LoadRaw(ctx, sessionID)
	}
	if err != nil {
		return err
	}

	var states []migrate.MessageState
	if statesFile != "" {
		data, err := os.ReadFile(statesFile)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &states); err != nil {
			return fmt.Errorf("parsing %s: %w", statesFile, err)
		}
	}

	s, err := migrate.Run(raw, states, log)
	if err != nil {
		return err
	}
	if err := db.Save(ctx, sessionID, s); err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "Migration complete.")
	fmt.Fprintf(os.Stdout, "  Version:          %d\n", s.Version)
	fmt.Fprintf(os.Stdout, "  Narrative events: %d\n", len(s.NarrativeEvents))
	fmt.Fprintf(os.Stdout, "  State events:     %d\n", len(s.StateEvents))
	return nil
}
