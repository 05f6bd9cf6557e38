package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"talekeeper/internal/event"
	"talekeeper/internal/milestone"
)

func milestonesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "milestones <session> <pair>",
		Short: "Show relationship milestones and derived status for a pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMilestones(args[0], args[1])
		},
	}
	return cmd
}

func runMilestones(sessionID, pair string) error {
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

	s, err := db.Load(ctx, sessionID)
	if err != nil {
		return err
	}

	a, b, ok := strings.Cut(pair, "|")
	if !ok {
		return fmt.Errorf("invalid pair %q, expected 'A|B'", pair)
	}
	pairKey := event.PairKey(a, b)
	first, second := event.SortPair(a, b)

	fmt.Fprintf(os.Stdout, "%s & %s: %s\n", first, second, milestone.StatusOf(s, pairKey))

	found := false
	for _, e := range s.NarrativeEventsForPair(pairKey) {
		idx := e.PairIndex(pairKey)
		if idx < 0 {
			continue
		}
		affected := e.AffectedPairs[idx]
		for _, m := range affected.FirstFor {
			found = true
			fmt.Fprintf(os.Stdout, "  [%d] %s: %s\n", e.MessageID, m, e.Summary)
			if desc := affected.MilestoneDescriptions[m]; desc != "" {
				fmt.Fprintf(os.Stdout, "      %s\n", desc)
			}
		}
	}
	if !found {
		fmt.Fprintln(os.Stdout, "  No milestones yet.")
	}
	return nil
}
