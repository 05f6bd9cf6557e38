package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"talekeeper/internal/event"
)

func eventsCmd() *cobra.Command {
	var pair string
	var chapter int
	var message int
	cmd := &cobra.Command{
		Use:   "events <session>",
		Short: "List narrative events for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(cmd, args[0], pair, chapter, message)
		},
	}
	cmd.Flags().StringVar(&pair, "pair", "", "Restrict to a character pair, e.g. 'Alice|Bob'")
	cmd.Flags().IntVar(&chapter, "chapter", -1, "Restrict to a chapter index")
	cmd.Flags().IntVar(&message, "message", -1, "Restrict to one message id")
	return cmd
}

func runEvents(cmd *cobra.Command, sessionID, pair string, chapter, message int) error {
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

	var events []event.Narrative
	switch {
	case pair != "":
		a, b, ok := strings.Cut(pair, "|")
		if !ok {
			return fmt.Errorf("invalid pair %q, expected 'A|B'", pair)
		}
		events = s.NarrativeEventsForPair(event.PairKey(a, b))
	case chapter >= 0:
		events = s.NarrativeEventsForChapter(chapter)
	default:
		events = s.ActiveNarrativeEvents()
	}

	count := 0
	for _, e := range events {
		if message >= 0 && e.MessageID != message {
			continue
		}
		count++
		fmt.Fprintf(os.Stdout, "[%d/%d] %s\n", e.MessageID, e.SwipeID, e.Summary)
		if len(e.EventTypes) > 0 {
			fmt.Fprintf(os.Stdout, "    Types: %s\n", strings.Join(e.EventTypes, ", "))
		}
		if e.TensionLevel > 0 {
			fmt.Fprintf(os.Stdout, "    Tension: %d (%s)\n", e.TensionLevel, e.TensionType)
		}
		for _, affected := range e.AffectedPairs {
			if len(affected.FirstFor) > 0 {
				fmt.Fprintf(os.Stdout, "    First for %s & %s: %s\n",
					affected.Pair[0], affected.Pair[1], strings.Join(affected.FirstFor, ", "))
			}
		}
	}
	if count == 0 {
		fmt.Fprintln(os.Stdout, "No events found.")
	}
	return nil
}
