package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"talekeeper/internal/batch"
	"talekeeper/internal/ingest"
	"talekeeper/internal/persist"
	"talekeeper/internal/projection"
	"talekeeper/internal/store"
)

func ingestCmd() *cobra.Command {
	var replace bool
	var swipesFlag string
	cmd := &cobra.Command{
		Use:   "ingest <session> <batch.json> [batch.json...]",
		Short: "Commit extracted candidate batches into a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(args[0], args[1:], replace, swipesFlag)
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "Rewrite each batch's (message, swipe) instead of skipping already-extracted ones")
	cmd.Flags().StringVar(&swipesFlag, "swipes", "", "Selected swipe per message, e.g. '3:1,7:2' (default swipe 0 everywhere)")
	return cmd
}

func runIngest(sessionID string, paths []string, replace bool, swipesFlag string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	canonical, err := parseSwipes(swipesFlag)
	if err != nil {
		return err
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	s, err := db.Load(ctx, sessionID)
	if errors.Is(err, persist.ErrSessionNotFound) {
		s = store.New()
	} else if err != nil {
		return err
	}

	coord := ingest.New(s, canonical, log)
	totalState, totalNarrative, dropped := 0, 0, 0
	for _, path := range paths {
		b, err := batch.ParseFile(path)
		if err != nil {
			return err
		}
		var res *ingest.Result
		if replace {
			res, err = coord.Replace(ctx, b.MessageID, b.SwipeID, b.States, b.Narratives)
		} else {
			res, err = coord.Commit(ctx, b.MessageID, b.SwipeID, b.States, b.Narratives)
		}
		if err != nil {
			return err
		}
		if res.Skipped {
			fmt.Fprintf(os.Stdout, "  %s: already extracted, skipped\n", path)
			continue
		}
		totalState += res.AcceptedState
		totalNarrative += res.AcceptedNarratives
		dropped += res.DroppedState
	}

	if err := db.Save(ctx, sessionID, s); err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "Ingestion complete.")
	fmt.Fprintf(os.Stdout, "  State events:     %d\n", totalState)
	fmt.Fprintf(os.Stdout, "  Narrative events: %d\n", totalNarrative)
	fmt.Fprintf(os.Stdout, "  Dropped no-ops:   %d\n", dropped)
	return nil
}

// parseSwipes turns "3:1,7:2" into a canonical swipe resolver.
func parseSwipes(flag string) (projection.CanonicalSwipe, error) {
	swipes := make(map[int]int)
	for _, part := range strings.Split(flag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m, s, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid swipe selector %q, expected message:swipe", part)
		}
		messageID, err := strconv.Atoi(m)
		if err != nil {
			return nil, fmt.Errorf("invalid swipe selector %q: %w", part, err)
		}
		swipeID, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid swipe selector %q: %w", part, err)
		}
		swipes[messageID] = swipeID
	}
	return func(messageID int) int { return swipes[messageID] }, nil
}
