package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"talekeeper/internal/event"
	"talekeeper/internal/projection"
)

func stateCmd() *cobra.Command {
	var swipe int
	var swipesFlag string
	cmd := &cobra.Command{
		Use:   "state <session> <messageId>",
		Short: "Project the narrative state at a message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			messageID, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid message id %q", args[1])
			}
			return runState(args[0], messageID, swipe, swipesFlag)
		},
	}
	cmd.Flags().IntVar(&swipe, "swipe", 0, "Swipe variant at the target message")
	cmd.Flags().StringVar(&swipesFlag, "swipes", "", "Selected swipe per earlier message, e.g. '3:1,7:2'")
	return cmd
}

func runState(sessionID string, messageID, swipe int, swipesFlag string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
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
	if err != nil {
		return err
	}

	engine := projection.NewEngine(s)
	state, err := engine.At(messageID, swipe, canonical)
	if err != nil {
		return err
	}

	printState(state)
	return nil
}

func printState(state *event.ProjectedState) {
	if state.Time != nil {
		fmt.Fprintf(os.Stdout, "Time: %s (%s)\n", state.Time, state.Time.Weekday())
	}
	if state.Location != nil {
		loc := state.Location
		fmt.Fprintf(os.Stdout, "Location: %s", loc.Area)
		if loc.Place != "" {
			fmt.Fprintf(os.Stdout, " / %s", loc.Place)
		}
		if loc.Position != "" {
			fmt.Fprintf(os.Stdout, " (%s)", loc.Position)
		}
		fmt.Fprintln(os.Stdout, "")
		if len(loc.Props) > 0 {
			fmt.Fprintf(os.Stdout, "  Props: %s\n", strings.Join(loc.Props, ", "))
		}
	}

	names := sortedCharacterKeys(state)
	if len(names) > 0 {
		fmt.Fprintln(os.Stdout, "Characters:")
	}
	for _, key := range names {
		c := state.Characters[key]
		presence := "present"
		if !c.Present {
			presence = "away"
		}
		fmt.Fprintf(os.Stdout, "  %s (%s)\n", c.Name, presence)
		if c.Position != "" {
			fmt.Fprintf(os.Stdout, "    Position: %s\n", c.Position)
		}
		if c.Activity != "" {
			fmt.Fprintf(os.Stdout, "    Activity: %s\n", c.Activity)
		}
		if len(c.Moods) > 0 {
			fmt.Fprintf(os.Stdout, "    Moods: %s\n", strings.Join(c.Moods, ", "))
		}
		if len(c.PhysicalStates) > 0 {
			fmt.Fprintf(os.Stdout, "    Physical: %s\n", strings.Join(c.PhysicalStates, ", "))
		}
		for _, slot := range event.OutfitSlots {
			if value := c.Outfit[slot]; value != "" {
				fmt.Fprintf(os.Stdout, "    %s: %s\n", slot, value)
			}
		}
	}

	pairKeys := make([]string, 0, len(state.Relationships))
	for key := range state.Relationships {
		pairKeys = append(pairKeys, key)
	}
	sort.Strings(pairKeys)
	if len(pairKeys) > 0 {
		fmt.Fprintln(os.Stdout, "Relationships:")
	}
	for _, key := range pairKeys {
		r := state.Relationships[key]
		fmt.Fprintf(os.Stdout, "  %s & %s", r.Pair[0], r.Pair[1])
		if r.Status != "" {
			fmt.Fprintf(os.Stdout, " [%s]", r.Status)
		}
		fmt.Fprintln(os.Stdout, "")
		printAttitude(r.Pair[0], r.AToB)
		printAttitude(r.Pair[1], r.BToA)
	}
}

func printAttitude(name string, a event.Attitude) {
	if len(a.Feelings) > 0 {
		fmt.Fprintf(os.Stdout, "    %s feels: %s\n", name, strings.Join(a.Feelings, ", "))
	}
	if len(a.Secrets) > 0 {
		fmt.Fprintf(os.Stdout, "    %s hides: %s\n", name, strings.Join(a.Secrets, ", "))
	}
	if len(a.Wants) > 0 {
		fmt.Fprintf(os.Stdout, "    %s wants: %s\n", name, strings.Join(a.Wants, ", "))
	}
}

func sortedCharacterKeys(state *event.ProjectedState) []string {
	keys := make([]string, 0, len(state.Characters))
	for key := range state.Characters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
