package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quireapp/quire/internal/session"
)

var prefetchAround int

var prefetchCmd = &cobra.Command{
	Use:   "prefetch <document>",
	Short: "Warm the cache around a page index and report cache stats",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sess, err := session.Open(ctx, args[0], quireHome, cacheConfig(), nil)
		if err != nil {
			return err
		}
		defer sess.Close()

		if err := sess.Prefetch(ctx, prefetchAround); err != nil {
			return err
		}

		stats := sess.Stats()
		fmt.Printf("pages:     %d\n", len(sess.Entries()))
		fmt.Printf("resident:  %d\n", stats.Resident)
		fmt.Printf("hits:      %d\n", stats.Hits)
		fmt.Printf("misses:    %d\n", stats.Misses)
		fmt.Printf("evictions: %d\n", stats.Evictions)
		return nil
	},
}

func init() {
	prefetchCmd.Flags().IntVarP(&prefetchAround, "around", "i", 0, "zero-based page index to center the window on")
}
