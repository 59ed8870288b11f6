package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/quireapp/quire/internal/session"
)

var (
	extractPage int
	extractOut  string
)

var extractCmd = &cobra.Command{
	Use:   "extract <document>",
	Short: "Materialize one page and copy it to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sess, err := session.Open(ctx, args[0], quireHome, cacheConfig(), nil)
		if err != nil {
			return err
		}
		defer sess.Close()

		loc, err := sess.PageLocation(ctx, extractPage)
		if err != nil {
			return err
		}

		// The session's Close wipes scratch space, so hand the caller a
		// copy outside it.
		src, err := os.Open(loc.Path)
		if err != nil {
			return err
		}
		defer src.Close()

		dst, err := os.Create(extractOut)
		if err != nil {
			return err
		}
		defer dst.Close()

		if _, err := io.Copy(dst, src); err != nil {
			return err
		}
		fmt.Printf("page %d -> %s\n", extractPage, extractOut)
		return nil
	},
}

func init() {
	extractCmd.Flags().IntVarP(&extractPage, "page", "p", 0, "zero-based page index")
	extractCmd.Flags().StringVarP(&extractOut, "out", "f", "page.out", "destination file")
}
