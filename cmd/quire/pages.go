package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quireapp/quire/internal/session"
)

var pagesCmd = &cobra.Command{
	Use:   "pages <document>",
	Short: "List a document's pages in reading order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sess, err := session.Open(ctx, args[0], quireHome, cacheConfig(), nil)
		if err != nil {
			return err
		}
		defer sess.Close()

		type page struct {
			Index int    `yaml:"index"`
			Path  string `yaml:"path"`
			Size  int64  `yaml:"size"`
			ID    string `yaml:"id"`
		}
		pages := make([]page, 0, len(sess.Entries()))
		for _, e := range sess.Entries() {
			pages = append(pages, page{Index: e.Index, Path: e.Path, Size: e.UncompressedSize, ID: e.ID})
		}

		out, err := yaml.Marshal(pages)
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, string(out))
		return nil
	},
}
