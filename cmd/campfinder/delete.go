package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abelbrown/campfinder/internal/logging"
	"github.com/abelbrown/campfinder/internal/store"
)

func (c *cli) newDeleteCmd() *cobra.Command {
	var ignoreMissing bool

	cmd := &cobra.Command{
		Use:   "delete ID...",
		Short: "Remove listings from the local store",
		Long: `Removes listings and any favorites pointing at them. A later sync brings
back listings the backend still serves.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			var errs []error
			for _, id := range args {
				err := st.DeleteListing(id)
				switch {
				case err == nil:
					fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
				case ignoreMissing && errors.Is(err, store.ErrNotFound):
					logging.Debug("delete: listing not found", "id", id)
				default:
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().BoolVar(&ignoreMissing, "ignore-missing", false, "Do not fail on ids that are not stored")
	return cmd
}
