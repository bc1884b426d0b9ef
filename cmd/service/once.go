// cmd/service/once.go
package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"
)

func newOnceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single cycle and print the snapshot as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap := a.newScheduler().RunOnce(cmd.Context())

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(snap); err != nil {
				return err
			}
			if snap.GlobalError != "" {
				return errors.New(snap.GlobalError)
			}
			return nil
		},
	}
}
