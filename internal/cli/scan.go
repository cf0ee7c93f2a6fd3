package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newScanOverdueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan-overdue",
		Short: "Run one overdue scan and notify borrowers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Migrate(cmd.Context()); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.Config.Overdue.Timeout)
			defer cancel()
			res, err := a.Scanner.RunOnce(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintf(out, "cutoff:     %s\n", res.Cutoff)
			fmt.Fprintf(out, "overdue:    %d\n", res.Overdue)
			fmt.Fprintf(out, "recipients: %s\n", strings.Join(res.Recipients, ", "))
			fmt.Fprintf(out, "notified:   %t\n", res.Notified)
			return nil
		},
	}
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	return cmd
}
