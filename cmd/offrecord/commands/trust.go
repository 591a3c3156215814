package commands

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func trustCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trust",
		Short: "List peers whose fingerprint passed a secret comparison",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := appCtx.Trust.ListTrust()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No verified peers.")
				return nil
			}
			sort.Slice(records, func(i, j int) bool { return records[i].Peer < records[j].Peer })
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PEER\tFINGERPRINT\tVERIFIED")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Peer, r.Fingerprint,
					time.Unix(r.VerifiedUTC, 0).UTC().Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}
