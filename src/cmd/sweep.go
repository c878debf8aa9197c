package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete stored artifacts older than the retention period",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		store, err := newStorage()
		if err != nil {
			return err
		}
		report := store.Sweep(time.Now())

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SCANNED\tEXPIRED\tDELETED\tFAILED")
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\n", report.Scanned, report.Expired, report.Deleted, report.Failed)
		w.Flush()

		if report.Failed > 0 {
			return fmt.Errorf("%d 个文件删除失败", report.Failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
