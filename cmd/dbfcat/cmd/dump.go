package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var columns []string

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump <table.dbf>",
	Short: "Print the live rows of a table",
	Long: `Print the live rows of a table, one per line. Null values print as
empty cells.

Example:
  dbfcat dump --columns NAME,CITY customers.dbf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rd, err := openTable(cmd, args[0])
		if err != nil {
			return err
		}
		defer rd.Close()

		if err := rd.Select(columns...); err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		names := make([]string, 0, len(rd.Selected()))
		for _, f := range rd.Selected() {
			names = append(names, f.Name())
		}
		fmt.Fprintln(w, strings.Join(names, "\t"))

		cells := make([]string, len(names))
		for n := 0; ; n++ {
			row, err := rd.Next()
			if err == io.EOF {
				break
			} else if err != nil {
				_ = w.Flush()
				return errors.Wrapf(err, "after %d rows", n)
			}
			for i, v := range row {
				cells[i] = ""
				if v != nil {
					cells[i] = v.String()
				}
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
		return w.Flush()
	},
}

func init() {
	dumpCmd.Flags().StringSliceVarP(&columns, "columns", "c", nil, "Comma separated columns to print, in order")
	rootCmd.AddCommand(dumpCmd)
}
