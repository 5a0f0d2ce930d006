package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// schemaCmd represents the schema command
var schemaCmd = &cobra.Command{
	Use:   "schema <table.dbf>",
	Short: "Print the header and column definitions of a table",
	Long: `Print the header and column definitions of a table.

Example:
  dbfcat schema customers.dbf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rd, err := openTable(cmd, args[0])
		if err != nil {
			return err
		}
		defer rd.Close()

		h := rd.Header()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Signature:\t%#02x\n", h.Signature())
		fmt.Fprintf(w, "Updated:\t%s\n", h.LastUpdate().Format("2006-01-02"))
		fmt.Fprintf(w, "Records:\t%d\n", h.NumRecords())
		fmt.Fprintf(w, "Header length:\t%d\n", h.HeaderLength())
		fmt.Fprintf(w, "Record length:\t%d\n", h.RecordLength())
		fmt.Fprintf(w, "Language driver:\t%#02x\n", h.LanguageDriver())
		fmt.Fprintln(w)

		fmt.Fprintln(w, "NAME\tTYPE\tLENGTH\tDECIMALS")
		for _, f := range rd.Fields() {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", f.Name(), f.Type(), f.Length(), f.Decimals())
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
