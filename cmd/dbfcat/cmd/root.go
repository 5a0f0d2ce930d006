package cmd

import (
	"io"
	"log/slog"
	"os"

	godbf "github.com/Ulysses-Xu/godbf"
	"github.com/Ulysses-Xu/godbf/dbt"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	encoding string
	memoPath string
	verbose  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dbfcat",
	Short: "Inspect dBase III tables",
	Long: `dbfcat prints the schema and the rows of dBase III tables (.dbf),
resolving memo columns from the companion .dbt file.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&encoding, "encoding", "e", "utf-8", "Charset of text and memo columns")
	rootCmd.PersistentFlags().StringVar(&memoPath, "memo", "", "Memo file, defaults to the .dbt next to the table")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug events to stderr")
}

// table is a reader together with the memo store given by --memo.
type table struct {
	*godbf.Reader
	memo *dbt.Store
}

func (t *table) Close() error {
	err := t.Reader.Close()
	if t.memo != nil {
		if merr := t.memo.Close(); err == nil {
			err = merr
		}
	}
	return err
}

// openTable opens the table at path with the options given on the command
// line.
func openTable(cmd *cobra.Command, path string) (*table, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	o := &godbf.Options{
		Encoding: encoding,
		Logger:   slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})),
	}

	rd, err := godbf.Open(path, o)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	t := &table{Reader: rd}
	if memoPath != "" {
		if _, err := os.Stat(memoPath); err != nil {
			_ = rd.Close()
			return nil, errors.Wrap(err, "open memo")
		}
		t.memo, err = dbt.Lazy(func() (io.ReaderAt, error) {
			f, err := os.Open(memoPath)
			if err != nil {
				return nil, err
			}
			return f, nil
		}, &dbt.Options{Encoding: encoding, Logger: o.Logger})
		if err != nil {
			_ = rd.Close()
			return nil, errors.Wrap(err, "open memo")
		}
		rd.SetMemoStore(t.memo)
	}
	return t, nil
}
