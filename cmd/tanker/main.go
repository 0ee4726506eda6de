// Package main contains the cli implementation of tanker. It uses cobra
// package for cli tool implementation, grounded on cmd/smf's root-command
// plus subcommand-constructor-function style.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

type commonFlags struct {
	config    string
	dbURI     string
	limit     int
	hasLimit  bool
	offset    int
	hasOffset bool
	filters   []string
	sort      []string
	purge     bool
	file      string
	yaml      bool
	hideHeads bool
}

func bindCommonFlags(cmd *cobra.Command, f *commonFlags) {
	cmd.Flags().StringVar(&f.config, "config", "", "path to a TOML connection/schema config file")
	cmd.Flags().StringVar(&f.dbURI, "db-uri", "", "connection URI, overrides --config's db-uri")
	cmd.Flags().IntVarP(&f.limit, "limit", "l", 0, "maximum rows to return")
	cmd.Flags().IntVarP(&f.offset, "offset", "o", 0, "rows to skip before returning results")
	cmd.Flags().StringArrayVarP(&f.filters, "filter", "F", nil, "filter expression, e.g. '(= name \"acme\")' (repeatable)")
	cmd.Flags().StringArrayVarP(&f.sort, "sort", "s", nil, "sort column, optionally suffixed :desc (repeatable)")
	cmd.Flags().BoolVarP(&f.purge, "purge", "p", false, "swap semantics: write also purges filtered rows absent from the data; data-driven delete removes rows NOT in the data")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "path to a JSON row-data file for write/delete; '-' reads stdin")
	cmd.Flags().BoolVar(&f.yaml, "yaml", false, "emit YAML instead of a table")
	cmd.Flags().BoolVar(&f.hideHeads, "hide-headers", false, "omit the header row in table output")
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "tanker",
		Short: "Bulk, idempotent, foreign-key-aware table synchronization",
	}

	rootCmd.AddCommand(readCmd())
	rootCmd.AddCommand(writeCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(infoCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tanker version",
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Println(version)
			return nil
		},
	}
}

func readCmd() *cobra.Command {
	f := &commonFlags{}
	cmd := &cobra.Command{
		Use:   "read <table>",
		Short: "Read rows from a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			f.hasLimit = c.Flags().Changed("limit")
			f.hasOffset = c.Flags().Changed("offset")
			return runRead(context.Background(), args[0], f)
		},
	}
	bindCommonFlags(cmd, f)
	return cmd
}

func writeCmd() *cobra.Command {
	f := &commonFlags{}
	cmd := &cobra.Command{
		Use:   "write <table>",
		Short: "Upsert rows into a table from a JSON data file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runWrite(context.Background(), args[0], f)
		},
	}
	bindCommonFlags(cmd, f)
	return cmd
}

func deleteCmd() *cobra.Command {
	f := &commonFlags{}
	cmd := &cobra.Command{
		Use:   "delete <table>",
		Short: "Delete rows from a table, by filter or by key data",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runDelete(context.Background(), args[0], f)
		},
	}
	bindCommonFlags(cmd, f)
	return cmd
}

func infoCmd() *cobra.Command {
	f := &commonFlags{}
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print the resolved schema registry",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInfo(context.Background(), f)
		},
	}
	cmd.Flags().StringVar(&f.config, "config", "", "path to a TOML connection/schema config file")
	cmd.Flags().StringVar(&f.dbURI, "db-uri", "", "connection URI, overrides --config's db-uri")
	return cmd
}

func initCmd() *cobra.Command {
	f := &commonFlags{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or synchronize every registered table (idempotent)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInit(context.Background(), f)
		},
	}
	cmd.Flags().StringVar(&f.config, "config", "", "path to a TOML connection/schema config file")
	cmd.Flags().StringVar(&f.dbURI, "db-uri", "", "connection URI, overrides --config's db-uri")
	return cmd
}
