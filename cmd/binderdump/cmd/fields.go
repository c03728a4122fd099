/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ssargent/binderdump/pkg/dissect"
)

// fieldsCmd represents the fields command
var fieldsCmd = &cobra.Command{
	Use:   "fields [prefix]",
	Short: "List the header fields a dissector registers",
	Long: `List every header field of the binderdump protocol with its type and
display base. A prefix limits the list to the fields below it.

Examples:
  binderdump fields
  binderdump fields binderdump.ioctl_data.bwr`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		values, _ := cmd.Flags().GetBool("values")
		return listFields(cmd.OutOrStdout(), prefix, values)
	},
}

func init() {
	rootCmd.AddCommand(fieldsCmd)

	fieldsCmd.Flags().Bool("values", false, "Also list the named values of enum fields")
}

func listFields(w io.Writer, prefix string, values bool) error {
	reg, err := dissect.Default()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ABBREV\tTYPE\tDISPLAY\tNAME")
	for _, f := range reg.Fields() {
		if !strings.HasPrefix(f.Abbrev, prefix) {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Abbrev, f.Type, f.Display, f.Name)
		if !values {
			continue
		}
		for _, v := range f.Strings {
			fmt.Fprintf(tw, "\t%d\t%s\t\n", v.Value, v.String)
		}
	}
	return tw.Flush()
}
