/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ssargent/binderdump/pkg/dissect"
	"github.com/ssargent/binderdump/pkg/pcapng"
)

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump <file.pcapng>",
	Short: "Print the packets of a capture",
	Long: `Decode every packet of a binderdump capture and print its field tree with
the byte range of each field, as a dissector would see it.

Examples:
  binderdump dump binderdump.pcapng
  binderdump dump --summary binderdump.pcapng
  binderdump dump --no-color binderdump.pcapng | less`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, _ := cmd.Flags().GetBool("summary")
		noColor, _ := cmd.Flags().GetBool("no-color")
		if noColor {
			color.NoColor = true
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		failed, err := dumpCapture(cmd.OutOrStdout(), cmd.ErrOrStderr(), f, summary)
		if err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d packets could not be dissected", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)

	dumpCmd.Flags().BoolP("summary", "s", false, "Print one line per packet")
	dumpCmd.Flags().Bool("no-color", false, "Disable colored output")
}

// dumpCapture prints every packet read from r and returns how many could
// not be decoded or dissected. Broken packets are reported on errw.
func dumpCapture(w, errw io.Writer, r io.Reader, summary bool) (int, error) {
	reader, err := pcapng.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read capture: %w", err)
	}

	failed := 0
	for i := 1; ; i++ {
		pkt, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return failed, nil
		}
		if err != nil {
			return failed, fmt.Errorf("packet %d: %w", i, err)
		}

		ev, layout, err := pkt.Decode()
		if err != nil {
			failed++
			fmt.Fprintf(errw, "packet %d: %v\n", i, err)
			continue
		}

		fmt.Fprintf(w, "%s %s %s\n", color.HiBlackString("%d", i),
			pkt.Timestamp.Format("15:04:05.000000000"), dissect.Summary(ev))
		if summary {
			continue
		}

		tree, err := dissect.Dissect(pkt.Payload, layout)
		if err != nil {
			failed++
			fmt.Fprintf(errw, "packet %d: %v\n", i, err)
			if tree == nil {
				continue
			}
		}
		if err := dissect.Render(w, tree); err != nil {
			return failed, err
		}
	}
}
