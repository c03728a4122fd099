package dissect

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ssargent/binderdump/pkg/binder"
)

// Render writes the tree below n, one node per line, indented by depth.
// Colors follow color.NoColor.
func Render(w io.Writer, n *Node) error {
	var err error
	n.Walk(func(n *Node, depth int) {
		if err != nil {
			return
		}
		label := color.CyanString(n.Name)
		if n.Value != "" {
			label += ": " + n.Value
		}
		_, err = fmt.Fprintf(w, "%s%s %s\n", strings.Repeat("    ", depth), label,
			color.HiBlackString("[%d:%d]", n.Offset, n.Offset+n.Size))
	})
	return err
}

// Summary is a one line description of ev.
func Summary(ev *binder.EventProtocol) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s[%d/%d] %s", ev.EventType, ev.CommString(), ev.PID, ev.TID, ev.BinderInterface)
	if ev.Cmdline != "" {
		fmt.Fprintf(&b, " (%s)", ev.Cmdline)
	}

	ioctl := ev.IoctlData
	if ioctl == nil {
		return b.String()
	}
	fmt.Fprintf(&b, " #%d %s fd=%d", ioctl.IoctlID, ioctl.Cmd, ioctl.Fd)
	if bwr := ioctl.BWR; bwr != nil {
		fmt.Fprintf(&b, " %s", bwr.BwrType)
		if names := opNames(bwr); len(names) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(names, ", "))
		}
		if txn := bwr.Transaction; txn != nil {
			fmt.Fprintf(&b, " -> %s", cString(txn.TargetComm[:]))
		}
	}
	if ev.EventType == binder.FinishedIoctl {
		fmt.Fprintf(&b, " = %d", ioctl.Result)
	}
	return b.String()
}

func opNames(bwr *binder.WriteReadProtocol) []string {
	if bwr.BwrType.IsWrite() {
		ops, _ := bwr.Commands()
		names := make([]string, len(ops))
		for i, op := range ops {
			names[i] = binder.Command(op.Code).String()
		}
		return names
	}
	ops, _ := bwr.Returns()
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = binder.Return(op.Code).String()
	}
	return names
}
