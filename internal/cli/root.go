// Package cli implements the paperreel client commands.
package cli

import (
	"fmt"
	"io"
	"os"
)

// stdout is swapped in tests.
var stdout io.Writer = os.Stdout

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "upload":
		return runUpload(args[1:])
	case "watch":
		return runWatch(args[1:])
	case "status":
		return runStatus(args[1:])
	case "ask":
		return runAsk(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Fprintln(stdout, "paperreel: turn a scientific paper into explainer videos")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Quick Start:")
	fmt.Fprintln(stdout, "  paperreel upload paper.pdf")
	fmt.Fprintln(stdout, "  paperreel watch --last")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Commands:")
	fmt.Fprintln(stdout, "  upload    send a PDF to the gateway and remember the job id")
	fmt.Fprintln(stdout, "  watch     open the videos view for a job")
	fmt.Fprintln(stdout, "  status    poll a job once and print its progress")
	fmt.Fprintln(stdout, "  ask       ask the chat assistant one question")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Environment:")
	fmt.Fprintln(stdout, "  PAPERREEL_GATEWAY_URL   gateway base URL (default http://localhost:8080)")
	fmt.Fprintln(stdout, "  PAPERREEL_SESSION_DIR   local session cache")
}
