package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/techop/httpmetrics/pkg/cli/internal/output"
	"github.com/techop/httpmetrics/pkg/threaddump"
)

var threadsSummaryOnly bool

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "Print a goroutine dump of this process",
	Example: `  httpmetrics threads
  httpmetrics threads --summary
  httpmetrics threads --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := threaddump.NewCollector()
		if threadsSummaryOnly && !jsonOutput {
			return runThreadsTable(cmd.OutOrStdout(), c)
		}
		return runThreads(cmd.OutOrStdout(), c, jsonOutput)
	},
}

// threadsSummary is the --json form of a dump.
type threadsSummary struct {
	Count   int                      `json:"count"`
	ByState map[threaddump.State]int `json:"byState"`
	Note    string                   `json:"note,omitempty"`
}

func summarize(snap *threaddump.Snapshot) threadsSummary {
	sum := threadsSummary{Count: snap.Len(), ByState: map[threaddump.State]int{}, Note: snap.Note}
	for _, t := range snap.Threads {
		sum.ByState[t.State]++
	}
	return sum
}

func runThreads(w io.Writer, c *threaddump.Collector, asJSON bool) error {
	snap := c.Collect()
	if !asJSON {
		return snap.WriteText(w)
	}
	if err := output.JSON(w, summarize(snap)); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// runThreadsTable prints goroutine counts per state, one row per state seen.
func runThreadsTable(w io.Writer, c *threaddump.Collector) error {
	sum := summarize(c.Collect())
	title := cases.Title(language.English)

	states := make([]threaddump.State, 0, len(sum.ByState))
	for st := range sum.ByState {
		states = append(states, st)
	}
	slices.Sort(states)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "STATE\tGOROUTINES\n")
	for _, st := range states {
		label := title.String(strings.ReplaceAll(strings.ToLower(string(st)), "_", " "))
		fmt.Fprintf(tw, "%s\t%d\n", label, sum.ByState[st])
	}
	fmt.Fprintf(tw, "Total\t%d\n", sum.Count)
	if err := tw.Flush(); err != nil {
		return err
	}
	if sum.Note != "" {
		_, err := fmt.Fprintf(w, "note: %s\n", sum.Note)
		return err
	}
	return nil
}

func init() {
	threadsCmd.Flags().BoolVar(&threadsSummaryOnly, "summary", false, "Print goroutine counts per state instead of stacks")
	rootCmd.AddCommand(threadsCmd)
}
