package build

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// WriteTable writes the per-target status table of r followed by a summary
// line.
func (r *Report) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tPLATFORM\tSTATUS\tTIME\tDETAIL")
	counts := make(map[Status]int)
	for _, o := range r.Outcomes {
		counts[o.Status]++
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", o.Target, dash(o.Platform), o.Status, o.Duration.Round(100*time.Millisecond), detail(o))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	var parts []string
	for _, s := range []Status{StatusBuilt, StatusCached, StatusFailed, StatusCancelled} {
		if counts[s] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[s], s))
		}
	}
	_, err := fmt.Fprintf(w, "%d targets: %s\n", len(r.Outcomes), strings.Join(parts, ", "))
	return err
}

func detail(o *Outcome) string {
	switch {
	case o.Err != nil:
		msg, _, _ := strings.Cut(o.Err.Error(), "\n")
		return msg
	case o.Artifact != nil:
		return o.Artifact.Dir
	}
	return "-"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
