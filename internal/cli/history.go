package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/corohost/pkg/model"
)

func newHistoryCmd() *cobra.Command {
	var limit, offset int
	var state string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openHistory(cmd.Context())
			if err != nil {
				return err
			}
			if st == nil {
				return errors.New("no history database configured: set --history-db or history_db")
			}
			defer st.Close()

			opts := model.ListOptions{Limit: limit, Offset: offset, State: model.RunState(strings.ToUpper(state))}
			runs, total, err := st.ListRuns(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATE\tENGINE\tSCRIPT\tTICKS\tDURATION\tSTARTED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					r.ID, r.State, r.Engine, r.Script, r.Ticks,
					r.Duration().Round(time.Millisecond), r.StartedAt.Local().Format(time.DateTime))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if total > len(runs) {
				opts.Clamp()
				fmt.Fprintf(out, "(runs %d-%d of %d shown", opts.Offset+1, opts.Offset+len(runs), total)
				if opts.Page(total).HasMore {
					fmt.Fprintf(out, "; next: --offset %d", opts.Offset+opts.Limit)
				}
				fmt.Fprintln(out, ")")
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many of the newest runs")
	cmd.Flags().StringVar(&state, "state", "", "Only show runs in this state (running, finished, errored)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print runs as JSON")
	return cmd
}
