package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"webtrail/internal/graph"
	"webtrail/internal/nav"
)

var (
	analyzeJSON         bool
	analyzeSession      string
	analyzeTopN         int
	analyzeHubThreshold int
	analyzeStaleAfter   time.Duration
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze graph structure: trails, orphans, domains, hub pages",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer st.Close()

		snap, err := graph.SnapshotFromStore(st, analyzeSession)
		if err != nil {
			return fmt.Errorf("loading graph: %w", err)
		}

		report := graph.ComputeTopology(snap, analyzeHubThreshold, analyzeTopN)

		var activity *graph.ActivityReport
		if analyzeSession != "" {
			nodes, err := st.QueryNodes(nav.NodeFilter{SessionID: analyzeSession})
			if err != nil {
				return fmt.Errorf("loading session nodes: %w", err)
			}
			activity = graph.ComputeActivity(nodes, time.Now().UnixMilli(), analyzeStaleAfter, analyzeTopN)
		}

		if analyzeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			out := struct {
				Topology *graph.TopologyReport `json:"topology"`
				Activity *graph.ActivityReport `json:"activity,omitempty"`
			}{report, activity}
			return enc.Encode(out)
		}

		printTopology(report)
		if activity != nil {
			printActivity(activity)
		}
		return nil
	},
}

func printActivity(a *graph.ActivityReport) {
	fmt.Printf("\nActivity: %s active over a %s span, %d reloads, %d in-page changes\n",
		time.Duration(a.TotalActiveMs)*time.Millisecond,
		time.Duration(a.SpanMs)*time.Millisecond,
		a.TotalReloads, a.TotalSPAChanges)

	if len(a.BusiestTabs) > 0 {
		fmt.Println("\nBusiest tabs:")
		for _, t := range a.BusiestTabs {
			fmt.Printf("  %-24s %3d visits  %s active\n",
				t.TabID, t.Visits, time.Duration(t.ActiveTime)*time.Millisecond)
		}
	}
	if len(a.StaleOpen) > 0 {
		fmt.Println("\nStale open pages:")
		for _, s := range a.StaleOpen {
			label := s.Title
			if label == "" {
				label = s.URL
			}
			fmt.Printf("  %-50s idle %s\n", label, time.Duration(s.IdleMs)*time.Millisecond)
		}
	}
}

func printTopology(r *graph.TopologyReport) {
	fmt.Printf("Nodes: %d (%d open)   Edges: %d\n", r.TotalNodes, r.OpenNodes, r.TotalEdges)
	fmt.Printf("Trails: %d (largest %d, smallest %d)\n",
		r.NumComponents, r.LargestComponent, r.SmallestComponent)
	fmt.Printf("Orphan visits: %d\n", r.OrphanCount)

	if len(r.NavTypeCounts) > 0 {
		fmt.Println("\nNavigation types:")
		for _, t := range []string{"initial", "link_click", "address_bar", "form_submit",
			"reload", "history_back", "history_forward", "redirect", "javascript"} {
			if n := r.NavTypeCounts[t]; n > 0 {
				fmt.Printf("  %-16s %d\n", t, n)
			}
		}
	}

	if len(r.TopDomains) > 0 {
		fmt.Println("\nTop domains:")
		for _, d := range r.TopDomains {
			fmt.Printf("  %-40s %d\n", d.Domain, d.Count)
		}
	}

	if len(r.Hubs) > 0 {
		fmt.Println("\nHub pages:")
		for _, h := range r.Hubs {
			title := h.Title
			if title == "" {
				title = h.URL
			}
			fmt.Printf("  %-50s in=%d out=%d\n", title, h.InDegree, h.OutDegree)
		}
	}
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Output JSON")
	analyzeCmd.Flags().StringVar(&analyzeSession, "session", "", "Limit to one session")
	analyzeCmd.Flags().IntVar(&analyzeTopN, "top", 20, "Max entries per list")
	analyzeCmd.Flags().IntVar(&analyzeHubThreshold, "hub-threshold", 4, "Min degree for hub pages")
	analyzeCmd.Flags().DurationVar(&analyzeStaleAfter, "stale-after", time.Hour, "Idle time before an open page counts as stale")
	rootCmd.AddCommand(analyzeCmd)
}
