package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"webtrail/internal/graph"
)

var trailCmd = &cobra.Command{
	Use:   "trail <session-id>",
	Short: "Print the causal trail tree of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer st.Close()

		sessionID := args[0]
		sess, err := st.GetSession(sessionID)
		if err != nil {
			return err
		}
		if sess == nil {
			return fmt.Errorf("session not found: %s", sessionID)
		}

		snap, err := graph.SnapshotFromStore(st, sessionID)
		if err != nil {
			return fmt.Errorf("loading graph: %w", err)
		}
		if len(snap.Nodes) == 0 {
			fmt.Println("(empty session)")
			return nil
		}

		for _, root := range graph.BuildTrails(snap) {
			printTrail(root, "")
		}
		return nil
	},
}

func printTrail(n *graph.TrailNode, indent string) {
	label := n.Title
	if label == "" {
		label = n.URL
	}
	at := time.UnixMilli(n.Timestamp).Format("15:04:05")
	marker := ""
	if n.IsClosed {
		marker = " [closed]"
	}
	fmt.Printf("%s%s  (%s, %s)%s\n", indent, label, n.NavType, at, marker)
	for _, child := range n.Children {
		printTrail(child, indent+"  ")
	}
}

func init() {
	rootCmd.AddCommand(trailCmd)
}
