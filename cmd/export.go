package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"webtrail/internal/nav"
)

var exportSession string

type exportDump struct {
	Nodes []nav.NavigationNode `json:"nodes"`
	Edges []nav.NavigationEdge `json:"edges"`
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump nodes and edges as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer st.Close()

		nodes, err := st.QueryNodes(nav.NodeFilter{SessionID: exportSession})
		if err != nil {
			return err
		}
		var edges []nav.NavigationEdge
		if exportSession == "" {
			edges, err = st.AllEdges()
		} else {
			edges, err = st.EdgesBySession(exportSession)
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(exportDump{Nodes: nodes, Edges: edges})
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportSession, "session", "", "Limit to one session")
	rootCmd.AddCommand(exportCmd)
}
