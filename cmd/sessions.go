package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var sessionsJSON bool

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer st.Close()

		sessions, err := st.ListSessions()
		if err != nil {
			return err
		}

		if sessionsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(sessions)
		}

		if len(sessions) == 0 {
			fmt.Println("No sessions recorded.")
			return nil
		}
		for _, s := range sessions {
			started := time.UnixMilli(s.StartedAt).Format("2006-01-02 15:04")
			status := "open"
			if s.EndedAt != nil {
				status = "ended"
			}
			label := s.Label
			if label == "" {
				label = "-"
			}
			fmt.Printf("%s  %s  %-6s  %4d nodes  %4d edges  %s\n",
				s.ID, started, status, s.NodeCount, s.EdgeCount, label)
		}
		return nil
	},
}

var sessionsCloseCmd = &cobra.Command{
	Use:   "close <session-id>",
	Short: "Mark every open node of a session as closed",
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

		n, err := st.CloseSessionNodes(sessionID)
		if err != nil {
			return err
		}
		if err := st.EndSession(sessionID); err != nil {
			return err
		}
		fmt.Printf("Closed %d nodes in session %s\n", n, sessionID)
		return nil
	},
}

func init() {
	sessionsCmd.Flags().BoolVar(&sessionsJSON, "json", false, "Output JSON")
	sessionsCmd.AddCommand(sessionsCloseCmd)
	rootCmd.AddCommand(sessionsCmd)
}
