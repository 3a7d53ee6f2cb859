package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"webtrail/internal/collector"
	"webtrail/internal/ids"
	"webtrail/internal/nav"
)

var (
	watchAttach   string
	watchHeadless bool
	watchLabel    string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Record live browser navigation into the graph until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, cfg, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer st.Close()

		sessionID := ids.SessionID()
		if err := st.CreateSession(sessionID, watchLabel); err != nil {
			return err
		}

		tabs := nav.NewTracker(cfg.HistoryCap, logger)
		pending := nav.NewMatcher(cfg.PendingTTL, cfg.ScriptRingSize, logger)

		col := collector.New(collector.Config{
			AttachURL:  watchAttach,
			Headless:   watchHeadless,
			ThrottleMs: 100,
		}, nil, logger)

		registry := nav.NewRegistry(st, tabs, col, cfg.CacheMaxAge, logger)
		corr := nav.NewCorrelator(st, tabs, pending, registry, sessionID, cfg, logger)
		col.SetCorrelator(corr)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		corr.StartMaintenance(ctx)

		logger.Info("recording session", zap.String("session", sessionID))
		fmt.Printf("Recording session %s — press Ctrl-C to stop\n", sessionID)

		if err := col.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("running collector: %w", err)
		}

		if err := st.EndSession(sessionID); err != nil {
			logger.Warn("ending session failed", zap.Error(err))
		}
		sess, err := st.GetSession(sessionID)
		if err == nil && sess != nil {
			fmt.Printf("Recorded %d nodes and %d edges in session %s\n",
				sess.NodeCount, sess.EdgeCount, sessionID)
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchAttach, "attach", "", "DevTools websocket URL of a running browser")
	watchCmd.Flags().BoolVar(&watchHeadless, "headless", false, "Launch the browser headless")
	watchCmd.Flags().StringVar(&watchLabel, "label", "", "Session label")
	rootCmd.AddCommand(watchCmd)
}
