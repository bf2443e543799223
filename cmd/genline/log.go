package main

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"genline/internal/app"
	"genline/internal/events"
	"genline/internal/logging"
)

func logCmd() *cobra.Command {
	lc := &cobra.Command{Use: "log", Short: "Inspect the lifecycle event log"}
	lc.AddCommand(logTailCmd())
	return lc
}

func logTailCmd() *cobra.Command {
	var n int
	var f events.Filter
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events (sqlite store only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, closer := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
			defer closer.Close()
			a, err := app.Build(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			w, err := a.EventLog()
			if err != nil {
				return err
			}
			items, err := w.Tail(cmd.Context(), n, f)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(items)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Time", "Type", "Kind", "Entity", "Actor"})
			for _, evt := range items {
				tw.AppendRow(table.Row{evt.ID, evt.TS.Format("2006-01-02 15:04:05"), evt.Type, evt.EntityKind, evt.EntityID, evt.ActorID})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind (plan, execution)")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}
