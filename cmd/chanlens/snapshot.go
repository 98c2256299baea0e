package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"chanlens/internal/analyzer"
	"chanlens/internal/ingest"
	"chanlens/internal/snapshot"
)

type storeHandle = *snapshot.Store

// withStore loads the app, opens the snapshot store and runs fn
func withStore(fn func(ctx context.Context, a *app, st storeHandle) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(context.Background(), a, store)
}

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage saved bar snapshots",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List snapshots, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(func(ctx context.Context, a *app, st storeHandle) error {
					metas, err := st.List(ctx)
					if err != nil {
						return err
					}
					if format == "json" {
						return outputJSON(metas)
					}
					return outputSnapshotTable(metas)
				})
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a snapshot and its structure summary",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(func(ctx context.Context, a *app, st storeHandle) error {
					snap, err := st.Get(ctx, args[0])
					if err != nil {
						return err
					}
					if format == "json" {
						return outputJSON(snap)
					}

					mode, err := analyzer.ParseClassification(a.cfg.Analysis.Classification)
					if err != nil {
						return err
					}
					fmt.Printf("%s | %s | source %s | saved %s\n\n",
						snap.ID, snap.Label, snap.Source, snap.SavedAt.Local().Format("2006-01-02 15:04:05"))
					if err := outputStructureTable(len(snap.Bars), analyzer.RunStructuralAnalysis(snap.Bars)); err != nil {
						return err
					}

					sum := analyzer.Summarize(snap.Context.Symbol, snap.Bars, mode)
					if sum.LastEvent != nil {
						fmt.Printf("\nLast event: %s %s @ %s (%s)\n", sum.LastEvent.Kind, sum.LastEvent.Direction,
							formatPrice(sum.LastEvent.BrokenPrice), formatTime(sum.LastEvent.ConfirmedBy.Bar.Timestamp))
					}
					return nil
				})
			},
		},
		newSnapshotSaveCmd(),
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a snapshot",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(func(ctx context.Context, a *app, st storeHandle) error {
					if err := st.Delete(ctx, args[0]); err != nil {
						return err
					}
					fmt.Printf("Deleted %s\n", args[0])
					return nil
				})
			},
		},
	)
	return cmd
}

func newSnapshotSaveCmd() *cobra.Command {
	var (
		label    string
		symbol   string
		interval string
	)

	cmd := &cobra.Command{
		Use:   "save <file>",
		Short: "Save a CSV or JSON bar file as a manual snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bars, err := ingest.ReadFile(args[0])
			if err != nil {
				return err
			}
			if err := ingest.Validate(bars); err != nil {
				return err
			}

			return withStore(func(ctx context.Context, a *app, st storeHandle) error {
				snap := snapshot.NewManual(label, snapshot.Context{
					Symbol:   symbol,
					Interval: interval,
					Limit:    len(bars),
					FileName: args[0],
				}, bars)
				saved, err := st.Save(ctx, snap)
				if err != nil {
					return err
				}
				if format == "json" {
					return outputJSON(saved.Meta())
				}
				fmt.Printf("Saved %s (%d bars)\n", saved.ID, len(saved.Bars))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "Snapshot label")
	cmd.Flags().StringVar(&symbol, "symbol", "", "Symbol the bars belong to")
	cmd.Flags().StringVar(&interval, "interval", "", "Bar interval")
	return cmd
}
