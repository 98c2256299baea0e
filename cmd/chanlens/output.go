package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"chanlens/internal/snapshot"
	"chanlens/pkg/model"
)

func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func formatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04")
}

func formatPrice(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

func outputStructureTable(bars int, r model.StructuralResult) error {
	fmt.Printf("Bars: %d | Fractals: %d | Strokes: %d | Segments: %d | Zones: %d\n\n",
		bars, len(r.Fractals), len(r.Strokes), len(r.Segments), len(r.Zones))

	if len(r.Segments) == 0 {
		fmt.Println("No segments: not enough strokes.")
		return nil
	}

	fmt.Println("Segments")
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"#", "Dir", "Strokes", "From", "To", "High", "Low", "Sure"}),
	)
	for i, seg := range r.Segments {
		sure := "yes"
		if !seg.IsSure {
			sure = "pending"
		}
		table.Append([]string{
			fmt.Sprintf("%d", i),
			string(seg.Direction),
			fmt.Sprintf("%d-%d", seg.StartStroke, seg.EndStroke),
			formatTime(seg.From.Bar.Timestamp),
			formatTime(seg.To.Bar.Timestamp),
			formatPrice(seg.High),
			formatPrice(seg.Low),
			sure,
		})
	}
	table.Render()

	if len(r.Zones) == 0 {
		fmt.Println("\nNo pivot zones.")
		return nil
	}

	fmt.Println("\nPivot zones")
	table = tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"ID", "Segments", "Strokes", "Start", "End", "High", "Low"}),
	)
	for _, z := range r.Zones {
		table.Append([]string{
			z.ID,
			fmt.Sprintf("%d-%d", z.StartSegment, z.EndSegment),
			fmt.Sprintf("%d-%d", z.StartStroke, z.EndStroke),
			formatTime(z.Start.Bar.Timestamp),
			formatTime(z.End.Bar.Timestamp),
			formatPrice(z.High),
			formatPrice(z.Low),
		})
	}
	table.Render()
	return nil
}

func outputBreakoutTable(bars int, r model.BreakoutResult) error {
	fmt.Printf("Bars: %d | Strokes: %d | Events: %d (bos %d, choch %d)\n\n",
		bars, len(r.Strokes), len(r.Events), len(r.BOS()), len(r.CHOCH()))

	if len(r.Events) == 0 {
		fmt.Println("No structure events.")
		return nil
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"ID", "Kind", "Dir", "Level", "Swing", "Confirmed"}),
	)
	for _, ev := range r.Events {
		table.Append([]string{
			ev.ID,
			string(ev.Kind),
			string(ev.Direction),
			formatPrice(ev.BrokenPrice),
			formatTime(ev.BrokenFrom.Bar.Timestamp),
			formatTime(ev.ConfirmedBy.Bar.Timestamp),
		})
	}
	table.Render()
	return nil
}

func outputScanTable(result *model.ScanResult) error {
	fmt.Printf("Scanned %d symbols in %s (%d analyzed, %d failed)\n\n",
		result.TotalScanned, result.ScanTime.Round(time.Millisecond), result.Analyzed, len(result.Failed))

	if len(result.Summaries) > 0 {
		table := tablewriter.NewTable(os.Stdout,
			tablewriter.WithHeader([]string{"Symbol", "Bars", "Strokes", "Segments", "Zones", "Last Segment", "Last Event", "Close"}),
		)
		for _, s := range result.Summaries {
			lastSeg := "-"
			if s.LastSegment != nil {
				lastSeg = string(s.LastSegment.Direction)
				if !s.LastSegment.IsSure {
					lastSeg += " (pending)"
				}
			}
			lastEvent := "-"
			if s.LastEvent != nil {
				lastEvent = fmt.Sprintf("%s %s @ %s", s.LastEvent.Kind, s.LastEvent.Direction, formatPrice(s.LastEvent.BrokenPrice))
			}
			table.Append([]string{
				s.Symbol,
				fmt.Sprintf("%d", s.Bars),
				fmt.Sprintf("%d", s.Strokes),
				fmt.Sprintf("%d", s.Segments),
				fmt.Sprintf("%d", s.Zones),
				lastSeg,
				lastEvent,
				formatPrice(s.LastClose),
			})
		}
		table.Render()
	}

	for sym, reason := range result.Failed {
		fmt.Printf("  [FAIL] %s: %s\n", sym, reason)
	}
	return nil
}

func outputSnapshotTable(metas []snapshot.Meta) error {
	if len(metas) == 0 {
		fmt.Println("No snapshots saved.")
		return nil
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"ID", "Source", "Label", "Bars", "Saved"}),
	)
	for _, m := range metas {
		table.Append([]string{
			m.ID,
			string(m.Source),
			m.Label,
			fmt.Sprintf("%d", m.Count),
			m.SavedAt.Local().Format("2006-01-02 15:04:05"),
		})
	}
	table.Render()
	return nil
}
