package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Priya8975/leadsync/internal/domain"
	"github.com/Priya8975/leadsync/internal/worker"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
)

type cursorView struct {
	ID            string    `json:"id"`
	LastCreatedAt time.Time `json:"last_created_at"`
	LastEventKey  string    `json:"last_event_key"`
	ResumeToken   string    `json:"resume_token"`
}

type followView struct {
	Runs   int               `json:"runs"`
	Synced int               `json:"synced"`
	Last   *domain.RunReport `json:"last"`
}

func printReport(w io.Writer, format string, report *domain.RunReport) error {
	switch format {
	case "json":
		return writeJSON(w, report)
	case "yaml":
		return writeYAML(w, report)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "RUN\t%s\n", report.RunID)
	fmt.Fprintf(tw, "STATE\t%s\n", stateColor(report.State).Sprint(report.State))
	fmt.Fprintf(tw, "STOP REASON\t%s\n", report.StopReason)
	fmt.Fprintf(tw, "PAGES\t%d\n", report.Pages)
	fmt.Fprintf(tw, "SYNCED\t%d\n", report.Synced)
	fmt.Fprintf(tw, "STAGED\t%d\n", report.Staged)
	fmt.Fprintf(tw, "NEW UNIQUES\t%d\n", report.Uniques)
	fmt.Fprintf(tw, "MONEY UNPARSED\t%d\n", report.MoneyUnparsed)
	fmt.Fprintf(tw, "FROM\t%s\n", report.StartCursor)
	fmt.Fprintf(tw, "CURSOR\t%s\n", report.Cursor)
	fmt.Fprintf(tw, "HAS MORE\t%t\n", report.HasMore)
	if report.HasMore || report.State == domain.StateFailed {
		fmt.Fprintf(tw, "NEXT CURSOR\t%s\n", report.ResumeToken)
	}
	fmt.Fprintf(tw, "DURATION\t%s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	if report.Error != "" {
		fmt.Fprintf(tw, "ERROR\t%s\n", report.Error)
	}
	if len(report.Warnings) > 0 {
		fmt.Fprintf(tw, "WARNINGS\t%s\n", strings.Join(report.Warnings, "; "))
	}
	return tw.Flush()
}

func printFollow(w io.Writer, format string, res worker.FollowResult) error {
	view := followView{Runs: res.Runs, Synced: res.Synced, Last: res.Last}
	switch format {
	case "json":
		return writeJSON(w, view)
	case "yaml":
		return writeYAML(w, view)
	}

	fmt.Fprintf(w, "%d run(s), %d event(s) synced\n\n", res.Runs, res.Synced)
	return printReport(w, format, res.Last)
}

func printCursor(w io.Writer, format, id string, cursor domain.Cursor) error {
	view := cursorView{
		ID:            id,
		LastCreatedAt: cursor.CreatedAt,
		LastEventKey:  cursor.EventKey,
		ResumeToken:   cursor.Token(),
	}
	switch format {
	case "json":
		return writeJSON(w, view)
	case "yaml":
		return writeYAML(w, view)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", view.ID)
	fmt.Fprintf(tw, "POSITION\t%s\n", cursor)
	if !cursor.IsZero() {
		fmt.Fprintf(tw, "RESUME TOKEN\t%s\n", view.ResumeToken)
	}
	return tw.Flush()
}

func stateColor(state domain.RunState) *color.Color {
	switch state {
	case domain.StateDone:
		return okColor
	case domain.StateTimeboxed:
		return warnColor
	default:
		return failColor
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML renders v with its JSON field names.
func writeYAML(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
