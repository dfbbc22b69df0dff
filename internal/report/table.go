package report

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const maxCellWidth = 60

// Render formats the report entries and totals as a table
func Render(run *Run) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Row", "ID", "Status", "Step", "Detail", "Reference"})

	for _, e := range run.Entries {
		row := "-"
		if e.Position > 0 {
			row = fmt.Sprintf("%d", e.Position)
		}
		status := e.Status
		if status == "" {
			status = "(unchanged)"
		}
		detail := e.Detail
		if e.CommitError != "" {
			detail = "commit: " + e.CommitError
		}
		tw.AppendRow(table.Row{row, e.ID, status, e.FailureStep, detail, e.RemoteRef})
	}

	tw.AppendFooter(table.Row{"", "", fmt.Sprintf("%d completed", run.Completed), fmt.Sprintf("%d errors", run.Errors), fmt.Sprintf("%d unresolved", run.Unresolved), ""})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, WidthMax: maxCellWidth},
		{Number: 6, WidthMax: maxCellWidth},
	})

	return tw.Render()
}

// RenderRecords formats a snapshot listing; rows are position, ID, status,
// eligibility
func RenderRecords(rows [][]string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Row", "ID", "Status", "Eligible"})
	for _, r := range rows {
		tr := make(table.Row, 4)
		for i := 0; i < 4; i++ {
			tr[i] = ""
			if i < len(r) {
				tr[i] = r[i]
			}
		}
		tw.AppendRow(tr)
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, WidthMax: maxCellWidth},
	})
	return tw.Render()
}
