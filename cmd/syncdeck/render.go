package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/olekukonko/tablewriter"

	"syncdeck/pkg/metrics"
	"syncdeck/pkg/shared"
)

// terminal renders browser listings and job progress as plain text tables.
type terminal struct {
	mu  sync.Mutex
	out io.Writer
}

func newTerminal(out io.Writer) *terminal {
	return &terminal{out: out}
}

func (t *terminal) ShowEntries(remoteID, path string, entries []shared.DirectoryEntry, stale bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	header := fmt.Sprintf("%s:%s", remoteID, path)
	if stale {
		header += " (cached, refreshing)"
	}
	fmt.Fprintln(t.out, header)
	t.entryTable(entries)
}

func (t *terminal) ShowLoading(remoteID, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "loading %s:%s ...\n", remoteID, path)
}

func (t *terminal) ShowError(remoteID, path string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "error loading %s:%s: %v\n", remoteID, path, err)
}

func (t *terminal) ShowLocal(path string, entries []shared.DirectoryEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, path)
	t.entryTable(entries)
}

func (t *terminal) RenderJob(status shared.JobStatus, m metrics.Metrics) {
	t.mu.Lock()
	defer t.mu.Unlock()

	line := fmt.Sprintf("%s  %-10s %5.1f%%  %s / %s  elapsed %s",
		status.ID, status.State, status.ProgressPercent, m.Transferred, m.Total, m.Elapsed)
	if m.RemainingSeconds != nil {
		line += "  remaining " + m.Remaining
	}
	fmt.Fprintln(t.out, line)
}

func (t *terminal) RenderJobs(jobs []shared.JobStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(jobs) == 0 {
		fmt.Fprintln(t.out, "No jobs.")
		return
	}

	table := t.table([]string{"ID", "Source", "Status", "Progress", "Transferred", "Started"})
	for _, j := range jobs {
		started := ""
		if !j.StartTime.IsZero() {
			started = j.StartTime.Local().Format("2006-01-02 15:04:05")
		}
		table.Append([]string{
			j.ID,
			j.SourceName,
			string(j.State),
			fmt.Sprintf("%.1f%%", j.ProgressPercent),
			metrics.FormatBytes(j.TransferredBytes) + " / " + metrics.FormatBytes(j.TotalBytes),
			started,
		})
	}
	table.Render()
}

func (t *terminal) RenderRemotes(remotes []shared.RemoteConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(remotes) == 0 {
		fmt.Fprintln(t.out, "No remotes configured.")
		return
	}

	table := t.table([]string{"Name", "Type", "URL", "User"})
	for _, r := range remotes {
		table.Append([]string{r.Name, r.Type, r.URL, r.Username})
	}
	table.Render()
}

func (t *terminal) Printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func (t *terminal) entryTable(entries []shared.DirectoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(t.out, "No files found.")
		return
	}

	table := t.table([]string{"Name", "Type", "Size", "Modified"})
	for _, e := range entries {
		kind, size := "file", ""
		if e.IsDirectory {
			kind = "dir"
		}
		if e.Size != nil {
			size = metrics.FormatBytes(*e.Size)
		}
		table.Append([]string{e.Name, kind, size, e.Modified})
	}
	table.Render()
}

func (t *terminal) table(headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(t.out)
	table.SetHeader(headers)
	table.SetBorder(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	return table
}

func joinCrumbs(labels []string) string {
	return strings.Join(labels, " / ")
}
