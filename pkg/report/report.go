// Package report renders the summary of a test session as plain text or
// as a standalone HTML page.
package report

import (
	"fmt"
	"html/template"
	"io"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/mscrnt/project_dram/pkg/tester"
)

// Setup describes how the socket was driven.
type Setup struct {
	Clock   string
	Grade   string
	Profile string
	Pattern uint32
	Socket  string // "simulated" or the board name
}

// SystemInfo describes the machine that ran the session.
type SystemInfo struct {
	Hostname     string
	OS           string
	Architecture string
	CPUModel     string
	CPUCores     int
	TotalMemory  string
}

// Data contains everything needed to render a report
type Data struct {
	Summary     tester.Summary
	Setup       Setup
	SystemInfo  SystemInfo
	GeneratedAt time.Time
}

// Passed reports whether the last run of the session passed.
func (d Data) Passed() bool {
	return d.Summary.Runs > 0 && d.Summary.Last.Passed()
}

// Generator renders reports.
type Generator struct {
	systemInfo func() SystemInfo
}

// NewGenerator creates a generator that describes the local machine.
func NewGenerator() *Generator {
	return &Generator{systemInfo: LocalSystemInfo}
}

// Collect assembles report data for a finished session.
func (g *Generator) Collect(sum tester.Summary, setup Setup) Data {
	return Data{
		Summary:     sum,
		Setup:       setup,
		SystemInfo:  g.systemInfo(),
		GeneratedAt: time.Now(),
	}
}

// LocalSystemInfo queries the host. Fields that cannot be read are left
// as "unknown".
func LocalSystemInfo() SystemInfo {
	info := SystemInfo{
		Hostname:     "unknown",
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		CPUModel:     "unknown",
		TotalMemory:  "unknown",
	}

	if h, err := host.Info(); err == nil {
		info.Hostname = h.Hostname
		if h.Platform != "" {
			info.OS = fmt.Sprintf("%s %s", h.Platform, h.PlatformVersion)
		}
		if h.KernelArch != "" {
			info.Architecture = h.KernelArch
		}
	}
	if cpus, err := cpu.Info(); err == nil && len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
	}
	if n, err := cpu.Counts(true); err == nil {
		info.CPUCores = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = fmt.Sprintf("%.1f GB", float64(vm.Total)/(1<<30))
	}
	return info
}

// Text writes a plain text report.
func (g *Generator) Text(w io.Writer, d Data) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	s := d.Summary

	rows := [][2]string{
		{"Status", statusText(d.Passed())},
		{"Chip", s.Chip.String()},
		{"Runs", fmt.Sprintf("%d (%d passed, %d failed)", s.Runs, s.Passes, s.Failures)},
		{"Pass streak", fmt.Sprintf("%d", s.Streak)},
		{"Restarts", fmt.Sprintf("%d", s.Restarts)},
	}
	if s.Runs > 0 && !s.Last.Passed() {
		rows = append(rows,
			[2]string{"Failed bits", fmt.Sprintf("%d", s.Last.FailedBits)},
			[2]string{"Last failure", fmt.Sprintf("row %d, col %d (bit %X)", s.Last.Row, s.Last.Col, tester.BitIndex(s.Last))},
		)
	}
	rows = append(rows,
		[2]string{"Duration", formatDuration(s.End.Sub(s.Start))},
		[2]string{"Clock", d.Setup.Clock},
		[2]string{"Speed grade", d.Setup.Grade},
		[2]string{"Timings", d.Setup.Profile},
		[2]string{"Pattern", fmt.Sprintf("%#08x", d.Setup.Pattern)},
		[2]string{"Socket", d.Setup.Socket},
		[2]string{"Host", fmt.Sprintf("%s (%s/%s, %s)", d.SystemInfo.Hostname, d.SystemInfo.OS, d.SystemInfo.Architecture, d.SystemInfo.CPUModel)},
	)

	for _, r := range rows {
		if _, err := fmt.Fprintf(tw, "%s:\t%s\n", r[0], r[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// HTML writes a standalone HTML report.
func (g *Generator) HTML(w io.Writer, d Data) error {
	tmpl, err := loadHTMLTemplate()
	if err != nil {
		return err
	}
	if err := tmpl.Execute(w, d); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

// loadHTMLTemplate parses the HTML report template
func loadHTMLTemplate() (*template.Template, error) {
	funcMap := template.FuncMap{
		"formatTime": func(t time.Time) string {
			return t.Format("2006-01-02 15:04:05")
		},
		"formatDuration": formatDuration,
		"statusClass": func(success bool) string {
			if success {
				return "success"
			}
			return "failure"
		},
		"statusText": statusText,
		"bitIndex":   tester.BitIndex,
	}

	tmpl, err := template.New("report").Funcs(funcMap).Parse(htmlTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return tmpl, nil
}

func statusText(success bool) string {
	if success {
		return "PASSED"
	}
	return "FAILED"
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2f seconds", d.Seconds())
}

// htmlTemplate is the default HTML report template
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>DRAM Test Report - {{.Summary.Chip}}</title>
    <style>
        body { font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; color: #333; max-width: 900px; margin: 0 auto; padding: 20px; }
        .status { display: inline-block; padding: 5px 15px; border-radius: 4px; font-weight: bold; color: white; }
        .status.success { background-color: #10B981; }
        .status.failure { background-color: #EF4444; }
        table { width: 100%; border-collapse: collapse; margin: 20px 0; }
        th, td { padding: 8px; text-align: left; border-bottom: 1px solid #e0e0e0; }
        th { background-color: #f8f9fa; color: #666; }
        .footer { margin-top: 40px; color: #666; font-size: 0.9em; text-align: center; }
    </style>
</head>
<body>
    <h1>DRAM Test Report</h1>
    <p>Chip: {{.Summary.Chip}} | Status: <span class="status {{statusClass .Passed}}">{{statusText .Passed}}</span></p>

    <h2>Session</h2>
    <table>
        <tr><th>Started</th><td>{{formatTime .Summary.Start}}</td></tr>
        <tr><th>Duration</th><td>{{formatDuration (.Summary.End.Sub .Summary.Start)}}</td></tr>
        <tr><th>Runs</th><td>{{.Summary.Runs}} ({{.Summary.Passes}} passed, {{.Summary.Failures}} failed)</td></tr>
        <tr><th>Pass streak</th><td>{{.Summary.Streak}}</td></tr>
        <tr><th>Restarts</th><td>{{.Summary.Restarts}}</td></tr>
        {{if and .Summary.Runs (not .Summary.Last.Passed)}}
        <tr><th>Failed bits</th><td>{{.Summary.Last.FailedBits}}</td></tr>
        <tr><th>Last failure</th><td>row {{.Summary.Last.Row}}, col {{.Summary.Last.Col}} (bit {{printf "%X" (bitIndex .Summary.Last)}})</td></tr>
        {{end}}
    </table>

    <h2>Setup</h2>
    <table>
        <tr><th>Clock</th><td>{{.Setup.Clock}}</td></tr>
        <tr><th>Speed grade</th><td>{{.Setup.Grade}}</td></tr>
        <tr><th>Timings</th><td>{{.Setup.Profile}}</td></tr>
        <tr><th>Pattern</th><td>{{printf "%#08x" .Setup.Pattern}}</td></tr>
        <tr><th>Socket</th><td>{{.Setup.Socket}}</td></tr>
    </table>

    <h2>Host</h2>
    <table>
        <tr><th>Hostname</th><td>{{.SystemInfo.Hostname}}</td></tr>
        <tr><th>OS</th><td>{{.SystemInfo.OS}} ({{.SystemInfo.Architecture}})</td></tr>
        <tr><th>CPU</th><td>{{.SystemInfo.CPUModel}} ({{.SystemInfo.CPUCores}} cores)</td></tr>
        <tr><th>Memory</th><td>{{.SystemInfo.TotalMemory}}</td></tr>
    </table>

    <div class="footer">Generated on {{formatTime .GeneratedAt}}</div>
</body>
</html>
`
