package health

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// dependencyOrder is the row order of the connectivity table.
var dependencyOrder = []string{"database", "redis", "chain", "stripe"}

type dashboardRow struct {
	Name   string
	Status string
	OK     bool
	Ping   string
	Note   string
}

type dashboardView struct {
	Healthy bool
	Uptime  string
	Runtime RuntimeInfo
	Traffic TrafficInfo
	Last    string
	Latency string
	Rows    []dashboardRow
}

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta http-equiv="refresh" content="15">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Unicarbon · Settlement API Status</title>
  <style>
    body { font-family: system-ui, sans-serif; background: #F8F9FA; color: #132A26; max-width: 860px; margin: 40px auto; padding: 0 20px; }
    h1 { font-size: 32px; margin: 0 0 4px; }
    .issue { color: #B91C1C; }
    .muted { color: #64748b; font-size: 14px; }
    table { width: 100%; border-collapse: collapse; margin: 24px 0; background: #fff; }
    th, td { text-align: left; padding: 10px 14px; border-bottom: 1px solid #eef1f4; font-size: 14px; }
    th { font-size: 11px; text-transform: uppercase; letter-spacing: 1px; color: #94a3b8; }
    .ok { color: #0F766E; font-weight: 700; }
    .err { color: #EF4444; font-weight: 700; }
    code { font-size: 13px; }
  </style>
</head>
<body>
  {{if .Healthy}}<h1>All Systems Operational</h1>{{else}}<h1 class="issue">System Issues Detected</h1>{{end}}
  <p class="muted">Uptime {{.Uptime}} · {{.Runtime.Goroutines}} goroutines · heap {{.Runtime.Memory.HeapUsed}} MB · {{.Runtime.GoVersion}} {{.Runtime.Platform}}</p>

  <table>
    <tr><th>Dependency</th><th>Status</th><th>Ping</th><th></th></tr>
    {{range .Rows}}<tr><td>{{.Name}}</td><td class="{{if .OK}}ok{{else}}err{{end}}">{{.Status}}</td><td>{{.Ping}}</td><td>{{.Note}}</td></tr>
    {{end}}
  </table>

  <table>
    <tr><th>Requests</th><th>Succeeded</th><th>Failed</th><th>Success rate</th><th>Avg latency</th></tr>
    <tr><td>{{.Traffic.TotalRequests}}</td><td>{{.Traffic.SuccessCount}}</td><td>{{.Traffic.FailedCount}}</td><td>{{.Traffic.SuccessRate}}%</td><td>{{.Latency}}</td></tr>
  </table>
  <p class="muted">Last request: <code>{{.Last}}</code></p>
  <p class="muted"><a href="/health/json">/health/json</a> · <a href="/health/errors">/health/errors</a> · <a href="/metrics">/metrics</a></p>
</body>
</html>`))

// RenderDashboardHTML returns the status page served at GET /.
func RenderDashboardHTML(health CollectResult) string {
	view := dashboardView{
		Healthy: health.Status == "ok",
		Uptime:  (time.Duration(health.Runtime.UptimeSeconds) * time.Second).String(),
		Runtime: health.Runtime,
		Traffic: health.Traffic,
		Last:    "-",
		Latency: "-",
	}
	if avg, ok := health.Traffic.AvgResponseTime.(string); ok {
		view.Latency = avg + " ms"
	}
	if m, ok := health.Traffic.LastRequest.(map[string]interface{}); ok {
		view.Last = fmt.Sprintf("%v %v from %v", m["method"], m["path"], m["ip"])
	}
	for _, name := range dependencyOrder {
		dep, ok := health.Dependencies[name]
		if !ok {
			continue
		}
		row := dashboardRow{Name: name, Status: dep.Status, Ping: "-"}
		switch dep.Status {
		case statusConnected, "reachable", statusUnconfigured:
			row.OK = true
		}
		if ms, ok := dep.PingMs.(*int64); ok && ms != nil {
			row.Ping = fmt.Sprintf("%d ms", *ms)
		}
		if d, ok := dep.Detail.(map[string]uint64); ok {
			row.Note = fmt.Sprintf("#%d", d["blockNumber"])
		}
		view.Rows = append(view.Rows, row)
	}

	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, view); err != nil {
		return "<!DOCTYPE html><title>Unicarbon · Settlement API Status</title><p>status unavailable: " + template.HTMLEscapeString(err.Error()) + "</p>"
	}
	return buf.String()
}
