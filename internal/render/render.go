// Package render turns analyses into HTML fragments and chart data for
// the insider page. Each fragment targets a fixed element ID.
package render

import (
	"bytes"
	"encoding/json"
	"html/template"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bighogz/insider-vibes/internal/models"
)

// Element IDs on the insider page.
const (
	IDScoreCard     = "insider-score-card"
	IDAlerts        = "insider-alerts"
	IDPatterns      = "insider-patterns"
	IDClusters      = "insider-clusters"
	IDRoleChart     = "insider-role-chart"
	IDTimelineChart = "insider-timeline-chart"
	IDNetwork       = "insider-network"
)

// Page is everything the insider page needs for one ticker.
type Page struct {
	Ticker        string                   `json:"ticker"`
	Fragments     map[string]template.HTML `json:"fragments"`
	RoleChart     BarChart                 `json:"role_chart"`
	TimelineChart LineChart                `json:"timeline_chart"`
	Network       models.Graph             `json:"network"`
}

// Renderer is the presentation contract; HTML is the default.
type Renderer interface {
	Page(a *models.Analysis, g models.Graph) (*Page, error)
	ErrorPanel(err error, retryURL string) (template.HTML, error)
	ComparisonTable(r *models.ComparisonReport) (template.HTML, error)
}

type HTML struct {
	tmpl *template.Template
}

var _ Renderer = (*HTML)(nil)

func New() *HTML {
	return &HTML{tmpl: template.Must(template.New("insider").Funcs(funcs).Parse(templates))}
}

var funcs = template.FuncMap{
	"money":  money,
	"signed": signedMoney,
	"date":   func(t time.Time) string { return t.Format("Jan 2, 2006") },
	"pct":    func(v float64) string { return humanize.FtoaWithDigits(v, 1) + "%" },
	"num":    func(v float64) string { return humanize.FtoaWithDigits(v, 2) },
	"ord":    humanize.Ordinal,
	"slug":   slug,
	"join":   strings.Join,
	"json": func(v interface{}) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}

// slug turns a label like "Very Bullish" into one CSS class token.
func slug(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}

func money(v float64) string {
	return "$" + humanize.Comma(int64(math.Round(math.Abs(v))))
}

func signedMoney(v float64) string {
	if v < 0 {
		return "-" + money(v)
	}
	return "+" + money(v)
}

func (h *HTML) exec(name string, data interface{}) (template.HTML, error) {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func (h *HTML) Page(a *models.Analysis, g models.Graph) (*Page, error) {
	p := &Page{
		Ticker:        a.Ticker,
		Fragments:     make(map[string]template.HTML, 7),
		RoleChart:     RoleChart(a.Transactions),
		TimelineChart: TimelineChart(a.Transactions),
		Network:       g,
	}
	parts := []struct {
		id   string
		data interface{}
	}{
		{IDScoreCard, a},
		{IDAlerts, a.Alerts},
		{IDPatterns, a.Patterns},
		{IDClusters, a.Clusters},
		{IDRoleChart, p.RoleChart},
		{IDTimelineChart, p.TimelineChart},
		{IDNetwork, g},
	}
	for _, part := range parts {
		frag, err := h.exec(part.id, part.data)
		if err != nil {
			return nil, err
		}
		p.Fragments[part.id] = frag
	}
	return p, nil
}

type errorPanel struct {
	Message  string
	RetryURL string
}

// ErrorPanel renders an inline error with a retry link back to retryURL.
// Only same-origin paths get a retry link.
func (h *HTML) ErrorPanel(err error, retryURL string) (template.HTML, error) {
	msg := "Something went wrong."
	if err != nil {
		msg = err.Error()
	}
	if !strings.HasPrefix(retryURL, "/") || strings.HasPrefix(retryURL, "//") {
		retryURL = ""
	}
	return h.exec("error-panel", errorPanel{Message: msg, RetryURL: retryURL})
}

func (h *HTML) ComparisonTable(r *models.ComparisonReport) (template.HTML, error) {
	return h.exec("comparison-table", r)
}

const templates = `
{{define "insider-score-card"}}<div id="insider-score-card" class="score-card sentiment-{{slug .Sentiment.Label}}">
<h3>{{.Ticker}} insider sentiment</h3>
<div class="score">{{.Sentiment.Score}}</div>
<div class="label">{{.Sentiment.Label}}</div>
<dl>
<dt>Overall</dt><dd>{{.OverallScore}}/100</dd>
<dt>Signal</dt><dd>{{.Recommendation}}</dd>
<dt>Purchases</dt><dd>{{.Totals.Purchases}} ({{money .Totals.PurchaseValue}})</dd>
<dt>Sales</dt><dd>{{.Totals.Sales}} ({{money .Totals.SaleValue}})</dd>
<dt>Net</dt><dd>{{signed .Totals.NetValue}}</dd>
<dt>Insiders</dt><dd>{{.Totals.Insiders}}</dd>
</dl>
<p class="period">{{date .From}} to {{date .To}}</p>
</div>{{end}}

{{define "insider-alerts"}}<div id="insider-alerts">
{{- if .}}<ul class="alerts">
{{- range .}}
<li class="alert alert-{{.Severity}}" data-kind="{{.Kind}}">{{.Message}}</li>
{{- end}}
</ul>{{else}}<p class="empty">No alerts.</p>{{end}}
</div>{{end}}

{{define "insider-patterns"}}<div id="insider-patterns" class="pattern-grid">
<div class="pattern{{if .Momentum.Detected}} detected{{end}}" data-pattern="momentum">
<h4>Momentum</h4>
{{- if .Momentum.Detected}}<p>{{.Momentum.Direction}}, {{pct .Momentum.Strength}} of last {{.Momentum.Window}}</p>{{else}}<p>No directional bias</p>{{end}}
</div>
<div class="pattern{{if .Acceleration.Detected}} detected{{end}}" data-pattern="acceleration">
<h4>Acceleration</h4>
{{- if .Acceleration.Detected}}<p>{{.Acceleration.Trend}}: {{num .Acceleration.RecentVelocity}} vs {{num .Acceleration.OlderVelocity}} filings/day</p>{{else}}<p>Stable pace</p>{{end}}
</div>
<div class="pattern{{if .Unusual.Detected}} detected{{end}}" data-pattern="unusual">
<h4>Unusual activity</h4>
{{- if .Unusual.Detected}}<p>{{.Unusual.Anomalies}} above {{money .Unusual.Threshold}}</p>
<ul>{{range .Unusual.Largest}}<li>{{.Insider}} {{signed .NetValue}} on {{date .FilingDate}}</li>{{end}}</ul>{{else}}<p>Nothing unusual</p>{{end}}
</div>
<div class="pattern{{if .Seasonality.Detected}} detected{{end}}" data-pattern="seasonality">
<h4>Seasonality</h4>
{{- if .Seasonality.Detected}}<p>Peaks in {{.Seasonality.PeakMonth}} ({{.Seasonality.PeakCount}} filings)</p>{{else}}<p>No seasonal peak</p>{{end}}
</div>
<div class="pattern{{if .RoleConcentration.Detected}} detected{{end}}" data-pattern="role-concentration">
<h4>Role concentration</h4>
{{- if .RoleConcentration.Detected}}<p>{{.RoleConcentration.DominantRole}}: {{pct .RoleConcentration.Percentage}}</p>{{else}}<p>Spread across roles</p>{{end}}
</div>
</div>{{end}}

{{define "insider-clusters"}}<div id="insider-clusters">
{{- if .Detected}}
{{- range .Clusters}}
<div class="cluster cluster-{{slug (printf "%s" .Direction)}}">
<h4>{{.Direction}}: {{.InsiderCount}} insiders, {{.TransactionCount}} filings</h4>
<p>{{date .StartDate}} to {{date .EndDate}}, {{money .TotalValue}} total, {{money .AverageValuePerInsider}} per insider</p>
<p class="insiders">{{join .Insiders ", "}}</p>
<p class="roles">{{join .InsiderRoles ", "}}</p>
<meter min="0" max="100" value="{{.Confidence}}">{{.Confidence}}</meter>
</div>
{{- end}}
{{- else}}<p class="empty">No coordinated activity.</p>{{end}}
</div>{{end}}

{{define "insider-role-chart"}}<canvas id="insider-role-chart" data-chart="{{json .}}"></canvas>{{end}}

{{define "insider-timeline-chart"}}<canvas id="insider-timeline-chart" data-chart="{{json .}}"></canvas>{{end}}

{{define "insider-network"}}<div id="insider-network" data-graph="{{json .}}">
{{- if .Empty}}<p class="empty">{{.Placeholder}}</p>{{end -}}
</div>{{end}}

{{define "error-panel"}}<div class="error-panel" role="alert">
<p>{{.Message}}</p>
{{- if .RetryURL}}
<a class="retry" href="{{.RetryURL}}" hx-get="{{.RetryURL}}" hx-target="closest .error-panel" hx-swap="outerHTML">Retry</a>
{{- end}}
</div>{{end}}

{{define "comparison-table"}}<table id="insider-comparison" class="comparison">
<thead><tr><th>Ticker</th><th>Sentiment</th><th>Transactions</th><th>Clusters</th><th>Overall</th><th>Signal</th></tr></thead>
<tbody>
{{- range .Summary}}
<tr><td>{{.Ticker}}</td><td>{{.SentimentScore}} {{.SentimentLabel}}</td><td>{{.TransactionCount}}</td><td>{{.ClusterCount}}</td><td>{{.OverallScore}}</td><td>{{.Recommendation}}</td></tr>
{{- end}}
</tbody>
</table>
{{- if .Rankings.BySentiment}}
<ol class="ranking">{{range .Rankings.BySentiment}}<li>{{ord .Rank}} {{.Ticker}}</li>{{end}}</ol>
{{- end}}
{{- if .Failed}}
<p class="failed">Unavailable: {{range $i, $f := .Failed}}{{if $i}}, {{end}}{{$f.Ticker}}{{end}}</p>
{{- end}}{{end}}
`
