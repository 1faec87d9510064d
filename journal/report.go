package journal

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"text/template"
	"time"

	"github.com/shopspring/decimal"
)

// RunReport summarizes one finished backtest session.
type RunReport struct {
	RunID      string
	Created    time.Time
	Account    string
	Strategy   string
	Symbols    []string
	Resolution string
	Dataset    string

	Start time.Time
	End   time.Time
	Ticks int

	StartEquity decimal.Decimal
	EndEquity   decimal.Decimal
	MaxDDPct    decimal.Decimal

	// Order counts keyed by final status.
	Orders  map[string]int
	Updates int

	Notes []string
}

func (r RunReport) NetPL() decimal.Decimal {
	return r.EndEquity.Sub(r.StartEquity)
}

func (r RunReport) ReturnPct() decimal.Decimal {
	if r.StartEquity.IsZero() {
		return decimal.Zero
	}
	return r.NetPL().Div(r.StartEquity).Mul(decimal.NewFromInt(100))
}

var reportFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var reportTmpl = template.Must(template.New("report").Funcs(reportFuncs).Parse(reportOrgTemplate))

// WriteOrg renders the report as an Org-mode entry.
func (r RunReport) WriteOrg(w io.Writer) error {
	return reportTmpl.Execute(w, r)
}

// WriteOrgFile renders the report to path.
func (r RunReport) WriteOrgFile(path string) error {
	buf := new(bytes.Buffer)
	if err := r.WriteOrg(buf); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

const reportOrgTemplate = `* BACKTEST: {{.Strategy}} {{range $i, $s := .Symbols}}{{if $i}},{{end}}{{$s}}{{end}} {{.Resolution}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:ACCOUNT:     {{.Account}}
:STRATEGY:    {{.Strategy}}
:RESOLUTION:  {{.Resolution}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{.Start.Format "2006-01-02"}}
:END_DATE:    {{.End.Format "2006-01-02"}}
:TICKS:       {{.Ticks}}
:START_EQ:    {{money .StartEquity}}
:END_EQ:      {{money .EndEquity}}
:NET_PL:      {{money .NetPL}}
:RETURN_PCT:  {{money .ReturnPct}}
:MAX_DD_PCT:  {{money .MaxDDPct}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Orders
| Status | Count |
|--------+-------|
{{- range $status, $n := .Orders }}
| {{$status}} | {{$n}} |
{{- end }}
| updates | {{.Updates}} |
{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`
