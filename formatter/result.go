package formatter

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/fatih/color"

	"github.com/gnolang/opsem/internal/ir"
	"github.com/gnolang/opsem/internal/opsem"
)

var (
	headerStyle  = color.New(color.FgYellow, color.Bold)
	fileStyle    = color.New(color.FgCyan, color.Bold)
	lineStyle    = color.New(color.FgHiBlue, color.Bold)
	warningStyle = color.New(color.FgHiYellow, color.Bold)
	noteStyle    = color.New(color.FgGreen, color.Bold)
	noStyle      = color.New(color.FgWhite)
)

// Report is one run of the semantics over a path of a function.
type Report struct {
	Filename string
	Function string
	Path     []*ir.Block
	Result   *opsem.Result
}

type reportData struct {
	Filename  string
	Function  string
	Path      string
	Side      []string
	Bindings  [][2]string
	Approx    []string
	Globals   []string
	ErrorFlag []string
	Width     int
}

const reportTemplate = `{{header "path" .Filename .Function .Path}}
{{section "side conditions" (len .Side)}}
{{numbered .Side .Width -}}
{{- if .Bindings}}
{{section "bindings" (len .Bindings)}}
{{bindings .Bindings -}}
{{- end}}
{{- if .ErrorFlag}}
{{section "error flags" (len .ErrorFlag)}}
{{list .ErrorFlag -}}
{{- end}}
{{- if .Approx}}
{{warning "approximated" (len .Approx)}}
{{list .Approx -}}
{{- end}}
{{- if .Globals}}
{{section "globals" (len .Globals)}}
{{list .Globals -}}
{{- end}}
`

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"header":   header,
	"section":  section,
	"warning":  warning,
	"numbered": numbered,
	"bindings": bindings,
	"list":     list,
}).Parse(reportTemplate))

// FormatReport renders r as human readable text.
func FormatReport(r Report) string {
	res := r.Result
	f := res.Factory()

	data := reportData{
		Filename: r.Filename,
		Function: r.Function,
		Width:    len(fmt.Sprint(len(res.Side))),
	}

	names := make([]string, len(r.Path))
	for i, bb := range r.Path {
		names[i] = bb.Name()
		if flag, ok := res.ErrorFlags[bb]; ok && !containsFlag(data.ErrorFlag, bb.Name()) {
			data.ErrorFlag = append(data.ErrorFlag, bb.Name()+": "+f.String(flag))
		}
	}
	data.Path = strings.Join(names, " -> ")

	for _, e := range res.Side {
		data.Side = append(data.Side, f.String(e))
	}
	for _, kv := range res.Bindings() {
		data.Bindings = append(data.Bindings, [2]string{f.String(kv[0]), f.String(kv[1])})
	}
	for _, v := range res.Approximations {
		data.Approx = append(data.Approx, v.Ident())
	}
	for _, g := range res.Globals {
		data.Globals = append(data.Globals, g.String())
	}

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Error formatting report: %v", err)
	}
	return buf.String()
}

func containsFlag(flags []string, block string) bool {
	for _, fl := range flags {
		if strings.HasPrefix(fl, block+": ") {
			return true
		}
	}
	return false
}

func header(kind, filename, function, path string) string {
	s := headerStyle.Sprintf("%s: ", kind)
	s += fileStyle.Sprintf("%s", filename)
	s += noStyle.Sprintf(" @%s\n", function)
	s += lineStyle.Sprint(" --> ")
	s += noStyle.Sprint(path)
	return s
}

func section(title string, n int) string {
	return headerStyle.Sprintf("%s (%d):", title, n)
}

func warning(title string, n int) string {
	return warningStyle.Sprintf("%s (%d):", title, n)
}

func numbered(items []string, width int) string {
	if len(items) == 0 {
		return noteStyle.Sprint("  (none)\n")
	}
	var sb strings.Builder
	for i, it := range items {
		sb.WriteString(lineStyle.Sprintf("%*d | ", width+2, i+1))
		sb.WriteString(noStyle.Sprintf("%s\n", it))
	}
	return sb.String()
}

func bindings(kvs [][2]string) string {
	width := 0
	for _, kv := range kvs {
		width = max(width, len(kv[0]))
	}
	var sb strings.Builder
	for _, kv := range kvs {
		sb.WriteString(fileStyle.Sprintf("  %-*s", width, kv[0]))
		sb.WriteString(lineStyle.Sprint(" = "))
		sb.WriteString(noStyle.Sprintf("%s\n", kv[1]))
	}
	return sb.String()
}

func list(items []string) string {
	var sb strings.Builder
	for _, it := range items {
		sb.WriteString(noStyle.Sprintf("  %s\n", it))
	}
	return sb.String()
}
