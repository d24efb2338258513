package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"time"
)

var funcMap = template.FuncMap{
	"fmtTime": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format("2006-01-02 15:04:05 UTC")
	},
}

// ── Panel ─────────────────────────────────────────────────────────────────────

const tmplPanel = `
{{define "row-open"}}<div style="color:#ffffff;padding-top:15px;padding-bottom:15px;border-top: 1px solid #888888;"><table style="width:100%;" cellspacing="1" cellpadding="1"><tr>{{end}}
{{define "row-close"}}</tr></table></div>{{end}}
{{define "badge"}}<div class="{{.Class}}" style="background-color:{{.Color}}; border-radius:35px;width:35px;height:35px;line-height:35px;text-align:center;font-size:10px;">{{.Count}}</div>{{end}}
{{define "panel"}}<div style="color:#ffffff;padding-top:15px;padding-bottom:15px;"><table style="width:100%;" cellspacing="1" cellpadding="1"><tr><td style="width:50px;"><div>{{index .Header 0}}</div></td><td><div>{{index .Header 1}}</div></td><td style="width:100px;"><div>{{index .Header 2}}</div></td><td style="width:100px;"><div>{{index .Header 3}}</div></td></tr></table></div>
{{- range .Channels}}
{{template "row-open"}}<td style="width:50px;vertical-align:top;"><div>{{template "badge" .Badge}}</div></td><td style="vertical-align:top;"><div><div><span>Channel </span><span>{{.ChannelID}}</span></div><div><span style="color:#888888;">Controller: </span><span>{{.Controller}}</span></div><div><span style="color:#888888;">Device: </span><span>{{.Device}}</span></div><div><span style="color:#888888;">Type: </span><span>{{.Type}}</span></div><div><span style="color:#888888;">Call Home: </span><span>{{.CallHome}}</span></div><div><span style="color:#888888;">Number of Sessions: </span><span>{{.Sessions}}</span></div></div></td><td style="width:100px;vertical-align:top;"><div>{{.BytesIn}} B</div></td><td style="width:100px;vertical-align:top;"><div>{{.BytesOut}} B</div></td>{{template "row-close"}}
{{- range .SessionBlocks}}
{{template "row-open"}}<td style="width:100px;vertical-align:top;"><div style="padding-left:50px;">{{template "badge" .Badge}}</div></td><td style="vertical-align:top;"><div><div><span>Session </span><span>{{.SessionID}}</span></div><div><span style="color:#888888;">Port: </span><span>{{.Port}}</span></div></div></td><td style="width:100px;vertical-align:top;"><div>{{.BytesIn}} B</div></td><td style="width:100px;vertical-align:top;"><div>{{.BytesOut}} B</div></td>{{template "row-close"}}
{{- end}}
{{- end}}
{{end}}`

// ── Page ──────────────────────────────────────────────────────────────────────

const tmplPage = `
{{define "page"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>{{.Title}}</title>
<style>
*{box-sizing:border-box;margin:0;padding:0}
body{font-family:sans-serif;background:#2b2b2b;color:#ffffff;font-size:13px;line-height:1.5}
nav{background:#1f1f1f;border-bottom:1px solid #888888;padding:8px 16px;display:flex;gap:16px;align-items:center}
nav .brand{font-weight:700;font-size:15px}
nav .meta{color:#888888;font-size:11px;margin-left:auto}
nav button{background:#337ab7;border:none;color:#fff;padding:4px 12px;border-radius:4px;cursor:pointer;font-size:12px}
main{padding:16px}
</style>
</head>
<body>
<nav><span class="brand">{{.Title}}</span><button id="refresh" type="button">Refresh</button><span class="meta">{{.Channels}} channels · {{.Sessions}} sessions · rendered {{fmtTime .RenderedAt}}</span></nav>
<main><div id="{{.ContainerID}}">{{.Panel}}</div></main>
<script>
document.getElementById("refresh").addEventListener("click", function () {
  fetch("/api/channels/refresh", {method: "POST"})
    .then(function (r) { return r.json(); })
    .then(function (body) { if (body.success) { window.location.reload(); } });
});
</script>
</body>
</html>
{{end}}`

var templates = template.Must(template.New("usc").Funcs(funcMap).Parse(tmplPanel + tmplPage))

// HTML executes the panel template over the fragment
func (f *Fragment) HTML() (template.HTML, error) {
	var buf bytes.Buffer
	if err := f.Execute(&buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// Execute writes the panel markup to w
func (f *Fragment) Execute(w io.Writer) error {
	if err := templates.ExecuteTemplate(w, "panel", f); err != nil {
		return fmt.Errorf("render panel: %w", err)
	}
	return nil
}

// PageData is the full dashboard page around an already rendered panel
type PageData struct {
	Title       string
	ContainerID string
	Panel       template.HTML
	Channels    int
	Sessions    int
	RenderedAt  time.Time
}

// WritePage writes the standalone dashboard page
func WritePage(w io.Writer, data PageData) error {
	if data.Title == "" {
		data.Title = "USC"
	}
	if data.ContainerID == "" {
		data.ContainerID = "channelPanel"
	}
	if err := templates.ExecuteTemplate(w, "page", data); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}
