package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
)

const indexTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Android Studio releases</title>
<style>
body { font-family: -apple-system, Helvetica, Arial, sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; width: 100%; margin-bottom: 2rem; }
th, td { text-align: left; padding: .3rem .6rem; border-bottom: 1px solid #ddd; font-size: .9rem; }
.badge { padding: 0 .4rem; border-radius: 3px; font-size: .75rem; }
.installed { background: #d8f0d8; }
.active { background: #2e7d32; color: #fff; }
</style>
</head>
<body>
<h1>Android Studio releases</h1>
<p>{{.Total}} releases{{if .FeedVersion}} (feed version {{.FeedVersion}}){{end}}, {{.Installed}} installed{{if .Active}}, active build {{.Active}}{{end}}.</p>
{{range .Channels}}
<h2 id="{{.Name}}">{{.Label}}</h2>
<table>
<thead><tr><th>Name</th><th>Version</th><th>Build</th><th>Date</th><th>Downloads</th><th></th></tr></thead>
<tbody>
{{range .Releases}}<tr>
<td>{{.Name}}</td>
<td>{{.Version}}</td>
<td><code>{{.Build}}</code></td>
<td>{{.Date}}</td>
<td>{{range $i, $d := .Downloads}}{{if $i}}, {{end}}<a href="{{$d.URL}}"{{if $d.SHA256}} title="sha256 {{$d.SHA256}}"{{end}}>{{$d.Label}}</a>{{if $d.Size}} ({{$d.Size}}){{end}}{{end}}</td>
<td>{{if .Active}}<span class="badge active">active</span>{{else if .Installed}}<span class="badge installed">installed</span>{{end}}</td>
</tr>
{{end}}</tbody>
</table>
{{end}}
</body>
</html>
`

var indexTmpl = template.Must(template.New("index").Parse(indexTemplate))

func renderHTML(model *SiteModel) ([]byte, error) {
	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, model); err != nil {
		return nil, fmt.Errorf("failed to execute index template: %w", err)
	}
	return buf.Bytes(), nil
}

func renderJSON(model *SiteModel) ([]byte, error) {
	data, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// formatBytes formats bytes as human-readable size.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
