package server

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/blocksmith-dev/blocksmith/internal/models"
)

var shellTemplate = template.Must(template.New("shell").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>blocksmith dev</title>
<style>
  body { font-family: system-ui, sans-serif; margin: 0; display: flex; height: 100vh; }
  nav { width: 260px; border-right: 1px solid #ddd; overflow-y: auto; padding: 12px; }
  nav h2 { font-size: 13px; text-transform: uppercase; color: #888; margin: 12px 0 4px; }
  nav a { display: block; padding: 6px 8px; border-radius: 4px; color: #222; text-decoration: none; }
  nav a:hover { background: #f0f0f0; }
  main { flex: 1; }
  iframe { width: 100%; height: 100%; border: 0; }
  .empty { padding: 40px; color: #888; }
</style>
</head>
<body>
<nav>
  <h2>Blocks</h2>
  {{range .Blocks}}<a href="?resource={{.Name}}">{{.DisplayName}}</a>{{end}}
  <h2>Templates</h2>
  {{range .Templates}}<a href="?resource={{.Name}}">{{.DisplayName}}</a>{{end}}
</nav>
<main>
  {{if .PreviewURL}}<iframe src="{{.PreviewURL}}{{if .Selected}}?resource={{.Selected}}{{end}}"></iframe>
  {{else}}<div class="empty">No bundler is running. Configure dev.bundlerCommand to render previews here.</div>{{end}}
</main>
<script>
  const ws = new WebSocket("ws://" + location.host + "/events");
  ws.onmessage = function (msg) {
    const ev = JSON.parse(msg.data);
    if (ev.type === "content-updated" || ev.type === "config-updated") {
      const frame = document.querySelector("iframe");
      if (frame) frame.contentWindow.postMessage(ev, "*");
    }
  };
</script>
</body>
</html>
`))

// handleShell serves the preview shell page at /.
func (s *DevServer) handleShell(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	var blocks, templates []*models.Resource
	for _, res := range s.session.Resources() {
		if res.Kind == models.KindTemplate {
			templates = append(templates, res)
		} else {
			blocks = append(blocks, res)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := shellTemplate.Execute(w, map[string]interface{}{
		"Blocks":     blocks,
		"Templates":  templates,
		"PreviewURL": s.previewURL,
		"Selected":   r.URL.Query().Get("resource"),
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to render shell: %v", err), http.StatusInternalServerError)
	}
}
