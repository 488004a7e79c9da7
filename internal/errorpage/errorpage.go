package errorpage

import (
	"bytes"
	"fmt"
	"html/template"
)

// Data feeds the diagnostic page shown on a failed upstream request.
type Data struct {
	Message string
	Detail  string
}

// Renderer produces the bytes sent verbatim as the HTTP 500 body.
type Renderer interface {
	Render(d Data) []byte
}

type htmlRenderer struct {
	tmpl *template.Template
}

// NewHTML returns the default diagnostic page renderer.
func NewHTML() Renderer {
	return &htmlRenderer{
		tmpl: template.Must(template.New("errorpage").Parse(pageHTML)),
	}
}

func (r *htmlRenderer) Render(d Data) []byte {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, d); err != nil {
		// The template only touches two strings; execution cannot
		// realistically fail, but never send an empty 500 body.
		return []byte(fmt.Sprintf("proxy error: %s\n\n%s\n", d.Message, d.Detail))
	}
	return buf.Bytes()
}

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Portway - Upstream Error</title>
    <style>
        :root {
            --bg: #0a0a0f;
            --surface: #16161f;
            --border: #2a2a3a;
            --text: #f0f0f5;
            --text-dim: #a0a0b0;
            --accent: #6366f1;
            --danger: #ef4444;
        }

        * { box-sizing: border-box; margin: 0; padding: 0; }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
            background: var(--bg);
            color: var(--text);
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
            padding: 24px;
        }

        .card {
            max-width: 720px;
            width: 100%;
            background: var(--surface);
            border: 1px solid var(--border);
            border-radius: 16px;
            padding: 40px;
        }

        .badge {
            display: inline-flex;
            align-items: center;
            gap: 8px;
            padding: 6px 14px;
            border: 1px solid var(--danger);
            border-radius: 100px;
            color: var(--danger);
            font-size: 0.85rem;
            font-weight: 600;
            margin-bottom: 24px;
        }

        h1 {
            font-size: 1.5rem;
            font-weight: 600;
            margin-bottom: 12px;
        }

        .message {
            color: var(--text-dim);
            margin-bottom: 24px;
            line-height: 1.6;
        }

        pre {
            background: var(--bg);
            border: 1px solid var(--border);
            border-radius: 10px;
            padding: 16px;
            font-family: 'SF Mono', Consolas, monospace;
            font-size: 0.85rem;
            color: var(--text-dim);
            overflow-x: auto;
            white-space: pre-wrap;
            word-break: break-word;
        }

        .footer {
            margin-top: 24px;
            font-size: 0.85rem;
            color: var(--text-dim);
        }

        .footer span { color: var(--accent); font-weight: 600; }
    </style>
</head>
<body>
    <div class="card">
        <div class="badge">HTTP 500</div>
        <h1>Upstream request failed</h1>
        <p class="message">{{.Message}}</p>
        <pre>{{.Detail}}</pre>
        <p class="footer">Served by <span>Portway</span>. The listener is still running; retry once the target is reachable.</p>
    </div>
</body>
</html>
`
