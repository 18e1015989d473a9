package http

import (
	"embed"
	"encoding/json"
	"html/template"

	"github.com/layer-3/sfa-farcaster/core"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

const indexTemplate = "index.html"

// View is the data the demo page renders
type View struct {
	Session *core.Session

	// Pending sign-in, set while the relay channel is open
	SignInURL string

	// Error flags a failed sign-in
	Error bool

	// Output is the last action's result as indented JSON
	Output string

	KeyState      string
	ChainName     string
	ExplorerURL   string
	DemoMessage   string
	DemoRecipient string
	DemoAmount    string
}

// consoleOutput renders values the way the page's output region shows them
func consoleOutput(args ...any) string {
	out, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(out)
}
