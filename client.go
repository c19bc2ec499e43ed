package reactive

import (
	_ "embed"
	"strings"
)

//go:embed client/reactive.js
var clientScript string

// ClientScript returns the embedded browser client. Pages served by
// Handler get it injected automatically; callers composing their own
// responses can serve it from any route.
func ClientScript() string {
	return clientScript
}

// injectClientScript places the client script just before </body>, or
// appends it when the markup has no body close tag.
func injectClientScript(page string) string {
	script := "<script>" + clientScript + "</script>"
	lower := strings.ToLower(page)
	if i := strings.LastIndex(lower, "</body>"); i >= 0 {
		return page[:i] + script + page[i:]
	}
	return page + script
}
