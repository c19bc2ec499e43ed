package reactive

import (
	"strings"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

// Fragment minification is optional (WithMinify) and applies to each
// rendered fragment just before it is written back into its element.
// A shared minifier is enough; tdewolff minifiers are safe for
// concurrent use.
var fragmentMinifier = sync.OnceValue(func() *minify.M {
	m := minify.New()
	m.Add("text/html", &html.Minifier{KeepEndTags: true})
	return m
})

// minifyFragment collapses whitespace in a rendered fragment. Failures
// leave the fragment as rendered; minification is cosmetic and must
// never cost a render.
func minifyFragment(markup string) string {
	if !strings.ContainsRune(markup, '<') {
		// Plain text fragment, no markup to parse.
		return strings.Join(strings.Fields(markup), " ")
	}
	out, err := fragmentMinifier().String("text/html", markup)
	if err != nil {
		return markup
	}
	return out
}
