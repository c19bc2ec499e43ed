package commands

import (
	"flag"
	"fmt"
	"os"

	"github.com/vidasaras/reactive"
)

// Render executes the render subcommand: evaluate a template or a full
// HTML page against a state file and print the result.
func Render(args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	templateFile := fs.String("template", "", "template fragment to render")
	pageFile := fs.String("page", "", "full HTML page to render")
	stateFile := fs.String("state", "", "YAML or JSON state file")
	outFile := fs.String("out", "", "output file (default stdout)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: reactive render -template FILE [-state FILE] [-out FILE]")
		fmt.Fprintln(os.Stderr, "       reactive render -page FILE [-state FILE] [-out FILE]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	if (*templateFile == "") == (*pageFile == "") {
		fs.Usage()
		return fmt.Errorf("exactly one of -template or -page is required")
	}

	state := map[string]any{}
	if *stateFile != "" {
		loaded, err := loadState(*stateFile)
		if err != nil {
			return err
		}
		state = loaded
	}

	if *templateFile != "" {
		return renderTemplate(*templateFile, state, *outFile)
	}
	return renderPage(*pageFile, state, *outFile)
}

func renderTemplate(path string, state map[string]any, out string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read template file: %w", err)
	}

	tmpl := reactive.Compile(string(src))
	for _, diag := range tmpl.Diagnostics() {
		fmt.Fprintf(os.Stderr, "warning: %s\n", diag)
	}

	return writeOutput(out, tmpl.Render(state))
}

func renderPage(path string, state map[string]any, out string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read page file: %w", err)
	}

	doc, err := reactive.ParseDocument(string(src))
	if err != nil {
		return fmt.Errorf("parse page: %w", err)
	}

	engine, err := reactive.NewEngine(reactive.NewStore(state), doc)
	if err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	defer engine.Close()

	return writeOutput(out, doc.Render())
}
