package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/vidasaras/reactive/cmd/reactive/commands"
)

// Version information (can be overridden at build time with -ldflags)
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "render":
		err = commands.Render(args)
	case "serve":
		err = commands.Serve(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("reactive version %s\n", version)
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				rev := setting.Value
				if len(rev) > 12 {
					rev = rev[:12]
				}
				fmt.Printf("commit: %s\n", rev)
			}
		}
	}
}

func printUsage() {
	fmt.Println(`reactive - server-hosted reactive templates

Usage:
  reactive render -template FILE -state FILE [-out FILE]
      Render a directive template against a YAML or JSON state file.

  reactive render -page FILE -state FILE [-out FILE]
      Render a full HTML page: templated elements are expanded in place.

  reactive serve -page FILE [-state FILE] [-addr HOST:PORT]
      Serve an HTML page live over HTTP and WebSocket.

  reactive version
      Print version information.

Configuration is read from ~/.config/reactive/config.yaml.`)
}
