// Package main provides the pagetrack CLI for replaying events against a
// collection endpoint and inspecting configuration.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"

	"github.com/jdziat/pagetrack-go"
	pkgconfig "github.com/jdziat/pagetrack-go/pkg/config"
)

const (
	version = "1.0.0"
	timeout = 30 * time.Second
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "send":
		err = runSend(ctx, args)
	case "pixel":
		err = runPixel(ctx, args)
	case "config":
		err = runConfig(args)
	case "version", "--version", "-v":
		fmt.Printf("pagetrack version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if errors.Is(err, pagetrack.ErrDisabled) {
		fmt.Fprintf(os.Stderr, "%s is set, nothing sent\n", pkgconfig.EnvDisabled)
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// commonFlags are shared by every command that builds a collector.
type commonFlags struct {
	configPath string
	host       string
	codec      string
	gzip       bool
	debug      bool
	timeout    time.Duration
	page       pagetrack.Page
}

func (f *commonFlags) add(fs *pflag.FlagSet) {
	fs.StringVarP(&f.configPath, "config", "c", "", "config file (default: search for .pagetrack.yaml upward)")
	fs.StringVar(&f.host, "host", "", "collection host, overrides the config file")
	fs.StringVar(&f.codec, "codec", "", "wire format: json or cbor")
	fs.BoolVar(&f.gzip, "gzip", false, "gzip batch bodies")
	fs.BoolVar(&f.debug, "debug", false, "log collector activity to stderr")
	fs.DurationVar(&f.timeout, "timeout", timeout, "overall deadline for sending")
	fs.StringVar(&f.page.Path, "page", "/", "page path stamped on events")
	fs.StringVar(&f.page.Search, "search", "", "page query string stamped on events")
	fs.StringVar(&f.page.Referrer, "referrer", "", "referrer stamped on events")
}

// options turns the flags that were set into collector options, so unset
// flags leave the file and environment values alone.
func (f *commonFlags) options(fs *pflag.FlagSet) []pagetrack.Option {
	opts := []pagetrack.Option{pagetrack.WithPage(f.page)}
	if fs.Changed("host") {
		opts = append(opts, pagetrack.WithHost(f.host))
	}
	if fs.Changed("codec") {
		opts = append(opts, pagetrack.WithCodec(f.codec))
	}
	if fs.Changed("gzip") {
		opts = append(opts, pagetrack.WithGzip(f.gzip))
	}
	if fs.Changed("debug") {
		opts = append(opts, pagetrack.WithDebug(f.debug))
	}
	return opts
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("pagetrack "+name, pflag.ContinueOnError)
	fs.SortFlags = false
	return fs
}

func printUsage() {
	fmt.Println(`pagetrack - send page interaction events to a collection endpoint

Usage:
  pagetrack <command> [flags]

Commands:
  send     Replay JSONL events through a collector
  pixel    Fire a page-view pixel
  config   Print the resolved configuration
  version  Print version information
  help     Show this help message

Run "pagetrack <command> --help" for the flags of a command.

Environment Variables:
  PAGETRACK_HOST            Collection host, e.g. https://collect.example.com
  PAGETRACK_EVENT_PATH      Batch endpoint path (default /bvsdt)
  PAGETRACK_PIXEL_PATH      Fallback pixel path (default /bvsdt.gif)
  PAGETRACK_PAGE_VIEW_PATH  Page-view pixel path (default /bvsarea.gif)
  PAGETRACK_FLUSH_INTERVAL  Timer flush period (default 5s)
  PAGETRACK_CODEC           json or cbor
  PAGETRACK_GZIP            Set to "true" to gzip batches
  PAGETRACK_SESSION_DB      SQLite file holding the session identifier
  PAGETRACK_DEBUG           Set to "true" for debug logging
  PAGETRACK_DISABLED        Set to "true" to send nothing

Configuration:
  Create .pagetrack.yaml or .pagetrack.jsonc in the working directory
  or any parent directory.`)
}
