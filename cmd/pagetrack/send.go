package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jdziat/pagetrack-go"
	"github.com/jdziat/pagetrack-go/pkg/sender"
)

// replayEvent is one line of a send input file.
type replayEvent struct {
	Type string `json:"event_type"`
	Data any    `json:"data"`
}

func runSend(ctx context.Context, args []string) error {
	var flags commonFlags
	var file string
	var hide bool

	fs := newFlagSet("send")
	fs.StringVarP(&file, "file", "f", "-", "JSONL file of {\"event_type\":..., \"data\":...} lines, - for stdin")
	fs.BoolVar(&hide, "hide", false, "signal page hide after the last event, forcing a keepalive flush")
	flags.add(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	in := io.Reader(os.Stdin)
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	events, err := readEvents(in)
	if err != nil {
		return err
	}

	opts := flags.options(fs)
	opts = append(opts, pagetrack.WithOnBatch(func(r sender.Result) {
		status := fmt.Sprintf("status=%d", r.StatusCode)
		if r.Err != nil {
			status = fmt.Sprintf("error=%q fallback=%t", r.Err.Error(), r.Fallback)
		}
		fmt.Fprintf(os.Stderr, "batch events=%d bytes=%d transport=%s forced=%t %s\n",
			r.EventCount, r.Bytes, r.Transport, r.Forced, status)
	}))

	c, err := pagetrack.NewFromFile(flags.configPath, opts...)
	if err != nil {
		return err
	}

	for _, e := range events {
		c.Track(e.Type, e.Data)
	}
	if hide {
		c.PageHide()
	}

	ctx, cancel := context.WithTimeout(ctx, flags.timeout)
	defer cancel()
	closeErr := c.Close(ctx)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c.Stats()); err != nil {
		return err
	}
	return closeErr
}

// readEvents parses JSONL input. Blank lines and lines starting with #
// are skipped.
func readEvents(r io.Reader) ([]replayEvent, error) {
	var events []replayEvent
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var e replayEvent
		if err := json.Unmarshal([]byte(text), &e); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if e.Type == "" {
			return nil, fmt.Errorf("line %d: missing event_type", line)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
