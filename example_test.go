package pagetrack_test

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jdziat/pagetrack-go"
	"github.com/jdziat/pagetrack-go/pkg/producer"
	"github.com/jdziat/pagetrack-go/pkg/sender"
)

func ExampleNew() {
	c, err := pagetrack.New(
		pagetrack.WithHost("https://collect.example.com"),
		pagetrack.WithPage(pagetrack.Page{Path: "/areas/niagara", Referrer: "https://search.example/"}),
		pagetrack.WithActiveTime(true),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close(context.Background())

	producer.PageLoad(c, 1280, 720)
}

func ExampleCollector_VisibilityChanged() {
	c, err := pagetrack.New(pagetrack.WithHost("https://collect.example.com"))
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close(context.Background())

	// Hiding the page forces a flush through the keepalive transport.
	c.VisibilityChanged(true)
	c.VisibilityChanged(false)
}

func ExampleWithOnBatch() {
	c, err := pagetrack.New(
		pagetrack.WithHost("https://collect.example.com"),
		pagetrack.WithOnBatch(func(r sender.Result) {
			if r.Err != nil {
				fmt.Printf("batch of %d failed, fallback=%t\n", r.EventCount, r.Fallback)
			}
		}),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close(context.Background())
}

func ExampleNewSlogAdapter() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c, err := pagetrack.New(
		pagetrack.WithHost("https://collect.example.com"),
		pagetrack.WithStructuredLogger(pagetrack.NewSlogAdapter(logger).With("app", "areas")),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close(context.Background())
}

func ExampleCollector_Flush() {
	c, err := pagetrack.New(pagetrack.WithHost("https://collect.example.com"))
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close(context.Background())

	c.Track("scroll_75", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Flush(ctx); err != nil {
		log.Printf("flush: %v", err)
	}
}
