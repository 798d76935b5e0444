package main

import (
	"context"
	"fmt"

	"github.com/jdziat/pagetrack-go"
)

func runPixel(ctx context.Context, args []string) error {
	var flags commonFlags
	fs := newFlagSet("pixel")
	flags.add(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := pagetrack.NewFromFile(flags.configPath, flags.options(fs)...)
	if err != nil {
		return err
	}
	if !c.PageView() {
		c.Close(ctx)
		return fmt.Errorf("no page view endpoint configured")
	}
	session := c.SessionID()

	ctx, cancel := context.WithTimeout(ctx, flags.timeout)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		return err
	}
	if n := c.Stats().AsyncError.Total; n > 0 {
		return fmt.Errorf("page view pixel failed")
	}
	fmt.Printf("page view sent for %s (session %s)\n", flags.page.Path, session)
	return nil
}
