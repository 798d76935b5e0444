package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jdziat/pagetrack-go"
	pkgconfig "github.com/jdziat/pagetrack-go/pkg/config"
)

func runConfig(args []string) error {
	var path string
	fs := newFlagSet("config")
	fs.StringVarP(&path, "config", "c", "", "config file (default: search for .pagetrack.yaml upward)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, found, err := pkgconfig.Load(path)
	if err != nil {
		return err
	}
	if found == "" {
		found = "(none, environment and defaults only)"
	}
	fmt.Fprintf(os.Stderr, "# config file: %s\n", found)
	if pkgconfig.IsDisabled() {
		fmt.Fprintf(os.Stderr, "# %s is set\n", pkgconfig.EnvDisabled)
	}

	cfg := pagetrack.ConfigFromSettings(s)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "# invalid: %v\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "# %s\n", cfg)
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(s)
}
