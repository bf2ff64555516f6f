package main

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/doodlesbykumbi/okapictl/pkg/config"
)

// promptPassword asks for the login password when none is configured and
// stdin is a terminal.
func promptPassword(cfg *config.Config) error {
	if cfg.Password != "" {
		return nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("no password configured for %s and stdin is not a terminal", cfg.Username)
	}

	fmt.Fprintf(os.Stderr, "Password for %s: ", cfg.Username)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	return cfg.Override("password", string(password))
}
