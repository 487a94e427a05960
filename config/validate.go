package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Validate checks that c can drive a project: a non-empty script whose
// commands parse as shell, compilable ignore patterns and a usable
// build_timeout.
func Validate(c *Config) error {
	script, err := c.Script()
	if errors.Is(err, ErrKeyNotFound) {
		return fmt.Errorf("%w: no script configured", ErrConfigMalformed)
	}
	if err != nil {
		return err
	}
	if len(script) == 0 {
		return fmt.Errorf("%w: script is empty", ErrConfigMalformed)
	}

	parser := syntax.NewParser()
	for _, command := range script {
		if strings.TrimSpace(command) == "" {
			return fmt.Errorf("%w: script contains an empty command", ErrConfigMalformed)
		}
		if _, err := parser.Parse(strings.NewReader(command), ""); err != nil {
			return fmt.Errorf("%w: script command %q: %v", ErrConfigMalformed, command, err)
		}
	}

	patterns, err := c.Ignore()
	if err != nil {
		return err
	}
	for _, p := range patterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("%w: ignore pattern %q: %v", ErrConfigMalformed, p, err)
		}
	}

	if _, err := c.BuildTimeout(); err != nil {
		return err
	}
	return nil
}
