//go:build integration

package steps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"media-relay/cmd"
	"media-relay/infrastructure/config"

	"github.com/cucumber/godog"
)

type configContext struct {
	tempDir    string
	configPath string
	cfg        *config.Config
	err        error
}

func InitializeConfigScenario(ctx *godog.ScenarioContext) {
	c := &configContext{}

	ctx.Before(func(gc context.Context, sc *godog.Scenario) (context.Context, error) {
		tempDir, err := os.MkdirTemp("", "config-test-*")
		if err != nil {
			return gc, err
		}
		*c = configContext{
			tempDir:    tempDir,
			configPath: filepath.Join(tempDir, "config.yaml"),
		}
		return gc, nil
	})

	ctx.After(func(gc context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if c.tempDir != "" {
			os.RemoveAll(c.tempDir)
		}
		return gc, nil
	})

	ctx.Step(`^a configuration file containing:$`, c.aConfigurationFileContaining)
	ctx.Step(`^no configuration file exists$`, c.noConfigurationFileExists)
	ctx.Step(`^I load the configuration$`, c.iLoadTheConfiguration)
	ctx.Step(`^I attempt to load the configuration$`, c.iAttemptToLoadTheConfiguration)
	ctx.Step(`^the setting "([^"]*)" should be "([^"]*)"$`, c.theSettingShouldBe)
	ctx.Step(`^I set "([^"]*)" to "([^"]*)"$`, c.iSetTo)
	ctx.Step(`^I attempt to set "([^"]*)" to "([^"]*)"$`, c.iAttemptToSetTo)
	ctx.Step(`^the saved setting "([^"]*)" should be "([^"]*)"$`, c.theSavedSettingShouldBe)
	ctx.Step(`^I should receive an error containing "([^"]*)"$`, c.iShouldReceiveAnErrorContaining)
	ctx.Step(`^I should receive an error about missing configuration$`, c.iShouldReceiveAnErrorAboutMissingConfiguration)
}

func (c *configContext) aConfigurationFileContaining(doc *godog.DocString) error {
	return os.WriteFile(c.configPath, []byte(doc.Content), 0644)
}

func (c *configContext) noConfigurationFileExists() error {
	return nil
}

func (c *configContext) iLoadTheConfiguration() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("unexpected error loading config: %w", err)
	}
	c.cfg = cfg
	return nil
}

func (c *configContext) iAttemptToLoadTheConfiguration() error {
	c.cfg, c.err = config.Load(c.configPath)
	return nil
}

func (c *configContext) theSettingShouldBe(key, expected string) error {
	if c.cfg == nil {
		return fmt.Errorf("config was not loaded")
	}
	var out bytes.Buffer
	if err := cmd.RunConfigGetWithDependencies(c.cfg, c.configPath, key, &out); err != nil {
		return err
	}
	if got := strings.TrimSpace(out.String()); got != expected {
		return fmt.Errorf("expected %s %q, got %q", key, expected, got)
	}
	return nil
}

func (c *configContext) set(key, value string) error {
	if c.cfg == nil {
		if err := c.iLoadTheConfiguration(); err != nil {
			return err
		}
	}
	var out bytes.Buffer
	return cmd.RunConfigSetWithDependencies(c.cfg, c.configPath, key, value, &out)
}

func (c *configContext) iSetTo(key, value string) error {
	return c.set(key, value)
}

func (c *configContext) iAttemptToSetTo(key, value string) error {
	c.err = c.set(key, value)
	return nil
}

func (c *configContext) theSavedSettingShouldBe(key, expected string) error {
	saved, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	got, err := config.NewManager(saved, c.configPath).Get(key)
	if err != nil {
		return err
	}
	if got != expected {
		return fmt.Errorf("expected saved %s %q, got %q", key, expected, got)
	}
	return nil
}

func (c *configContext) iShouldReceiveAnErrorContaining(text string) error {
	if c.err == nil {
		return fmt.Errorf("expected an error but got none")
	}
	if !strings.Contains(c.err.Error(), text) {
		return fmt.Errorf("expected error containing %q, got %q", text, c.err.Error())
	}
	return nil
}

func (c *configContext) iShouldReceiveAnErrorAboutMissingConfiguration() error {
	if c.err == nil {
		return fmt.Errorf("expected an error but got none")
	}
	if !errors.Is(c.err, fs.ErrNotExist) {
		return fmt.Errorf("expected a missing file error, got %v", c.err)
	}
	return nil
}
