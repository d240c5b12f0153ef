//go:build integration

package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"media-relay/cmd"
	"media-relay/infrastructure/config"

	"github.com/cucumber/godog"
)

type setupContext struct {
	tempDir         string
	configPath      string
	setupCancelled  bool
	originalContent string
	err             error
}

// MockPrompter implements cmd.Prompter for testing
type MockPrompter struct {
	inputResponses   []string
	confirmResponses []bool
	inputIndex       int
	confirmIndex     int
}

func NewMockPrompter(inputs []string, confirms []bool) *MockPrompter {
	return &MockPrompter{
		inputResponses:   inputs,
		confirmResponses: confirms,
	}
}

func (m *MockPrompter) Input(message string, defaultValue string) (string, error) {
	if m.inputIndex >= len(m.inputResponses) {
		if defaultValue != "" {
			return defaultValue, nil
		}
		return "", fmt.Errorf("no more input responses available for message: %s", message)
	}
	response := m.inputResponses[m.inputIndex]
	m.inputIndex++
	return response, nil
}

func (m *MockPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	if m.confirmIndex >= len(m.confirmResponses) {
		return defaultValue, nil
	}
	response := m.confirmResponses[m.confirmIndex]
	m.confirmIndex++
	return response, nil
}

func InitializeSetupScenario(ctx *godog.ScenarioContext) {
	s := &setupContext{}

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		// Create temp directory for each scenario
		tempDir, err := os.MkdirTemp("", "setup-test-*")
		if err != nil {
			return c, err
		}
		*s = setupContext{
			tempDir:    tempDir,
			configPath: filepath.Join(tempDir, "config", "config.yaml"),
		}
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if s.tempDir != "" {
			os.RemoveAll(s.tempDir)
		}
		return c, nil
	})

	ctx.Step(`^no config file exists for setup$`, s.noConfigFileExistsForSetup)
	ctx.Step(`^a config file already exists for setup$`, s.aConfigFileAlreadyExistsForSetup)
	ctx.Step(`^I run the setup command with inputs:$`, s.iRunTheSetupCommandWithInputs)
	ctx.Step(`^I run the setup command with confirmation "([^"]*)"$`, s.iRunTheSetupCommandWithConfirmation)
	ctx.Step(`^a config file should exist$`, s.aConfigFileShouldExist)
	ctx.Step(`^the config should have "([^"]*)" set to "([^"]*)"$`, s.theConfigShouldHaveSetTo)
	ctx.Step(`^the setup should be cancelled$`, s.theSetupShouldBeCancelled)
	ctx.Step(`^the existing config should be unchanged$`, s.theExistingConfigShouldBeUnchanged)
}

func (s *setupContext) noConfigFileExistsForSetup() error {
	return os.MkdirAll(filepath.Dir(s.configPath), 0755)
}

func (s *setupContext) aConfigFileAlreadyExistsForSetup() error {
	if err := os.MkdirAll(filepath.Dir(s.configPath), 0755); err != nil {
		return err
	}

	content := `sink:
  bucket_url: "gs://original-bucket"
  prefix: "original"
google:
  credentials_file: "original-creds.json"
`
	s.originalContent = content
	return os.WriteFile(s.configPath, []byte(content), 0644)
}

func (s *setupContext) iRunTheSetupCommandWithInputs(table *godog.Table) error {
	inputs, confirms := parseInputTable(table)
	prompter := NewMockPrompter(inputs, confirms)

	s.err = cmd.RunSetupWithPrompter(prompter, s.configPath)
	if s.err != nil {
		return fmt.Errorf("setup command failed: %w", s.err)
	}
	return nil
}

func (s *setupContext) iRunTheSetupCommandWithConfirmation(confirmation string) error {
	confirm := strings.ToLower(confirmation) == "y"
	prompter := NewMockPrompter([]string{}, []bool{confirm})

	s.err = cmd.RunSetupWithPrompter(prompter, s.configPath)
	if !confirm {
		s.setupCancelled = true
	}
	return nil
}

// parseInputTable splits prompt answers into free-text inputs and y/n
// confirmations, each kept in table order
func parseInputTable(table *godog.Table) ([]string, []bool) {
	var inputs []string
	var confirms []bool

	for i, row := range table.Rows {
		if i == 0 {
			continue // Skip header row
		}
		value := row.Cells[1].Value

		switch strings.ToLower(value) {
		case "y", "n":
			confirms = append(confirms, strings.ToLower(value) == "y")
		default:
			inputs = append(inputs, value)
		}
	}

	return inputs, confirms
}

func (s *setupContext) aConfigFileShouldExist() error {
	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist at %s", s.configPath)
	}
	return nil
}

func (s *setupContext) theConfigShouldHaveSetTo(key, expected string) error {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	got, err := config.NewManager(cfg, s.configPath).Get(key)
	if err != nil {
		return err
	}
	if got != expected {
		return fmt.Errorf("expected %s %q, got %q", key, expected, got)
	}
	return nil
}

func (s *setupContext) theSetupShouldBeCancelled() error {
	if !s.setupCancelled {
		return fmt.Errorf("expected setup to be cancelled")
	}
	return nil
}

func (s *setupContext) theExistingConfigShouldBeUnchanged() error {
	content, err := os.ReadFile(s.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if string(content) != s.originalContent {
		return fmt.Errorf("config content was changed")
	}
	return nil
}
