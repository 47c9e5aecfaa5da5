package container

import (
	"fmt"

	"unidss/adapters/excel"
	"unidss/adapters/llm"
	"unidss/ai"
	"unidss/app"
	"unidss/internal"
	"unidss/internal/config"
	"unidss/internal/testkit"
	"unidss/internal/usage"
	"unidss/ports"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// LLM is nil when no API key is configured
	LLM      ports.LLMClient
	Prompts  *ai.PromptManager
	Insights *app.InsightService
	Usage    *usage.Tracker

	TestKit   *testkit.TestKit
	Columns   excel.Columns
	Dashboard *app.Dashboard
}

// New builds every component from the configuration
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	logger := internal.NewLogger(internal.ParseLogLevel(cfg.Logging.Level), cfg.Logging.Format)
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Prompts: ai.NewPromptManager(cfg.AI.PromptsDir),
		TestKit: testkit.NewTestKitWithFile(cfg.Data.SampleDataFile, logger),
		Columns: cfg.Data.Columns,
	}

	if cfg.AI.Enabled() {
		client, err := llm.NewClient(llm.Config{
			APIKey:      cfg.AI.OpenAIKey,
			BaseURL:     cfg.AI.BaseURL,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		c.LLM = client
	} else {
		logger.Warn("OPENAI_API_KEY is not set; AI insights will show the fallback message")
	}

	c.Usage = usage.NewTracker(0, logger)
	c.Insights = app.NewInsightService(c.LLM, c.Prompts, app.InsightConfig{
		Model:     cfg.AI.Model,
		MaxTokens: cfg.AI.MaxTokens,
	}, logger.With("component", "insights")).WithUsageTracker(c.Usage)
	c.Dashboard = app.NewDashboard(cfg.Rules, c.Insights, logger.With("component", "dashboard"))

	return c, nil
}

// Close flushes the logger
func (c *Container) Close() error {
	if c.Logger == nil {
		return nil
	}
	_ = c.Logger.Sync()
	return nil
}
