// Package config loads solver and session settings from an HCL file. Every
// field has a sensible default so a missing file still yields a runnable
// configuration.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/idea-realm/one-card-limit/internal/game"
)

// Config represents the complete application configuration
type Config struct {
	Game     GameSettings     `hcl:"game,block"`
	Training TrainingSettings `hcl:"training,block"`
	Session  SessionSettings  `hcl:"session,block"`
}

// GameSettings selects the rule set hands are played under
type GameSettings struct {
	DeckSize  int `hcl:"deck_size,optional"`
	Ante      int `hcl:"ante,optional"`
	MaxRaises int `hcl:"max_raises,optional"`
}

// TrainingSettings controls the CFR run
type TrainingSettings struct {
	Iterations      int    `hcl:"iterations,optional"`
	Workers         int    `hcl:"workers,optional"`
	ProgressEvery   int    `hcl:"progress_every,optional"`
	CFRPlus         bool   `hcl:"cfr_plus,optional"`
	BlueprintPath   string `hcl:"blueprint_path,optional"`
	CheckpointPath  string `hcl:"checkpoint_path,optional"`
	CheckpointEvery int    `hcl:"checkpoint_every,optional"`
}

// SessionSettings controls interactive and head-to-head play
type SessionSettings struct {
	Hands          int    `hcl:"hands,optional"`
	StartingStack  int    `hcl:"starting_stack,optional"`
	Seed           int64  `hcl:"seed,optional"`
	HistoryPath    string `hcl:"history_path,optional"`
	ThinkDelayMS   int    `hcl:"think_delay_ms,optional"`
	ListenAddress  string `hcl:"listen_address,optional"`
	DecisionTimeMS int    `hcl:"decision_time_ms,optional"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Game: GameSettings{
			DeckSize:  4,
			Ante:      1,
			MaxRaises: 2,
		},
		Training: TrainingSettings{
			Iterations:      10000,
			Workers:         1,
			BlueprintPath:   "blueprint.json",
			CheckpointEvery: 1000,
		},
		Session: SessionSettings{
			Hands:          20,
			StartingStack:  100,
			ListenAddress:  "localhost:8080",
			DecisionTimeMS: 30000,
		},
	}
}

// Load reads configuration from an HCL file. A missing file is not an error;
// it yields the defaults.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var cfg Config
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()

	if c.Game.DeckSize == 0 {
		c.Game.DeckSize = def.Game.DeckSize
	}
	if c.Game.Ante == 0 {
		c.Game.Ante = def.Game.Ante
	}

	if c.Training.Iterations == 0 {
		c.Training.Iterations = def.Training.Iterations
	}
	if c.Training.Workers == 0 {
		c.Training.Workers = def.Training.Workers
	}
	if c.Training.BlueprintPath == "" {
		c.Training.BlueprintPath = def.Training.BlueprintPath
	}
	if c.Training.CheckpointEvery == 0 {
		c.Training.CheckpointEvery = def.Training.CheckpointEvery
	}

	if c.Session.Hands == 0 {
		c.Session.Hands = def.Session.Hands
	}
	if c.Session.StartingStack == 0 {
		c.Session.StartingStack = def.Session.StartingStack
	}
	if c.Session.ListenAddress == "" {
		c.Session.ListenAddress = def.Session.ListenAddress
	}
	if c.Session.DecisionTimeMS == 0 {
		c.Session.DecisionTimeMS = def.Session.DecisionTimeMS
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, err := c.Rules(); err != nil {
		return err
	}
	if c.Training.Iterations < 1 {
		return fmt.Errorf("training iterations must be positive, got %d", c.Training.Iterations)
	}
	if c.Training.Workers < 1 {
		return fmt.Errorf("training workers must be positive, got %d", c.Training.Workers)
	}
	if c.Training.CheckpointEvery < 0 {
		return fmt.Errorf("checkpoint interval must not be negative, got %d", c.Training.CheckpointEvery)
	}
	if c.Session.Hands < 1 {
		return fmt.Errorf("session hands must be positive, got %d", c.Session.Hands)
	}
	if c.Session.StartingStack < c.Game.Ante {
		return fmt.Errorf("starting stack %d cannot cover the ante %d", c.Session.StartingStack, c.Game.Ante)
	}
	if c.Session.DecisionTimeMS < 0 {
		return fmt.Errorf("decision time must not be negative, got %d", c.Session.DecisionTimeMS)
	}
	return nil
}

// Rules builds the game rules the configuration describes.
func (c *Config) Rules() (game.Rules, error) {
	return game.NewRules(c.Game.DeckSize, c.Game.Ante, c.Game.MaxRaises)
}
