package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/pprof"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	charmlog "github.com/charmbracelet/log"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/idea-realm/one-card-limit/internal/config"
	"github.com/idea-realm/one-card-limit/internal/game"
	"github.com/idea-realm/one-card-limit/internal/server"
	"github.com/idea-realm/one-card-limit/internal/session"
	"github.com/idea-realm/one-card-limit/internal/tui"
	"github.com/idea-realm/one-card-limit/sdk/solver"
	"github.com/idea-realm/one-card-limit/sdk/solver/runtime"
)

var cli struct {
	Debug  bool   `help:"enable debug logging"`
	Config string `help:"path to an HCL config file" type:"path" default:"ocl.hcl"`

	Train TrainCmd `cmd:"" help:"run CFR training and emit a blueprint"`
	Play  PlayCmd  `cmd:"" help:"play against a trained blueprint in the terminal"`
	Show  ShowCmd  `cmd:"" help:"print the averaged strategy of a blueprint"`
	Eval  EvalCmd  `cmd:"" help:"play two blueprints against each other"`
	Serve ServeCmd `cmd:"" help:"serve matches against a blueprint over WebSocket"`
}

type TrainCmd struct {
	Out             string `help:"path to write the blueprint" default:""`
	Iterations      int    `help:"number of CFR iterations (0 uses config)" default:"0"`
	DeckSize        int    `help:"number of card ranks (0 uses config)" default:"0"`
	Ante            int    `help:"ante posted by both players (0 uses config)" default:"0"`
	MaxRaises       int    `help:"raise cap per hand" default:"-1"`
	Workers         int    `help:"parallel traversal workers (0 uses config)" default:"0"`
	ProgressEvery   int    `help:"log progress every N iterations (0 => iterations/100)" default:"0"`
	CheckpointPath  string `help:"path to write periodic checkpoints"`
	CheckpointEvery int    `help:"checkpoint interval in iterations (0 disables)" default:"0"`
	ResumeFrom      string `help:"resume training from checkpoint file"`
	CFRPlus         bool   `help:"enable CFR+ (clamped regrets with linear averaging)"`
	CPUProfile      string `help:"write CPU profile to file"`
}

type PlayCmd struct {
	Blueprint  string `help:"path to the blueprint to play against" required:""`
	Hands      int    `help:"number of hands (0 uses config)" default:"0"`
	Stack      int    `help:"starting stack (0 uses config)" default:"0"`
	Seed       int64  `help:"random seed; 0 uses time seed" default:"0"`
	Name       string `help:"your display name" default:"you"`
	History    string `help:"append finished hands to this JSONL file"`
	ThinkDelay int    `help:"bot think delay in milliseconds" default:"400"`
	LogFile    string `help:"write session logs to this file"`
}

type ShowCmd struct {
	Blueprint string  `help:"path to the blueprint" required:""`
	Position  string  `help:"only show one seat (OP or IP)" default:""`
	MinWeight float64 `help:"hide actions below this probability" default:"0.001"`
}

type EvalCmd struct {
	Blueprint string `help:"path to the first blueprint" required:""`
	Against   string `help:"path to the opponent blueprint (defaults to self-play)"`
	Hands     int    `help:"number of hands to play" default:"10000"`
	Seed      int64  `help:"random seed; 0 uses time seed" default:"0"`
}

type ServeCmd struct {
	Blueprint    string `help:"path to the blueprint to serve" required:""`
	Addr         string `help:"listen address (empty uses config)" default:""`
	Hands        int    `help:"hands per match (0 uses config)" default:"0"`
	Stack        int    `help:"starting stack per match (0 uses config)" default:"0"`
	Seed         int64  `help:"base random seed; 0 uses time seed" default:"0"`
	DecisionTime int    `help:"per-decision timeout in seconds (0 uses config)" default:"0"`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("ocl"),
		kong.Description("One card limit poker: CFR training, analysis and play"),
		kong.UsageOnError(),
	)

	setupLogger(cli.Debug)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		log.Fatal().Err(err).Str("path", cli.Config).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch ctx.Command() {
	case "train":
		err = cli.Train.Run(runCtx, cfg)
	case "play":
		err = cli.Play.Run(runCtx, cfg)
	case "show":
		err = cli.Show.Run(runCtx)
	case "eval":
		err = cli.Eval.Run(runCtx)
	case "serve":
		err = cli.Serve.Run(runCtx, cfg)
	default:
		log.Fatal().Msgf("unknown command: %s", ctx.Command())
	}
	if err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func setupLogger(debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
}

func (cmd *TrainCmd) Run(ctx context.Context, cfg *config.Config) error {
	if cmd.CPUProfile != "" {
		f, err := os.Create(cmd.CPUProfile)
		if err != nil {
			return fmt.Errorf("create cpu profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("start cpu profile: %w", err)
		}
		defer pprof.StopCPUProfile()
		log.Info().Str("path", cmd.CPUProfile).Msg("CPU profiling enabled")
	}

	out := cmd.Out
	if out == "" {
		out = cfg.Training.BlueprintPath
	}
	checkpointPath := cmd.CheckpointPath
	if checkpointPath == "" {
		checkpointPath = cfg.Training.CheckpointPath
	}
	checkpointEvery := cmd.CheckpointEvery
	if checkpointEvery == 0 {
		checkpointEvery = cfg.Training.CheckpointEvery
	}

	var trainer *solver.Trainer
	var err error

	if cmd.ResumeFrom != "" {
		trainer, err = solver.LoadTrainerFromCheckpoint(cmd.ResumeFrom)
		if err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}
		if cmd.Iterations > 0 {
			if err := trainer.SetTotalIterations(cmd.Iterations); err != nil {
				return err
			}
		}
		if cmd.DeckSize > 0 || cmd.Ante > 0 || cmd.MaxRaises >= 0 {
			log.Warn().Msg("cannot change rules when resuming from checkpoint; keeping original")
		}
		if cmd.CFRPlus != trainer.TrainingConfig().UseCFRPlus {
			log.Warn().Bool("checkpoint_cfr_plus", trainer.TrainingConfig().UseCFRPlus).
				Msg("cannot change regret mode when resuming from checkpoint; keeping original")
		}
		log.Info().
			Int("iterations", trainer.TrainingConfig().Iterations).
			Int64("resume_iteration", trainer.Iteration()).
			Str("rules", trainer.Rules().String()).
			Str("checkpoint", cmd.ResumeFrom).
			Msg("resuming training run")
	} else {
		rules, err := cmd.rules(cfg)
		if err != nil {
			return err
		}

		train := solver.DefaultTrainingConfig()
		train.Iterations = cfg.Training.Iterations
		train.Workers = cfg.Training.Workers
		train.UseCFRPlus = cfg.Training.CFRPlus
		if cmd.Iterations > 0 {
			train.Iterations = cmd.Iterations
		}
		if cmd.Workers > 0 {
			train.Workers = cmd.Workers
		}
		if cmd.ProgressEvery > 0 {
			train.ProgressEvery = cmd.ProgressEvery
		}
		if cmd.CFRPlus {
			train.UseCFRPlus = true
		}

		trainer, err = solver.NewTrainer(rules, train)
		if err != nil {
			return err
		}
		log.Info().
			Int("iterations", train.Iterations).
			Int("workers", train.Workers).
			Bool("cfr_plus", train.UseCFRPlus).
			Str("rules", rules.String()).
			Msg("starting training run")
	}

	if checkpointPath != "" && checkpointEvery > 0 {
		trainer.EnableCheckpoints(checkpointPath, checkpointEvery)
	}
	if cmd.ProgressEvery > 0 {
		trainer.SetProgressEvery(cmd.ProgressEvery)
	}

	start := time.Now()
	progress := func(p solver.Progress) {
		log.Info().
			Int("iteration", p.Iteration).
			Int("infosets", p.InfoSets).
			Float64("game_value", p.GameValue).
			Int64("nodes", p.Stats.NodesVisited).
			Dur("iter_time", p.Stats.IterationTime).
			Msg("progress")
	}

	if err := trainer.Run(ctx, progress); err != nil {
		return err
	}

	bp := trainer.Blueprint()
	log.Info().
		Dur("duration", time.Since(start)).
		Int("infosets", len(bp.Strategies)).
		Float64("game_value", bp.GameValue()).
		Msg("training completed")

	if err := bp.Save(out); err != nil {
		return fmt.Errorf("save blueprint: %w", err)
	}
	log.Info().Str("path", out).Msg("blueprint saved")
	return nil
}

func (cmd *TrainCmd) rules(cfg *config.Config) (game.Rules, error) {
	deck := cfg.Game.DeckSize
	ante := cfg.Game.Ante
	raises := cfg.Game.MaxRaises
	if cmd.DeckSize > 0 {
		deck = cmd.DeckSize
	}
	if cmd.Ante > 0 {
		ante = cmd.Ante
	}
	if cmd.MaxRaises >= 0 {
		raises = cmd.MaxRaises
	}
	return game.NewRules(deck, ante, raises)
}

func (cmd *PlayCmd) Run(ctx context.Context, cfg *config.Config) error {
	policy, err := runtime.Load(cmd.Blueprint)
	if err != nil {
		return fmt.Errorf("load blueprint: %w", err)
	}

	hands := cmd.Hands
	if hands == 0 {
		hands = cfg.Session.Hands
	}
	stack := cmd.Stack
	if stack == 0 {
		stack = cfg.Session.StartingStack
	}
	seed := cmd.Seed
	if seed == 0 {
		seed = cfg.Session.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	history := cmd.History
	if history == "" {
		history = cfg.Session.HistoryPath
	}

	// The TUI owns the terminal, so session logs go to a file or nowhere.
	logWriter := io.Discard
	if cmd.LogFile != "" {
		f, err := os.OpenFile(cmd.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logWriter = f
	}
	logger := charmlog.New(logWriter)
	if cli.Debug {
		logger.SetLevel(charmlog.DebugLevel)
	}

	result, err := tui.Play(ctx, tui.PlayConfig{
		Rules:         policy.Rules(),
		Policy:        policy,
		Hands:         hands,
		StartingStack: stack,
		Seed:          seed,
		HumanName:     cmd.Name,
		ThinkDelay:    time.Duration(cmd.ThinkDelay) * time.Millisecond,
		HistoryPath:   history,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	if result != nil {
		fmt.Printf("played %d hands, your net: %+d\n", result.HandsPlayed, result.Net[cmd.Name])
	}
	return nil
}

func (cmd *ShowCmd) Run(ctx context.Context) error {
	bp, err := solver.LoadBlueprint(cmd.Blueprint)
	if err != nil {
		return fmt.Errorf("load blueprint: %w", err)
	}
	rules := bp.Rules

	var only game.Position
	filter := false
	switch strings.ToUpper(strings.TrimSpace(cmd.Position)) {
	case "":
	case "OP":
		only, filter = game.OutOfPosition, true
	case "IP":
		only, filter = game.InPosition, true
	default:
		return fmt.Errorf("unknown position %q, want OP or IP", cmd.Position)
	}

	keys := make([]solver.InfoSetKey, 0, len(bp.Strategies))
	for raw := range bp.Strategies {
		key, err := solver.ParseInfoSetKey(raw)
		if err != nil {
			return fmt.Errorf("malformed key %q in blueprint: %w", raw, err)
		}
		if filter && key.Position != only {
			continue
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		if len(a.History) != len(b.History) {
			return len(a.History) < len(b.History)
		}
		if a.History != b.History {
			return a.History < b.History
		}
		return a.Card > b.Card
	})

	fmt.Printf("%s  iterations=%d  game_value=%+.4f\n\n", rules.String(), bp.Iterations, bp.GameValue())
	fmt.Printf("%-4s %-5s %-8s %s\n", "seat", "card", "history", "strategy")

	for _, key := range keys {
		strat := bp.Strategies[key.String()]
		actions, err := legalFor(rules, key.History)
		if err != nil {
			return err
		}
		if len(actions) != len(strat) {
			return fmt.Errorf("key %s has %d probabilities for %d actions", key, len(strat), len(actions))
		}

		parts := make([]string, 0, len(actions))
		for i, a := range actions {
			if strat[i] < cmd.MinWeight {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s %.3f", a, strat[i]))
		}
		history := key.History
		if history == "" {
			history = "-"
		}
		fmt.Printf("%-4s %-5s %-8s %s\n",
			key.Position, key.Card.Glyph(rules), history, strings.Join(parts, "  "))
	}
	return nil
}

// legalFor reconstructs the legal actions at a betting history. Legality
// depends only on the history, never on the dealt cards.
func legalFor(rules game.Rules, history string) ([]game.Action, error) {
	actions, err := game.DecodeHistory(history)
	if err != nil {
		return nil, err
	}
	h, err := game.NewHand(rules, 1, 2)
	if err != nil {
		return nil, err
	}
	for _, a := range actions {
		if err := h.Apply(a); err != nil {
			return nil, fmt.Errorf("replay %q: %w", history, err)
		}
	}
	return h.LegalActions(), nil
}

func (cmd *EvalCmd) Run(ctx context.Context) error {
	a, err := runtime.Load(cmd.Blueprint)
	if err != nil {
		return fmt.Errorf("load blueprint: %w", err)
	}
	b := a
	if cmd.Against != "" {
		b, err = runtime.Load(cmd.Against)
		if err != nil {
			return fmt.Errorf("load opponent blueprint: %w", err)
		}
	}

	seed := cmd.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	log.Info().
		Str("rules", a.Rules().String()).
		Int("hands", cmd.Hands).
		Int64("seed", seed).
		Msg("starting head to head evaluation")

	res, err := session.Evaluate(ctx, a.Rules(), a, b, cmd.Hands, seed)
	if err != nil {
		return err
	}

	log.Info().
		Int("hands", res.Hands).
		Int("net_a", res.NetA).
		Int("net_b", res.NetB).
		Float64("antes_per_hand_a", res.PerHandA).
		Msg("evaluation finished")
	return nil
}

func (cmd *ServeCmd) Run(ctx context.Context, cfg *config.Config) error {
	policy, err := runtime.Load(cmd.Blueprint)
	if err != nil {
		return fmt.Errorf("load blueprint: %w", err)
	}

	addr := cmd.Addr
	if addr == "" {
		addr = cfg.Session.ListenAddress
	}
	hands := cmd.Hands
	if hands == 0 {
		hands = cfg.Session.Hands
	}
	stack := cmd.Stack
	if stack == 0 {
		stack = cfg.Session.StartingStack
	}
	seed := cmd.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	decisionTime := time.Duration(cmd.DecisionTime) * time.Second
	if decisionTime == 0 {
		decisionTime = time.Duration(cfg.Session.DecisionTimeMS) * time.Millisecond
	}

	logger := charmlog.New(os.Stderr)
	if cli.Debug {
		logger.SetLevel(charmlog.DebugLevel)
	}

	srv, err := server.NewServer(policy, server.Options{
		Addr:          addr,
		Hands:         hands,
		StartingStack: stack,
		Seed:          seed,
		DecisionTime:  decisionTime,
	}, logger)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}
