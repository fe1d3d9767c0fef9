package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/earpeace/earpeace/internal/batch"
	"github.com/earpeace/earpeace/internal/cli"
	"github.com/earpeace/earpeace/internal/config"
	"github.com/earpeace/earpeace/internal/discord"
	"github.com/earpeace/earpeace/internal/dsp"
	"github.com/earpeace/earpeace/internal/logging"
	"github.com/earpeace/earpeace/internal/source"
	"github.com/earpeace/earpeace/internal/ui"
)

var (
	version = "0.2.0"
)

// CLI defines the command-line interface
type CLI struct {
	Version  bool   `short:"v" help:"Show version information"`
	Token    string `name:"discord-token" env:"EARPEACE_TOKEN" help:"Discord bot token"`
	GuildID  string `name:"guild-id" env:"EARPEACE_GUILD_ID" help:"Discord guild (server) ID"`
	LogLevel string `default:"info" help:"Log level (debug, info, warn, error)"`
	Logs     bool   `help:"Save a detailed debug log to earpeace-debug.log"`
	Plain    bool   `help:"Disable the interactive UI, log plain text instead"`
	Config   string `short:"c" type:"path" help:"Path to JSON config file (optional)"`

	Normalize NormalizeCmd `cmd:"" help:"Normalize clip loudness in a directory or guild soundboard"`
	Ls        LsCmd        `cmd:"" help:"List clips without changing them"`
	Cp        CpCmd        `cmd:"" help:"Download soundboard clips to a local directory"`
	Set       SetCmd       `cmd:"" help:"Save settings to the config file"`
}

// App carries shared state into command Run methods.
type App struct {
	cli    *CLI
	cfg    *config.Config
	logger *zap.Logger
	ctx    context.Context
}

// NormalizeCmd runs the measurement and gain pipeline over a clip set.
type NormalizeCmd struct {
	InputDir  string `type:"existingdir" help:"Normalize local audio files in this directory" xor:"where"`
	Guild     bool   `help:"Normalize the guild soundboard in place" xor:"where"`
	OutputDir string `type:"path" help:"Write local outputs here instead of next to the inputs"`

	TargetLoudness *float64      `placeholder:"LUFS" help:"Integrated loudness target"`
	PeakCeiling    *float64      `placeholder:"DBFS" help:"Peak level the output must stay under"`
	Concurrency    *int          `help:"Clips processed in parallel"`
	Retries        *int          `help:"Extra attempts for transient fetch and upload failures"`
	RequestDelay   time.Duration `help:"Minimum delay between soundboard API requests"`
	TruePeak       bool          `help:"Measure oversampled inter-sample peaks"`
	Strict         bool          `help:"Stop the batch at the first failure"`
	DryRun         bool          `help:"Plan every clip but write nothing back"`
}

// LsCmd lists clips in the soundboard or a local directory.
type LsCmd struct {
	InputDir string `type:"existingdir" help:"List local audio files in this directory instead"`
}

// CpCmd downloads soundboard clips to a local directory.
type CpCmd struct {
	OutputDir string `arg:"" type:"path" help:"Directory to download clips into"`
	Name      string `help:"Download only the clip with this name"`
}

// SetCmd persists settings so they do not have to be passed on every run.
type SetCmd struct {
	TargetLoudness *float64 `placeholder:"LUFS" help:"Default integrated loudness target"`
	PeakCeiling    *float64 `placeholder:"DBFS" help:"Default peak ceiling"`
	Concurrency    *int     `help:"Default number of clips processed in parallel"`
	Retries        *int     `help:"Default retry count for transient failures"`
	Token          string   `help:"Discord bot token to store"`
	Guild          string   `help:"Discord guild ID to store"`
}

func main() {
	cliArgs := &CLI{}
	ctx := kong.Parse(cliArgs,
		kong.Name("earpeace"),
		kong.Description("Loudness normalizer for soundboard clips"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	if cliArgs.Version {
		cli.PrintVersion(version)
		os.Exit(0)
	}

	cfg, err := loadConfig(cliArgs.Config)
	if err != nil {
		cli.PrintError(fmt.Sprintf("config: %v", err))
		os.Exit(1)
	}
	if cliArgs.Token == "" {
		cliArgs.Token = cfg.DiscordToken
	}
	if cliArgs.GuildID == "" {
		cliArgs.GuildID = cfg.GuildID
	}

	logger, cleanup, err := logging.New(cliArgs.LogLevel, cliArgs.Logs)
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
	defer cleanup()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &App{cli: cliArgs, cfg: cfg, logger: logger, ctx: runCtx}
	if err := ctx.Run(app); err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// clipSource builds the source named by the flags: a guild soundboard or a
// local directory.
func (a *App) clipSource(inputDir, outputDir string, guild bool) (source.Source, error) {
	if inputDir != "" && !guild {
		return source.NewLocal(inputDir, outputDir)
	}
	client, err := a.soundboard()
	if err != nil {
		return nil, err
	}
	return source.NewRemote(client), nil
}

// soundboard builds the Discord client and verifies the credentials up
// front, so auth failures surface before any clip work starts.
func (a *App) soundboard() (*discord.Client, error) {
	if a.cli.Token == "" {
		return nil, errors.New("no Discord token: pass --discord-token, set EARPEACE_TOKEN, or add it to the config file")
	}
	if a.cli.GuildID == "" {
		return nil, errors.New("no guild ID: pass --guild-id, set EARPEACE_GUILD_ID, or add it to the config file")
	}
	client := discord.New(a.cli.Token, a.cli.GuildID)
	if err := client.Ping(a.ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *NormalizeCmd) Run(app *App) error {
	if c.InputDir == "" && !c.Guild {
		return errors.New("pick a clip set: --input-dir for local files or --guild for the soundboard")
	}

	src, err := app.clipSource(c.InputDir, c.OutputDir, c.Guild)
	if err != nil {
		return err
	}
	clips, err := src.List(app.ctx)
	if err != nil {
		return err
	}
	if len(clips) == 0 {
		return source.ErrNoClips
	}

	opts := batch.Options{
		TargetLUFS:      app.cfg.TargetLoudness,
		CeilingDBFS:     app.cfg.PeakCeiling,
		Concurrency:     app.cfg.Concurrency,
		Retries:         app.cfg.Retries,
		MinRequestDelay: c.RequestDelay,
		TruePeak:        c.TruePeak,
		Strict:          c.Strict,
		DryRun:          c.DryRun,
		Logger:          app.logger,
	}
	if c.TargetLoudness != nil {
		opts.TargetLUFS = *c.TargetLoudness
	}
	if c.PeakCeiling != nil {
		opts.CeilingDBFS = *c.PeakCeiling
	}
	if c.Concurrency != nil {
		opts.Concurrency = *c.Concurrency
	}
	if c.Retries != nil {
		opts.Retries = *c.Retries
	}

	var sum batch.Summary
	if app.cli.Plain || c.DryRun || !isatty.IsTerminal(os.Stdout.Fd()) {
		sum, err = runPlain(app, src, clips, opts)
	} else {
		sum, err = runWithUI(app, src, clips, opts)
	}
	if err != nil {
		return err
	}

	return batchErr(sum, c.Strict)
}

// batchErr maps a finished batch onto the command's exit status. Strict
// runs fail on any clip failure; best-effort runs keep a non-empty set of
// successes as success and only fail when every clip failed.
func batchErr(sum batch.Summary, strict bool) error {
	if sum.Failed == 0 {
		return nil
	}
	if strict {
		return fmt.Errorf("%d of %d clips failed", sum.Failed, sum.Total())
	}
	if sum.Done == 0 && sum.Unchanged == 0 {
		return fmt.Errorf("all %d clips failed", sum.Failed)
	}
	return nil
}

// runPlain runs the batch without the TUI and prints a result table.
func runPlain(app *App, src source.Source, clips []source.Clip, opts batch.Options) (batch.Summary, error) {
	o, err := batch.New(src, opts)
	if err != nil {
		return batch.Summary{}, err
	}
	sum := o.Run(app.ctx, clips)
	fmt.Print((&logging.ResultTable{Results: sum.Results}).String())
	return sum, nil
}

// runWithUI drives the batch behind the Bubbletea progress view. Quitting
// the view cancels the batch; clips not yet started are reported skipped.
func runWithUI(app *App, src source.Source, clips []source.Clip, opts batch.Options) (batch.Summary, error) {
	model := ui.NewModel(clips)
	opts.OnEvent = model.Forward

	o, err := batch.New(src, opts)
	if err != nil {
		return batch.Summary{}, err
	}

	batchCtx, cancel := context.WithCancel(app.ctx)
	defer cancel()

	p := tea.NewProgram(model, tea.WithContext(app.ctx))
	done := make(chan batch.Summary, 1)
	go func() {
		sum := o.Run(batchCtx, clips)
		model.Finish(sum)
		done <- sum
	}()

	runErr := func() error {
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("ui: %w", err)
		}
		return nil
	}()

	// Nothing reads the progress channel once the view exits, so keep
	// draining it until the batch goroutine delivers its summary.
	cancel()
	for {
		select {
		case sum := <-done:
			if runErr != nil {
				return batch.Summary{}, runErr
			}
			return sum, nil
		case <-model.ProgressChan:
		}
	}
}

func (c *LsCmd) Run(app *App) error {
	src, err := app.clipSource(c.InputDir, "", c.InputDir == "")
	if err != nil {
		return err
	}
	clips, err := src.List(app.ctx)
	if err != nil {
		return err
	}
	fmt.Print((&logging.ClipTable{Clips: clips}).String())
	return nil
}

func (c *SetCmd) Run(app *App) error {
	cfg := app.cfg
	if c.TargetLoudness != nil {
		cfg.TargetLoudness = *c.TargetLoudness
	}
	if c.PeakCeiling != nil {
		cfg.PeakCeiling = *c.PeakCeiling
	}
	if c.Concurrency != nil {
		cfg.Concurrency = *c.Concurrency
	}
	if c.Retries != nil {
		cfg.Retries = *c.Retries
	}
	if c.Token != "" {
		cfg.DiscordToken = c.Token
	}
	if c.Guild != "" {
		cfg.GuildID = c.Guild
	}

	// Reject settings the planner would refuse at run time.
	if _, err := dsp.NewPlanner(cfg.TargetLoudness, cfg.PeakCeiling); err != nil {
		return err
	}

	if app.cli.Config != "" {
		if err := config.SaveTo(app.cli.Config, cfg); err != nil {
			return err
		}
		fmt.Printf("%s saved %s\n", cli.SuccessStyle.Render("✓"), app.cli.Config)
		return nil
	}
	if err := config.Save(cfg); err != nil {
		return err
	}
	fmt.Printf("%s saved %s\n", cli.SuccessStyle.Render("✓"), filepath.Join(config.GetConfigDir(), config.ConfigFileName))
	return nil
}

func (c *CpCmd) Run(app *App) error {
	client, err := app.soundboard()
	if err != nil {
		return err
	}
	src := source.NewRemote(client)
	clips, err := src.List(app.ctx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.OutputDir, 0o755); err != nil {
		return fmt.Errorf("output directory: %w", err)
	}

	copied := 0
	for _, clip := range clips {
		if c.Name != "" && !strings.EqualFold(clip.Name, c.Name) {
			continue
		}
		data, err := src.Fetch(app.ctx, clip)
		if err != nil {
			return err
		}
		dest := filepath.Join(c.OutputDir, clip.Name+"."+clip.Format.Extension())
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", dest, err)
		}
		fmt.Printf("%s %s → %s\n", cli.SuccessStyle.Render("✓"), clip.Name, dest)
		copied++
	}
	if copied == 0 {
		if c.Name != "" {
			return fmt.Errorf("no soundboard clip named %q", c.Name)
		}
		return source.ErrNoClips
	}
	return nil
}
