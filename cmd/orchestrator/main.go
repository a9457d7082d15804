// Command orchestrator runs a query across multiple model CLIs: it plans a
// task decomposition, executes the tasks in dependency waves, and
// synthesizes one answer.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/thunderclaude/orchestrator/internal/config"
	"github.com/thunderclaude/orchestrator/internal/events"
	"github.com/thunderclaude/orchestrator/internal/failover"
	"github.com/thunderclaude/orchestrator/internal/invoke"
	"github.com/thunderclaude/orchestrator/internal/limiter"
	"github.com/thunderclaude/orchestrator/internal/model"
	"github.com/thunderclaude/orchestrator/internal/orchestrator"
	"github.com/thunderclaude/orchestrator/internal/tui"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "orchestrator",
		Short: "Multi-model task orchestration engine",
		Long: `orchestrator decomposes a request into a task DAG, fans the tasks out
across claude and gemini CLIs with failover and bounded concurrency, and
synthesizes the outputs into a single answer.`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newModelsCmd(), newDoctorCmd(), newConfigCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		mode        string
		concurrency int
		planner     string
		plain       bool
		yes         bool
	)

	cmd := &cobra.Command{
		Use:   "run [query...]",
		Short: "Plan and execute a query across multiple models",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDefault()
			if err != nil {
				return err
			}
			if mode != "" {
				cfg.Mode = mode
			}
			if concurrency > 0 {
				cfg.Concurrency = concurrency
			}
			if planner != "" {
				cfg.PlannerModel = model.Canonical(planner)
			}
			if yes {
				cfg.RequireApproval = false
			}
			if cfg.Mode != config.ModeStandard && cfg.Mode != config.ModeDeep {
				return fmt.Errorf("unknown mode %q", cfg.Mode)
			}

			query := strings.Join(args, " ")
			return runQuery(cmd.Context(), cfg, query, plain)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "execution mode: standard or deep")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "max concurrent workers")
	cmd.Flags().StringVar(&planner, "model", "", "planner/synthesizer model")
	cmd.Flags().BoolVar(&plain, "plain", false, "plain output, no TUI")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip plan approval")
	return cmd
}

func runQuery(parent context.Context, cfg *config.Config, query string, plain bool) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	procs := invoke.NewProcessManager()
	invoker := invoke.NewCLIInvoker(procs)
	registry := failover.New()
	lim := limiter.New(cfg.Concurrency)
	bus := events.NewBus()
	defer bus.Close()

	runner := orchestrator.NewRunner(cfg, invoker, registry, lim, procs, bus)

	go func() {
		<-ctx.Done()
		runner.Cancel()
	}()

	if plain {
		return runPlain(ctx, cfg, runner, bus, query)
	}
	return runTUI(ctx, runner, bus, query)
}

// runTUI drives the run behind the progress view. The runner publishes to
// the bus; the TUI consumes it and handles approval keys.
func runTUI(ctx context.Context, runner *orchestrator.Runner, bus *events.Bus, query string) error {
	p := tea.NewProgram(tui.New(bus, runner), tea.WithAltScreen())

	type outcome struct {
		snap *orchestrator.Snapshot
		err  error
	}
	runDone := make(chan outcome, 1)
	go func() {
		snap, err := runner.Run(ctx, query)
		runDone <- outcome{snap, err}
	}()

	if _, err := p.Run(); err != nil {
		runner.Cancel()
		<-runDone
		return fmt.Errorf("running TUI: %w", err)
	}
	// The TUI exits on its own at the terminal snapshot, or the user quit
	// and Cancel unwinds the run.
	runner.Cancel()
	out := <-runDone

	return printOutcome(out.snap)
}

// runPlain runs without the TUI: progress goes to the log, plan approval
// is a stdin prompt, and the final answer goes to stdout.
func runPlain(ctx context.Context, cfg *config.Config, runner *orchestrator.Runner, bus *events.Bus, query string) error {
	if cfg.RequireApproval {
		go promptApproval(runner, bus)
	}
	go logProgress(bus)

	snap, _ := runner.Run(ctx, query)
	return printOutcome(snap)
}

// promptApproval watches for the reviewing phase and asks on stdin.
func promptApproval(runner *orchestrator.Runner, bus *events.Bus) {
	sub := bus.Subscribe(events.TopicState, 64)
	for ev := range sub {
		state, ok := ev.(events.StateEvent)
		if !ok {
			continue
		}
		snap, ok := state.Snapshot.(*orchestrator.Snapshot)
		if !ok || snap.Phase != orchestrator.PhaseReviewing || snap.Review == nil {
			continue
		}

		fmt.Fprintln(os.Stderr, "\nProposed plan:")
		for _, t := range snap.Review.Tasks {
			marker := " "
			if t.Critical() {
				marker = "!"
			}
			fmt.Fprintf(os.Stderr, "  %s %s  %s (%s)\n", marker, t.ID, t.Description, t.AssignedModel)
		}
		fmt.Fprint(os.Stderr, "Execute this plan? [y/N] ")

		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		if strings.EqualFold(strings.TrimSpace(line), "y") {
			_ = runner.Approve()
		} else {
			_ = runner.Reject()
		}
		return
	}
}

// logProgress mirrors phase transitions and task settlements to the log.
func logProgress(bus *events.Bus) {
	sub := bus.Subscribe(events.TopicState, 256)
	lastPhase := orchestrator.Phase("")
	seen := make(map[string]bool)
	for ev := range sub {
		state, ok := ev.(events.StateEvent)
		if !ok {
			continue
		}
		snap, ok := state.Snapshot.(*orchestrator.Snapshot)
		if !ok {
			continue
		}
		if snap.Phase != lastPhase {
			lastPhase = snap.Phase
			log.Printf("phase: %s", snap.Phase)
		}
		for id, res := range snap.Results {
			if !seen[id] {
				seen[id] = true
				log.Printf("task %s settled: %s (%s)", id, res.Status, res.Model)
			}
		}
	}
}

// printOutcome writes the terminal snapshot to stdout/stderr and maps the
// error phase to a non-zero exit.
func printOutcome(snap *orchestrator.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("run produced no result")
	}
	switch snap.Phase {
	case orchestrator.PhaseDone:
		fmt.Println(snap.Final.Content)
		if q := snap.Final.Quality; q != nil {
			fmt.Fprintf(os.Stderr, "quality score: %d/10\n", q.Score)
		}
		if len(snap.Final.Failed) > 0 {
			fmt.Fprintf(os.Stderr, "note: %d task(s) failed: %s\n",
				len(snap.Final.Failed), strings.Join(snap.Final.Failed, ", "))
		}
		fmt.Fprintf(os.Stderr, "cost: $%.4f, tokens: %d, duration: %s\n",
			snap.Final.CostUSD, snap.Final.Tokens, snap.Final.Duration.Round(time.Millisecond))
		return nil
	case orchestrator.PhaseError:
		return fmt.Errorf("run failed: %s", snap.Failure)
	default:
		return fmt.Errorf("run ended in unexpected phase %s", snap.Phase)
	}
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the model catalog and failover chains",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range model.Names() {
				info, _ := model.Lookup(name)
				tier := ""
				if info.Fast {
					tier = " (fast)"
				}
				fmt.Printf("%-18s %s%s\n", name, info.Provider, tier)
				fmt.Printf("%-18s failover: %s\n", "", strings.Join(model.Chain(name), " -> "))
			}
		},
	}
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the provider CLIs can be found",
		Run: func(cmd *cobra.Command, args []string) {
			inv := invoke.NewCLIInvoker(invoke.NewProcessManager())
			for _, p := range []model.Provider{model.ProviderClaude, model.ProviderGemini} {
				binary := inv.Binary(p)
				if filepath.IsAbs(binary) {
					fmt.Printf("%-8s ok  %s\n", p, binary)
					continue
				}
				if resolved, err := exec.LookPath(binary); err == nil {
					fmt.Printf("%-8s ok  %s\n", p, resolved)
				} else {
					fmt.Printf("%-8s MISSING (looked for %q in PATH)\n", p, binary)
				}
			}
		},
	}
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to ~/.thunderclaude/orchestrator.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("getting home directory: %w", err)
			}
			path := filepath.Join(home, ".thunderclaude", "orchestrator.json")
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.Save(config.Default(), path); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	})
	return configCmd
}
