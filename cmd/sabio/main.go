// Sabio is the reliability layer between a language model and the
// callable capabilities of a personal assistant.
//
// It routes user messages through a fused heuristic/semantic classifier,
// keeps model output honest via guarded JSON generation, and confines
// tool selection to the product scope and capability registry.
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	sabio route <message>    Route a message and print the decision
//	sabio init [dir]         Initialize a working directory with defaults
//	sabio capabilities       List capabilities visible through the scope
//	sabio media-status       Probe the local media stack services
//	sabio version            Print version and build information
//	sabio -o json version    Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/jmnavarro/sabio/internal/buildinfo"
	"github.com/jmnavarro/sabio/internal/config"
	"github.com/jmnavarro/sabio/internal/llm"
	"github.com/jmnavarro/sabio/internal/planner"
	"github.com/jmnavarro/sabio/internal/registry"
	"github.com/jmnavarro/sabio/internal/router"
	"github.com/jmnavarro/sabio/internal/scope"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the sabio command. All OS-level
// dependencies are injected as parameters: ctx controls the lifetime of
// the process, stdout and stderr receive all output, args is
// os.Args[1:]. Arguments are parsed by hand — the flag package relies
// on package-level globals that interfere with parallel tests, and the
// argument surface here is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "route":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: sabio route <message>")
		}
		return runRoute(ctx, stdout, configPath, outputFmt, strings.Join(cmdArgs, " "))
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "capabilities":
		return runCapabilities(stdout, configPath, outputFmt)
	case "media-status":
		return runMediaStatus(stdout, outputFmt)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runRoute routes one message through the full pipeline and prints the
// sanitized decision. Useful for smoke tests and prompt debugging
// without a chat surface.
func runRoute(ctx context.Context, stdout io.Writer, configPath, outputFmt, message string) error {
	cfg, logger, err := loadConfigAndLogger(stdout, configPath)
	if err != nil {
		return err
	}

	gen, err := createGenerator(cfg)
	if err != nil {
		return err
	}

	ps := scope.New(logger, cfg.Scope)
	reg := registry.New(logger, cfg.Registry, ps)
	if diff := reg.EnsureScopeConsistency(); len(diff.InScopeNotInRegistry) > 0 {
		logger.Warn("scope lists unknown capabilities", "ids", diff.InScopeNotInRegistry)
	}

	rtr := router.New(logger, gen, reg, ps, router.Config{
		MaxRetries:  cfg.Router.MaxRetries,
		HistoryTail: cfg.Router.HistoryTail,
		MaxAuditLog: cfg.Router.MaxAuditLog,
	})
	decision := rtr.Route(ctx, message, nil)

	if outputFmt == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(decision)
	}

	fmt.Fprintf(stdout, "intent:     %s\n", decision.Intent)
	fmt.Fprintf(stdout, "confidence: %.2f\n", decision.Confidence)
	fmt.Fprintf(stdout, "tools:      %s\n", strings.Join(decision.CandidateTools, ", "))
	if decision.NeedsClarification {
		fmt.Fprintf(stdout, "clarify:    %s\n", decision.ClarificationQuestion)
	}
	return nil
}

// runCapabilities lists the catalog as seen through the product scope,
// plus both sides of the scope/registry diff.
func runCapabilities(stdout io.Writer, configPath, outputFmt string) error {
	cfg, logger, err := loadConfigAndLogger(stdout, configPath)
	if err != nil {
		return err
	}

	ps := scope.New(logger, cfg.Scope)
	reg := registry.New(logger, cfg.Registry, ps)

	ids := reg.AllIDs()
	sort.Strings(ids)
	diff := reg.EnsureScopeConsistency()

	if outputFmt == "json" {
		out := struct {
			Capabilities         []string `json:"capabilities"`
			InScopeNotInRegistry []string `json:"in_scope_not_in_registry,omitempty"`
			InRegistryNotInScope []string `json:"in_registry_not_in_scope,omitempty"`
		}{ids, diff.InScopeNotInRegistry, diff.InRegistryNotInScope}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintf(stdout, "Capabilities in scope (%d):\n", len(ids))
	for _, id := range ids {
		if c, ok := reg.Get(id); ok {
			fmt.Fprintf(stdout, "  %-28s phase %d  %s\n", c.ID, c.Phase, c.Summary)
		}
	}
	if len(diff.InScopeNotInRegistry) > 0 {
		fmt.Fprintf(stdout, "In scope but not in registry: %s\n", strings.Join(diff.InScopeNotInRegistry, ", "))
	}
	if len(diff.InRegistryNotInScope) > 0 {
		fmt.Fprintf(stdout, "In registry but not in scope: %s\n", strings.Join(diff.InRegistryNotInScope, ", "))
	}
	return nil
}

// runMediaStatus probes the local media stack ports and reports which
// services answer. Observation only.
func runMediaStatus(stdout io.Writer, outputFmt string) error {
	status := planner.MediaStackStatus()

	if outputFmt == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	fmt.Fprintln(stdout, planner.FormatMediaStackStatus(status))
	return nil
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	// Print fields in a stable order for human readability.
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w. It is called when
// sabio is invoked with no arguments, or with -h / --help.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Sabio - Reliability layer for assistant capabilities")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: sabio [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  route <message>  Route a message and print the decision")
	fmt.Fprintln(w, "  init [dir]       Initialize working directory with defaults (default: .)")
	fmt.Fprintln(w, "  capabilities     List capabilities visible through the scope")
	fmt.Fprintln(w, "  media-status     Probe the local media stack services")
	fmt.Fprintln(w, "  version          Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	return nil
}

// loadConfigAndLogger locates the YAML config and builds the logger the
// subcommands share. With no config file anywhere, defaults apply.
func loadConfigAndLogger(stdout io.Writer, configPath string) (*config.Config, *slog.Logger, error) {
	var cfg *config.Config

	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		if configPath != "" {
			return nil, nil, err
		}
		cfg = config.Default()
	} else {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load config %s: %w", cfgPath, err)
		}
	}

	level := slog.LevelInfo
	if cfg.LogLevel != "" {
		if parsed, err := config.ParseLogLevel(cfg.LogLevel); err == nil {
			level = parsed
		}
	}
	logger := slog.New(slog.NewTextHandler(stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
	return cfg, logger, nil
}

// createGenerator builds the configured model client. Ollama is the
// default backend; Anthropic is used when selected and configured.
func createGenerator(cfg *config.Config) (llm.Generator, error) {
	switch cfg.Model.Provider {
	case "anthropic":
		return llm.NewAnthropicClient(cfg.Model.Anthropic.APIKey, cfg.Model.Name)
	case "", "ollama":
		return llm.NewOllamaClient(cfg.Model.OllamaURL, cfg.Model.Name), nil
	default:
		return nil, fmt.Errorf("unknown model provider: %q", cfg.Model.Provider)
	}
}
