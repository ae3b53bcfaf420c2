package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nvoss/stepflow/internal/engine"
	"github.com/nvoss/stepflow/internal/server"
	"github.com/nvoss/stepflow/internal/tool"
	"github.com/nvoss/stepflow/internal/workflow"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		serve(os.Args[2:])
	case "run":
		runCmd(os.Args[2:])
	case "validate":
		validateCmd(os.Args[2:])
	case "tools":
		toolsCmd()
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  stepflow serve [--addr <:8080>] [--config <server.yaml>] [--workflows <glob>] [--verbose]")
	fmt.Fprintln(os.Stderr, "  stepflow run --graph <file.yaml> [--state <file.json>] [--max-iterations <n>] [--verbose]")
	fmt.Fprintln(os.Stderr, "  stepflow validate --graph <file.yaml>")
	fmt.Fprintln(os.Stderr, "  stepflow tools")
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func builtinRegistry() *tool.Registry {
	reg := tool.NewRegistry()
	if err := tool.RegisterBuiltins(reg); err != nil {
		fmt.Fprintf(os.Stderr, "register builtin tools: %v\n", err)
		os.Exit(1)
	}
	return reg
}

func flagValue(args []string, i *int, name string) string {
	*i++
	if *i >= len(args) {
		fmt.Fprintf(os.Stderr, "%s requires a value\n", name)
		os.Exit(1)
	}
	return args[*i]
}

func serve(args []string) {
	cfg := server.Config{Addr: ":8080"}
	var configPath, workflows string
	var verbose bool

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--addr":
			cfg.Addr = flagValue(args, &i, "--addr")
		case "--config":
			configPath = flagValue(args, &i, "--config")
		case "--workflows":
			workflows = flagValue(args, &i, "--workflows")
		case "--verbose":
			verbose = true
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			os.Exit(1)
		}
	}

	if configPath != "" {
		b, err := os.ReadFile(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read config: %v\n", err)
			os.Exit(1)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "parse config: %v\n", err)
			os.Exit(1)
		}
	}

	logger := newLogger(verbose)
	slog.SetDefault(logger)
	srv := server.New(cfg, builtinRegistry(), logger)

	if workflows != "" {
		defs, err := workflow.LoadGlob(workflows)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load workflows: %v\n", err)
			os.Exit(1)
		}
		for _, def := range defs {
			g, err := workflow.Compile(def)
			if err != nil {
				fmt.Fprintf(os.Stderr, "compile workflow %q: %v\n", def.Name, err)
				os.Exit(1)
			}
			srv.RegisterGraph(g)
		}
	}

	if err := srv.ListenAndServe(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func runCmd(args []string) {
	var graphPath, statePath string
	var maxIter int
	var verbose bool

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--graph":
			graphPath = flagValue(args, &i, "--graph")
		case "--state":
			statePath = flagValue(args, &i, "--state")
		case "--max-iterations":
			if _, err := fmt.Sscanf(flagValue(args, &i, "--max-iterations"), "%d", &maxIter); err != nil {
				fmt.Fprintln(os.Stderr, "--max-iterations requires an integer")
				os.Exit(1)
			}
		case "--verbose":
			verbose = true
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			os.Exit(1)
		}
	}
	if graphPath == "" {
		usage()
		os.Exit(1)
	}

	def, err := workflow.LoadFile(graphPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load graph: %v\n", err)
		os.Exit(1)
	}
	g, err := workflow.Compile(def)
	if err != nil {
		printValidationFailure(err)
		os.Exit(1)
	}

	var initial map[string]any
	if statePath != "" {
		b, err := os.ReadFile(statePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read state: %v\n", err)
			os.Exit(1)
		}
		if err := json.Unmarshal(b, &initial); err != nil {
			fmt.Fprintf(os.Stderr, "parse state: %v\n", err)
			os.Exit(1)
		}
	}

	run := engine.Execute(context.Background(), g, builtinRegistry(), initial, engine.Options{
		MaxIterations: maxIter,
		Logger:        newLogger(verbose),
	})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(run); err != nil {
		fmt.Fprintf(os.Stderr, "encode run: %v\n", err)
		os.Exit(1)
	}
	if run.Status == engine.StatusFailed {
		os.Exit(2)
	}
}

func validateCmd(args []string) {
	var graphPath string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--graph":
			graphPath = flagValue(args, &i, "--graph")
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			os.Exit(1)
		}
	}
	if graphPath == "" {
		usage()
		os.Exit(1)
	}

	def, err := workflow.LoadFile(graphPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load graph: %v\n", err)
		os.Exit(1)
	}

	diags := workflow.Validate(def)
	failed := false
	for _, d := range diags {
		where := ""
		if d.NodeName != "" {
			where = " node=" + d.NodeName
		}
		if d.EdgeFrom != "" {
			where = fmt.Sprintf(" edge=%s->%s", d.EdgeFrom, d.EdgeTo)
		}
		fmt.Printf("%s %s:%s %s\n", d.Severity, d.Rule, where, d.Message)
		if d.Severity == workflow.SeverityError {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
	fmt.Printf("OK: %d nodes, %d edges\n", len(def.Nodes), len(def.Edges))
}

func toolsCmd() {
	reg := builtinRegistry()
	for _, t := range reg.List() {
		fmt.Printf("%-28s %s\n", t.Name, t.Description)
	}
}

func printValidationFailure(err error) {
	var verr *workflow.ValidationError
	if errors.As(err, &verr) {
		for _, d := range verr.Diagnostics {
			fmt.Fprintf(os.Stderr, "%s %s: %s\n", d.Severity, d.Rule, d.Message)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "compile graph: %v\n", err)
}
