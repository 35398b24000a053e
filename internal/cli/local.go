package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Nodeflow/internal/effects"
	"github.com/shaiso/Nodeflow/internal/engine"
	"github.com/shaiso/Nodeflow/internal/graph"
	"github.com/shaiso/Nodeflow/internal/nodes"
	"github.com/shaiso/Nodeflow/internal/registry"
	"github.com/shaiso/Nodeflow/internal/telemetry"
)

// ErrRunFailed — локальный run завершился с упавшими узлами.
var ErrRunFailed = errors.New("run failed")

// ErrInvalidGraph — граф из файла не проходит проверку.
var ErrInvalidGraph = errors.New("graph is not valid")

// LocalConfig — окружение локальных команд.
type LocalConfig struct {
	// Registry — реестр типов (по умолчанию nodes.DefaultRegistry()).
	Registry *registry.Registry

	// FS — файловая система run; nil — OSFileSystem с корнем --root.
	FS effects.FileSystem

	// HTTP — клиент для net/HttpRequest; nil — http.Client с таймаутом 30s.
	HTTP effects.HTTPClient
}

func (c LocalConfig) registry() *registry.Registry {
	if c.Registry != nil {
		return c.Registry
	}
	return nodes.DefaultRegistry()
}

// NewLocalRunCmd создаёт команду "run FILE": выполнение графа из файла без API.
func NewLocalRunCmd(cfg LocalConfig, outputFn func() *Output) *cobra.Command {
	var inputs []string
	var root string
	var timeout time.Duration
	var verbose bool

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Run a graph document locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			runInputs, err := parseInputs(inputs)
			if err != nil {
				return err
			}
			g, err := loadGraphFile(cfg.registry(), args[0])
			if err != nil {
				return err
			}

			fs := cfg.FS
			if fs == nil {
				fs = effects.NewOSFileSystem(root)
			}
			client := cfg.HTTP
			if client == nil {
				client = &http.Client{Timeout: 30 * time.Second}
			}

			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := telemetry.NewLogger(cmd.ErrOrStderr(), "text", level)

			var observer engine.Observer
			if verbose {
				observer = engine.LogObserver{Logger: logger}
			}

			eng := engine.New(engine.Config{
				Effects:     &effects.Effects{FS: fs, HTTP: client},
				Observer:    observer,
				NodeTimeout: timeout,
				Env:         environ(),
				Logger:      logger,
			})

			rep, err := eng.Run(cmd.Context(), g, engine.RunOptions{Inputs: runInputs})
			var invalid *engine.InvalidGraphError
			if errors.As(err, &invalid) {
				printViolations(out, invalid.Violations)
				return ErrInvalidGraph
			}
			if err != nil {
				return err
			}

			out.Report(rep)
			if failed := rep.Failed(); len(failed) > 0 {
				return fmt.Errorf("%w: %s", ErrRunFailed, strings.Join(failed, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Input values as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&root, "root", os.Getenv("NODEFLOW_ROOT"), "Root directory for file nodes")
	cmd.Flags().DurationVar(&timeout, "node-timeout", 0, "Default per-node timeout (0 = none)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log node status changes to stderr")

	return cmd
}

// NewValidateCmd создаёт команду "validate FILE".
func NewValidateCmd(cfg LocalConfig, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a graph document for structural violations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			g, err := loadGraphFile(cfg.registry(), args[0])
			if err != nil {
				return err
			}

			violations := g.Validate()
			if len(violations) > 0 {
				printViolations(out, violations)
				return ErrInvalidGraph
			}

			if out.JSONMode() {
				out.JSON(map[string]any{"valid": true, "violations": []graph.Violation{}})
			} else {
				out.Success(fmt.Sprintf("Graph %q is valid: %d nodes, %d links", g.Name(), g.Len(), len(g.Links())))
			}
			return nil
		},
	}
}

// NewTypesCmd создаёт команду "types": список зарегистрированных типов узлов.
func NewTypesCmd(cfg LocalConfig, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List available node types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			types := cfg.registry().List()

			headers := []string{"TYPE", "CLASS", "INPUTS", "OUTPUTS"}
			rows := make([][]string, len(types))
			listing := make([]map[string]any, len(types))
			for i, t := range types {
				rows[i] = []string{t.Name, string(t.Class), portList(t.Inputs), portList(t.Outputs)}
				listing[i] = map[string]any{
					"name":       t.Name,
					"class":      t.Class,
					"inputs":     t.Inputs,
					"outputs":    t.Outputs,
					"properties": t.Properties,
				}
			}

			out.Print(headers, rows, listing)
			return nil
		},
	}
}

func loadGraphFile(reg *registry.Registry, path string) (*graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	g, err := graph.Load(reg, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

func printViolations(out *Output, violations []graph.Violation) {
	headers := []string{"CODE", "NODE", "PORT", "MESSAGE"}
	rows := make([][]string, len(violations))
	for i, v := range violations {
		rows[i] = []string{v.Code, v.NodeID, v.Port, v.Message}
	}
	out.Print(headers, rows, map[string]any{"valid": false, "violations": violations})
}

func portList(ports []registry.PortSpec) string {
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Name + ":" + string(p.Type)
	}
	return strings.Join(names, ",")
}

// parseInputs разбирает значения --input KEY=VALUE.
func parseInputs(kvs []string) (map[string]any, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	inputs := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input format %q, expected KEY=VALUE", kv)
		}
		inputs[key] = value
	}
	return inputs, nil
}

func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
