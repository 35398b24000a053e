package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Nodeflow/internal/report"
)

// NewGraphCmd создаёт группу команд для графов на сервере.
func NewGraphCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Manage graphs on the API server",
	}

	cmd.AddCommand(
		newGraphListCmd(clientFn, outputFn),
		newGraphPushCmd(clientFn, outputFn),
		newGraphShowCmd(clientFn, outputFn),
		newGraphValidateCmd(clientFn, outputFn),
		newGraphRunCmd(clientFn, outputFn),
		newGraphDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func newGraphListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List graphs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			graphs, err := clientFn().ListGraphs()
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "UPDATED"}
			rows := make([][]string, len(graphs))
			for i, g := range graphs {
				rows[i] = []string{g.ID, g.Name, g.UpdatedAt}
			}
			outputFn().Print(headers, rows, graphs)
			return nil
		},
	}
}

func newGraphPushCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "push FILE",
		Short: "Upload a graph document (replaces the graph if its id exists)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var head struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(data, &head); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			var g *GraphResponse
			if existing, ok := lookupGraph(client, head.ID); ok {
				g, err = client.ReplaceGraph(existing, data)
				if err != nil {
					return err
				}
				out.Success(fmt.Sprintf("Graph updated: %s", g.ID))
			} else {
				g, err = client.CreateGraph(data)
				if err != nil {
					return err
				}
				out.Success(fmt.Sprintf("Graph created: %s", g.ID))
			}

			out.Print([]string{"ID", "NAME"}, [][]string{{g.ID, g.Name}}, g)
			return nil
		},
	}
}

// lookupGraph проверяет, что id документа — существующий граф на сервере.
func lookupGraph(client *Client, id string) (string, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	if _, err := client.GetGraph(id); err != nil {
		return "", false
	}
	return id, true
}

func newGraphShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Print the graph document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := clientFn().GetGraph(args[0])
			if err != nil {
				return err
			}
			outputFn().JSON(g.Document)
			return nil
		},
	}
}

func newGraphValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate ID",
		Short: "Check a stored graph for structural violations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			res, err := clientFn().ValidateGraph(args[0])
			if err != nil {
				return err
			}
			if res.Valid {
				out.Success("Graph is valid")
				return nil
			}

			rows := make([][]string, len(res.Violations))
			for i, v := range res.Violations {
				rows[i] = []string{v.Code, v.NodeID, v.Port, v.Message}
			}
			out.Print([]string{"CODE", "NODE", "PORT", "MESSAGE"}, rows, res)
			return ErrInvalidGraph
		},
	}
}

func newGraphRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var inputs []string
	var async bool

	cmd := &cobra.Command{
		Use:   "run ID",
		Short: "Run a stored graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runInputs, err := parseInputs(inputs)
			if err != nil {
				return err
			}

			if async {
				run, err := client.EnqueueRun(args[0], runInputs)
				if err != nil {
					return err
				}
				out.Success(fmt.Sprintf("Run enqueued: %s", run.ID))
				out.Print([]string{"ID", "GRAPH_ID", "STATUS"}, [][]string{{run.ID, run.GraphID, run.Status}}, run)
				return nil
			}

			res, err := client.RunGraph(args[0], runInputs)
			if err != nil {
				return err
			}
			rep, err := report.Parse(res.Report)
			if err != nil {
				return err
			}
			out.Report(rep)
			if failed := rep.Failed(); len(failed) > 0 {
				return fmt.Errorf("%w: %v", ErrRunFailed, failed)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Input values as KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&async, "async", false, "Enqueue the run for the runner instead of waiting")

	return cmd
}

func newGraphDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().DeleteGraph(args[0]); err != nil {
				return err
			}
			outputFn().Success(fmt.Sprintf("Graph deleted: %s", args[0]))
			return nil
		},
	}
}

// NewRunShowCmd создаёт команду "run-show ID": сохранённый run и его отчёт.
func NewRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "run-show ID",
		Short: "Show a stored run and its report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			run, err := clientFn().GetRun(args[0])
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
				return fmt.Errorf("run %s not found", args[0])
			}
			if err != nil {
				return err
			}

			if out.JSONMode() || len(run.Report) == 0 {
				out.Print(
					[]string{"ID", "GRAPH_ID", "STATUS", "ERROR", "CREATED"},
					[][]string{{run.ID, run.GraphID, run.Status, run.Error, run.CreatedAt}},
					run,
				)
				return nil
			}

			rep, err := report.Parse(run.Report)
			if err != nil {
				return err
			}
			out.Report(rep)
			return nil
		},
	}
}

// NewRunListCmd создаёт команду "runs": список сохранённых runs.
func NewRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListRunsOpts

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := clientFn().ListRuns(opts)
			if err != nil {
				return err
			}

			headers := []string{"ID", "GRAPH_ID", "STATUS", "CREATED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{r.ID, r.GraphID, r.Status, r.CreatedAt}
			}
			outputFn().Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.GraphID, "graph-id", "", "Filter by graph ID")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED, CANCELLED)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results")

	return cmd
}
