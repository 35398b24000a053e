package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd собирает корневую команду nodeflow.
func NewRootCmd(version string, local LocalConfig) *cobra.Command {
	var apiURL string
	var jsonOutput bool

	root := &cobra.Command{
		Use:           "nodeflow",
		Short:         "Nodeflow CLI: run and manage node graphs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&apiURL, "api-url", envOr("NODEFLOW_API_URL", "http://localhost:8080"), "API server URL")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *Client { return NewClient(apiURL) }
	outputFn := func() *Output {
		return NewOutputTo(root.OutOrStdout(), root.ErrOrStderr(), jsonOutput)
	}

	root.AddCommand(
		NewLocalRunCmd(local, outputFn),
		NewValidateCmd(local, outputFn),
		NewTypesCmd(local, outputFn),
		NewGraphCmd(clientFn, outputFn),
		NewRunShowCmd(clientFn, outputFn),
		NewRunListCmd(clientFn, outputFn),
	)

	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
