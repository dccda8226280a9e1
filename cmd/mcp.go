package cmd

import (
	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the busfactor MCP server",
	Long:  `Launch an MCP server on stdio that lets AI agents submit analyses and poll for their results.`,
	Args:  cobra.NoArgs,
	// Logs go to stderr, so stdio stays reserved for the protocol.
	PreRunE: serviceSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		runner, store, err := startRunner(nil)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		defer func() {
			if err := runner.Stop(stopTimeout); err != nil {
				contract.LogWarn("Job runner did not stop cleanly", err)
			}
		}()
		return mcp.StartMCPServer(rootCtx, runner, version)
	},
}
