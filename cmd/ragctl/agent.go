package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent <input>",
	Short: "Run the tool-using agent on a task",
	Long: `Runs the ReAct agent until it produces a final answer. The agent can use
the Date and SearchDocuments tools, plus DuckDuckGoSearch, GoogleSearch
(SerpAPI) and CommandExecutor when enabled in configuration.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		mem, err := a.Memory()
		if err != nil {
			return err
		}
		executor, err := a.Agent(mem)
		if err != nil {
			return err
		}

		result, err := executor.Invoke(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if err := a.SaveMemory(mem); err != nil {
			a.Logger.Warn("failed to save memory", "error", err)
		}

		if verbose {
			for i, entry := range result.Transcript {
				fmt.Printf("Step %d: %s(%s)\n", i+1, entry.Step.Action, entry.Step.ActionInput)
				fmt.Printf("  %s\n", strings.ReplaceAll(entry.Observation, "\n", "\n  "))
			}
			fmt.Println()
		}
		fmt.Println(result.Output)
		return nil
	},
}
