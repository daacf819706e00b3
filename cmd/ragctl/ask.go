package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bull/ragchain/internal/chain"
	"github.com/bull/ragchain/internal/schema"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the indexed documents",
	Long: `Answers a question with the conversational retrieval chain, streaming the
answer as it is generated.

Without a question argument, ask starts an interactive session that reads
one question per line; follow-up questions are condensed against the
conversation so far.`,
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
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
	c, err := a.Chain(mem)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.SaveMemory(mem); err != nil {
			a.Logger.Warn("failed to save memory", "error", err)
		}
	}()

	if len(args) > 0 {
		return answer(ctx, c, strings.Join(args, " "))
	}

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		question := strings.TrimSpace(scanner.Text())
		switch question {
		case "":
		case "exit", "quit":
			return nil
		default:
			if err := answer(ctx, c, question); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
		}
		fmt.Print("> ")
	}
	return scanner.Err()
}

func answer(ctx context.Context, c *chain.Chain, question string) error {
	stream, err := c.Stream(ctx, question)
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Next() {
		fmt.Print(stream.Current())
	}
	fmt.Println()
	if err := stream.Err(); err != nil {
		return err
	}

	if sources := stream.Sources(); len(sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, s := range sources {
			fmt.Printf("  - %v (score %.3f)\n", s.Record.Metadata[schema.MetaSource], s.Score)
		}
	}
	return nil
}
