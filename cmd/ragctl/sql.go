package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bull/ragchain/internal/llm"
	"github.com/bull/ragchain/internal/sqlchain"
)

var sqlTables []string

var sqlCmd = &cobra.Command{
	Use:   "sql <question>",
	Short: "Answer a question by querying a PostgreSQL database",
	Long: `Asks the model to write one read-only SELECT for the question, runs it
against sql.database_url (DATABASE_URL) and answers from the rows.
Statements other than SELECT are rejected before reaching the database.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.SQL.DatabaseURL == "" {
			return fmt.Errorf("sql.database_url (DATABASE_URL) is not set")
		}

		db, err := sqlchain.NewPostgres(ctx, cfg.SQL.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		model := llm.NewOpenAI(llm.OpenAIConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout.Duration,
		})
		c, err := sqlchain.New(model, db, sqlchain.Config{
			TopK:    cfg.SQL.TopK,
			Tables:  sqlTables,
			Options: llm.Options{Temperature: cfg.LLM.Temperature, MaxTokens: cfg.LLM.MaxTokens},
		}, slog.Default())
		if err != nil {
			return err
		}

		result, err := c.Invoke(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Printf("SQL: %s\n\n%s\n", result.Query, result.Answer)
		return nil
	},
}

func init() {
	sqlCmd.Flags().StringSliceVar(&sqlTables, "tables", nil, "tables to show the model (default: all)")
}
