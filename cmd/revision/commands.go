package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/pavelanni/revision/internal/evaluate"
	"github.com/pavelanni/revision/internal/generate"
	appI18n "github.com/pavelanni/revision/internal/i18n"
	"github.com/pavelanni/revision/internal/llm/prompts"
	"github.com/pavelanni/revision/internal/model"
	"github.com/pavelanni/revision/internal/parse"
	"github.com/pavelanni/revision/internal/session"
	"github.com/pavelanni/revision/internal/tui"
)

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one question set and print it as JSON",
		Long: "Generate renders the generation prompt for the given selection, sends it to the\n" +
			"provider and prints the normalized questions. With --raw-file it parses a saved\n" +
			"model reply instead and makes no network call.",
		RunE: runGenerate,
	}
	f := cmd.Flags()
	addQuizFlags(f)
	addLLMFlags(f)
	addLogFlags(f)
	f.String("raw-file", "", "Parse a saved model reply instead of calling the provider")
	f.Bool("prompt-only", false, "Print the rendered prompt and exit")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	return cmd
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	logCloser := setupLogging(v, os.Stderr)
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := quizConfigFromViper(v)
	var questions []model.Question

	if path := v.GetString("raw-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		var source parse.Source
		questions, source = parse.Normalize(string(data), cfg.Topic, parse.ParseFallback)
		slog.Info("parsed saved reply", "path", path, "questions", len(questions), "source", source)
	} else {
		if err := session.ValidateConfig(cfg); err != nil {
			return err
		}
		cat, err := loadCatalog(v.GetString("catalog"))
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		if err := cat.ValidateConfig(cfg); err != nil {
			return err
		}
		if err := prompts.Load(prompts.Templates); err != nil {
			return fmt.Errorf("load prompts: %w", err)
		}
		if v.GetBool("prompt-only") {
			prompt, err := prompts.BuildGeneratePrompt(cfg)
			if err != nil {
				return err
			}
			return writeOutput(v.GetString("output"), []byte(prompt+"\n"))
		}

		client, err := newLLMClient(v)
		if err != nil {
			return fmt.Errorf("create LLM client: %w", err)
		}
		res, err := generate.New(client).Generate(ctx, cfg)
		if err != nil {
			return err
		}
		slog.Debug("raw generation reply", "content", res.Raw)
		questions = res.Questions
	}

	if len(questions) == 0 {
		return session.ErrNoQuestions
	}
	data, err := json.MarshalIndent(questions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	return writeOutput(v.GetString("output"), append(data, '\n'))
}

func writeOutput(path string, data []byte) error {
	var w io.Writer
	if path == "" || path == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func playCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Practice in the terminal",
		RunE:  runPlay,
	}
	f := cmd.Flags()
	addQuizFlags(f)
	addLLMFlags(f)
	addLogFlags(f)
	f.StringP("lang", "l", "en", "Message language (en, ru)")
	f.Bool("no-color", false, "Disable colors")
	return cmd
}

func runPlay(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	// The terminal belongs to the UI; logs only go to --log-file.
	logCloser := setupLogging(v, nil)
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	ctx = appI18n.WithLocalizer(ctx, appI18n.NewLocalizer(lang))

	cfg := quizConfigFromViper(v)
	if err := session.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("%s: %w", appI18n.T(ctx, "ConfigIncomplete"), err)
	}
	cat, err := loadCatalog(v.GetString("catalog"))
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if err := cat.ValidateConfig(cfg); err != nil {
		return err
	}
	if err := prompts.Load(prompts.Templates); err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}
	client, err := newLLMClient(v)
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}

	final, err := tui.Run(ctx, cfg,
		generate.New(client),
		evaluate.New(client, v.GetDuration("judge-timeout")),
		tui.Options{NoColor: v.GetBool("no-color")},
	)
	if err != nil {
		return err
	}
	if final.Phase == session.PhaseResults {
		score := final.Score()
		fmt.Println(appI18n.Td(ctx, "YourScore", map[string]any{
			"Total":      score.TotalScore,
			"Max":        score.MaxScore,
			"Percentage": score.Percentage,
		}))
	}
	return nil
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the reference tables as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := viperForCmd(cmd)
			logCloser := setupLogging(v, os.Stderr)
			defer logCloser.Close()

			cat, err := loadCatalog(v.GetString("catalog"))
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}
			data, err := cat.YAML()
			if err != nil {
				return err
			}
			return writeOutput(v.GetString("output"), data)
		},
	}
	f := cmd.Flags()
	f.String("catalog", "", "Reference tables YAML file (defaults to the built-in catalog)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(f)
	return cmd
}
