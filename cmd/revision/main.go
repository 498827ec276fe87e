package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pavelanni/revision/internal/catalog"
	"github.com/pavelanni/revision/internal/llm"
	"github.com/pavelanni/revision/internal/llm/prompts"
	"github.com/pavelanni/revision/internal/model"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "revision",
		Short:        "AI practice quizzes for revision",
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(serve, generateCmd(), playCmd(), catalogCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `revision --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	f.String("log-file", "", "Also write logs to this file, rotated by size")
}

func addLLMFlags(f *pflag.FlagSet) {
	f.String("llm-url", "https://api.openai.com/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for the LLM provider (or set REVISION_LLM_KEY)")
	f.String("llm-model", "gpt-4o-mini", "Model used to generate questions")
	f.String("judge-model", "", "Model used to grade open answers (defaults to --llm-model)")
	f.StringSlice("llm-header", nil, "Extra request header as Key=Value (repeatable)")
	f.Bool("json-mode", true, "Request JSON-only replies (disable for providers that reject response_format)")
	f.Duration("judge-timeout", 10*time.Second, "Time limit for grading one open answer")
	f.String("prompt-variant", string(prompts.VariantStandard), "Grading prompt variant (strict, standard, lenient)")
	f.Bool("record-exchanges", false, "Store every prompt and reply in the session store")
}

func addQuizFlags(f *pflag.FlagSet) {
	f.StringP("board", "b", "", "Education board, e.g. AQA")
	f.String("level", "", "Grade level, e.g. GCSE")
	f.StringP("subject", "s", "", "Subject, e.g. Physics")
	f.StringP("topic", "t", "", "Topic within the subject")
	f.String("subtopic", "", "Optional focus within the topic")
	f.IntP("count", "n", model.DefaultQuestionCount, "Number of questions")
	f.String("type", model.PreferenceMixed, "Question type preference (mixed, multiple-choice, short-answer, essay, true-false, fill-blank)")
	f.StringP("difficulty", "d", model.PreferenceMixed, "Difficulty preference (mixed, easy, medium, hard)")
	f.String("catalog", "", "Reference tables YAML file (defaults to the built-in catalog)")
}

// setupLogging installs the default logger. Logs go to w and, when
// --log-file is set, to a rotated file; a nil w with no file discards logs.
// The returned closer flushes the file.
func setupLogging(v *viper.Viper, w io.Writer) io.Closer {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var closer io.Closer = io.NopCloser(nil)
	if path := v.GetString("log-file"); path != "" {
		file := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		closer = file
		if w == nil {
			w = file
		} else {
			w = io.MultiWriter(w, file)
		}
	}
	if w == nil {
		w = io.Discard
	}

	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(w, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
	return closer
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("REVISION")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("revision")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/revision")
	v.AddConfigPath("/etc/revision")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// parseHeaders turns Key=Value pairs into a header map.
func parseHeaders(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q: want Key=Value", p)
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers, nil
}

func newLLMClient(v *viper.Viper) (*llm.Client, error) {
	headers, err := parseHeaders(v.GetStringSlice("llm-header"))
	if err != nil {
		return nil, err
	}
	variant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(variant) {
		slog.Warn("invalid prompt-variant, using standard", "variant", variant)
		variant = string(prompts.VariantStandard)
	}
	if v.GetString("llm-key") == "" {
		slog.Warn("no LLM API key configured")
	}
	return llm.New(llm.Config{
		BaseURL:    v.GetString("llm-url"),
		APIKey:     v.GetString("llm-key"),
		Model:      v.GetString("llm-model"),
		JudgeModel: v.GetString("judge-model"),
		Headers:    headers,
		JSONMode:   v.GetBool("json-mode"),
		Variant:    prompts.Variant(variant),
	}), nil
}

func loadCatalog(path string) (catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	c, err := catalog.Load(path)
	if err != nil {
		return catalog.Catalog{}, err
	}
	slog.Info("loaded catalog", "path", path, "subjects", len(c.Subjects))
	return c, nil
}

func quizConfigFromViper(v *viper.Viper) model.QuizConfig {
	return model.QuizConfig{
		Board:         v.GetString("board"),
		Level:         v.GetString("level"),
		Subject:       v.GetString("subject"),
		Topic:         v.GetString("topic"),
		Subtopic:      v.GetString("subtopic"),
		QuestionCount: v.GetInt("count"),
		QuestionType:  v.GetString("type"),
		Difficulty:    v.GetString("difficulty"),
	}
}

// pingLLM checks the provider before serving.
func pingLLM(ctx context.Context, c *llm.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.Ping(ctx)
}
