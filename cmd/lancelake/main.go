package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/lancelabs/lancelake/pkg/dataset"
	"github.com/lancelabs/lancelake/pkg/llm"
	"github.com/lancelabs/lancelake/pkg/logger"
	"github.com/lancelabs/lancelake/pkg/pipeline"
	"github.com/lancelabs/lancelake/pkg/schema"
)

const (
	defaultCSVPath     = "data/freelancer_earnings_bd.csv"
	defaultModel       = string(anthropic.ModelClaudeSonnet4_5_20250929)
	defaultMaxAttempts = 3
	defaultMaxRows     = 100
	defaultCallTimeout = 60 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists
	_ = godotenv.Load()

	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	csvFlag := flag.String("csv", defaultCSVPath, "path to the dataset CSV (or set LANCELAKE_CSV env var)")
	csvURLFlag := flag.String("csv-url", "", "URL to download the dataset CSV from when the local file is missing")
	tableFlag := flag.String("table", dataset.DefaultTable, "name of the dataset table")
	modelFlag := flag.String("model", defaultModel, "Anthropic model to use")
	maxAttemptsFlag := flag.Int("max-attempts", defaultMaxAttempts, "max generate-validate-execute attempts per question")
	maxRowsFlag := flag.Int("max-rows", defaultMaxRows, "row cap applied to unbounded query plans")
	callTimeoutFlag := flag.Duration("call-timeout", defaultCallTimeout, "timeout for each model API call")
	cacheTTLFlag := flag.Duration("cache-ttl", 0, "answer cache TTL for repeated questions (0 disables)")
	batchFlag := flag.String("batch", "", "file with one question per line, answered concurrently")
	concurrencyFlag := flag.Int("concurrency", 4, "concurrent questions in batch mode")
	flag.Parse()

	if envCSV := os.Getenv("LANCELAKE_CSV"); envCSV != "" {
		*csvFlag = envCSV
	}

	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}

	log := logger.New(*verboseFlag)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if _, err := os.Stat(*csvFlag); errors.Is(err, os.ErrNotExist) && *csvURLFlag != "" {
		log.Info("dataset: downloading CSV", "url", *csvURLFlag, "dest", *csvFlag)
		if err := dataset.FetchCSV(ctx, *csvURLFlag, *csvFlag); err != nil {
			return err
		}
	}

	ds, err := dataset.Load(ctx, dataset.Config{
		Logger:  log,
		CSVPath: *csvFlag,
		Table:   *tableFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	defer ds.Close()

	desc, err := schema.Describe(ctx, ds, schema.Options{})
	if err != nil {
		return fmt.Errorf("failed to describe dataset: %w", err)
	}
	log.Debug("schema described", "columns", len(desc.Columns))

	prompts, err := pipeline.LoadPrompts()
	if err != nil {
		return err
	}

	client := llm.NewAnthropic(llm.AnthropicConfig{
		Logger:      log,
		Model:       anthropic.Model(*modelFlag),
		CallTimeout: *callTimeoutFlag,
	})

	p, err := pipeline.New(&pipeline.Config{
		Logger:      log,
		LLM:         client,
		Dataset:     ds,
		Schema:      desc,
		Prompts:     prompts,
		MaxAttempts: *maxAttemptsFlag,
		MaxRows:     *maxRowsFlag,
		CacheTTL:    *cacheTTLFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer p.Close()

	if *batchFlag != "" {
		return runBatch(ctx, p, *batchFlag, *concurrencyFlag)
	}

	if len(flag.Args()) > 0 {
		question := strings.Join(flag.Args(), " ")
		return askOne(ctx, p, question, *verboseFlag)
	}

	return runREPL(ctx, p, *verboseFlag)
}

func askOne(ctx context.Context, p *pipeline.Pipeline, question string, verbose bool) error {
	answer, err := p.Ask(ctx, question)
	if err != nil {
		return err
	}
	printAnswer(answer, verbose)
	return nil
}

func runREPL(ctx context.Context, p *pipeline.Pipeline, verbose bool) error {
	fmt.Println("Ask questions about the freelancer earnings dataset. Type 'quit' to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.EqualFold(question, "quit") || strings.EqualFold(question, "exit") {
			break
		}

		answer, err := p.Ask(ctx, question)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		printAnswer(answer, verbose)
	}

	return scanner.Err()
}

func runBatch(ctx context.Context, p *pipeline.Pipeline, path string, concurrency int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read batch file: %w", err)
	}

	var questions []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			questions = append(questions, line)
		}
	}
	if len(questions) == 0 {
		return fmt.Errorf("batch file %q has no questions", path)
	}

	outcomes, err := p.AskAll(ctx, questions, concurrency)
	if err != nil {
		return err
	}

	for _, outcome := range outcomes {
		fmt.Printf("Q: %s\n", outcome.Question)
		if outcome.Err != nil {
			fmt.Printf("Error: %v\n\n", outcome.Err)
			continue
		}
		fmt.Printf("A: %s\n\n", outcome.Answer.Text)
	}

	return nil
}

func printAnswer(answer *pipeline.Answer, verbose bool) {
	fmt.Println(answer.Text)
	if verbose {
		fmt.Println("\n--- plan ---")
		fmt.Println(answer.Plan.Render())
		fmt.Println("--- result ---")
		fmt.Println(answer.Result.Render())
		fmt.Printf("(answered on attempt %d)\n", answer.Attempts)
	}
}
