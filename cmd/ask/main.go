// Command ask answers a single query against a knowledge base.
//
//	ask [-kb knowledge_base.json] [-threshold 0.3] "What is the capital of France?"
//
// With no arguments the query is read from the first line of stdin.
// Exit status is 0 when an answer or the not-found message was printed,
// 2 when the embedding provider is unavailable and 1 for any other error.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"kblookup/app"
	"kblookup/config"
	"kblookup/internal/observability"
	"kblookup/rag"
)

const (
	exitOK          = 0
	exitError       = 1
	exitUnavailable = 2
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.SetOutput(stderr)
	kbPath := fs.String("kb", "", "knowledge base path (default $KB_PATH)")
	kbFormat := fs.String("format", "", "knowledge base format: auto, json, yaml, sqlite")
	threshold := fs.Float64("threshold", 0, "similarity a match must exceed (default $RETRIEVAL_THRESHOLD)")
	verbose := fs.Bool("v", false, "print the matched id and score")
	if err := fs.Parse(args); err != nil {
		return exitError
	}

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "kb":
			cfg.KnowledgeBase.Path = *kbPath
		case "format":
			cfg.KnowledgeBase.Format = strings.ToLower(*kbFormat)
		case "threshold":
			cfg.Retrieval.Threshold = *threshold
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}

	query := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(query) == "" {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			fmt.Fprintln(stderr, err)
			return exitError
		}
		query = line
	}
	if strings.TrimSpace(query) == "" {
		fmt.Fprintln(stderr, "usage: ask [flags] <query>")
		return exitError
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	defer func() { _ = logger.Sync() }()

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return exitError
	}

	ans, err := deps.Retriever.Answer(ctx, query)
	switch {
	case errors.Is(err, rag.ErrProviderUnavailable):
		logger.Error("embedding provider unavailable", zap.Error(err))
		return exitUnavailable
	case err != nil:
		logger.Error("query failed", zap.Error(err))
		return exitError
	}

	fmt.Fprintln(stdout, ans.Message())
	if *verbose && ans.Found() {
		fmt.Fprintf(stderr, "id=%s score=%.4f\n", ans.ID, ans.Score)
	}
	return exitOK
}
