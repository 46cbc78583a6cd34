// Command kbgen builds a knowledge base from PDF, HTML, text and markdown
// documents.
//
//	kbgen -o knowledge_base.json docs/ extra.pdf
//
// Each document is split into chunks of up to three sentences and embedded
// with the configured provider. Chunks that cannot be embedded are written
// without an embedding and are skipped at query time.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"kblookup/config"
	"kblookup/ingest"
	"kblookup/internal/observability"
	"kblookup/kb"
	"kblookup/provider"
	"kblookup/rag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

type summary struct {
	documents int
	skipped   int
	chunks    int
	pending   int
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	flags := flag.NewFlagSet("kbgen", flag.ContinueOnError)
	flags.SetOutput(stderr)
	out := flags.String("o", "knowledge_base.json", "output path")
	format := flags.String("format", "auto", "output format: auto, json, yaml, sqlite")
	noEmbed := flags.Bool("no-embed", false, "write chunks without embeddings")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if flags.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: kbgen [-o path] [-format f] [-no-embed] <file|dir>...")
		return 1
	}
	outFormat, err := kb.ParseFormat(*format)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	var embedder rag.Embedder
	if !*noEmbed {
		e, err := provider.New(ctx, cfg.Embedder, logger)
		if err != nil {
			logger.Error("embedding provider initialization failed", zap.Error(err))
			return 1
		}
		embedder = timeoutEmbedder{e, cfg.Retrieval.EmbedTimeout}
	}

	files, err := collect(flags.Args())
	if err != nil {
		logger.Error("failed to list inputs", zap.Error(err))
		return 1
	}

	var (
		sum     summary
		entries []rag.Entry
		seen    = make(map[string]string)
	)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			logger.Warn("interrupted", zap.Error(err))
			return 1
		}
		doc, err := ingest.ExtractFile(f.path)
		if err != nil {
			logger.Warn("skipping document", zap.String("path", f.path), zap.Error(err))
			sum.skipped++
			continue
		}
		if doc.Source == filepath.Base(f.path) {
			doc.Source = f.name
		}
		if prev, ok := seen[doc.Source]; ok {
			logger.Warn("skipping document with duplicate source",
				zap.String("path", f.path),
				zap.String("source", doc.Source),
				zap.String("first", prev))
			sum.skipped++
			continue
		}
		seen[doc.Source] = f.path

		chunks, failed := rag.ChunkText(ctx, doc.Text, doc.Source, embedder)
		entries = append(entries, chunks...)
		sum.documents++
		sum.chunks += len(chunks)
		sum.pending += failed
		logger.Info("document chunked",
			zap.String("source", doc.Source),
			zap.String("title", doc.Title),
			zap.Int("chunks", len(chunks)),
			zap.Int("pending", failed))
	}

	base, err := rag.NewKnowledgeBase(entries...)
	if err != nil {
		logger.Error("invalid knowledge base", zap.Error(err))
		return 1
	}
	if err := kb.Save(*out, outFormat, base); err != nil {
		logger.Error("failed to write knowledge base", zap.String("path", *out), zap.Error(err))
		return 1
	}

	logger.Info("knowledge base written",
		zap.String("path", *out),
		zap.String("format", string(outFormat.Resolve(*out))),
		zap.Int("documents", sum.documents),
		zap.Int("skipped", sum.skipped),
		zap.Int("entries", sum.chunks),
		zap.Int("pending", sum.pending),
		zap.Int("dimension", base.Dimension()))
	return 0
}

type inputFile struct {
	path string
	// name is the path relative to the argument it was found under.
	name string
}

// collect expands directory arguments into the supported files below them,
// in lexical order. File arguments are taken as given.
func collect(args []string) ([]inputFile, error) {
	var files []inputFile
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, inputFile{path: arg, name: filepath.Base(arg)})
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !ingest.Supported(path) {
				return nil
			}
			rel, err := filepath.Rel(arg, path)
			if err != nil {
				return err
			}
			files = append(files, inputFile{path: path, name: filepath.ToSlash(rel)})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// timeoutEmbedder bounds each chunk embedding.
type timeoutEmbedder struct {
	rag.Embedder
	timeout time.Duration
}

func (e timeoutEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return e.Embedder.Embed(ctx, text)
}
