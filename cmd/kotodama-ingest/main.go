// Command kotodama-ingest runs the offline transcript ingestion pipeline and
// its maintenance operations against the configured vector index.
//
// Usage:
//
//	kotodama-ingest [-config config.yaml] <command> [flags] [args]
//
// Commands:
//
//	process   run the full pipeline on a subtitle file
//	reupload  upsert previously saved embeddings without re-processing
//	cleanup   delete every vector in a namespace
//	stats     print index statistics
//	models    list the supported embedding models
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/kotodama-ai/kotodama/internal/chunker"
	"github.com/kotodama-ai/kotodama/internal/config"
	"github.com/kotodama-ai/kotodama/internal/embed"
	"github.com/kotodama-ai/kotodama/internal/ingest"
	"github.com/kotodama-ai/kotodama/internal/knowledge"
	"github.com/kotodama-ai/kotodama/internal/pipeline"
	"github.com/kotodama-ai/kotodama/internal/providers"
	"github.com/kotodama-ai/kotodama/internal/resilience"
	"github.com/kotodama-ai/kotodama/internal/transcript"
	"github.com/kotodama-ai/kotodama/pkg/provider/embeddings"
	"github.com/kotodama-ai/kotodama/pkg/provider/llm"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return 2
	}
	command, args := args[0], args[1:]

	// models needs no config, no providers, no network.
	if command == "models" {
		return cmdModels()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "kotodama-ingest: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "kotodama-ingest: %v\n", err)
		}
		return 1
	}

	setupLogger(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case "process":
		return cmdProcess(ctx, cfg, args)
	case "reupload":
		return cmdReupload(ctx, cfg, args)
	case "cleanup":
		return cmdCleanup(ctx, cfg, args)
	case "stats":
		return cmdStats(ctx, cfg)
	default:
		fmt.Fprintf(os.Stderr, "kotodama-ingest: unknown command %q\n\n", command)
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: kotodama-ingest [-config config.yaml] <command> [flags] [args]

Commands:
  process [-namespace ns] [-output dir] <file.srt>
        Run the full pipeline: parse, clean, extract, chunk, embed, upsert.
  reupload [-namespace ns] <file.srt | 06-embeddings.json>
        Upsert saved embeddings without re-running the pipeline.
  cleanup [-yes] <namespace>
        Delete every vector in the namespace.
  stats
        Print index statistics.
  models
        List the supported embedding models.
`)
}

// ── process ───────────────────────────────────────────────────────────────────

func cmdProcess(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	namespace := fs.String("namespace", "", "upsert namespace (default: transcript name)")
	output := fs.String("output", "", "directory for per-stage JSON artefacts (default: pipeline.output_dir)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "kotodama-ingest: process needs exactly one subtitle file")
		return 2
	}
	path := fs.Arg(0)

	outputDir := cfg.Pipeline.OutputDir
	if *output != "" {
		outputDir = *output
	}

	svc, err := buildService(cfg, outputDir, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kotodama-ingest: %v\n", err)
		return 1
	}

	result, err := svc.ProcessWithNamespace(ctx, path, *namespace)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kotodama-ingest: %v\n", err)
		return 1
	}

	fmt.Printf("\ndone: %d vectors upserted to namespace %q\n",
		len(result.Embedded), result.Namespace)
	return 0
}

// ── reupload ──────────────────────────────────────────────────────────────────

func cmdReupload(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("reupload", flag.ExitOnError)
	namespace := fs.String("namespace", "", "upsert namespace (default: transcript name)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "kotodama-ingest: reupload needs a subtitle file or a saved embeddings JSON")
		return 2
	}
	path := fs.Arg(0)

	svc, err := buildService(cfg, cfg.Pipeline.OutputDir, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kotodama-ingest: %v\n", err)
		return 1
	}

	count, err := svc.Reupload(ctx, path, *namespace)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kotodama-ingest: %v\n", err)
		return 1
	}
	fmt.Printf("re-uploaded %d vectors\n", count)
	return 0
}

// ── cleanup ───────────────────────────────────────────────────────────────────

func cmdCleanup(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "kotodama-ingest: cleanup needs exactly one namespace")
		return 2
	}
	namespace := fs.Arg(0)

	if !*yes && !confirm(fmt.Sprintf("delete ALL vectors in namespace %q?", namespace)) {
		fmt.Println("aborted")
		return 0
	}

	svc, err := buildService(cfg, "", false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kotodama-ingest: %v\n", err)
		return 1
	}

	if err := svc.Cleanup(ctx, namespace); err != nil {
		fmt.Fprintf(os.Stderr, "kotodama-ingest: %v\n", err)
		return 1
	}
	fmt.Printf("namespace %q cleaned\n", namespace)
	return 0
}

// confirm prompts on stdout and reads one line from stdin. Anything other
// than "y" or "yes" counts as a no.
func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// ── stats ─────────────────────────────────────────────────────────────────────

func cmdStats(ctx context.Context, cfg *config.Config) int {
	svc, err := buildService(cfg, "", false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kotodama-ingest: %v\n", err)
		return 1
	}

	desc, err := svc.Describe(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kotodama-ingest: %v\n", err)
		return 1
	}

	fmt.Printf("index:      %s\n", cfg.VectorStore.IndexName)
	fmt.Printf("dimension:  %d\n", desc.Dimension)
	fmt.Printf("vectors:    %d\n", desc.TotalVectorCount)
	if desc.IndexFullness > 0 {
		fmt.Printf("fullness:   %.1f%%\n", desc.IndexFullness*100)
	}

	if len(desc.Namespaces) == 0 {
		fmt.Println("namespaces: (none)")
		return 0
	}

	names := make([]string, 0, len(desc.Namespaces))
	for name := range desc.Namespaces {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAMESPACE\tVECTORS")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%d\n", name, desc.Namespaces[name].Count())
	}
	w.Flush()
	return 0
}

// ── models ────────────────────────────────────────────────────────────────────

func cmdModels() int {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ALIAS\tMODEL ID\tPROVIDER\tDIMS\tQUERY PREFIX")
	for _, m := range ingest.ListModels() {
		prefix := m.QueryPrefix
		if prefix == "" {
			prefix = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", m.Alias, m.ID, m.ProviderName, m.Dimensions, prefix)
	}
	w.Flush()
	return 0
}

// ── service assembly ──────────────────────────────────────────────────────────

// buildService wires the pipeline stages from config. withProgress attaches a
// terminal progress printer; maintenance commands (cleanup, stats) leave it
// off since they never run the pipeline.
func buildService(cfg *config.Config, outputDir string, withProgress bool) (*ingest.Service, error) {
	reg := config.NewRegistry()
	providers.RegisterBuiltins(reg)

	embedProvider, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("create embeddings provider %q: %w", cfg.Providers.Embeddings.Name, err)
	}
	spec, err := embeddings.ResolveModel(cfg.Providers.Embeddings.Model)
	if err != nil {
		return nil, err
	}
	embedder := embed.NewService(embedProvider, spec,
		embed.WithLimiter(resilience.NewOutboundLimiter(resilience.DefaultOutboundPermits)),
	)

	index, err := reg.CreateVectorStore(cfg.VectorStore)
	if err != nil {
		return nil, fmt.Errorf("create vector store %q: %w", cfg.VectorStore.Provider, err)
	}

	cleanerOpts := []transcript.CleanerOption{
		transcript.WithFillerRemoval(cfg.Pipeline.RemoveFillers),
	}
	if cfg.Pipeline.FuzzyCorrection {
		cleanerOpts = append(cleanerOpts,
			transcript.WithFuzzyMatcher(transcript.NewFuzzyMatcher(transcript.CanonicalTerms())))
	}
	cleaner := transcript.NewCleaner(cleanerOpts...)

	var segOpts []knowledge.SegmenterOption
	if cfg.Pipeline.TopicThreshold > 0 {
		segOpts = append(segOpts, knowledge.WithSimilarityThreshold(cfg.Pipeline.TopicThreshold))
	}
	if cfg.Pipeline.TopicCharBudget > 0 {
		segOpts = append(segOpts, knowledge.WithTopicCharBudget(cfg.Pipeline.TopicCharBudget))
	}
	segmenter := knowledge.NewSegmenter(embedder, segOpts...)

	var extractorOpts []knowledge.ExtractorOption
	if cfg.Pipeline.Enhancement.Enabled {
		llmProvider, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			slog.Warn("enhancement disabled: no usable llm provider",
				"name", cfg.Providers.LLM.Name, "err", err)
		} else {
			enhancer := knowledge.NewEnhancer(&llmCompleter{provider: llmProvider})
			extractorOpts = append(extractorOpts, knowledge.WithEnhancer(enhancer))
		}
	}
	extractor := knowledge.NewExtractor(segmenter, extractorOpts...)

	svcOpts := []ingest.Option{
		ingest.WithIndexName(cfg.VectorStore.IndexName),
	}
	if outputDir != "" {
		svcOpts = append(svcOpts, ingest.WithOutputDir(outputDir))
	}
	if withProgress {
		svcOpts = append(svcOpts, ingest.WithProgress(printProgress))
	}

	var chunkOpts []chunker.Option
	if cfg.Pipeline.MinChunkSize > 0 {
		chunkOpts = append(chunkOpts, chunker.WithMinChunkSize(cfg.Pipeline.MinChunkSize))
	}
	if cfg.Pipeline.MaxChunkSize > 0 {
		chunkOpts = append(chunkOpts, chunker.WithMaxChunkSize(cfg.Pipeline.MaxChunkSize))
	}
	if cfg.Pipeline.OmitChunkContext {
		chunkOpts = append(chunkOpts, chunker.WithContext(false))
	}

	return ingest.New(cleaner, extractor, chunker.NewChunker(chunkOpts...), embedder, index, svcOpts...), nil
}

// printProgress renders one line per stage update, carriage-returning within
// a stage so long stages show a moving percentage.
func printProgress(p pipeline.Progress) {
	fmt.Printf("\r[%d/%d] %-28s %5.1f%%  (%s)",
		p.Stage, p.TotalStages, p.Label, p.Percent, p.Elapsed.Round(time.Second))
	if p.Percent >= 100 {
		fmt.Println()
	}
}

// llmCompleter adapts an llm.Provider to the single-prompt completion
// interface the enhancement pass consumes.
type llmCompleter struct {
	provider llm.Provider
}

func (c *llmCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func setupLogger(level config.LogLevel) {
	lv := slog.LevelInfo
	switch level {
	case config.LogDebug:
		lv = slog.LevelDebug
	case config.LogWarn:
		lv = slog.LevelWarn
	case config.LogError:
		lv = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv})))
}
