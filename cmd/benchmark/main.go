package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"prodvec/config"
	"prodvec/internal/adapter/embedding"
	"prodvec/internal/adapter/store"
	"prodvec/internal/domain"
	"prodvec/internal/logging"
)

func main() {
	dir := flag.String("dir", ".", "Directory holding prodvec.yaml and the local vector store")
	query := flag.String("q", "", "Query to test (default: the configured verification queries)")
	entity := flag.String("entity", "", "Restrict results to one entity key")
	topK := flag.Int("k", 5, "Number of results per query")
	flag.Parse()

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := config.ApplyEnv(cfg, *dir); err != nil {
		fmt.Fprintf(os.Stderr, "Error applying environment: %v\n", err)
		os.Exit(1)
	}

	queries := cfg.Verify.Queries
	if *query != "" {
		queries = []string{*query}
	}
	if len(queries) == 0 {
		fmt.Println("Usage: go run ./cmd/benchmark -dir ./shop -q \"query\"")
		os.Exit(1)
	}

	logger := logging.New(os.Stderr, logging.LevelWarn)
	embedder, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedder init failed: %v\n", err)
		os.Exit(1)
	}

	st, err := store.NewBoltVectorStore(config.StoreDBPath(*dir, cfg), cfg.Store.Timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening vector store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	info, err := st.CollectionInfo(ctx, cfg.Collection.Name)
	if err != nil || info.PointsCount == 0 {
		fmt.Fprintf(os.Stderr, "No points in %s - run 'prodvec ingest' first\n", cfg.Collection.Name)
		os.Exit(1)
	}

	var filter domain.Filter
	if *entity != "" {
		filter = domain.MatchField(domain.KeyEntityKey, *entity)
	}

	fmt.Println("PRODUCT SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Collection: %s (%d points, %s)\n", info.Name, info.PointsCount, info.Distance)
	fmt.Printf("Model:      %s (%d dimensions)\n\n", embedder.ModelName(), embedder.Dimension())

	var top1Total, avgTotal float64
	var latency time.Duration
	measured := 0
	for _, q := range queries {
		fmt.Printf("Query: \"%s\"\n", q)
		fmt.Println(strings.Repeat("-", 70))

		start := time.Now()
		vector, err := embedder.Embed(ctx, q)
		if err != nil {
			fmt.Printf("  embedding error: %v\n\n", err)
			continue
		}
		results, err := st.Search(ctx, cfg.Collection.Name, vector, filter, *topK)
		elapsed := time.Since(start)
		if err != nil {
			fmt.Printf("  search error: %v\n\n", err)
			continue
		}
		if len(results) == 0 {
			fmt.Printf("  no results\n\n")
			continue
		}

		sum := 0.0
		for i, r := range results {
			sum += r.Score
			preview := strings.ReplaceAll(r.Payload.Content, "\n", " ")
			if len([]rune(preview)) > 100 {
				preview = string([]rune(preview)[:100]) + "..."
			}
			fmt.Printf("%d. [%s %.3f] %s\n", i+1, rating(r.Score), r.Score, r.Payload.ChunkID)
			fmt.Printf("   %s\n", preview)
		}
		fmt.Printf("   (%s)\n\n", elapsed.Round(time.Millisecond))

		top1Total += results[0].Score
		avgTotal += sum / float64(len(results))
		latency += elapsed
		measured++
	}

	if measured == 0 {
		os.Exit(1)
	}
	n := float64(measured)
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS (%d queries):\n", measured)
	fmt.Printf("  Mean top-1 similarity:   %.3f\n", top1Total/n)
	fmt.Printf("  Mean average similarity: %.3f\n", avgTotal/n)
	fmt.Printf("  Mean latency:            %s\n", (latency / time.Duration(measured)).Round(time.Millisecond))
	if embedder.ModelName() == embedding.OfflineModelName {
		fmt.Println("  Note: offline embeddings carry no semantic similarity")
	}
}

func rating(score float64) string {
	switch {
	case score > 0.7:
		return "HIGH"
	case score > 0.5:
		return "GOOD"
	case score > 0.3:
		return "OK"
	}
	return "LOW"
}
