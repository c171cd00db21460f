package cli

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"prodvec/internal/domain"
)

var (
	okLabel   = color.New(color.FgGreen, color.Bold).SprintFunc()
	failLabel = color.New(color.FgRed, color.Bold).SprintFunc()
	warnText  = color.New(color.FgYellow).SprintFunc()
	dimText   = color.New(color.Faint).SprintFunc()
)

func statusLabel(ok bool) string {
	if ok {
		return okLabel("OK")
	}
	return failLabel("FAILED")
}

func printRunResult(r *domain.RunResult) {
	fmt.Printf("\n%s %s %s\n", statusLabel(r.Success), r.EntityKey, dimText(r.DatasetPath))
	fmt.Printf("  Stage:             %s\n", r.Stage)
	fmt.Printf("  Chunks loaded:     %d\n", r.ChunksLoaded)
	fmt.Printf("  Chunks vectorized: %d\n", r.ChunksVectorized)
	fmt.Printf("  Points upserted:   %d\n", r.PointsUpserted)
	if r.ChunksFailed > 0 {
		fmt.Printf("  %s %d chunk(s) failed to embed: %v\n", warnText("Warning:"), r.ChunksFailed, r.FailedChunkIDs)
	}
	if r.Error != "" {
		fmt.Printf("  %s %s\n", failLabel("Error:"), r.Error)
	}
	if v := r.Verification; v != nil {
		printVerification(v)
	}
	if info := r.CollectionInfo; info != nil {
		fmt.Printf("  Collection %s now holds %d points\n", info.Name, info.PointsCount)
	}
}

func printVerification(v *domain.Verification) {
	count := fmt.Sprintf("%d", v.PointsCount)
	if !v.CountMatches {
		count = warnText(count + " (unexpected)")
	}
	fmt.Printf("  Verified points:   %s\n", count)
	if v.SampleChunkID != "" {
		fmt.Printf("  Sample chunk:      %s\n", v.SampleChunkID)
	}

	queries := make([]string, 0, len(v.Queries))
	for q := range v.Queries {
		queries = append(queries, q)
	}
	sort.Strings(queries)
	for _, q := range queries {
		fmt.Printf("  Query %q\n", q)
		printHits(v.Queries[q], "    ")
	}
}

func printHits(hits []domain.SearchHit, indent string) {
	if len(hits) == 0 {
		fmt.Printf("%s%s\n", indent, dimText("no results"))
		return
	}
	for i, h := range hits {
		fmt.Printf("%s%d. %.3f %s %s\n", indent, i+1, h.Score, h.ChunkID, dimText(h.EntityKey))
		fmt.Printf("%s   %s\n", indent, h.Snippet)
	}
}

func printCollectionInfo(info *domain.CollectionInfo) {
	fmt.Printf("Collection:   %s\n", info.Name)
	fmt.Printf("Status:       %s\n", info.Status)
	fmt.Printf("Points:       %d\n", info.PointsCount)
	fmt.Printf("Vector size:  %d\n", info.VectorSize)
	fmt.Printf("Distance:     %s\n", info.Distance)
	if len(info.IndexedFields) > 0 {
		fmt.Printf("Indexes:      %v\n", info.IndexedFields)
	}
}
