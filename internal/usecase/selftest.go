package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"prodvec/internal/domain"
)

const (
	markerV1 = "[UPDATED_V1]"
	markerV2 = "[UPDATED_V2]"
)

// SelfTestStep is one check of the replace-not-duplicate self test.
type SelfTestStep struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Detail  string `json:"detail,omitempty"`
}

type SelfTestReport struct {
	EntityKey      string         `json:"entity_key"`
	StartedAt      time.Time      `json:"test_started"`
	CompletedAt    time.Time      `json:"test_completed"`
	Steps          []SelfTestStep `json:"tests"`
	OverallSuccess bool           `json:"overall_success"`
	Error          string         `json:"error,omitempty"`
}

// SelfTest upserts the dataset twice with marked content and checks that the
// entity's point count stays at the chunk count and that the stored content
// reflects the second update. It writes to the live collection.
func (p *Pipeline) SelfTest(ctx context.Context, ds *domain.Dataset) (*SelfTestReport, error) {
	key := ds.Metadata.ProductID
	report := &SelfTestReport{
		EntityKey: key,
		StartedAt: p.now().UTC(),
	}
	finish := func(err error) (*SelfTestReport, error) {
		report.CompletedAt = p.now().UTC()
		if err != nil {
			report.Error = err.Error()
			report.OverallSuccess = false
			return report, err
		}
		report.OverallSuccess = true
		for _, s := range report.Steps {
			report.OverallSuccess = report.OverallSuccess && s.Success
		}
		return report, nil
	}

	if _, err := p.collections.EnsureCollection(ctx, p.spec, ModeIdempotent); err != nil {
		return finish(err)
	}

	initial := p.probe.CountForEntity(ctx, key)
	report.Steps = append(report.Steps, SelfTestStep{Name: "initial_count", Success: true, Count: initial})

	chunks := ds.Chunks()
	enricher := p.engine.Enricher().WithHierarchy(ds.Metadata.Brand, ds.Metadata.CategoryPath, ds.Metadata.ProductLine)

	for i := range chunks {
		chunks[i].Content += " " + markerV1
	}
	first, err := p.engine.WithEnricher(enricher.WithContentVersion("2.1")).UpsertEntity(ctx, key, chunks)
	if err != nil {
		return finish(err)
	}
	afterFirst := p.probe.CountForEntity(ctx, key)
	report.Steps = append(report.Steps, SelfTestStep{
		Name:    "first_update",
		Success: first.Success,
		Count:   afterFirst,
		Detail:  fmt.Sprintf("points changed from %d to %d", initial, afterFirst),
	})

	for i := range chunks {
		chunks[i].Content = strings.Replace(chunks[i].Content, markerV1, markerV2, 1)
	}
	second, err := p.engine.WithEnricher(enricher.WithContentVersion("2.2")).UpsertEntity(ctx, key, chunks)
	if err != nil {
		return finish(err)
	}
	afterSecond := p.probe.CountForEntity(ctx, key)
	stable := afterSecond == afterFirst
	noDuplicates := afterSecond == second.PointsUpserted
	report.Steps = append(report.Steps, SelfTestStep{
		Name:    "second_update",
		Success: second.Success && stable && noDuplicates,
		Count:   afterSecond,
		Detail:  fmt.Sprintf("count_stable=%t no_duplicates=%t", stable, noDuplicates),
	})

	step := SelfTestStep{Name: "content_verification", Count: afterSecond}
	if sample := p.probe.SampleForEntity(ctx, key); sample != nil {
		contentUpdated := strings.Contains(sample.Payload.Content, markerV2)
		var version string
		if sys := sample.Payload.Metadata.System; sys != nil {
			version = sys.ContentVersion
		}
		step.Success = contentUpdated && version == "2.2"
		step.Detail = fmt.Sprintf("content_updated=%t sample_version=%s", contentUpdated, version)
	} else {
		step.Detail = "no sample point found"
	}
	report.Steps = append(report.Steps, step)

	return finish(nil)
}
