package lens

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/glarson/lensproxy/apimodels"
	"github.com/glarson/lensproxy/internal/config"
	"github.com/glarson/lensproxy/internal/extract"
)

const cacheTimeFormat = "2006-01-02T15:04:05Z"

// DefaultCatalog is used by generate when the config file defines no lenses.
var DefaultCatalog = []config.LensDefinition{
	{
		ID:    "ai-privacy",
		Title: "AI + privacy",
		Instruction: "Summarise how the candidate applies AI while protecting privacy and regulated data. " +
			"Focus on applied systems, leadership signals, and measurable outcomes. " +
			"Return bullet points that show real projects, not generic traits.",
		RecommendedTerms: []string{"privacy", "AI", "OCR", "security", "tabletop"},
	},
	{
		ID:    "manufacturing-ops",
		Title: "Manufacturing operations",
		Instruction: "Summarise the candidate's experience with manufacturing, firmware, and production systems. " +
			"Highlight uptime improvements, hardware labs, and PLC or robotics work.",
		RecommendedTerms: []string{"manufacturing", "TiVo", "PLC", "conveyors", "uptime"},
	},
	{
		ID:    "technology-leadership",
		Title: "Technology leadership",
		Instruction: "Summarise the candidate's leadership style. " +
			"Cover roadmaps, mixed teams, communication, and how they balance hands-on work with management.",
		RecommendedTerms: []string{"roadmap", "team", "Agile", "mentorship", "leadership"},
	},
}

// GenerateCache summarizes every catalog lens with the default model. The document is loaded once.
// Output order follows the catalog; the first failure cancels the remaining lenses.
func (s *Service) GenerateCache(ctx context.Context, catalog []config.LensDefinition, origin string, concurrency int) (*apimodels.LensCache, error) {
	logger := LoggerFrom(ctx)

	if len(catalog) == 0 {
		catalog = DefaultCatalog
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if err := s.checkConfigured(); err != nil {
		return nil, err
	}

	document, err := s.loadDocument(ctx, origin)
	if err != nil {
		return nil, errDocumentLoad(err)
	}

	model := s.models.Default()
	entries := make([]apimodels.CachedLens, len(catalog))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, def := range catalog {
		g.Go(func() error {
			logger.Info("Generating lens", "id", def.ID, "model", model)

			raw, err := s.generate(gctx, BuildPrompt(def.Instruction, document), model)
			if err != nil {
				return fmt.Errorf("lens %s: %w", def.ID, errUpstream(s.provider.Name(), err, s.inferenceTimeout))
			}
			res := extract.Parse(raw)
			if res.Status != extract.Parsed {
				return fmt.Errorf("lens %s: %w", def.ID, errExtraction(res, raw))
			}

			summary, points := extract.Normalize(res.Object, CacheKeyPoints)
			entries[i] = apimodels.CachedLens{
				ID:               def.ID,
				Title:            def.Title,
				Summary:          summary,
				KeyPoints:        points,
				RecommendedTerms: nonNil(def.RecommendedTerms),
				SourceNotes:      nonNil(def.SourceNotes),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &apimodels.LensCache{
		GeneratedAt: s.now().UTC().Format(cacheTimeFormat),
		ModelHint:   fmt.Sprintf("Generated via %s (default %s).", s.provider.Name(), model),
		Lenses:      entries,
	}, nil
}

// WriteCache writes the cache as indented JSON, creating parent directories.
func WriteCache(path string, cache *apimodels.LensCache) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode lens cache: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func nonNil(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
