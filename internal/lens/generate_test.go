package lens

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glarson/lensproxy/apimodels"
	"github.com/glarson/lensproxy/internal/config"
	"github.com/glarson/lensproxy/internal/llm"
)

func TestGenerateCache(t *testing.T) {
	p := &fakeProvider{respond: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "privacy"):
			return `{"summary":"Privacy first.","bullets":["a","b","c","d"]}`, nil
		case strings.Contains(prompt, "manufacturing"):
			return "```json\n{\"summary\":\"Factory floor.\",\"bullets\":[\"uptime\"]}\n```", nil
		default:
			return `Sure! {"summary":"Leads teams."}`, nil
		}
	}}
	src := &fakeSource{text: "resume"}
	svc := newTestService(p, src)

	cache, err := svc.GenerateCache(context.Background(), nil, "", 3)
	require.NoError(t, err)

	assert.Equal(t, "2026-03-01T17:00:00Z", cache.GeneratedAt)
	assert.Contains(t, cache.ModelHint, "m1")
	require.Len(t, cache.Lenses, len(DefaultCatalog))
	for i, entry := range cache.Lenses {
		assert.Equal(t, DefaultCatalog[i].ID, entry.ID)
		assert.LessOrEqual(t, len(entry.KeyPoints), CacheKeyPoints)
		assert.NotNil(t, entry.SourceNotes)
	}

	assert.Equal(t, "Privacy first.", cache.Lenses[0].Summary)
	assert.Equal(t, []string{"a", "b", "c"}, cache.Lenses[0].KeyPoints)
	assert.Equal(t, []string{"uptime"}, cache.Lenses[1].KeyPoints)
	assert.Empty(t, cache.Lenses[2].KeyPoints)
	assert.Equal(t, DefaultCatalog[0].RecommendedTerms, cache.Lenses[0].RecommendedTerms)

	assert.Len(t, src.origins, 1)
	assert.Len(t, p.prompts, len(DefaultCatalog))
}

func TestGenerateCacheFailureNamesLens(t *testing.T) {
	p := &fakeProvider{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "second") {
			return "no json here", nil
		}
		return `{"summary":"ok"}`, nil
	}}
	catalog := []config.LensDefinition{
		{ID: "first", Instruction: "first lens"},
		{ID: "second", Instruction: "second lens"},
	}

	_, err := newTestService(p, &fakeSource{text: "resume"}).GenerateCache(context.Background(), catalog, "", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lens second")
	assert.Equal(t, KindExtraction, lensError(t, err).Kind)
}

func TestGenerateCacheNotConfigured(t *testing.T) {
	_, err := newTestService(&fakeProvider{notSet: true}, &fakeSource{}).GenerateCache(context.Background(), nil, "", 1)
	assert.ErrorIs(t, err, llm.ErrNotConfigured)
	assert.Equal(t, KindConfiguration, lensError(t, err).Kind)
}

func TestWriteCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "resume_lenses.json")
	cache := &apimodels.LensCache{
		GeneratedAt: "2026-03-01T17:00:00Z",
		ModelHint:   "hint",
		Lenses:      []apimodels.CachedLens{{ID: "ai-privacy", KeyPoints: []string{"a"}}},
	}
	require.NoError(t, WriteCache(path, cache))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"generated_at\"")

	var got apimodels.LensCache
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "ai-privacy", got.Lenses[0].ID)
}
