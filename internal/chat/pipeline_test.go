package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msaada/backend/internal/database"
	"github.com/msaada/backend/internal/langdetect"
)

type fakeGenerator struct {
	reply      string
	err        error
	gotPrompts []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.gotPrompts = append(f.gotPrompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeCatalog struct {
	services []database.Service
	err      error
}

func (f *fakeCatalog) ListServices(ctx context.Context, category string, limit int) ([]database.Service, error) {
	return f.services, f.err
}

func newTestPipeline(gen Generator, catalog CatalogReader) *Pipeline {
	detector := langdetect.NewDetector(langdetect.DefaultPacks())
	return NewPipeline(detector, gen, NewMemorySessionCache(), catalog, time.Second)
}

func TestProcess_SuccessfulGeneration(t *testing.T) {
	gen := &fakeGenerator{reply: "Pole sana. Here is what we can do."}
	p := newTestPipeline(gen, nil)

	reply, err := p.Process(context.Background(), "sess-1", "Hujambo, ninahitaji msaada wa haraka")
	require.NoError(t, err)

	assert.Equal(t, "Pole sana. Here is what we can do.", reply.Reply)
	assert.False(t, reply.Fallback)
	assert.Equal(t, langdetect.LanguageSwahili, reply.Detection.Language)
	assert.Equal(t, langdetect.StateUrgent, reply.Emotion.State)
	assert.Equal(t, "escalation", reply.Intent)
	assert.Equal(t, "high", reply.Urgency)
}

func TestProcess_EmptyMessageFails(t *testing.T) {
	p := newTestPipeline(&fakeGenerator{reply: "ok"}, nil)

	_, err := p.Process(context.Background(), "sess-1", "   ")
	assert.ErrorIs(t, err, langdetect.ErrInvalidInput)
}

func TestProcess_GeneratorFailureDegradesToCannedReply(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("upstream 503")}
	p := newTestPipeline(gen, nil)

	reply, err := p.Process(context.Background(), "sess-1", "niaje bro, sina pesa kabisa")
	require.NoError(t, err, "backend failure degrades, never errors")

	assert.True(t, reply.Fallback)
	assert.NotEmpty(t, reply.Reply, "a canned reply is always produced")
	assert.Equal(t, "general_help", reply.Intent)
	assert.Equal(t, "medium", reply.Urgency)
	assert.Equal(t, langdetect.StateNeutral, reply.Emotion.State)
	assert.Equal(t, langdetect.IntensityMedium, reply.Emotion.Intensity)
	// Detection is local and survives the backend outage.
	assert.Equal(t, langdetect.LanguageSheng, reply.Detection.Language)
}

func TestProcess_FallbackReplyFollowsDetectedLanguage(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("down")}
	p := newTestPipeline(gen, nil)

	sheng, err := p.Process(context.Background(), "s1", "niaje bro, sina pesa kabisa")
	require.NoError(t, err)
	english, err := p.Process(context.Background(), "s2", "I need help please")
	require.NoError(t, err)

	assert.NotEqual(t, english.Reply, sheng.Reply)
}

func TestProcess_HistoryFlowsIntoPrompt(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	p := newTestPipeline(gen, nil)

	_, err := p.Process(context.Background(), "sess-1", "I need help please")
	require.NoError(t, err)
	_, err = p.Process(context.Background(), "sess-1", "I also need food support")
	require.NoError(t, err)

	require.Len(t, gen.gotPrompts, 2)
	assert.NotContains(t, gen.gotPrompts[0], "Recent conversation")
	assert.Contains(t, gen.gotPrompts[1], "Recent conversation")
	assert.Contains(t, gen.gotPrompts[1], "I need help please")
}

func TestProcess_CatalogContextInPrompt(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	catalog := &fakeCatalog{services: []database.Service{
		{Name: "Mama Fua Shelter", Category: "shelter", Region: "Nairobi"},
	}}
	p := newTestPipeline(gen, catalog)

	_, err := p.Process(context.Background(), "sess-1", "I need shelter")
	require.NoError(t, err)

	require.Len(t, gen.gotPrompts, 1)
	assert.Contains(t, gen.gotPrompts[0], "Mama Fua Shelter")
}

func TestProcess_CatalogFailureIsNotFatal(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	catalog := &fakeCatalog{err: errors.New("unavailable")}
	p := newTestPipeline(gen, catalog)

	reply, err := p.Process(context.Background(), "sess-1", "I need help please")
	require.NoError(t, err)
	assert.False(t, reply.Fallback)
}

func TestProcess_UrgencyMapping(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	p := newTestPipeline(gen, nil)

	urgent, err := p.Process(context.Background(), "s1", "this is an emergency, I need a doctor")
	require.NoError(t, err)
	assert.Equal(t, "high", urgent.Urgency)

	calm, err := p.Process(context.Background(), "s2", "what school programs do you offer")
	require.NoError(t, err)
	assert.Equal(t, "low", calm.Urgency)
}

// ============================================================================
// SESSION CACHE TESTS
// ============================================================================

func TestMemorySessionCache_RoundTrip(t *testing.T) {
	cache := NewMemorySessionCache()
	ctx := context.Background()

	err := cache.Append(ctx, "s1",
		Turn{Role: "user", Content: "hello"},
		Turn{Role: "assistant", Content: "hi"},
	)
	require.NoError(t, err)

	turns, err := cache.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "hi", turns[1].Content)

	other, err := cache.History(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, other, "sessions are isolated")
}

func TestMemorySessionCache_HistoryBounded(t *testing.T) {
	cache := NewMemorySessionCache()
	ctx := context.Background()

	for i := 0; i < 40; i++ {
		require.NoError(t, cache.Append(ctx, "s1", Turn{Role: "user", Content: "msg"}))
	}

	turns, err := cache.History(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, turns, maxTurns)
}
