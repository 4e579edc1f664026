package governor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyloop/governor/internal/cache"
	"github.com/studyloop/governor/internal/ledger"
	"github.com/studyloop/governor/internal/pricing"
	"github.com/studyloop/governor/internal/provider"
	"github.com/studyloop/governor/internal/router"
)

// ---- fakes -----------------------------------------------------------------

type fakeCacheStore struct {
	mu      sync.Mutex
	entries map[string]*cache.Entry
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{entries: make(map[string]*cache.Entry)}
}

func (s *fakeCacheStore) Fetch(_ context.Context, key string) (cache.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		return *e, true, nil
	}
	return cache.Entry{}, false, nil
}

func (s *fakeCacheStore) Create(_ context.Context, key string, e cache.Entry, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[key]; !exists {
		cp := e
		s.entries[key] = &cp
	}
	return nil
}

func (s *fakeCacheStore) Touch(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		e.HitCount++
	}
	return nil
}

type fakeCounter struct {
	mu      sync.Mutex
	windows map[string]float64
	failing bool
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{windows: make(map[string]float64)}
}

func (c *fakeCounter) Add(_ context.Context, window string, amount float64) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return 0, errors.New("counter unavailable")
	}
	c.windows[window] += amount
	return c.windows[window], nil
}

func (c *fakeCounter) Get(_ context.Context, window string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return 0, errors.New("counter unavailable")
	}
	return c.windows[window], nil
}

func (c *fakeCounter) total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	sum := 0.0
	for _, v := range c.windows {
		sum += v
	}
	return sum
}

type fixedBudget struct{ amount float64 }

func (b fixedBudget) Budget(context.Context) (float64, error) { return b.amount, nil }

type fakeAdmin struct {
	killSwitch    bool
	killSwitchErr error
	overrides     map[string]string
	overridesErr  error
}

func (a *fakeAdmin) KillSwitch(context.Context) (bool, error) {
	return a.killSwitch, a.killSwitchErr
}

func (a *fakeAdmin) Overrides(context.Context) (map[string]string, error) {
	return a.overrides, a.overridesErr
}

type fakeCompletion struct {
	mu         sync.Mutex
	calls      int
	lastModel  string
	lastPrompt string
	text       string
	inTokens   int
	outTokens  int
	err        error
}

func (p *fakeCompletion) Complete(_ context.Context, model, prompt string) (provider.Completion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastModel = model
	p.lastPrompt = prompt
	if p.err != nil {
		return provider.Completion{}, p.err
	}
	return provider.Completion{Text: p.text, InputTokens: p.inTokens, OutputTokens: p.outTokens}, nil
}

type fakeContext struct {
	calls  int
	result provider.ContextResult
	found  bool
	err    error
}

func (p *fakeContext) Fetch(_ context.Context, _, _ string) (provider.ContextResult, bool, error) {
	p.calls++
	return p.result, p.found, p.err
}

// ---- harness ---------------------------------------------------------------

type harness struct {
	gov        *Governor
	counter    *fakeCounter
	admin      *fakeAdmin
	completion *fakeCompletion
	contexts   *fakeContext
	cacheStore *fakeCacheStore
}

const longAnswer = "Photosynthesis converts light energy into chemical energy stored in glucose, using carbon dioxide and water."

func newHarness(budget float64) *harness {
	h := &harness{
		counter:    newFakeCounter(),
		admin:      &fakeAdmin{},
		completion: &fakeCompletion{text: longAnswer, inTokens: 200, outTokens: 300},
		contexts:   &fakeContext{},
		cacheStore: newFakeCacheStore(),
	}
	c := cache.New(h.cacheStore, 24*time.Hour, 7*24*time.Hour)
	l := ledger.New(h.counter, fixedBudget{amount: budget}, nil, budget)
	h.gov = New(c, l, h.admin, h.completion, h.contexts, 40)
	return h
}

// spend pushes the current window's counter to the given amount.
func (h *harness) spend(amount float64) {
	h.counter.Add(context.Background(), ledger.WindowKey(time.Now()), amount)
}

func paidRequest(query string) Request {
	return Request{Query: query, UserID: "user-1", UserTier: router.TierPaid, TaskCategory: router.CategoryGeneralChat}
}

func freeRequest(query string) Request {
	return Request{Query: query, UserID: "user-2", UserTier: router.TierFree, TaskCategory: router.CategoryGeneralChat}
}

// ---- pipeline tests --------------------------------------------------------

func TestHandleQuery_KillSwitchShortCircuits(t *testing.T) {
	h := newHarness(100)
	h.admin.killSwitch = true

	res, err := h.gov.HandleQuery(context.Background(), paidRequest("what is osmosis"))
	require.NoError(t, err)
	assert.True(t, res.Blocked)
	assert.Equal(t, ModelOffline, res.ModelUsed)
	assert.NotEmpty(t, res.UserMessage)
	assert.Zero(t, res.CostUSD)
	assert.Equal(t, 0, h.completion.calls, "kill switch must not invoke the completion provider")
	assert.Empty(t, h.cacheStore.entries, "kill switch must not touch the cache")
}

func TestHandleQuery_KillSwitchUnreadableProceeds(t *testing.T) {
	h := newHarness(100)
	h.admin.killSwitchErr = errors.New("store down")

	res, err := h.gov.HandleQuery(context.Background(), paidRequest("what is osmosis"))
	require.NoError(t, err)
	assert.False(t, res.Blocked)
	assert.Equal(t, 1, h.completion.calls)
}

func TestHandleQuery_CacheHitIsZeroCost(t *testing.T) {
	h := newHarness(100)
	ctx := context.Background()

	first, err := h.gov.HandleQuery(ctx, paidRequest("what is osmosis"))
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Greater(t, first.CostUSD, 0.0)

	second, err := h.gov.HandleQuery(ctx, paidRequest("what is osmosis"))
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Zero(t, second.CostUSD)
	assert.Equal(t, ModelCache, second.ModelUsed)
	assert.Equal(t, longAnswer, second.ResponseText)
	assert.Equal(t, 1, h.completion.calls, "cache hit must not invoke the completion provider")
}

func TestHandleQuery_BlockedRestrictedFree(t *testing.T) {
	h := newHarness(100)
	h.spend(80) // ratio 0.80 -> Restricted

	res, err := h.gov.HandleQuery(context.Background(), freeRequest("fix my essay please"))
	require.NoError(t, err)
	assert.True(t, res.Blocked)
	assert.True(t, res.Queued)
	assert.Equal(t, pricing.ModelCheap, res.ModelUsed, "blocked result carries the would-be model tag")
	assert.Contains(t, res.UserMessage, "queued")
	assert.Equal(t, 0, h.completion.calls)
	assert.InDelta(t, 80, h.counter.total(), 1e-9, "no cost recorded for blocked requests")
}

func TestHandleQuery_BlockedEmergencyFreeIsHardReject(t *testing.T) {
	h := newHarness(100)
	h.spend(95) // ratio 0.95 -> Emergency

	res, err := h.gov.HandleQuery(context.Background(), freeRequest("fix my essay please"))
	require.NoError(t, err)
	assert.True(t, res.Blocked)
	assert.False(t, res.Queued)
	assert.Contains(t, res.UserMessage, "capacity")
	assert.NotEqual(t, restrictedFreeMessage, res.UserMessage, "emergency and restricted copy differ")
	assert.Equal(t, 0, h.completion.calls)
}

func TestHandleQuery_EmergencyPaidIsServedButQueued(t *testing.T) {
	h := newHarness(100)
	h.spend(95)

	res, err := h.gov.HandleQuery(context.Background(), paidRequest("help with my homework"))
	require.NoError(t, err)
	assert.False(t, res.Blocked, "paid service is never fully halted by phase")
	assert.True(t, res.Queued)
	assert.Equal(t, pricing.ModelCheap, res.ModelUsed)
	assert.Equal(t, 1, h.completion.calls)
}

func TestHandleQuery_CautiousForcesCheapModel(t *testing.T) {
	h := newHarness(100)
	h.spend(60) // ratio 0.60 -> Cautious

	res, err := h.gov.HandleQuery(context.Background(), paidRequest("help with my homework"))
	require.NoError(t, err)
	assert.False(t, res.Blocked)
	assert.Equal(t, pricing.ModelCheap, res.ModelUsed)
	assert.Equal(t, pricing.ModelCheap, h.completion.lastModel)
}

func TestHandleQuery_OverrideAppliesInNormalPhase(t *testing.T) {
	h := newHarness(100)
	h.admin.overrides = map[string]string{router.CategoryMath: "gpt-4-turbo"}

	req := paidRequest("integrate x squared")
	req.TaskCategory = router.CategoryMath
	res, err := h.gov.HandleQuery(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4-turbo", res.ModelUsed)
	assert.Equal(t, "gpt-4-turbo", h.completion.lastModel)
}

func TestHandleQuery_ContextAttachedForSyllabusCategory(t *testing.T) {
	h := newHarness(100)
	h.contexts.found = true
	h.contexts.result = provider.ContextResult{Text: "week 3 covers osmosis", Sources: []string{"doc-1"}}

	req := paidRequest("when do we cover osmosis")
	req.TaskCategory = router.CategorySyllabusQA
	res, err := h.gov.HandleQuery(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1"}, res.Sources)
	assert.Contains(t, h.completion.lastPrompt, "week 3 covers osmosis")
	assert.Contains(t, h.completion.lastPrompt, "when do we cover osmosis")
}

func TestHandleQuery_ContextLexicalCue(t *testing.T) {
	h := newHarness(100)
	h.contexts.found = true
	h.contexts.result = provider.ContextResult{Text: "notes excerpt", Sources: []string{"note-7"}}

	_, err := h.gov.HandleQuery(context.Background(), paidRequest("summarize my notes on cell biology"))
	require.NoError(t, err)
	assert.Equal(t, 1, h.contexts.calls, "lexical cue triggers context fetch")
}

func TestHandleQuery_NoContextForPlainChat(t *testing.T) {
	h := newHarness(100)

	_, err := h.gov.HandleQuery(context.Background(), paidRequest("tell me a fun fact"))
	require.NoError(t, err)
	assert.Equal(t, 0, h.contexts.calls)
}

func TestHandleQuery_ContextFailureIsNotFatal(t *testing.T) {
	h := newHarness(100)
	h.contexts.err = errors.New("retrieval down")

	req := paidRequest("question about the syllabus")
	req.TaskCategory = router.CategorySyllabusQA
	res, err := h.gov.HandleQuery(context.Background(), req)
	require.NoError(t, err, "context failure degrades to no-context")
	assert.Empty(t, res.Sources)
	assert.Equal(t, longAnswer, res.ResponseText)
	// The prompt falls back to the bare query.
	assert.Equal(t, "question about the syllabus", h.completion.lastPrompt)
}

func TestHandleQuery_CompletionFailureIsFatal(t *testing.T) {
	h := newHarness(100)
	h.completion.err = provider.ErrCompletionFailed

	_, err := h.gov.HandleQuery(context.Background(), paidRequest("what is osmosis"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, provider.ErrCompletionFailed))
	assert.Zero(t, h.counter.total(), "no cost billed for a failed completion")
	assert.Empty(t, h.cacheStore.entries, "no partial answer cached")
}

func TestHandleQuery_CostRecordedAgainstSelectedModel(t *testing.T) {
	h := newHarness(100)

	res, err := h.gov.HandleQuery(context.Background(), paidRequest("help me study"))
	require.NoError(t, err)

	want := pricing.Cost(200, 300, pricing.ModelCapable)
	assert.InDelta(t, want, res.CostUSD, 1e-9)
	assert.InDelta(t, want, h.counter.total(), 1e-9)
}

func TestHandleQuery_ShortResponseNotCached(t *testing.T) {
	h := newHarness(100)
	h.completion.text = "Yes."

	_, err := h.gov.HandleQuery(context.Background(), paidRequest("what is osmosis"))
	require.NoError(t, err)
	assert.Empty(t, h.cacheStore.entries, "degenerate answers are never cached")

	_, err = h.gov.HandleQuery(context.Background(), paidRequest("what is osmosis"))
	require.NoError(t, err)
	assert.Equal(t, 2, h.completion.calls)
}

func TestHandleQuery_CounterFailureStillServes(t *testing.T) {
	h := newHarness(100)

	h.counter.failing = true

	res, err := h.gov.HandleQuery(context.Background(), freeRequest("what is osmosis"))
	require.NoError(t, err)
	assert.True(t, res.Blocked, "unreadable ledger fails closed for free users")

	res, err = h.gov.HandleQuery(context.Background(), paidRequest("what is osmosis"))
	require.NoError(t, err)
	assert.False(t, res.Blocked, "paid users are served (queued) when failing closed")
	assert.True(t, res.Queued)
	assert.Greater(t, res.CostUSD, 0.0, "cost is still priced when recording fails")
}

func TestHandleQuery_EndToEndScenario(t *testing.T) {
	h := newHarness(100)
	ctx := context.Background()

	req := paidRequest("Explain photosynthesis")
	first, err := h.gov.HandleQuery(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, pricing.ModelCapable, first.ModelUsed, "general-chat routes to the capable default")
	assert.Greater(t, first.CostUSD, 0.0)
	assert.Equal(t, 1, h.completion.calls)

	// Classified Eternal by the "explain" pattern.
	foundEternal := false
	for key := range h.cacheStore.entries {
		if strings.HasPrefix(key, "cache:eternal:") {
			foundEternal = true
		}
	}
	assert.True(t, foundEternal, "response cached under the eternal tier")

	second, err := h.gov.HandleQuery(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Zero(t, second.CostUSD)
	assert.Equal(t, 1, h.completion.calls, "second identical call short-circuits at the cache")
}
