package options

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaform/internal/schema"
)

// fakeGetter serves canned JSON per URL and counts calls.
type fakeGetter struct {
	mu        sync.Mutex
	responses map[string]any
	err       error
	calls     int32
	delay     time.Duration
	requested []string
}

func (f *fakeGetter) GetJSON(ctx context.Context, url string) (any, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.requested = append(f.requested, url)
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	if body, ok := f.responses[url]; ok {
		return body, nil
	}
	return nil, fmt.Errorf("no response for %s", url)
}

func (f *fakeGetter) callCount() int { return int(atomic.LoadInt32(&f.calls)) }

func rawItems(pairs ...[2]string) []any {
	out := make([]any, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, map[string]any{"value": p[0], "label": p[1]})
	}
	return out
}

func TestLoad_Static(t *testing.T) {
	l := NewLoader(&fakeGetter{}, nil)
	source := &schema.OptionsSource{
		Options: []schema.FieldOption{{Value: "a", Label: "A"}},
	}

	opts := l.Load(context.Background(), source, LoadContext{})
	require.Len(t, opts, 1)

	// The returned slice is a copy.
	opts[0].Value = "tampered"
	assert.Equal(t, "a", source.Options[0].Value)
}

func TestLoad_NilAndEmptySource(t *testing.T) {
	l := NewLoader(&fakeGetter{}, nil)
	assert.Nil(t, l.Load(context.Background(), nil, LoadContext{}))
	assert.Empty(t, l.Load(context.Background(), &schema.OptionsSource{}, LoadContext{}))
}

func TestLoad_IncludeEmptyPrepends(t *testing.T) {
	l := NewLoader(&fakeGetter{}, nil)
	source := &schema.OptionsSource{
		Options:      []schema.FieldOption{{Value: "a", Label: "A"}},
		IncludeEmpty: true,
		EmptyLabel:   "(none)",
	}

	opts := l.Load(context.Background(), source, LoadContext{})
	require.Len(t, opts, 2)
	assert.Equal(t, "(none)", opts[0].Label)
	assert.Equal(t, "a", opts[1].Value)
}

func TestLoad_InvalidSourceDegrades(t *testing.T) {
	l := NewLoader(&fakeGetter{}, nil)
	source := &schema.OptionsSource{
		Options: []schema.FieldOption{{Value: "a", Label: "A"}},
		API:     &schema.APIOptionsSource{Endpoint: "/x"},
	}
	assert.Nil(t, l.Load(context.Background(), source, LoadContext{}))
}

func TestLoad_Resolver(t *testing.T) {
	registry := NewResolverRegistry()
	registry.Register("countries", ResolverFunc(func(ctx context.Context, params map[string]any, lc LoadContext) ([]schema.FieldOption, error) {
		assert.Equal(t, "eu", params["region"])
		return []schema.FieldOption{{Value: "de", Label: "Germany"}}, nil
	}))
	l := NewLoader(&fakeGetter{}, registry)

	source := &schema.OptionsSource{
		Resolver: &schema.ResolverOptionsSource{Name: "countries", Params: map[string]any{"region": "eu"}},
	}
	opts := l.Load(context.Background(), source, LoadContext{})
	require.Len(t, opts, 1)
	assert.Equal(t, "de", opts[0].Value)
}

func TestLoad_ResolverMissingOrFailingDegrades(t *testing.T) {
	registry := NewResolverRegistry()
	registry.Register("broken", ResolverFunc(func(ctx context.Context, params map[string]any, lc LoadContext) ([]schema.FieldOption, error) {
		return nil, errors.New("backend down")
	}))
	l := NewLoader(&fakeGetter{}, registry)

	missing := &schema.OptionsSource{Resolver: &schema.ResolverOptionsSource{Name: "ghost"}}
	assert.Empty(t, l.Load(context.Background(), missing, LoadContext{}))

	failing := &schema.OptionsSource{Resolver: &schema.ResolverOptionsSource{Name: "broken"}}
	assert.Empty(t, l.Load(context.Background(), failing, LoadContext{}))
}

func TestLoad_API(t *testing.T) {
	getter := &fakeGetter{responses: map[string]any{
		"/api/categories": rawItems([2]string{"1", "Books"}, [2]string{"2", "Games"}),
	}}
	l := NewLoader(getter, nil)

	source := &schema.OptionsSource{API: &schema.APIOptionsSource{Endpoint: "/api/categories"}}
	opts := l.Load(context.Background(), source, LoadContext{})
	require.Len(t, opts, 2)
	assert.Equal(t, "Books", opts[0].Label)
}

func TestLoad_APIResponsePath(t *testing.T) {
	getter := &fakeGetter{responses: map[string]any{
		"/api/categories": map[string]any{
			"data": map[string]any{"items": rawItems([2]string{"1", "Books"})},
		},
	}}
	l := NewLoader(getter, nil)

	source := &schema.OptionsSource{API: &schema.APIOptionsSource{
		Endpoint:     "/api/categories",
		ResponsePath: "data.items",
	}}
	opts := l.Load(context.Background(), source, LoadContext{})
	require.Len(t, opts, 1)
}

func TestLoad_APIFieldMappingAndFalsyDropped(t *testing.T) {
	getter := &fakeGetter{responses: map[string]any{
		"/api/statuses": []any{
			map[string]any{"id": "open", "title": "Open", "hint": "still active"},
			map[string]any{"id": "", "title": "No value"},
			map[string]any{"id": "closed"},
			map[string]any{"id": float64(3), "title": "Archived"},
		},
	}}
	l := NewLoader(getter, nil)

	source := &schema.OptionsSource{API: &schema.APIOptionsSource{
		Endpoint:         "/api/statuses",
		ValueField:       "id",
		LabelField:       "title",
		DescriptionField: "hint",
	}}
	opts := l.Load(context.Background(), source, LoadContext{})
	require.Len(t, opts, 2)
	assert.Equal(t, "open", opts[0].Value)
	assert.Equal(t, "still active", opts[0].Description)
	assert.Equal(t, "3", opts[1].Value, "non-string values stringify")
}

func TestLoad_APIFilterAndSort(t *testing.T) {
	getter := &fakeGetter{responses: map[string]any{
		"/api/items": []any{
			map[string]any{"value": "b", "label": "B", "active": true, "rank": float64(2)},
			map[string]any{"value": "a", "label": "A", "active": true, "rank": float64(1)},
			map[string]any{"value": "c", "label": "C", "active": false, "rank": float64(0)},
		},
	}}
	l := NewLoader(getter, nil)

	source := &schema.OptionsSource{API: &schema.APIOptionsSource{
		Endpoint: "/api/items",
		Filter:   "active == true",
		Sort:     "rank asc",
	}}
	opts := l.Load(context.Background(), source, LoadContext{})
	require.Len(t, opts, 2)
	assert.Equal(t, "a", opts[0].Value)
	assert.Equal(t, "b", opts[1].Value)
}

func TestLoad_APIInterpolation(t *testing.T) {
	getter := &fakeGetter{responses: map[string]any{
		"/api/subs?parent=5%2F2": rawItems([2]string{"x", "X"}),
	}}
	l := NewLoader(getter, nil)

	source := &schema.OptionsSource{API: &schema.APIOptionsSource{
		Endpoint: "/api/subs?parent=${category}",
	}}
	opts := l.Load(context.Background(), source, LoadContext{
		FormValues: map[string]any{"category": "5/2"},
	})
	require.Len(t, opts, 1, "placeholder values are URL-escaped")
}

func TestLoad_APIInterpolationMissingValueDegrades(t *testing.T) {
	getter := &fakeGetter{}
	l := NewLoader(getter, nil)

	source := &schema.OptionsSource{API: &schema.APIOptionsSource{
		Endpoint: "/api/subs?parent=${category}",
	}}
	opts := l.Load(context.Background(), source, LoadContext{FormValues: map[string]any{}})
	assert.Empty(t, opts)
	assert.Equal(t, 0, getter.callCount(), "no request with a malformed endpoint")
}

func TestLoad_APILoadWhen(t *testing.T) {
	getter := &fakeGetter{responses: map[string]any{
		"/api/subs": rawItems([2]string{"x", "X"}),
	}}
	l := NewLoader(getter, nil)

	source := &schema.OptionsSource{API: &schema.APIOptionsSource{
		Endpoint: "/api/subs",
		LoadWhen: "category != null",
	}}

	opts := l.Load(context.Background(), source, LoadContext{FormValues: map[string]any{}})
	assert.Empty(t, opts)
	assert.Equal(t, 0, getter.callCount(), "unmet guard makes no request")

	opts = l.Load(context.Background(), source, LoadContext{FormValues: map[string]any{"category": "1"}})
	assert.Len(t, opts, 1)
	assert.Equal(t, 1, getter.callCount())
}

func TestLoad_APIErrorDegrades(t *testing.T) {
	getter := &fakeGetter{err: errors.New("connection refused")}
	l := NewLoader(getter, nil)

	source := &schema.OptionsSource{API: &schema.APIOptionsSource{Endpoint: "/api/x"}}
	assert.Empty(t, l.Load(context.Background(), source, LoadContext{}))
}

func TestLoad_APICaching(t *testing.T) {
	getter := &fakeGetter{responses: map[string]any{
		"/api/categories": rawItems([2]string{"1", "Books"}),
	}}
	l := NewLoader(getter, nil)

	source := &schema.OptionsSource{API: &schema.APIOptionsSource{
		Endpoint: "/api/categories",
		CacheKey: "cat",
	}}

	l.Load(context.Background(), source, LoadContext{})
	l.Load(context.Background(), source, LoadContext{})
	assert.Equal(t, 1, getter.callCount(), "second load served from cache")
}

func TestLoad_APICacheExpiry(t *testing.T) {
	getter := &fakeGetter{responses: map[string]any{
		"/api/categories": rawItems([2]string{"1", "Books"}),
	}}
	l := NewLoader(getter, nil)

	clock := time.Now()
	l.now = func() time.Time { return clock }

	source := &schema.OptionsSource{API: &schema.APIOptionsSource{
		Endpoint: "/api/categories",
		CacheKey: "cat",
		CacheTTL: 60,
	}}

	l.Load(context.Background(), source, LoadContext{})
	clock = clock.Add(61 * time.Second)
	l.Load(context.Background(), source, LoadContext{})
	assert.Equal(t, 2, getter.callCount())
}

func TestLoad_APINoCacheKeyNoCaching(t *testing.T) {
	getter := &fakeGetter{responses: map[string]any{
		"/api/categories": rawItems([2]string{"1", "Books"}),
	}}
	l := NewLoader(getter, nil)

	source := &schema.OptionsSource{API: &schema.APIOptionsSource{Endpoint: "/api/categories"}}
	l.Load(context.Background(), source, LoadContext{})
	l.Load(context.Background(), source, LoadContext{})
	assert.Equal(t, 2, getter.callCount())
}

func TestLoad_APICacheKeyPerDependencyValue(t *testing.T) {
	getter := &fakeGetter{responses: map[string]any{
		"/api/subs?parent=5": rawItems([2]string{"a", "A"}),
		"/api/subs?parent=6": rawItems([2]string{"b", "B"}),
	}}
	l := NewLoader(getter, nil)

	source := &schema.OptionsSource{API: &schema.APIOptionsSource{
		Endpoint:  "/api/subs?parent=${parentId}",
		CacheKey:  "subs",
		DependsOn: []string{"parentId"},
	}}

	a := l.Load(context.Background(), source, LoadContext{FormValues: map[string]any{"parentId": "5"}})
	b := l.Load(context.Background(), source, LoadContext{FormValues: map[string]any{"parentId": "6"}})
	again := l.Load(context.Background(), source, LoadContext{FormValues: map[string]any{"parentId": "5"}})

	assert.Equal(t, "a", a[0].Value)
	assert.Equal(t, "b", b[0].Value)
	assert.Equal(t, "a", again[0].Value)
	assert.Equal(t, 2, getter.callCount(), "distinct dependency values cache separately")
}

func TestLoad_ConcurrentDedup(t *testing.T) {
	getter := &fakeGetter{
		responses: map[string]any{"/api/categories": rawItems([2]string{"1", "Books"})},
		delay:     50 * time.Millisecond,
	}
	l := NewLoader(getter, nil)

	source := &schema.OptionsSource{API: &schema.APIOptionsSource{
		Endpoint: "/api/categories",
		CacheKey: "cat",
	}}

	var wg sync.WaitGroup
	results := make([][]schema.FieldOption, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = l.Load(context.Background(), source, LoadContext{})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, getter.callCount(), "concurrent loads share one request")
	for _, r := range results {
		require.Len(t, r, 1)
	}
}

func TestLoad_EntityScopedKeyAndInvalidate(t *testing.T) {
	getter := &fakeGetter{responses: map[string]any{
		"/api/categories": rawItems([2]string{"1", "Books"}),
	}}
	l := NewLoader(getter, nil)

	source := &schema.OptionsSource{API: &schema.APIOptionsSource{
		Endpoint:   "/api/categories",
		CacheKey:   "cat",
		CacheScope: schema.CacheScopeEntity,
	}}

	lc := LoadContext{EntityType: "product"}
	l.Load(context.Background(), source, lc)
	l.Load(context.Background(), source, lc)
	assert.Equal(t, 1, getter.callCount())

	// Other entity scopes miss.
	l.Load(context.Background(), source, LoadContext{EntityType: "customer"})
	assert.Equal(t, 2, getter.callCount())

	l.Invalidate("entity:product|")
	l.Load(context.Background(), source, lc)
	assert.Equal(t, 3, getter.callCount())

	// Customer scope survived the product invalidation.
	l.Load(context.Background(), source, LoadContext{EntityType: "customer"})
	assert.Equal(t, 3, getter.callCount())

	l.Invalidate("")
	l.Load(context.Background(), source, lc)
	assert.Equal(t, 4, getter.callCount())
}

func TestShouldReload(t *testing.T) {
	source := &schema.OptionsSource{API: &schema.APIOptionsSource{
		DependsOn: []string{"category"},
	}}

	assert.True(t, ShouldReload(source,
		map[string]any{"category": "1"},
		map[string]any{"category": "2"}))
	assert.False(t, ShouldReload(source,
		map[string]any{"category": "1", "other": "x"},
		map[string]any{"category": "1", "other": "y"}))
	assert.False(t, ShouldReload(&schema.OptionsSource{}, nil, nil))

	// Numeric representation changes compare by printed value.
	assert.False(t, ShouldReload(source,
		map[string]any{"category": 1},
		map[string]any{"category": 1}))
}
