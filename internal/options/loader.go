// Package options loads the choice lists declared by option sources: static
// lists, HTTP endpoints with caching and request deduplication, and named
// custom resolvers.
//
// Loading never fails the caller: every error degrades to an empty list and
// is logged, so a broken endpoint cannot take a form down.
package options

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"metaform/internal/infrastructure/httpclient"
	"metaform/internal/schema"
	"metaform/internal/schema/expr"
	"metaform/pkg/logger"
)

// LoadContext carries the form state an option load may depend on.
type LoadContext struct {
	// EntityType scopes entity-scoped caches.
	EntityType string
	// FormValues is the current value snapshot, used for endpoint
	// interpolation, dependsOn keys and loadWhen guards.
	FormValues map[string]any
	// RecordID is the edited record, when any.
	RecordID string
}

const defaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	options []schema.FieldOption
	expires time.Time
}

type inflight struct {
	done    chan struct{}
	options []schema.FieldOption
}

// Loader resolves option sources. Concurrent loads of the same cache key
// share a single request; sources without a cache key are neither cached nor
// deduplicated.
type Loader struct {
	client     httpclient.Getter
	resolvers  *ResolverRegistry
	defaultTTL time.Duration

	mu      sync.Mutex
	cache   map[string]cacheEntry
	pending map[string]*inflight
	now     func() time.Time
}

func NewLoader(client httpclient.Getter, resolvers *ResolverRegistry) *Loader {
	if resolvers == nil {
		resolvers = NewResolverRegistry()
	}
	return &Loader{
		client:     client,
		resolvers:  resolvers,
		defaultTTL: defaultCacheTTL,
		cache:      make(map[string]cacheEntry),
		pending:    make(map[string]*inflight),
		now:        time.Now,
	}
}

// Load resolves the options for a source. It never returns an error: any
// failure is logged and yields an empty list.
func (l *Loader) Load(ctx context.Context, source *schema.OptionsSource, lc LoadContext) []schema.FieldOption {
	if source == nil {
		return nil
	}
	switch source.Kind() {
	case schema.SourceNone:
		return withEmpty(source, nil)
	case schema.SourceInvalid:
		logger.Error(ctx, "options source has multiple variants populated, returning no options",
			"entityType", lc.EntityType)
		return nil
	case schema.SourceStatic:
		return withEmpty(source, append([]schema.FieldOption(nil), source.Options...))
	case schema.SourceResolver:
		return withEmpty(source, l.loadResolver(ctx, source, lc))
	case schema.SourceAPI:
		return withEmpty(source, l.loadAPI(ctx, source, lc))
	}
	return nil
}

// Invalidate drops every cache entry whose key starts with the given scope
// prefix; an empty prefix clears the whole cache.
func (l *Loader) Invalidate(prefix string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if prefix == "" {
		l.cache = make(map[string]cacheEntry)
		return
	}
	for key := range l.cache {
		if strings.HasPrefix(key, prefix) {
			delete(l.cache, key)
		}
	}
}

// ShouldReload reports whether a value change between two form snapshots
// touches any of the source's dependency fields.
func ShouldReload(source *schema.OptionsSource, prev, curr map[string]any) bool {
	for _, field := range source.DependencyFields() {
		if fmt.Sprint(prev[field]) != fmt.Sprint(curr[field]) {
			return true
		}
	}
	return false
}

func (l *Loader) loadResolver(ctx context.Context, source *schema.OptionsSource, lc LoadContext) []schema.FieldOption {
	name := source.Resolver.Name
	resolver, ok := l.resolvers.Get(name)
	if !ok {
		logger.Error(ctx, "options resolver not registered", "resolver", name)
		return nil
	}
	opts, err := resolver.Resolve(ctx, source.Resolver.Params, lc)
	if err != nil {
		logger.Error(ctx, "options resolver failed", "resolver", name, "error", err)
		return nil
	}
	return opts
}

func (l *Loader) loadAPI(ctx context.Context, source *schema.OptionsSource, lc LoadContext) []schema.FieldOption {
	api := source.API

	if api.LoadWhen != "" {
		met, err := expr.EvaluateCondition(api.LoadWhen, lc.FormValues)
		if err != nil {
			logger.Error(ctx, "options loadWhen condition invalid", "condition", api.LoadWhen, "error", err)
			return nil
		}
		if !met {
			return nil
		}
	}

	// Caching and deduplication are keyed together; no cacheKey means a
	// plain fetch every time.
	if api.CacheKey == "" {
		return l.fetch(ctx, api, lc)
	}

	key := l.cacheKeyFor(api, lc)

	l.mu.Lock()
	if entry, ok := l.cache[key]; ok && l.now().Before(entry.expires) {
		l.mu.Unlock()
		return append([]schema.FieldOption(nil), entry.options...)
	}
	if pending, ok := l.pending[key]; ok {
		l.mu.Unlock()
		select {
		case <-pending.done:
			return append([]schema.FieldOption(nil), pending.options...)
		case <-ctx.Done():
			return nil
		}
	}
	pending := &inflight{done: make(chan struct{})}
	l.pending[key] = pending
	l.mu.Unlock()

	// The fetch is shared by every waiter, so it must not die with the
	// first caller's context.
	opts := l.fetch(context.WithoutCancel(ctx), api, lc)

	l.mu.Lock()
	ttl := l.defaultTTL
	if api.CacheTTL > 0 {
		ttl = time.Duration(api.CacheTTL) * time.Second
	}
	l.cache[key] = cacheEntry{options: opts, expires: l.now().Add(ttl)}
	pending.options = opts
	delete(l.pending, key)
	l.mu.Unlock()
	close(pending.done)

	return append([]schema.FieldOption(nil), opts...)
}

// cacheKeyFor combines scope, declared cache key and the current values of
// the dependency fields, so dependent loads (e.g. subcategories per parent)
// cache separately.
func (l *Loader) cacheKeyFor(api *schema.APIOptionsSource, lc LoadContext) string {
	var b strings.Builder
	if api.CacheScope == schema.CacheScopeEntity {
		b.WriteString("entity:")
		b.WriteString(lc.EntityType)
	} else {
		b.WriteString("global")
	}
	b.WriteString("|")
	b.WriteString(api.CacheKey)

	if len(api.DependsOn) > 0 {
		deps := append([]string(nil), api.DependsOn...)
		sort.Strings(deps)
		for _, field := range deps {
			b.WriteString("|")
			b.WriteString(field)
			b.WriteString("=")
			b.WriteString(fmt.Sprint(lc.FormValues[field]))
		}
	}
	return b.String()
}

func (l *Loader) fetch(ctx context.Context, api *schema.APIOptionsSource, lc LoadContext) []schema.FieldOption {
	endpoint, err := interpolate(api.Endpoint, lc.FormValues)
	if err != nil {
		logger.Error(ctx, "options endpoint interpolation failed", "endpoint", api.Endpoint, "error", err)
		return nil
	}

	body, err := l.client.GetJSON(ctx, endpoint)
	if err != nil {
		logger.Error(ctx, "options request failed", "endpoint", endpoint, "error", err)
		return nil
	}

	items, err := itemsAt(body, api.ResponsePath)
	if err != nil {
		logger.Error(ctx, "options response shape unexpected", "endpoint", endpoint, "error", err)
		return nil
	}

	if api.Filter != "" {
		filter, err := expr.ParseFilter(api.Filter)
		if err != nil {
			logger.Error(ctx, "options filter invalid", "filter", api.Filter, "error", err)
			return nil
		}
		items = filter.Apply(items)
	}
	if api.Sort != "" {
		sortSpec, err := expr.ParseSort(api.Sort)
		if err != nil {
			logger.Error(ctx, "options sort invalid", "sort", api.Sort, "error", err)
			return nil
		}
		items = sortSpec.Apply(items)
	}

	return project(items, api)
}

// interpolate substitutes ${field} placeholders with URL-escaped form values.
// A placeholder without a value is an error: the endpoint would be malformed.
func interpolate(endpoint string, values map[string]any) (string, error) {
	var b strings.Builder
	rest := endpoint
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			return "", fmt.Errorf("unterminated placeholder in %q", endpoint)
		}
		field := rest[start+2 : start+end]
		value, ok := values[field]
		if !ok || value == nil {
			return "", fmt.Errorf("placeholder %q has no value", field)
		}
		b.WriteString(rest[:start])
		b.WriteString(url.QueryEscape(fmt.Sprint(value)))
		rest = rest[start+end+1:]
	}
}

// itemsAt walks a dot-path into the decoded body and returns the item list.
func itemsAt(body any, path string) ([]map[string]any, error) {
	node := body
	if path != "" {
		for _, part := range strings.Split(path, ".") {
			obj, ok := node.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("path %q: segment %q is not an object", path, part)
			}
			node, ok = obj[part]
			if !ok {
				return nil, fmt.Errorf("path %q: segment %q missing", path, part)
			}
		}
	}
	list, ok := node.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array at %q", path)
	}
	items := make([]map[string]any, 0, len(list))
	for _, raw := range list {
		if item, ok := raw.(map[string]any); ok {
			items = append(items, item)
		}
	}
	return items, nil
}

// project maps raw items to options via the source's field mappings. Items
// without a usable value or label are dropped.
func project(items []map[string]any, api *schema.APIOptionsSource) []schema.FieldOption {
	valueField := api.ValueField
	if valueField == "" {
		valueField = "value"
	}
	labelField := api.LabelField
	if labelField == "" {
		labelField = "label"
	}

	opts := make([]schema.FieldOption, 0, len(items))
	for _, item := range items {
		value := stringAt(item, valueField)
		label := stringAt(item, labelField)
		if value == "" || label == "" {
			continue
		}
		opts = append(opts, schema.FieldOption{
			Value:       value,
			Label:       label,
			Icon:        stringAt(item, api.IconField),
			Description: stringAt(item, api.DescriptionField),
			Badge:       stringAt(item, api.BadgeField),
			Group:       stringAt(item, api.GroupField),
		})
	}
	return opts
}

func stringAt(item map[string]any, field string) string {
	if field == "" {
		return ""
	}
	value, ok := item[field]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

func withEmpty(source *schema.OptionsSource, opts []schema.FieldOption) []schema.FieldOption {
	if !source.IncludeEmpty {
		return opts
	}
	return append([]schema.FieldOption{source.EmptyOption()}, opts...)
}
