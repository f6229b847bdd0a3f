// Package version implements dslVersion compatibility checking and stepwise
// schema migration. The registry deals in raw schema documents
// (map[string]any) so each per-version parser owns a small, testable
// transformation instead of one any-to-any converter.
package version

import (
	"fmt"
	"sort"
	"sync"

	"github.com/blang/semver/v4"
)

const (
	// CurrentDSLVersion is the version emitted by this build.
	CurrentDSLVersion = "1.2.0"

	// MinSupportedVersion is the floor; schemas below it are rejected.
	MinSupportedVersion = "1.0.0"
)

// migratableVersions is the allow-list of exact versions with a registered
// upgrade path to current.
var migratableVersions = map[string]struct{}{
	"1.0.0": {},
	"1.1.0": {},
}

// CheckResult is the outcome of a version compatibility check.
type CheckResult struct {
	IsValid          bool   `json:"isValid"`
	Error            string `json:"error,omitempty"`
	IsCurrentVersion bool   `json:"isCurrentVersion"`
	NeedsMigration   bool   `json:"needsMigration"`
	CanMigrate       bool   `json:"canMigrate"`
	Parsed           semver.Version
}

// CheckVersion parses a dslVersion string and classifies it against the
// compiled-in current version and minimum-supported floor.
func CheckVersion(raw string) CheckResult {
	v, err := semver.Parse(raw)
	if err != nil {
		return CheckResult{Error: fmt.Sprintf("invalid version %q: %v", raw, err)}
	}

	minimum := semver.MustParse(MinSupportedVersion)
	current := semver.MustParse(CurrentDSLVersion)

	if v.LT(minimum) {
		return CheckResult{
			Parsed: v,
			Error:  fmt.Sprintf("version %s is below minimum supported %s", raw, MinSupportedVersion),
		}
	}
	if v.GT(current) {
		return CheckResult{
			Parsed: v,
			Error:  fmt.Sprintf("version %s is newer than supported %s", raw, CurrentDSLVersion),
		}
	}
	if v.EQ(current) {
		return CheckResult{IsValid: true, IsCurrentVersion: true, Parsed: v}
	}

	_, canMigrate := migratableVersions[raw]
	return CheckResult{
		IsValid:        true,
		NeedsMigration: true,
		CanMigrate:     canMigrate,
		Parsed:         v,
	}
}

// Document is a raw schema JSON document.
type Document = map[string]any

// Parser handles one schema document version.
type Parser interface {
	// Parse decodes the raw document for this version.
	Parse(data []byte) (Document, error)
}

// Migrator is implemented by parsers that can upgrade a document to the next
// minor version.
type Migrator interface {
	// MigrateUp transforms a document one step forward, returning a new
	// document without mutating the input.
	MigrateUp(doc Document) (Document, error)
}

// Registry maps version strings, with a bare major-version fallback, to
// parser objects. Registration is explicit and idempotent.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register binds a parser to a version string ("1.1.0") or a bare major
// version ("1"). Registering the same key twice is a safe no-op.
func (r *Registry) Register(version string, p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.parsers[version]; exists {
		return
	}
	r.parsers[version] = p
}

// Lookup resolves a parser: exact version first, then the bare major number.
func (r *Registry) Lookup(version string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.parsers[version]; ok {
		return p, true
	}
	v, err := semver.Parse(version)
	if err != nil {
		return nil, false
	}
	p, ok := r.parsers[fmt.Sprintf("%d", v.Major)]
	return p, ok
}

// Versions returns registered version keys, sorted.
func (r *Registry) Versions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.parsers))
	for k := range r.parsers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Migrate upgrades a document stepwise from its version to current: each
// step applies the registered MigrateUp for the document's version and
// advances a synthetic minor version, until the current version is reached.
// A missing MigrateUp at any intermediate version is an error.
func (r *Registry) Migrate(doc Document, fromVersion string) (Document, error) {
	cur, err := semver.Parse(fromVersion)
	if err != nil {
		return nil, fmt.Errorf("migrate: invalid version %q: %w", fromVersion, err)
	}
	target := semver.MustParse(CurrentDSLVersion)

	for cur.LT(target) {
		verStr := cur.String()
		parser, ok := r.Lookup(verStr)
		if !ok {
			return nil, fmt.Errorf("migrate: no parser registered for version %s", verStr)
		}
		migrator, ok := parser.(Migrator)
		if !ok {
			return nil, fmt.Errorf("migrate: parser for version %s has no upgrade path", verStr)
		}
		next, err := migrator.MigrateUp(doc)
		if err != nil {
			return nil, fmt.Errorf("migrate from %s: %w", verStr, err)
		}
		doc = next

		// Advance a synthetic minor version; each registered step owns one
		// minor bump.
		cur = semver.Version{Major: cur.Major, Minor: cur.Minor + 1}
		if cur.GTE(target) {
			cur = target
		}
		doc["dslVersion"] = cur.String()
	}

	return doc, nil
}
