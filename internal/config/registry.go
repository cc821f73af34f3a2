// Package config implements the configuration registry: hot-reloadable,
// prefix-classified config documents loaded from a filesystem tree (spec.md §4.1).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/user/relaygate/internal/crypto"
	"github.com/user/relaygate/internal/metrics"
)

// classifiers maps a filename prefix to the config document type it loads
// into. Classification picks the LONGEST matching prefix, so a more specific
// prefix can be registered alongside a shorter one without ambiguity.
var classifiers = []string{"sql-config", "job-config"}

const (
	DocTypeDB   = "db"
	DocTypeSQL  = "sql"
	DocTypeJob  = "job"
	DocTypeAuth = "auth"
)

// Listener is notified once per affected configType after a load batch completes.
type Listener func(configType string)

// Registry is the single-producer-multi-consumer config store. Readers see a
// consistent snapshot of any one document; cross-document atomicity across
// sql/job/db/auth is not promised (spec.md §3 invariants).
type Registry struct {
	mu sync.RWMutex

	baseDir string

	sqlConfigs map[string]*EndpointDef
	jobConfigs map[string]*JobDef
	dbConfig   *DbConfig
	authConfig *AuthConfig

	listeners []Listener

	logf func(format string, args ...any)
}

var (
	singletonMu   sync.Mutex
	singletonInst *Registry
)

// New resolves baseDir once per process. A later caller supplying a
// different baseDir gets a stable-identity error (spec.md §4.1 step 1).
func New(baseDir string, logf func(format string, args ...any)) (*Registry, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	if baseDir == "" {
		baseDir = "."
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base dir: %w", err)
	}

	if singletonInst != nil {
		if singletonInst.baseDir != abs {
			return nil, fmt.Errorf("config registry already initialized with base dir %q, cannot reinitialize with %q", singletonInst.baseDir, abs)
		}
		return singletonInst, nil
	}

	if logf == nil {
		logf = func(string, ...any) {}
	}

	r := &Registry{
		baseDir:    abs,
		sqlConfigs: make(map[string]*EndpointDef),
		jobConfigs: make(map[string]*JobDef),
		logf:       logf,
	}
	singletonInst = r
	return r, nil
}

// resetForTest clears the process-wide singleton. Test-only.
func resetForTest() {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	singletonInst = nil
}

// NewForTesting builds a Registry that bypasses the process-wide singleton,
// for other packages' tests that need an isolated instance without
// colliding with any registry New has already installed.
func NewForTesting(baseDir string) *Registry {
	return &Registry{
		baseDir:    baseDir,
		sqlConfigs: make(map[string]*EndpointDef),
		jobConfigs: make(map[string]*JobDef),
		logf:       func(string, ...any) {},
	}
}

// Seed installs configuration directly, bypassing file discovery entirely —
// for tests that want a Registry preloaded without writing fixture files.
func (r *Registry) Seed(sql map[string]*EndpointDef, job map[string]*JobDef, db *DbConfig, auth *AuthConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range sql {
		r.sqlConfigs[k] = v
	}
	for k, v := range job {
		r.jobConfigs[k] = v
	}
	if db != nil {
		r.dbConfig = db
	}
	if auth != nil {
		r.authConfig = auth
	}
}

// Subscribe registers a listener invoked once per affected configType after
// a load batch completes.
func (r *Registry) Subscribe(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

func (r *Registry) notify(types map[string]bool) {
	r.mu.RLock()
	listeners := append([]Listener(nil), r.listeners...)
	r.mu.RUnlock()

	for t := range types {
		metrics.ConfigReloadsTotal.WithLabelValues(t).Inc()
		for _, l := range listeners {
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						r.logf("config listener panicked: %v", rec)
					}
				}()
				l(t)
			}()
		}
	}
}

// LoadAll performs a full load of db-config, auth-config, and every
// sql-config*/job-config* file matching the given pattern (relative to
// baseDir). Missing SQL/Job files are warnings; a missing required DB config
// is a fatal ConfigError.
func (r *Registry) LoadAll(pattern string) error {
	if pattern == "" {
		pattern = Lookup(EnvConfigPattern, DefaultConfigPattern)
	}

	if err := r.loadDbConfig(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	r.loadAuthConfig()

	affected := map[string]bool{DocTypeDB: true, DocTypeAuth: true}
	if err := r.incrementalLoadLocked(pattern, affected); err != nil {
		r.logf("config: incremental load warning: %v", err)
	}
	r.notify(affected)
	return nil
}

// IncrementalLoad re-walks pattern and upserts any matched, valid entries.
// Malformed individual entries are logged and skipped (partial success).
func (r *Registry) IncrementalLoad(pattern string) error {
	if pattern == "" {
		pattern = Lookup(EnvConfigPattern, DefaultConfigPattern)
	}
	affected := map[string]bool{}
	err := r.incrementalLoadLocked(pattern, affected)
	r.notify(affected)
	return err
}

func (r *Registry) incrementalLoadLocked(pattern string, affected map[string]bool) error {
	files, err := r.walk(pattern)
	if err != nil {
		return err
	}

	for _, f := range files {
		base := filepath.Base(f)
		prefix := longestMatchingPrefix(base)
		if prefix == "" {
			r.logf("config: skipping %s: no matching prefix classifier", f)
			continue
		}
		ext := strings.TrimPrefix(filepath.Ext(base), ".")
		data, err := os.ReadFile(f)
		if err != nil {
			r.logf("config: skipping %s: %v", f, err)
			continue
		}

		switch prefix {
		case "sql-config":
			var entries map[string]*EndpointDef
			if err := decodeFile(ext, data, &entries); err != nil {
				r.logf("config: malformed sql-config %s: %v", f, err)
				continue
			}
			r.upsertSQL(entries)
			affected[DocTypeSQL] = true
		case "job-config":
			var entries map[string]*JobDef
			if err := decodeFile(ext, data, &entries); err != nil {
				r.logf("config: malformed job-config %s: %v", f, err)
				continue
			}
			r.upsertJob(entries)
			affected[DocTypeJob] = true
		}
	}
	return nil
}

func (r *Registry) upsertSQL(entries map[string]*EndpointDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range entries {
		k = strings.TrimSpace(k)
		if k == "" || v == nil || strings.TrimSpace(v.TableName) == "" {
			r.logf("config: skipping invalid sql-config entry %q", k)
			continue
		}
		r.sqlConfigs[k] = v // last write wins across the batch
	}
}

func (r *Registry) upsertJob(entries map[string]*JobDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range entries {
		k = strings.TrimSpace(k)
		if k == "" || v == nil || len(v.Jobs) == 0 {
			r.logf("config: skipping invalid job-config entry %q", k)
			continue
		}
		r.jobConfigs[k] = v
	}
}

func longestMatchingPrefix(filename string) string {
	best := ""
	for _, c := range classifiers {
		if strings.HasPrefix(filename, c) && len(c) > len(best) {
			best = c
		}
	}
	return best
}

func (r *Registry) loadDbConfig() error {
	path := Lookup(EnvDbConfigPath, "")
	candidates := candidatePaths(r.baseDir, path, "db-config")
	for _, c := range candidates {
		data, err := os.ReadFile(c.path)
		if err != nil {
			continue
		}
		var cfg DbConfig
		if err := decodeFile(c.ext, data, &cfg); err != nil {
			continue
		}
		decryptHostSpecs(cfg.MySQL)
		decryptHostSpecs(cfg.MSSQL)
		decryptHostSpecs(cfg.SQLite)
		r.mu.Lock()
		r.dbConfig = &cfg
		r.mu.Unlock()
		return nil
	}
	return fmt.Errorf("required db config not found under %s", r.baseDir)
}

// decryptHostSpecs resolves "enc:<base64>" DSNs in place, so a db-config
// file can carry AES-GCM-encrypted connection strings at rest instead of
// plaintext credentials (spec.md/SPEC_FULL.md §4.6a).
func decryptHostSpecs(specs map[string]HostSpec) {
	for host, spec := range specs {
		if !strings.HasPrefix(spec.DSN, "enc:") {
			continue
		}
		plain, err := crypto.Decrypt(strings.TrimPrefix(spec.DSN, "enc:"))
		if err != nil {
			continue
		}
		spec.DSN = plain
		specs[host] = spec
	}
}

func (r *Registry) loadAuthConfig() {
	path := Lookup(EnvAuthConfigPath, "")
	candidates := candidatePaths(r.baseDir, path, "auth-config")
	for _, c := range candidates {
		data, err := os.ReadFile(c.path)
		if err != nil {
			continue
		}
		var cfg AuthConfig
		if err := decodeFile(c.ext, data, &cfg); err != nil {
			continue
		}
		r.mu.Lock()
		r.authConfig = &cfg
		r.mu.Unlock()
		return
	}
	r.logf("config: no auth-config found, using defaults")
}

type candidate struct {
	path string
	ext  string
}

func candidatePaths(baseDir, explicit, stem string) []candidate {
	var out []candidate
	if explicit != "" {
		out = append(out, candidate{path: explicit, ext: strings.TrimPrefix(filepath.Ext(explicit), ".")})
		return out
	}
	for _, ext := range supportedExtensions {
		out = append(out, candidate{path: filepath.Join(baseDir, "config", stem+"."+ext), ext: ext})
	}
	return out
}

// GetSqlConfig returns the EndpointDef for apiKey, if registered.
func (r *Registry) GetSqlConfig(apiKey string) (*EndpointDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.sqlConfigs[apiKey]
	return v, ok
}

// GetJobConfig returns the JobDef for jobKey, if registered.
func (r *Registry) GetJobConfig(jobKey string) (*JobDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.jobConfigs[jobKey]
	return v, ok
}

// SQLKeys returns the apiKeys of every registered sql-config entry.
func (r *Registry) SQLKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.sqlConfigs))
	for k := range r.sqlConfigs {
		keys = append(keys, k)
	}
	return keys
}

// JobKeys returns the jobKeys of every registered job-config entry.
func (r *Registry) JobKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.jobConfigs))
	for k := range r.jobConfigs {
		keys = append(keys, k)
	}
	return keys
}

// GetDbConfig returns the loaded DbConfig.
func (r *Registry) GetDbConfig() *DbConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.dbConfig == nil {
		return &DbConfig{}
	}
	return r.dbConfig
}

// GetEffectiveAuth merges override (endpoint/job-level) over the global
// AuthConfig, field-wise.
func (r *Registry) GetEffectiveAuth(override *AuthConfig) *AuthConfig {
	r.mu.RLock()
	global := r.authConfig
	r.mu.RUnlock()
	return Merge(global, override)
}

// walk resolves pattern (relative to baseDir, ** = any depth, * = one path
// segment, ? = one character) against the filesystem tree, returning files
// with a json/yaml/yml extension.
func (r *Registry) walk(pattern string) ([]string, error) {
	var matches []string
	err := filepath.Walk(r.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // best-effort: skip unreadable entries
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.TrimPrefix(filepath.Ext(path), ".")
		if _, ok := deserializers[ext]; !ok {
			return nil
		}
		rel, err := filepath.Rel(r.baseDir, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if matchGlob(pattern, rel) {
			matches = append(matches, path)
		}
		return nil
	})
	return matches, err
}

// matchGlob implements the restricted glob grammar from spec.md §4.1:
// "**" matches any depth (including zero segments), "*" matches one path
// segment, "?" matches one character within a segment.
func matchGlob(pattern, relPath string) bool {
	pSegs := strings.Split(pattern, "/")
	rSegs := strings.Split(relPath, "/")
	return matchSegs(pSegs, rSegs)
}

func matchSegs(pSegs, rSegs []string) bool {
	if len(pSegs) == 0 {
		return len(rSegs) == 0
	}
	head := pSegs[0]
	if head == "**" {
		if matchSegs(pSegs[1:], rSegs) {
			return true
		}
		if len(rSegs) == 0 {
			return false
		}
		return matchSegs(pSegs, rSegs[1:])
	}
	if len(rSegs) == 0 {
		return false
	}
	if !matchSegment(head, rSegs[0]) {
		return false
	}
	return matchSegs(pSegs[1:], rSegs[1:])
}

func matchSegment(pattern, seg string) bool {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(seg)
}
