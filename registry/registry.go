package registry

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/ethereum-optimism/infra/fix-acceptor/types"
	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"
)

// Fixture discovery layout
const (
	FIXDir          = "fix"
	FASTDir         = "fast"
	FIXScriptExt    = ".fixt"
	FASTScriptExt   = ".fast"
	FASTTemplateExt = ".xml"
)

// ErrInvalidCatalog marks catalog content errors, as opposed to unreadable files
var ErrInvalidCatalog = errors.New("invalid catalog")

// Registry holds the suites selected for a run
type Registry struct {
	config Config
	suites []types.Suite
	mu     sync.RWMutex
}

// Config contains registry configuration
type Config struct {
	Log         log.Logger
	CatalogFile string   // YAML or TOML catalog
	FixturesDir string   // Directory laid out as fix/*.fixt and fast/*.fast
	FIXBinary   string   // Server and client for discovered FIX suites
	FASTBinary  string   // Server and client for discovered FAST suites
	Suites      []string // Only keep these suites, in this order, when non-empty
}

// NewRegistry creates a new registry instance
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.CatalogFile == "" && cfg.FixturesDir == "" {
		return nil, fmt.Errorf("catalog file or fixtures directory is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Registry{
		config: cfg,
	}
	if err := r.loadSuites(); err != nil {
		return nil, fmt.Errorf("failed to load suites: %w", err)
	}

	cfg.Log.Debug("Registry loaded", "len(suites)", len(r.suites))
	return r, nil
}

func (r *Registry) loadSuites() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var suites []types.Suite
	if r.config.CatalogFile != "" {
		catalog, err := loadCatalog(r.config.CatalogFile)
		if err != nil {
			return err
		}
		loaded, err := suitesFromCatalog(catalog, filepath.Dir(r.config.CatalogFile))
		if err != nil {
			return err
		}
		suites = append(suites, loaded...)
	}
	if r.config.FixturesDir != "" {
		discovered, err := discoverSuites(r.config.FixturesDir, r.config.FIXBinary, r.config.FASTBinary)
		if err != nil {
			return err
		}
		suites = append(suites, discovered...)
	}

	if err := validateSuites(suites); err != nil {
		return err
	}
	selected, err := selectSuites(suites, r.config.Suites)
	if err != nil {
		return err
	}
	r.suites = selected
	return nil
}

// GetSuites returns the selected suites in run order
func (r *Registry) GetSuites() []types.Suite {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.suites
}

// GetSuite returns a suite by ID
func (r *Registry) GetSuite(id string) (types.Suite, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.suites {
		if s.ID == id {
			return s, true
		}
	}
	return types.Suite{}, false
}

// Programs returns every distinct server and client program of the selected suites
func (r *Registry) Programs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var programs []string
	for _, s := range r.suites {
		for _, p := range []string{s.Server, s.Client} {
			if !slices.Contains(programs, p) {
				programs = append(programs, p)
			}
		}
	}
	return programs
}

// GetConfig returns the registry configuration
func (r *Registry) GetConfig() Config {
	return r.config
}

// loadCatalog reads a catalog file, picking the format by extension
func loadCatalog(path string) (*types.CatalogConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var cfg types.CatalogConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidCatalog, path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidCatalog, path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%w: unknown keys in %s: %v", ErrInvalidCatalog, path, undecoded)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported catalog format %q (expected .yaml, .yml or .toml)", ErrInvalidCatalog, ext)
	}
	return &cfg, nil
}

// suitesFromCatalog converts catalog entries into suites, resolving paths against baseDir
func suitesFromCatalog(catalog *types.CatalogConfig, baseDir string) ([]types.Suite, error) {
	suites := make([]types.Suite, 0, len(catalog.Suites))
	for _, sc := range catalog.Suites {
		suite := types.Suite{
			ID:          sc.ID,
			Kind:        types.Kind(strings.ToLower(string(sc.Kind))),
			Description: sc.Description,
			Server:      resolveProgram(baseDir, sc.Server),
			Client:      resolveProgram(baseDir, sc.Client),
			Channel:     sc.Channel,
			ServerArgs:  slices.Clone(sc.ServerArgs),
			ClientArgs:  slices.Clone(sc.ClientArgs),
		}
		for _, tc := range sc.Tests {
			suite.Tests = append(suite.Tests, types.TestCase{
				Name:     tc.Name,
				Suite:    sc.ID,
				Kind:     suite.Kind,
				Script:   resolvePath(baseDir, tc.Script),
				Template: resolvePath(baseDir, tc.Template),
			})
		}
		suites = append(suites, suite)
	}
	return suites, nil
}

// discoverSuites builds the fix and fast suites from a fixtures directory
func discoverSuites(dir, fixBinary, fastBinary string) ([]types.Suite, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: fixtures path %s is not a directory", ErrInvalidCatalog, dir)
	}

	var suites []types.Suite
	fix, err := discoverSuite(filepath.Join(dir, FIXDir), types.KindFIX, FIXScriptExt, fixBinary)
	if err != nil {
		return nil, err
	}
	if fix != nil {
		suites = append(suites, *fix)
	}
	fast, err := discoverSuite(filepath.Join(dir, FASTDir), types.KindFAST, FASTScriptExt, fastBinary)
	if err != nil {
		return nil, err
	}
	if fast != nil {
		suites = append(suites, *fast)
	}

	if len(suites) == 0 {
		return nil, fmt.Errorf("%w: no fixtures found under %s", ErrInvalidCatalog, dir)
	}
	return suites, nil
}

func discoverSuite(dir string, kind types.Kind, ext string, binary string) (*types.Suite, error) {
	scripts, err := filepath.Glob(filepath.Join(dir, "*"+ext))
	if err != nil {
		return nil, err
	}
	if len(scripts) == 0 {
		return nil, nil
	}
	sort.Strings(scripts)

	suite := &types.Suite{
		ID:     string(kind),
		Kind:   kind,
		Server: binary,
		Client: binary,
	}
	for _, script := range scripts {
		name := strings.TrimSuffix(filepath.Base(script), ext)
		tc := types.TestCase{
			Name:   name,
			Suite:  suite.ID,
			Kind:   kind,
			Script: script,
		}
		if kind.NeedsTemplate() {
			tc.Template = strings.TrimSuffix(script, ext) + FASTTemplateExt
		}
		suite.Tests = append(suite.Tests, tc)
	}
	return suite, nil
}

func validateSuites(suites []types.Suite) error {
	seen := make(map[string]bool)
	for _, s := range suites {
		if s.ID == "" {
			return fmt.Errorf("%w: suite without id", ErrInvalidCatalog)
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: duplicate suite %s", ErrInvalidCatalog, s.ID)
		}
		seen[s.ID] = true
		if err := validateSuite(s); err != nil {
			return err
		}
	}
	return nil
}

func validateSuite(s types.Suite) error {
	if !s.Kind.IsValid() {
		return fmt.Errorf("%w: suite %s has unknown kind %q", ErrInvalidCatalog, s.ID, s.Kind)
	}
	if s.Server == "" || s.Client == "" {
		return fmt.Errorf("%w: suite %s needs both a server and a client program", ErrInvalidCatalog, s.ID)
	}
	if len(s.Tests) == 0 {
		return fmt.Errorf("%w: suite %s has no tests", ErrInvalidCatalog, s.ID)
	}

	names := make(map[string]bool)
	for _, tc := range s.Tests {
		if tc.Name == "" {
			return fmt.Errorf("%w: suite %s has a test without a name", ErrInvalidCatalog, s.ID)
		}
		if names[tc.Name] {
			return fmt.Errorf("%w: duplicate test %s", ErrInvalidCatalog, tc.ID())
		}
		names[tc.Name] = true

		if tc.Script == "" {
			return fmt.Errorf("%w: test %s has no script", ErrInvalidCatalog, tc.ID())
		}
		if err := checkFile(tc.Script); err != nil {
			return fmt.Errorf("test %s: %w", tc.ID(), err)
		}
		if s.Kind.NeedsTemplate() {
			if tc.Template == "" {
				return fmt.Errorf("%w: test %s needs a template", ErrInvalidCatalog, tc.ID())
			}
			if err := checkFile(tc.Template); err != nil {
				return fmt.Errorf("test %s: %w", tc.ID(), err)
			}
		}
	}
	return nil
}

func selectSuites(suites []types.Suite, filter []string) ([]types.Suite, error) {
	if len(filter) == 0 {
		return suites, nil
	}
	selected := make([]types.Suite, 0, len(filter))
	for _, id := range filter {
		idx := slices.IndexFunc(suites, func(s types.Suite) bool { return s.ID == id })
		if idx < 0 {
			return nil, fmt.Errorf("%w: unknown suite %q", ErrInvalidCatalog, id)
		}
		selected = append(selected, suites[idx])
	}
	return selected, nil
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInvalidCatalog, path)
	}
	return nil
}

func resolvePath(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// resolveProgram leaves bare command names to the PATH lookup done at launch
func resolveProgram(baseDir, program string) string {
	if !strings.ContainsRune(program, filepath.Separator) {
		return program
	}
	return resolvePath(baseDir, program)
}
