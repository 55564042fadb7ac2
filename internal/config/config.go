package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete engine configuration. It mirrors the data model
// and component parameters named in the system design: scan paths, the
// SQ8 quantizer, the HNSW index, the worker pool, the parser fallback,
// adaptive retrieval weights, and the repo map.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Paths     PathsConfig     `yaml:"paths" json:"paths"`
	Quantize  QuantizeConfig  `yaml:"quantize" json:"quantize"`
	HNSW      HNSWConfig      `yaml:"hnsw" json:"hnsw"`
	Workers   WorkersConfig   `yaml:"workers" json:"workers"`
	Parser    ParserConfig    `yaml:"parser" json:"parser"`
	Retrieval RetrievalConfig `yaml:"retrieval" json:"retrieval"`
	RepoMap   RepoMapConfig   `yaml:"repo_map" json:"repo_map"`
	LogLevel  string          `yaml:"log_level" json:"log_level"`
}

// PathsConfig configures which paths the scanner considers, beyond
// .gitignore/.aiignore/include.txt precedence.
type PathsConfig struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// QuantizeConfig configures the SQ8 vector quantizer.
type QuantizeConfig struct {
	// Bits is the per-component bit depth, 4..8.
	Bits int `yaml:"bits" json:"bits"`
	// Dimensions is the embedding width; 0 means auto-detect from the
	// configured embedder on first use.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
}

// HNSWConfig configures the proximity graph.
type HNSWConfig struct {
	M              int `yaml:"m" json:"m"`
	EfConstruction int `yaml:"ef_construction" json:"ef_construction"`
	EfSearch       int `yaml:"ef_search" json:"ef_search"`
}

// WorkersConfig configures the indexing worker pool.
type WorkersConfig struct {
	// PoolSize is the number of shared-nothing workers. 0 means
	// max(1, NumCPU-1).
	PoolSize int `yaml:"pool_size" json:"pool_size"`
	// ParallelThreshold is the minimum file count before the pool is
	// used at all; below it files are processed on the calling
	// goroutine.
	ParallelThreshold int `yaml:"parallel_threshold" json:"parallel_threshold"`
}

// ParserConfig configures the parser adapter's failure fallback and
// reference-emission thresholds.
type ParserConfig struct {
	// Fallback is one of "skip", "line_chunk", "text_only".
	Fallback string `yaml:"fallback" json:"fallback"`
	// LineChunkSize is the N used by the line_chunk fallback.
	LineChunkSize int `yaml:"line_chunk_size" json:"line_chunk_size"`
	// MinRefNameLength discards shorter names during chain-query ref
	// emission, not at parse time.
	MinRefNameLength int `yaml:"min_ref_name_length" json:"min_ref_name_length"`
}

// RetrievalConfig configures the adaptive retrieval pipeline: per-primary
// base weights, the accepted-source boost, and the optional cross-encoder.
type RetrievalConfig struct {
	// BaseWeights maps primary -> {source -> weight}, e.g.
	// "semantic": {"vector": 0.7, "graph": 0.1, "symbol": 0.2}.
	BaseWeights map[string]map[string]float64 `yaml:"base_weights" json:"base_weights"`
	// AcceptedSourceBoost is added to a source's weight when the caller
	// marks it as an accepted/preferred source, before L1 normalization.
	AcceptedSourceBoost float64 `yaml:"accepted_source_boost" json:"accepted_source_boost"`
	// CrossEncoderModel is an optional path to an ONNX pair-scoring
	// model. Empty disables the cross-encoder reranker entirely and
	// leaves only the lexical jaccard-boost reranker active.
	CrossEncoderModel string `yaml:"cross_encoder_model" json:"cross_encoder_model"`
	// MaxExpansions bounds query expansion.
	MaxExpansions int `yaml:"max_expansions" json:"max_expansions"`
}

// RepoMapConfig configures the PageRank-based repo map.
type RepoMapConfig struct {
	Iterations int `yaml:"iterations" json:"iterations"`
	TopFiles   int `yaml:"top_files" json:"top_files"`
	TopSymbols int `yaml:"top_symbols" json:"top_symbols"`
	MaxNodes   int `yaml:"max_nodes" json:"max_nodes"`
}

// defaultExcludePatterns are always excluded in addition to
// .gitignore/.aiignore handling.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
}

// defaultBaseWeights is the per-primary source-weight table from the
// adaptive retrieval design: semantic favors the vector source,
// structural favors the graph source, historical favors the symbol
// source (DSR-backed), hybrid balances all three.
func defaultBaseWeights() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"semantic":   {"vector": 0.7, "graph": 0.1, "symbol": 0.2},
		"structural": {"vector": 0.1, "graph": 0.7, "symbol": 0.2},
		"historical": {"vector": 0.2, "graph": 0.1, "symbol": 0.7},
		"hybrid":     {"vector": 0.4, "graph": 0.3, "symbol": 0.3},
	}
}

// NewConfig creates a Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Include: []string{},
			Exclude: defaultExcludePatterns,
		},
		Quantize: QuantizeConfig{
			Bits:       8,
			Dimensions: 0,
		},
		HNSW: HNSWConfig{
			M:              16,
			EfConstruction: 200,
			EfSearch:       64,
		},
		Workers: WorkersConfig{
			PoolSize:          0,
			ParallelThreshold: 8,
		},
		Parser: ParserConfig{
			Fallback:         "line_chunk",
			LineChunkSize:    40,
			MinRefNameLength: 2,
		},
		Retrieval: RetrievalConfig{
			BaseWeights:         defaultBaseWeights(),
			AcceptedSourceBoost: 0.05,
			CrossEncoderModel:   "",
			MaxExpansions:       12,
		},
		RepoMap: RepoMapConfig{
			Iterations: 10,
			TopFiles:   20,
			TopSymbols: 5,
			MaxNodes:   5000,
		},
		LogLevel: "info",
	}
}

// ResolvedPoolSize returns Workers.PoolSize, or max(1, NumCPU-1) when unset.
func (c *Config) ResolvedPoolSize() int {
	if c.Workers.PoolSize > 0 {
		return c.Workers.PoolSize
	}
	if n := runtime.NumCPU() - 1; n > 0 {
		return n
	}
	return 1
}

// GetUserConfigPath returns the path to the user/global configuration
// file, following the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/giai/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/giai/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "giai", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "giai", "config.yaml")
	}
	return filepath.Join(home, ".config", "giai", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load loads configuration for the repository rooted at dir, applying
// sources in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/giai/config.yaml)
//  3. Project config (.giai.yaml in the repo root)
//  4. Environment variables (GIAI_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .giai.yaml or .giai.yml
// in dir.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".giai.yaml")
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}
	ymlPath := filepath.Join(dir, ".giai.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if len(other.Paths.Include) > 0 {
		c.Paths.Include = other.Paths.Include
	}
	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}

	if other.Quantize.Bits != 0 {
		c.Quantize.Bits = other.Quantize.Bits
	}
	if other.Quantize.Dimensions != 0 {
		c.Quantize.Dimensions = other.Quantize.Dimensions
	}

	if other.HNSW.M != 0 {
		c.HNSW.M = other.HNSW.M
	}
	if other.HNSW.EfConstruction != 0 {
		c.HNSW.EfConstruction = other.HNSW.EfConstruction
	}
	if other.HNSW.EfSearch != 0 {
		c.HNSW.EfSearch = other.HNSW.EfSearch
	}

	if other.Workers.PoolSize != 0 {
		c.Workers.PoolSize = other.Workers.PoolSize
	}
	if other.Workers.ParallelThreshold != 0 {
		c.Workers.ParallelThreshold = other.Workers.ParallelThreshold
	}

	if other.Parser.Fallback != "" {
		c.Parser.Fallback = other.Parser.Fallback
	}
	if other.Parser.LineChunkSize != 0 {
		c.Parser.LineChunkSize = other.Parser.LineChunkSize
	}
	if other.Parser.MinRefNameLength != 0 {
		c.Parser.MinRefNameLength = other.Parser.MinRefNameLength
	}

	if len(other.Retrieval.BaseWeights) > 0 {
		c.Retrieval.BaseWeights = other.Retrieval.BaseWeights
	}
	if other.Retrieval.AcceptedSourceBoost != 0 {
		c.Retrieval.AcceptedSourceBoost = other.Retrieval.AcceptedSourceBoost
	}
	if other.Retrieval.CrossEncoderModel != "" {
		c.Retrieval.CrossEncoderModel = other.Retrieval.CrossEncoderModel
	}
	if other.Retrieval.MaxExpansions != 0 {
		c.Retrieval.MaxExpansions = other.Retrieval.MaxExpansions
	}

	if other.RepoMap.Iterations != 0 {
		c.RepoMap.Iterations = other.RepoMap.Iterations
	}
	if other.RepoMap.TopFiles != 0 {
		c.RepoMap.TopFiles = other.RepoMap.TopFiles
	}
	if other.RepoMap.TopSymbols != 0 {
		c.RepoMap.TopSymbols = other.RepoMap.TopSymbols
	}
	if other.RepoMap.MaxNodes != 0 {
		c.RepoMap.MaxNodes = other.RepoMap.MaxNodes
	}

	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

// applyEnvOverrides applies GIAI_* environment variable overrides, the
// highest-precedence configuration source.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GIAI_QUANTIZE_BITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 4 && n <= 8 {
			c.Quantize.Bits = n
		}
	}
	if v := os.Getenv("GIAI_HNSW_EF_SEARCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 10 {
			c.HNSW.EfSearch = n
		}
	}
	if v := os.Getenv("GIAI_HNSW_EF_CONSTRUCTION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 10 {
			c.HNSW.EfConstruction = n
		}
	}
	if v := os.Getenv("GIAI_WORKERS_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Workers.PoolSize = n
		}
	}
	if v := os.Getenv("GIAI_PARSER_FALLBACK"); v != "" {
		c.Parser.Fallback = v
	}
	if v := os.Getenv("GIAI_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("GIAI_CROSS_ENCODER_MODEL"); v != "" {
		c.Retrieval.CrossEncoderModel = v
	}
}

// Validate checks the configuration for internally-inconsistent values.
func (c *Config) Validate() error {
	if c.Quantize.Bits < 4 || c.Quantize.Bits > 8 {
		return fmt.Errorf("quantize.bits must be between 4 and 8, got %d", c.Quantize.Bits)
	}
	if c.HNSW.M < 2 {
		return fmt.Errorf("hnsw.m must be >= 2, got %d", c.HNSW.M)
	}
	if c.HNSW.EfConstruction < 10 {
		return fmt.Errorf("hnsw.ef_construction must be >= 10, got %d", c.HNSW.EfConstruction)
	}
	if c.HNSW.EfSearch < 10 {
		return fmt.Errorf("hnsw.ef_search must be >= 10, got %d", c.HNSW.EfSearch)
	}
	if c.Workers.PoolSize < 0 {
		return fmt.Errorf("workers.pool_size must be non-negative, got %d", c.Workers.PoolSize)
	}

	validFallbacks := map[string]bool{"skip": true, "line_chunk": true, "text_only": true}
	if !validFallbacks[c.Parser.Fallback] {
		return fmt.Errorf("parser.fallback must be 'skip', 'line_chunk', or 'text_only', got %s", c.Parser.Fallback)
	}

	for primary, weights := range c.Retrieval.BaseWeights {
		sum := 0.0
		for _, w := range weights {
			if w < 0 {
				return fmt.Errorf("retrieval.base_weights[%s] contains a negative weight", primary)
			}
			sum += w
		}
		if sum <= 0 {
			return fmt.Errorf("retrieval.base_weights[%s] must sum to a positive value", primary)
		}
	}

	if c.RepoMap.Iterations < 1 || c.RepoMap.Iterations > 20 {
		return fmt.Errorf("repo_map.iterations must be between 1 and 20, got %d", c.RepoMap.Iterations)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.LogLevel)
	}

	return nil
}

// MergeNewDefaults fills any unset (zero-valued) fields from the current
// defaults and returns the dotted names of the fields it added, for
// display by config upgrades. Existing non-zero values are preserved.
func (c *Config) MergeNewDefaults() []string {
	def := NewConfig()
	var added []string

	if c.Quantize.Bits == 0 {
		c.Quantize.Bits = def.Quantize.Bits
		added = append(added, "quantize.bits")
	}
	if c.HNSW.M == 0 {
		c.HNSW.M = def.HNSW.M
		added = append(added, "hnsw.m")
	}
	if c.HNSW.EfConstruction == 0 {
		c.HNSW.EfConstruction = def.HNSW.EfConstruction
		added = append(added, "hnsw.ef_construction")
	}
	if c.HNSW.EfSearch == 0 {
		c.HNSW.EfSearch = def.HNSW.EfSearch
		added = append(added, "hnsw.ef_search")
	}
	if c.Workers.ParallelThreshold == 0 {
		c.Workers.ParallelThreshold = def.Workers.ParallelThreshold
		added = append(added, "workers.parallel_threshold")
	}
	if c.Parser.Fallback == "" {
		c.Parser.Fallback = def.Parser.Fallback
		added = append(added, "parser.fallback")
	}
	if c.Parser.LineChunkSize == 0 {
		c.Parser.LineChunkSize = def.Parser.LineChunkSize
		added = append(added, "parser.line_chunk_size")
	}
	if c.Parser.MinRefNameLength == 0 {
		c.Parser.MinRefNameLength = def.Parser.MinRefNameLength
		added = append(added, "parser.min_ref_name_length")
	}
	if len(c.Retrieval.BaseWeights) == 0 {
		c.Retrieval.BaseWeights = def.Retrieval.BaseWeights
		added = append(added, "retrieval.base_weights")
	}
	if c.Retrieval.AcceptedSourceBoost == 0 {
		c.Retrieval.AcceptedSourceBoost = def.Retrieval.AcceptedSourceBoost
		added = append(added, "retrieval.accepted_source_boost")
	}
	if c.Retrieval.MaxExpansions == 0 {
		c.Retrieval.MaxExpansions = def.Retrieval.MaxExpansions
		added = append(added, "retrieval.max_expansions")
	}
	if c.RepoMap.Iterations == 0 {
		c.RepoMap.Iterations = def.RepoMap.Iterations
		added = append(added, "repo_map.iterations")
	}
	if c.RepoMap.TopFiles == 0 {
		c.RepoMap.TopFiles = def.RepoMap.TopFiles
		added = append(added, "repo_map.top_files")
	}
	if c.RepoMap.TopSymbols == 0 {
		c.RepoMap.TopSymbols = def.RepoMap.TopSymbols
		added = append(added, "repo_map.top_symbols")
	}
	if c.RepoMap.MaxNodes == 0 {
		c.RepoMap.MaxNodes = def.RepoMap.MaxNodes
		added = append(added, "repo_map.max_nodes")
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
		added = append(added, "log_level")
	}

	return added
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user configuration file. Returns a nil config
// and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// FindProjectRoot walks up from startDir looking for a .git directory,
// falling back to the starting directory if none is found.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}
