package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"laurels/internal/models"
	"laurels/pkg/logger"
)

// DocumentVersion is written into catalogs synthesized by this package
const DocumentVersion = "1.0"

// Rejection records why a definition was not indexed
type Rejection struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Catalog loads and indexes immutable achievement definitions
type Catalog struct {
	mu     sync.RWMutex
	logger *logger.Logger

	byID       map[string]*models.AchievementDefinition
	order      []string
	byCategory map[models.Category][]*models.AchievementDefinition
	byType     map[models.AchievementType][]*models.AchievementDefinition
	byRarity   map[models.Rarity][]*models.AchievementDefinition
	rejected   []Rejection
}

// New creates an empty catalog
func New(log *logger.Logger) *Catalog {
	c := &Catalog{logger: logger.OrDefault(log, "CATALOG")}
	c.reset()
	return c
}

func (c *Catalog) reset() {
	c.byID = make(map[string]*models.AchievementDefinition)
	c.order = nil
	c.byCategory = make(map[models.Category][]*models.AchievementDefinition)
	c.byType = make(map[models.AchievementType][]*models.AchievementDefinition)
	c.byRarity = make(map[models.Rarity][]*models.AchievementDefinition)
	c.rejected = nil
}

// Load reads a YAML or JSON catalog from path. When the file is absent the
// built-in definitions are indexed and written to path; when it is malformed
// they are indexed in memory only. Both cases return a *models.LoadError
// alongside the count, and the catalog stays usable.
func (c *Catalog) Load(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		count := c.loadFallback()
		if errors.Is(err, os.ErrNotExist) {
			if werr := WriteDefaults(path); werr != nil {
				c.logger.Warn("Failed to write default catalog to %s: %v", path, werr)
			} else {
				c.logger.Info("Wrote %d default achievements to %s", count, path)
			}
		}
		return count, &models.LoadError{Path: path, Fallback: true, Err: err}
	}

	records, err := parseDocument(data)
	if err != nil {
		count := c.loadFallback()
		c.logger.Error("Catalog %s is malformed, using built-in definitions: %v", path, err)
		return count, &models.LoadError{Path: path, Fallback: true, Err: err}
	}

	count := c.index(records, nil)
	c.logger.Info("Loaded %d achievements from %s (%d rejected)", count, path, len(c.Rejected()))
	return count, nil
}

// LoadBytes indexes a YAML or JSON document. A malformed document leaves the
// catalog unchanged.
func (c *Catalog) LoadBytes(data []byte) (int, error) {
	records, err := parseDocument(data)
	if err != nil {
		return 0, &models.LoadError{Err: err}
	}
	return c.index(records, nil), nil
}

// LoadDefinitions indexes already-decoded definitions through the same
// validation pipeline as file sources
func (c *Catalog) LoadDefinitions(defs []models.AchievementDefinition) int {
	return c.index(nil, defs)
}

func (c *Catalog) loadFallback() int {
	return c.index(nil, DefaultDefinitions())
}

func (c *Catalog) index(records []yaml.Node, typed []models.AchievementDefinition) int {
	var rejected []Rejection
	candidates := make([]*models.AchievementDefinition, 0, len(records)+len(typed))

	for i := range records {
		def, err := decodeRecord(&records[i])
		if err != nil {
			rejected = append(rejected, Rejection{ID: recordID(&records[i], i), Reason: err.Error()})
			continue
		}
		candidates = append(candidates, def)
	}
	for i := range typed {
		def := cloneDefinition(&typed[i])
		if err := validateDefinition(def); err != nil {
			rejected = append(rejected, Rejection{ID: def.ID, Reason: err.Error()})
			continue
		}
		candidates = append(candidates, def)
	}

	accepted, graphRejects := resolveGraph(dedupe(candidates, &rejected))
	rejected = append(rejected, graphRejects...)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.reset()
	for _, def := range accepted {
		c.byID[def.ID] = def
		c.order = append(c.order, def.ID)
		c.byCategory[def.Category] = append(c.byCategory[def.Category], def)
		c.byType[def.Type] = append(c.byType[def.Type], def)
		c.byRarity[def.Rarity] = append(c.byRarity[def.Rarity], def)
	}
	c.rejected = rejected

	for _, r := range rejected {
		c.logger.Warn("Rejected achievement %q: %s", r.ID, r.Reason)
	}
	return len(accepted)
}

// dedupe keeps the first definition for each id
func dedupe(defs []*models.AchievementDefinition, rejected *[]Rejection) []*models.AchievementDefinition {
	seen := make(map[string]bool, len(defs))
	out := defs[:0]
	for _, def := range defs {
		if seen[def.ID] {
			*rejected = append(*rejected, Rejection{ID: def.ID, Reason: "duplicate id"})
			continue
		}
		seen[def.ID] = true
		out = append(out, def)
	}
	return out
}

// GetByID returns the definition with the given id
func (c *Catalog) GetByID(id string) (*models.AchievementDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.byID[id]
	return def, ok
}

// GetByCategory returns definitions in a category, in declaration order
func (c *Catalog) GetByCategory(category models.Category) []*models.AchievementDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*models.AchievementDefinition(nil), c.byCategory[category]...)
}

// GetByType returns definitions of a type, in declaration order
func (c *Catalog) GetByType(t models.AchievementType) []*models.AchievementDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*models.AchievementDefinition(nil), c.byType[t]...)
}

// GetByRarity returns definitions of a rarity, in declaration order
func (c *Catalog) GetByRarity(r models.Rarity) []*models.AchievementDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*models.AchievementDefinition(nil), c.byRarity[r]...)
}

// All returns every definition in declaration order
func (c *Catalog) All() []*models.AchievementDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*models.AchievementDefinition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Count returns the number of indexed definitions
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// Rejected returns the rejections from the last load
func (c *Catalog) Rejected() []Rejection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Rejection(nil), c.rejected...)
}

type document struct {
	Version      string                         `yaml:"version"`
	Achievements []models.AchievementDefinition `yaml:"achievements"`
}

// WriteDefaults writes the built-in definitions as YAML to path
func WriteDefaults(path string) error {
	return WriteDefinitions(path, DefaultDefinitions())
}

// WriteDefinitions writes definitions as a versioned YAML catalog
func WriteDefinitions(path string, defs []models.AchievementDefinition) error {
	data, err := yaml.Marshal(document{Version: DocumentVersion, Achievements: defs})
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return nil
}

func cloneDefinition(src *models.AchievementDefinition) *models.AchievementDefinition {
	def := *src
	def.Conditions = append([]models.Condition(nil), src.Conditions...)
	def.Prerequisites = append([]string(nil), src.Prerequisites...)
	def.Rewards = append([]models.RewardSpec(nil), src.Rewards...)
	return &def
}
