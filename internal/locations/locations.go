// Package locations holds the catalog of locations and the roles available at each.
package locations

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tatianab/spyfall-agents/internal/models"
	"github.com/tatianab/spyfall-agents/internal/parse"
	"github.com/tatianab/spyfall-agents/internal/rng"
)

//go:embed default_locations.yaml
var defaultLocations []byte

// MinRoles is the fewest roles a pack may carry.
const MinRoles = 3

var ErrInvalidPack = errors.New("invalid location pack")

// Catalog is the default packs plus any custom packs loaded from a directory.
// Custom packs replace default packs with the same normalized name.
type Catalog struct {
	logger *zap.Logger

	mu       sync.RWMutex
	defaults []models.LocationPack
	custom   []models.LocationPack
}

// Default returns a catalog holding only the embedded packs.
func Default() *Catalog {
	packs, err := ParsePacks(defaultLocations)
	if err != nil {
		panic(fmt.Sprintf("embedded locations: %v", err))
	}
	return &Catalog{logger: zap.NewNop(), defaults: packs}
}

// New returns the default catalog with custom packs from dir, if dir is set.
func New(logger *zap.Logger, dir string) (*Catalog, error) {
	c := Default()
	if logger != nil {
		c.logger = logger.Named("locations")
	}
	if dir == "" {
		return c, nil
	}
	if err := c.LoadDir(dir); err != nil {
		return nil, err
	}
	return c, nil
}

// ParsePacks decodes YAML holding either a single pack or a list of packs, and validates each.
func ParsePacks(data []byte) ([]models.LocationPack, error) {
	var packs []models.LocationPack
	if err := yaml.Unmarshal(data, &packs); err != nil {
		var single models.LocationPack
		if err2 := yaml.Unmarshal(data, &single); err2 != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPack, err)
		}
		packs = []models.LocationPack{single}
	}
	for _, p := range packs {
		if err := Validate(p); err != nil {
			return nil, err
		}
	}
	return packs, nil
}

// Validate checks that a pack has a name and at least MinRoles unique, non-empty roles.
func Validate(p models.LocationPack) error {
	if strings.TrimSpace(p.Location) == "" {
		return fmt.Errorf("%w: empty location name", ErrInvalidPack)
	}
	if len(p.Roles) < MinRoles {
		return fmt.Errorf("%w: %s has %d roles, need at least %d", ErrInvalidPack, p.Location, len(p.Roles), MinRoles)
	}
	seen := make(map[string]bool, len(p.Roles))
	for _, r := range p.Roles {
		n := parse.Normalize(r)
		if n == "" {
			return fmt.Errorf("%w: %s has an empty role", ErrInvalidPack, p.Location)
		}
		if seen[n] {
			return fmt.Errorf("%w: %s repeats role %q", ErrInvalidPack, p.Location, r)
		}
		seen[n] = true
	}
	return nil
}

// LoadDir replaces the custom packs with every *.yaml / *.yml file in dir.
// Nothing changes if any file is invalid.
func (c *Catalog) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read location dir: %w", err)
	}

	var custom []models.LocationPack
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return err
		}
		packs, err := ParsePacks(data)
		if err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
		custom = append(custom, packs...)
	}

	c.mu.Lock()
	c.custom = custom
	c.mu.Unlock()
	c.logger.Info("loaded custom location packs", zap.String("dir", dir), zap.Int("packs", len(custom)))
	return nil
}

// Packs returns every pack, sorted by name.
func (c *Catalog) Packs() []models.LocationPack {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byName := make(map[string]models.LocationPack, len(c.defaults)+len(c.custom))
	for _, p := range c.defaults {
		byName[parse.Normalize(p.Location)] = p
	}
	for _, p := range c.custom {
		byName[parse.Normalize(p.Location)] = p
	}

	out := make([]models.LocationPack, 0, len(byName))
	for _, p := range byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out
}

func (c *Catalog) Names() []string {
	packs := c.Packs()
	names := make([]string, len(packs))
	for i, p := range packs {
		names[i] = p.Location
	}
	return names
}

// Lookup finds a pack by name, ignoring case and surrounding whitespace.
func (c *Catalog) Lookup(name string) (models.LocationPack, bool) {
	want := parse.Normalize(name)
	for _, p := range c.Packs() {
		if parse.Normalize(p.Location) == want {
			return p, true
		}
	}
	return models.LocationPack{}, false
}

// Random picks a pack, preferring packs with at least minRoles roles.
func (c *Catalog) Random(src *rng.Source, minRoles int) models.LocationPack {
	packs := c.Packs()
	var big []models.LocationPack
	for _, p := range packs {
		if len(p.Roles) >= minRoles {
			big = append(big, p)
		}
	}
	if len(big) > 0 {
		return rng.Pick(src, big)
	}
	return rng.Pick(src, packs)
}
