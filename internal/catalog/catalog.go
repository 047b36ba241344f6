// Package catalog holds the fixed portal catalog: subscription plans, the
// print-center directory, VA profiles and sample tasks.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// maxNameDistance is the largest edit distance at which a query word still
// matches a print-center name word.
const maxNameDistance = 2

// Plan is a subscription plan shown as a card on /plans.
type Plan struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Price       float64  `yaml:"price" json:"price"`
	Period      string   `yaml:"period" json:"period"`
	Features    []string `yaml:"features" json:"features"`
	Highlighted bool     `yaml:"highlighted" json:"highlighted"`
}

// PrintCenter is a print-center directory entry.
type PrintCenter struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	City     string   `yaml:"city" json:"city"`
	Address  string   `yaml:"address" json:"address"`
	Hours    string   `yaml:"hours" json:"hours"`
	Services []string `yaml:"services" json:"services"`
}

// Assistant is a virtual-assistant profile card.
type Assistant struct {
	ID     string   `yaml:"id" json:"id"`
	Name   string   `yaml:"name" json:"name"`
	Skills []string `yaml:"skills" json:"skills"`
	Rate   float64  `yaml:"rate" json:"rate"`
	Rating float64  `yaml:"rating" json:"rating"`
}

// Task is a sample virtual-assistant task.
type Task struct {
	ID       string  `yaml:"id" json:"id"`
	Title    string  `yaml:"title" json:"title"`
	Category string  `yaml:"category" json:"category"`
	Budget   float64 `yaml:"budget" json:"budget"`
}

// Catalog is the parsed catalog. It is read-only after Load.
type Catalog struct {
	Plans        []Plan        `yaml:"plans"`
	PrintCenters []PrintCenter `yaml:"print_centers"`
	Assistants   []Assistant   `yaml:"assistants"`
	Tasks        []Task        `yaml:"tasks"`
}

var (
	loadOnce sync.Once
	loaded   *Catalog
	loadErr  error
)

// Load parses the embedded catalog once and returns the shared result.
func Load() (*Catalog, error) {
	loadOnce.Do(func() {
		loaded, loadErr = Parse(catalogYAML)
	})
	return loaded, loadErr
}

// Parse decodes a catalog document and checks that ids are present and unique.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	seen := make(map[string]bool)
	check := func(kind, id string) error {
		if id == "" {
			return fmt.Errorf("catalog: %s without id", kind)
		}
		if seen[id] {
			return fmt.Errorf("catalog: duplicate id %q", id)
		}
		seen[id] = true
		return nil
	}
	for _, p := range c.Plans {
		if err := check("plan", p.ID); err != nil {
			return nil, err
		}
	}
	for _, p := range c.PrintCenters {
		if err := check("print center", p.ID); err != nil {
			return nil, err
		}
	}
	for _, a := range c.Assistants {
		if err := check("assistant", a.ID); err != nil {
			return nil, err
		}
	}
	for _, t := range c.Tasks {
		if err := check("task", t.ID); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// Plan returns the plan with the given id.
func (c *Catalog) Plan(id string) (Plan, bool) {
	for _, p := range c.Plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// FilterPrintCenters returns the print centers matching q, sorted by name.
// A center matches when its name, city or address contains q
// (case-insensitive), or when any word of its name is within two edits of a
// query word. An empty query returns every center.
func (c *Catalog) FilterPrintCenters(q string) []PrintCenter {
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]PrintCenter, 0, len(c.PrintCenters))
	for _, pc := range c.PrintCenters {
		if q == "" || matches(pc, q) {
			out = append(out, pc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func matches(pc PrintCenter, q string) bool {
	for _, field := range []string{pc.Name, pc.City, pc.Address} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	nameWords := strings.Fields(strings.ToLower(pc.Name))
	for _, qw := range strings.Fields(q) {
		// Very short words are within two edits of almost anything.
		if len(qw) < 4 {
			continue
		}
		for _, nw := range nameWords {
			if levenshtein.ComputeDistance(qw, nw) <= maxNameDistance {
				return true
			}
		}
	}
	return false
}
