// Package config decodes the collectors configuration consumed at startup
// and validates it against the two recognized archive projects. This is
// the parsed config struct only; loading it from a file path or flag is
// cmd/broker-updater's job.
package config

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/bgpkit/broker-updater/internal/catalog"
)

// rawConfig mirrors the on-disk JSON shape.
type rawConfig struct {
	Projects []rawProject `json:"projects"`
}

type rawProject struct {
	Name       string          `json:"name"`
	Collectors []rawCollector `json:"collectors"`
}

type rawCollector struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Config is the parsed, validated set of collectors to scrape.
type Config struct {
	Collectors []catalog.Collector
}

// Load decodes and validates a collectors configuration from r. An
// unknown project name is a fatal configuration error, surfaced here
// before any scraping starts.
func Load(r io.Reader) (Config, error) {
	var raw rawConfig
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Config{}, fmt.Errorf("decode collectors config: %w", err)
	}

	var cfg Config
	for _, project := range raw.Projects {
		proj, err := validProject(project.Name)
		if err != nil {
			return Config{}, err
		}
		for _, c := range project.Collectors {
			cfg.Collectors = append(cfg.Collectors, catalog.Collector{
				ID:      c.ID,
				Project: proj,
				URL:     c.URL,
			})
		}
	}
	return cfg, nil
}

func validProject(name string) (catalog.Project, error) {
	switch catalog.Project(name) {
	case catalog.ProjectRouteViews, catalog.ProjectRIPERIS:
		return catalog.Project(name), nil
	default:
		return "", fmt.Errorf("unknown project %q, must be one of routeviews, riperis", name)
	}
}
