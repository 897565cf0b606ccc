package visitor

import (
	_ "embed"
	"log/slog"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed sources.yml
var sourcesFile []byte

type sourceEntry struct {
	Source    string   `yaml:"source"`
	Domains   []string `yaml:"domains"`
	Fragments []string `yaml:"fragments"`
}

var (
	sources     []sourceEntry
	sourcesOnce sync.Once
)

func getSources() []sourceEntry {
	sourcesOnce.Do(func() {
		if err := yaml.Unmarshal(sourcesFile, &sources); err != nil {
			slog.Default().Error("Failed to parse traffic source table", slog.Any("error", err))
		}
	})
	return sources
}

func (e sourceEntry) matches(host string) bool {
	for _, d := range e.Domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	for _, f := range e.Fragments {
		if strings.Contains(host, f) {
			return true
		}
	}
	return false
}
