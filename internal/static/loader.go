package static

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/xrrecorder/internal/logger"
)

// Loader reads the manifest and the files it lists.
type Loader struct {
	manifestPath string
	logger       logger.Logger
}

// NewLoader creates a new manifest loader
func NewLoader(manifestPath string, log logger.Logger) *Loader {
	return &Loader{
		manifestPath: manifestPath,
		logger:       log,
	}
}

// Path returns the manifest location.
func (l *Loader) Path() string { return l.manifestPath }

// LoadManifest reads and parses static.yaml
func (l *Loader) LoadManifest() (Manifest, error) {
	data, err := os.ReadFile(l.manifestPath)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read static manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse static manifest yaml: %w", err)
	}
	return m, nil
}

// Load returns every asset of the manifest. Relative paths are resolved
// against the manifest's directory. Unreadable files are logged and skipped
// so one missing asset does not take the UI down.
func (l *Loader) Load() ([]Asset, error) {
	m, err := l.LoadManifest()
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(l.manifestPath)
	assets := make([]Asset, 0, len(m.Files))
	for name, entry := range m.Files {
		if name != filepath.Base(name) || name == "." || name == "/" {
			l.logger.Warn("static manifest entry is not a bare file name, skipping",
				logger.String("name", name))
			continue
		}
		p := entry.Path
		if p == "" {
			p = name
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		body, err := os.ReadFile(p)
		if err != nil {
			l.logger.Warn("static asset unreadable, skipping",
				logger.String("name", name),
				logger.String("path", p),
				logger.Error(err))
			continue
		}
		assets = append(assets, Asset{Name: name, Headers: entry.Headers, Body: body})
	}
	return assets, nil
}
