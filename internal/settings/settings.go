package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

const schemaVersion = 1

// Checkpoint kinds that may be auto-approved when HIL review is relaxed.
// The outline and final gates always require a human and are deliberately
// absent here.
var autoApprovable = []string{"section", "divergence", "correction", "style_check"}

type HILSettings struct {
	AutoApprove map[string]bool `json:"auto_approve"`
}

type EditSettings struct {
	DefaultModels []string `json:"default_models"`
	UseDebate     bool     `json:"use_debate"`
}

type Settings struct {
	SchemaVersion       int          `json:"schema_version"`
	HIL                 HILSettings  `json:"hil"`
	Edit                EditSettings `json:"edit"`
	DefaultExportFormat string       `json:"default_export_format,omitempty"`
}

type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Load() (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultSettings(), nil
		}
		return nil, err
	}
	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	backfillSettings(&settings)
	return &settings, nil
}

func (s *Store) Save(settings *Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	backfillSettings(settings)
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *Store) Update(fn func(*Settings)) (*Settings, error) {
	settings, err := s.Load()
	if err != nil {
		return nil, err
	}
	fn(settings)
	return settings, s.Save(settings)
}

func defaultSettings() *Settings {
	settings := &Settings{SchemaVersion: schemaVersion}
	backfillSettings(settings)
	return settings
}

func backfillSettings(settings *Settings) {
	if settings.SchemaVersion == 0 {
		settings.SchemaVersion = schemaVersion
	}
	if settings.HIL.AutoApprove == nil {
		settings.HIL.AutoApprove = map[string]bool{}
	}
	for _, kind := range autoApprovable {
		if _, ok := settings.HIL.AutoApprove[kind]; !ok {
			settings.HIL.AutoApprove[kind] = false
		}
	}
	if len(settings.Edit.DefaultModels) == 0 {
		settings.Edit.DefaultModels = []string{"gemini-2.5-pro", "claude-sonnet-4"}
	}
	if settings.DefaultExportFormat == "" {
		settings.DefaultExportFormat = "markdown"
	}
}
