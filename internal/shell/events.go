package shell

import (
	"context"
	"fmt"
	"strings"

	"github.com/swan-ide/swanctl/internal/project"
	"github.com/swan-ide/swanctl/pkg/shared"
	"github.com/swan-ide/swanctl/pkg/shared/config"
)

// EventType names an editor notification.
type EventType string

const (
	DocumentOpened       EventType = "documentOpened"
	DocumentSaved        EventType = "documentSaved"
	DocumentChanged      EventType = "documentChanged"
	ActiveEditorChanged  EventType = "activeEditorChanged"
	ConfigurationChanged EventType = "configurationChanged"
)

// SwiftLanguageID is the editor language identifier of Swift documents.
const SwiftLanguageID = "swift"

// Event is an editor notification.
type Event struct {
	Type       EventType `json:"event"`
	Document   string    `json:"document,omitempty"`
	LanguageID string    `json:"languageId,omitempty"`
	// ChangedCharacters is the number of characters inserted by a documentChanged event.
	ChangedCharacters int                    `json:"changedCharacters,omitempty"`
	Settings          map[string]interface{} `json:"settings,omitempty"`
}

// HandleEvent reacts to an editor notification. Analysis runs started by the event
// continue in the background.
func (s *Shell) HandleEvent(ctx context.Context, ev Event) error {
	switch ev.Type {
	case DocumentOpened:
		return s.onDocument(ctx, ev, func(a config.AutoRun) bool { return a.OnOpen })
	case ActiveEditorChanged:
		s.mu.Lock()
		s.activeDocument = ev.Document
		s.mu.Unlock()
		return s.onDocument(ctx, ev, func(a config.AutoRun) bool { return a.OnOpen })
	case DocumentSaved:
		s.mu.Lock()
		delete(s.changeCounts, ev.Document)
		s.mu.Unlock()
		return s.onDocument(ctx, ev, func(a config.AutoRun) bool { return a.OnSave })
	case DocumentChanged:
		return s.onChange(ctx, ev)
	case ConfigurationChanged:
		return s.ApplySettings(ev.Settings)
	}
	return fmt.Errorf("unsupported event %q", ev.Type)
}

// IsSwiftDocument reports whether ev refers to a document that should be analysed.
func (s *Shell) IsSwiftDocument(ev Event) bool {
	if ev.Document == "" {
		return false
	}
	if ev.LanguageID != "" {
		return strings.EqualFold(ev.LanguageID, SwiftLanguageID)
	}
	cfg := s.Config()
	return project.IsSourceFile(DocumentPath(ev.Document), cfg.SourcePatterns)
}

func (s *Shell) onDocument(ctx context.Context, ev Event, enabled func(config.AutoRun) bool) error {
	if !s.IsSwiftDocument(ev) {
		return nil
	}
	cfg := s.Config()
	if !enabled(cfg.AutoRun) {
		return nil
	}
	return s.autoRun(ctx, ev.Document, cfg)
}

// onChange accumulates inserted characters per document and triggers once the threshold is reached.
func (s *Shell) onChange(ctx context.Context, ev Event) error {
	if !s.IsSwiftDocument(ev) {
		return nil
	}
	cfg := s.Config()
	if cfg.AutoRun.ChangeThreshold <= 0 {
		return nil
	}

	s.mu.Lock()
	s.changeCounts[ev.Document] += ev.ChangedCharacters
	reached := s.changeCounts[ev.Document] >= cfg.AutoRun.ChangeThreshold
	if reached {
		delete(s.changeCounts, ev.Document)
	}
	s.mu.Unlock()

	if !reached {
		return nil
	}
	return s.autoRun(ctx, ev.Document, cfg)
}

func (s *Shell) autoRun(ctx context.Context, document string, cfg config.Config) error {
	kinds := make([]shared.Kind, 0, len(cfg.AutoRun.Kinds))
	for _, raw := range cfg.AutoRun.Kinds {
		kind, err := shared.ParseKind(raw)
		if err != nil {
			return err
		}
		kinds = append(kinds, kind)
	}
	if len(kinds) == 0 {
		return nil
	}
	_, err := s.Start(ctx, document, kinds...)
	return err
}

// ApplySettings merges a settings-change notification. An invalid result is still applied
// but rejects runs until corrected.
func (s *Shell) ApplySettings(settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}
	return s.updateConfig(func(cfg *config.Config) error {
		return config.ApplySettings(cfg, settings)
	})
}

// updateConfig mutates a copy of the configuration, validates it and swaps it in.
// Decoding errors leave the current configuration untouched.
func (s *Shell) updateConfig(mutate func(*config.Config) error) error {
	s.mu.Lock()
	next := s.cfg.Snapshot()
	if err := mutate(&next); err != nil {
		s.mu.Unlock()
		s.notifyUser(SeverityError, "Settings not applied: %v", err)
		return err
	}

	validationErr := config.ValidateConfig(&next)
	*s.cfg = next
	s.rejected = validationErr
	path := s.path
	s.mu.Unlock()

	if validationErr != nil {
		s.notifyUser(SeverityError, "Configuration rejected: %v", validationErr)
	} else if path != "" {
		if err := config.SaveConfig(path, &next); err != nil {
			s.logger.Warn("failed to persist settings", "path", path, "error", err)
		}
	}
	s.tree.Refresh()
	return validationErr
}
