package diagnostics

import (
	"fmt"
	"sort"
	"sync"

	"github.com/swan-ide/swanctl/internal/results"
	"github.com/swan-ide/swanctl/pkg/shared"
)

// Severity of a marker. Analysis findings are always warnings.
type Severity string

const (
	SeverityWarning Severity = "warning"
)

// Source is attached to every marker so editors can tell them apart from compiler diagnostics.
const Source = "swan"

// Marker is a zero-width editor diagnostic at a 0-based position.
type Marker struct {
	Path     string      `json:"path"`
	Line     int         `json:"line"`
	Column   int         `json:"column"`
	Severity Severity    `json:"severity"`
	Message  string      `json:"message"`
	Source   string      `json:"source"`
	Kind     shared.Kind `json:"kind"`
	Finding  string      `json:"finding"`
}

// ChangeFunc is called after the marker set of uri was replaced or cleared.
type ChangeFunc func(uri string, markers []Marker)

// Sink holds the marker set of every document.
type Sink struct {
	mu       sync.RWMutex
	sets     map[string][]Marker
	onChange ChangeFunc
}

// NewSink creates an empty Sink.
func NewSink() *Sink {
	return &Sink{sets: make(map[string][]Marker)}
}

// OnChange registers the change callback, replacing any previous one.
func (s *Sink) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Message renders the text shown for one location of a finding.
func Message(kind shared.Kind, f results.Finding) string {
	return fmt.Sprintf("[%s] %s: %s", kind.DisplayName(), f.Name, f.Advice)
}

// Markers converts findings into markers, one per location, in input order.
// Locations in files other than the document are kept as they are.
func Markers(kind shared.Kind, findings ...results.Finding) []Marker {
	markers := make([]Marker, 0)
	for _, f := range findings {
		msg := Message(kind, f)
		for _, group := range f.Groups {
			for _, loc := range group.Locations {
				markers = append(markers, Marker{
					Path:     loc.Path,
					Line:     loc.Line,
					Column:   loc.Column,
					Severity: SeverityWarning,
					Message:  msg,
					Source:   Source,
					Kind:     kind,
					Finding:  f.Name,
				})
			}
		}
	}
	return markers
}

// Apply replaces the whole marker set of uri with markers built from findings.
// Applying no findings leaves uri with an empty set.
func (s *Sink) Apply(uri string, kind shared.Kind, findings ...results.Finding) []Marker {
	return s.Replace(uri, Markers(kind, findings...))
}

// Replace sets the marker set of uri to markers.
func (s *Sink) Replace(uri string, markers []Marker) []Marker {
	if markers == nil {
		markers = make([]Marker, 0)
	}
	markers = copyMarkers(markers)

	s.mu.Lock()
	s.sets[uri] = markers
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(uri, copyMarkers(markers))
	}
	return copyMarkers(markers)
}

// Get returns a copy of the markers of uri.
func (s *Sink) Get(uri string) []Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMarkers(s.sets[uri])
}

// Clear drops the markers of uri.
func (s *Sink) Clear(uri string) {
	s.mu.Lock()
	_, existed := s.sets[uri]
	delete(s.sets, uri)
	fn := s.onChange
	s.mu.Unlock()

	if existed && fn != nil {
		fn(uri, nil)
	}
}

// ClearAll drops every marker set.
func (s *Sink) ClearAll() {
	s.mu.Lock()
	uris := make([]string, 0, len(s.sets))
	for uri := range s.sets {
		uris = append(uris, uri)
	}
	s.sets = make(map[string][]Marker)
	fn := s.onChange
	s.mu.Unlock()

	sort.Strings(uris)
	if fn != nil {
		for _, uri := range uris {
			fn(uri, nil)
		}
	}
}

// URIs lists the documents that currently have a marker set, sorted.
func (s *Sink) URIs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uris := make([]string, 0, len(s.sets))
	for uri := range s.sets {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

func copyMarkers(markers []Marker) []Marker {
	if markers == nil {
		return nil
	}
	out := make([]Marker, len(markers))
	copy(out, markers)
	return out
}
