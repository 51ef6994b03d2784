package findingstree

import (
	"fmt"
	"strings"
	"sync"

	"github.com/swan-ide/swanctl/internal/results"
	"github.com/swan-ide/swanctl/pkg/shared"
	"github.com/swan-ide/swanctl/pkg/shared/config"
)

// Section identifiers and labels of the fixed top-level groups.
const (
	RunAnalysisID = "run-analysis"
	ViewResultsID = "view-results"
	SettingsID    = "settings"
	ErrorsID      = "errors"

	RunAnalysisLabel = "Run Analysis"
	ViewResultsLabel = "View Results"
	SettingsLabel    = "Settings"
	ErrorsLabel      = "Errors"
)

const noPathSet = "No path set"

// SettingsFunc returns the configuration the Settings section is rendered from.
type SettingsFunc func() config.Config

// Tree is the list of accumulated findings plus the fixed navigation sections.
// Every mutation fires exactly one change event.
type Tree struct {
	mu          sync.RWMutex
	findings    []results.Finding
	settings    SettingsFunc
	subscribers map[int]func()
	nextSubID   int
}

// New creates an empty tree. settings may be nil, in which case defaults are rendered.
func New(settings SettingsFunc) *Tree {
	if settings == nil {
		settings = func() config.Config { return *config.Default() }
	}
	return &Tree{
		settings:    settings,
		subscribers: make(map[int]func()),
	}
}

// Subscribe registers fn for change events and returns a function that removes it.
func (t *Tree) Subscribe(fn func()) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextSubID
	t.nextSubID++
	t.subscribers[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subscribers, id)
	}
}

func (t *Tree) notify() {
	t.mu.RLock()
	subs := make([]func(), 0, len(t.subscribers))
	for _, fn := range t.subscribers {
		subs = append(subs, fn)
	}
	t.mu.RUnlock()

	for _, fn := range subs {
		fn()
	}
}

// AddFinding appends f. Findings with the same name are kept side by side.
func (t *Tree) AddFinding(f results.Finding) {
	t.mu.Lock()
	t.findings = append(t.findings, f)
	t.mu.Unlock()
	t.notify()
}

// AddFindings appends all findings with a single change event.
func (t *Tree) AddFindings(findings []results.Finding) {
	if len(findings) == 0 {
		return
	}
	t.mu.Lock()
	t.findings = append(t.findings, findings...)
	t.mu.Unlock()
	t.notify()
}

// RemoveFinding drops every finding whose name equals label and returns how many were removed.
func (t *Tree) RemoveFinding(label string) int {
	t.mu.Lock()
	kept := t.findings[:0]
	removed := 0
	for _, f := range t.findings {
		if f.Name == label {
			removed++
			continue
		}
		kept = append(kept, f)
	}
	t.findings = kept
	t.mu.Unlock()
	t.notify()
	return removed
}

// Clear drops all findings.
func (t *Tree) Clear() {
	t.mu.Lock()
	t.findings = nil
	t.mu.Unlock()
	t.notify()
}

// Refresh fires a change event without mutating findings, e.g. after a settings change.
func (t *Tree) Refresh() {
	t.notify()
}

// Findings returns a copy of the accumulated findings.
func (t *Tree) Findings() []results.Finding {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]results.Finding, len(t.findings))
	copy(out, t.findings)
	return out
}

// Roots returns the fixed top-level sections.
func (t *Tree) Roots() []*Node {
	return []*Node{
		{Kind: Section, ID: RunAnalysisID, Label: RunAnalysisLabel},
		{Kind: Section, ID: ViewResultsID, Label: ViewResultsLabel},
		{Kind: Section, ID: SettingsID, Label: SettingsLabel},
		{Kind: Section, ID: ErrorsID, Label: ErrorsLabel},
	}
}

// Children returns the children of node, or the roots when node is nil.
func (t *Tree) Children(node *Node) []*Node {
	if node == nil {
		return t.Roots()
	}
	if node.Kind != Section {
		return node.Children
	}
	return t.SectionChildren(node.ID)
}

// SectionChildren renders the children of the section with the given ID.
func (t *Tree) SectionChildren(id string) []*Node {
	switch id {
	case RunAnalysisID:
		return []*Node{
			{Kind: MenuAction, ID: "run-analysis/menu", Label: "Analysis options", Command: shared.CommandMenu},
		}
	case ViewResultsID:
		return []*Node{
			{Kind: MenuAction, ID: "view-results/summary", Label: "Analysis Summary", Command: shared.CommandSummary},
			{Kind: MenuAction, ID: "view-results/logs", Label: "Detailed Logs", Command: shared.CommandDetailedLogs},
		}
	case SettingsID:
		return t.settingsChildren()
	case ErrorsID:
		return t.errorChildren()
	}
	return nil
}

// Snapshot renders the whole tree with every section expanded.
func (t *Tree) Snapshot() []*Node {
	roots := t.Roots()
	for _, root := range roots {
		root.Children = t.SectionChildren(root.ID)
	}
	return roots
}

func (t *Tree) settingsChildren() []*Node {
	cfg := t.settings()

	nodes := []*Node{
		{Kind: MenuAction, ID: "settings/general", Label: "General Settings", Command: shared.CommandOpenSettings},
		pathSetting("settings/taint-spec", "Taint Analysis spec", shared.KindTaint, cfg.Specs.TaintPath),
		pathSetting("settings/typestate-spec", "Typestate Analysis spec", shared.KindTypestate, cfg.Specs.TypestatePath),
	}
	for _, spec := range config.FlagSpecs {
		nodes = append(nodes, &Node{
			Kind:        BooleanSetting,
			ID:          "settings/flags/" + spec.Key,
			Label:       spec.Label,
			Description: spec.Switch,
			Command:     shared.CommandToggleFlag,
			Arguments:   []string{spec.Key},
			Checked:     config.FlagValue(&cfg, spec),
		})
	}
	return append(nodes,
		&Node{Kind: MenuAction, ID: "settings/defaults", Label: "Reset settings to defaults", Command: shared.CommandDefaults},
		&Node{Kind: MenuAction, ID: "settings/help", Label: "Help", Command: shared.CommandHelp},
	)
}

func pathSetting(id, label string, kind shared.Kind, path string) *Node {
	description := path
	if strings.TrimSpace(description) == "" {
		description = noPathSet
	}
	return &Node{
		Kind:        PathSetting,
		ID:          id,
		Label:       label,
		Description: description,
		Command:     shared.CommandSetSpecPath,
		Arguments:   []string{kind.String()},
	}
}

// errorChildren renders one FindingGroup per location group. A group with a single location
// is navigable itself; a group with more expands into one FindingLeaf per location.
func (t *Tree) errorChildren() []*Node {
	findings := t.Findings()

	nodes := make([]*Node, 0)
	for i, f := range findings {
		for j, group := range f.Groups {
			if len(group.Locations) == 0 {
				continue
			}
			id := fmt.Sprintf("%s/%d/%d", ErrorsID, i, j)
			node := &Node{
				Kind:        FindingGroup,
				ID:          id,
				Label:       f.Name,
				Description: strings.Join(group.Titles, " -> "),
				Tooltip:     f.Description,
			}
			if len(group.Locations) == 1 {
				loc := group.Locations[0]
				node.Location = &loc
				node.Command = shared.CommandOpenLocation
			} else {
				for k, loc := range group.Locations {
					loc := loc
					node.Children = append(node.Children, &Node{
						Kind:     FindingLeaf,
						ID:       fmt.Sprintf("%s/%d", id, k),
						Label:    loc.String(),
						Tooltip:  "Navigate to: " + loc.String(),
						Command:  shared.CommandOpenLocation,
						Location: &loc,
					})
				}
			}
			nodes = append(nodes, node)
		}
	}
	return nodes
}
