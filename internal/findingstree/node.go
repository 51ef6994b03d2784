package findingstree

import (
	"github.com/swan-ide/swanctl/internal/results"
)

// NodeKind tags the variant a Node represents.
type NodeKind string

const (
	Section        NodeKind = "section"
	MenuAction     NodeKind = "menu-action"
	PathSetting    NodeKind = "path-setting"
	BooleanSetting NodeKind = "boolean-setting"
	FindingGroup   NodeKind = "finding-group"
	FindingLeaf    NodeKind = "finding-leaf"
)

// Node is one rendered tree item. Only the fields relevant to Kind are set.
type Node struct {
	Kind        NodeKind `json:"kind"`
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Tooltip     string   `json:"tooltip,omitempty"`

	// MenuAction, PathSetting and BooleanSetting
	Command   string   `json:"command,omitempty"`
	Arguments []string `json:"arguments,omitempty"`

	// BooleanSetting
	Checked bool `json:"checked,omitempty"`

	// FindingGroup with a single location and FindingLeaf
	Location *results.Location `json:"location,omitempty"`

	Children []*Node `json:"children,omitempty"`
}

// Navigable reports whether activating the node opens a source location.
func (n *Node) Navigable() bool {
	return n.Location != nil
}

// Expandable reports whether the node has children to show.
func (n *Node) Expandable() bool {
	return n.Kind == Section || len(n.Children) > 0
}
