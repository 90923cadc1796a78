// Package workflow models the firework graphs produced by the VASP workflow
// templates and rewires them to replay recorded calculations.
package workflow

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/matflow/wkshp/internal/fsutil"
)

// Task is one firetask document. Name is the serialized task class, e.g.
// "{{atomate.vasp.firetasks.run_calc.RunVaspCustodian}}"; the task's other
// keys are kept in Params.
type Task struct {
	Name   string         `yaml:"_fw_name"`
	Params map[string]any `yaml:",inline"`
}

// Spec is a firework spec: the ordered task list under _tasks plus any other
// spec keys (_category, _queueadapter, ...), which round-trip untouched.
type Spec struct {
	Tasks []Task         `yaml:"_tasks"`
	Extra map[string]any `yaml:",inline"`
}

// Firework is a node of the workflow graph.
type Firework struct {
	ID    int            `yaml:"fw_id"`
	Name  string         `yaml:"name"`
	Spec  Spec           `yaml:"spec"`
	Extra map[string]any `yaml:",inline"`
}

// Workflow is a set of fireworks and the parent -> children links between
// them, keyed by firework ID. The layout follows the FireWorks to_dict form;
// keys this package does not interpret are kept in Extra.
type Workflow struct {
	Name      string         `yaml:"name"`
	Fireworks []*Firework    `yaml:"fws"`
	Links     Links          `yaml:"links"`
	Metadata  map[string]any `yaml:"metadata,omitempty"`
	Extra     map[string]any `yaml:",inline"`
}

// Links maps a firework ID to its downstream firework IDs.
type Links map[int][]int

// UnmarshalYAML accepts both integer keys (YAML) and quoted keys (JSON).
func (l *Links) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string][]int
	if err := node.Decode(&raw); err != nil {
		return err
	}
	out := make(Links, len(raw))
	for k, v := range raw {
		id, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("links: key %q is not a firework id", k)
		}
		out[id] = v
	}
	*l = out
	return nil
}

// Firework returns the firework with the given ID.
func (wf *Workflow) Firework(id int) (*Firework, bool) {
	for _, fw := range wf.Fireworks {
		if fw.ID == id {
			return fw, true
		}
	}
	return nil, false
}

// NodeIDs returns the link keys in ascending order.
func (wf *Workflow) NodeIDs() []int {
	ids := make([]int, 0, len(wf.Links))
	for id := range wf.Links {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Children returns the downstream IDs of id and whether id is a link key.
func (wf *Workflow) Children(id int) ([]int, bool) {
	c, ok := wf.Links[id]
	return c, ok
}

// DisplayName returns the firework name for id, or "" when unknown.
func (wf *Workflow) DisplayName(id int) string {
	if fw, ok := wf.Firework(id); ok {
		return fw.Name
	}
	return ""
}

// normalize gives every firework a link entry so leaves appear as keys.
func (wf *Workflow) normalize() {
	if wf.Links == nil {
		wf.Links = make(Links, len(wf.Fireworks))
	}
	for _, fw := range wf.Fireworks {
		if _, ok := wf.Links[fw.ID]; !ok {
			wf.Links[fw.ID] = nil
		}
	}
}

// Load reads a workflow from a YAML or JSON file.
func Load(fsys fsutil.FileSystem, path string) (*Workflow, error) {
	data, err := fsutil.Or(fsys).ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML or JSON workflow document.
func Parse(data []byte) (*Workflow, error) {
	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}
	seen := make(map[int]bool, len(wf.Fireworks))
	for _, fw := range wf.Fireworks {
		if seen[fw.ID] {
			return nil, fmt.Errorf("parse workflow: duplicate fw_id %d", fw.ID)
		}
		seen[fw.ID] = true
	}
	wf.normalize()
	return &wf, nil
}

// Save writes wf as YAML. The parent directory is created if needed.
func Save(fsys fsutil.FileSystem, path string, wf *Workflow) error {
	fsys = fsutil.Or(fsys)
	data, err := yaml.Marshal(wf)
	if err != nil {
		return fmt.Errorf("encode workflow: %w", err)
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return fsys.WriteFile(path, data, 0o644)
}
