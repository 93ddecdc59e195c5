package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Attributes maps an attribute name to its values in server order. On the wire an
// attribute with a single value is rendered as a plain string.
type Attributes map[string][]string

func (a Attributes) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a))
	for name, values := range a {
		if len(values) == 1 {
			out[name] = values[0]
			continue
		}
		out[name] = values
	}

	return json.Marshal(out)
}

func (a *Attributes) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	decoded, err := AttributesFromAny(raw)
	if err != nil {
		return err
	}

	*a = decoded
	return nil
}

// AttributesFromAny converts a decoded JSON object (for example JWT claims) back into
// Attributes.
func AttributesFromAny(raw map[string]any) (Attributes, error) {
	out := make(Attributes, len(raw))
	for name, value := range raw {
		switch v := value.(type) {
		case string:
			out[name] = []string{v}
		case []string:
			out[name] = v
		case []any:
			values := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("attribute %q: unsupported value type %T", name, item)
				}
				values = append(values, s)
			}
			out[name] = values
		case nil:
			out[name] = []string{}
		default:
			return nil, fmt.Errorf("attribute %q: unsupported value type %T", name, value)
		}
	}

	return out, nil
}

// First returns the first value of name, or "" when the attribute is absent.
func (a Attributes) First(name string) string {
	values := a[name]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Names returns the attribute names sorted for stable output.
func (a Attributes) Names() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type DirectoryEntry struct {
	DN         string     `json:"dn"`
	Attributes Attributes `json:"attributes"`
}

type ChildSummary struct {
	DN          string `json:"dn"`
	HasChildren bool   `json:"hasChildren"`
	ChildCount  int    `json:"childCount"`
}

// TreeEntry is a directory entry annotated with its child summary, as returned by the
// tree browsing endpoints.
type TreeEntry struct {
	DN          string     `json:"dn"`
	Attributes  Attributes `json:"attributes"`
	HasChildren bool       `json:"hasChildren"`
	ChildCount  int        `json:"childCount"`
}

func NewTreeEntry(entry DirectoryEntry, summary ChildSummary) TreeEntry {
	return TreeEntry{
		DN:          entry.DN,
		Attributes:  entry.Attributes,
		HasChildren: summary.HasChildren,
		ChildCount:  summary.ChildCount,
	}
}

type ObjectClassInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Required    []string `json:"required"`
	Optional    []string `json:"optional"`
}

type DirectoryStats struct {
	Users        int `json:"users"`
	Groups       int `json:"groups"`
	OUs          int `json:"ous"`
	TotalEntries int `json:"totalEntries"`
}
