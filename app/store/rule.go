package store

import "encoding/json"

// RuleKind tags the variant of a rule tree node. Leaves carry concrete filter data,
// internal nodes carry only children. The tree is acyclic by construction: children
// are owned pointers, never back-edges.
type RuleKind string

const (
	RuleTagGlobCSV        RuleKind = "tag_glob_csv"
	RuleRepoNameList      RuleKind = "repo_name_list"
	RuleRepoNameRegex     RuleKind = "repo_name_regex"
	RuleAnd               RuleKind = "and"
	RuleOr                RuleKind = "or"
	RuleNot               RuleKind = "not"
	RuleAllowedSeverities RuleKind = "allowed_vulnerability_severities"
)

// Rule is a node of a mirror's filter tree, a tagged sum over the rule kinds.
// Evaluation lives in the rules package, the store only persists the shape.
type Rule struct {
	Kind RuleKind `json:"kind"`

	// leaf payloads, one of them set depending on Kind
	Patterns   []string `json:"patterns,omitempty"`   // tag_glob_csv: glob patterns
	Names      string   `json:"names,omitempty"`      // repo_name_list: comma-separated repo names
	Regex      string   `json:"regex,omitempty"`      // repo_name_regex: regexp applied with search semantics
	Severities []string `json:"severities,omitempty"` // allowed_vulnerability_severities

	// children for internal nodes
	Left  *Rule `json:"left,omitempty"`  // and, or
	Right *Rule `json:"right,omitempty"` // and, or
	Child *Rule `json:"child,omitempty"` // not
}

// MarshalRule serializes a rule tree for storage, empty string for a nil tree.
func MarshalRule(r *Rule) (string, error) {
	if r == nil {
		return "", nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UnmarshalRule restores a rule tree from its stored form, nil for an empty value.
func UnmarshalRule(data string) (*Rule, error) {
	if data == "" {
		return nil, nil
	}
	r := &Rule{}
	if err := json.Unmarshal([]byte(data), r); err != nil {
		return nil, err
	}
	return r, nil
}
