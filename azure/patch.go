package azure

import (
	"errors"
	"strings"
)

// EnhancedTag is appended to every item touched by the merge-update path so
// gateway edits stay identifiable upstream.
const EnhancedTag = "enhanced"

// ErrNoFields is returned when a merge produces no operations at all.
var ErrNoFields = errors.New("no fields provided for update")

// PatchOp is a single json-patch style instruction.
type PatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value string `json:"value"`
}

// UpdateRequest carries the caller's requested changes. Nil means "leave alone".
type UpdateRequest struct {
	Title       *string
	Description *string
}

// BuildUpdatePatch diffs the requested changes against the item's current
// field bag and emits a minimal operation list. A field that already exists
// upstream gets "replace", an absent one gets "add" – the verb is always
// chosen by probing the fetched state, never assumed. Tag management is
// idempotent: re-merging an already tagged item adds no tag operation.
// An empty result is ErrNoFields.
func BuildUpdatePatch(current map[string]interface{}, req UpdateRequest) ([]PatchOp, error) {
	var ops []PatchOp

	if req.Title != nil {
		ops = append(ops, fieldOp(current, FieldTitle, *req.Title))
	}
	if req.Description != nil {
		ops = append(ops, fieldOp(current, FieldDescription, *req.Description))
	}
	if op, changed := tagOp(current); changed {
		ops = append(ops, op)
	}

	if len(ops) == 0 {
		return nil, ErrNoFields
	}
	return ops, nil
}

func fieldOp(current map[string]interface{}, field, value string) PatchOp {
	verb := "add"
	if _, ok := current[field]; ok {
		verb = "replace"
	}
	return PatchOp{Op: verb, Path: "/fields/" + field, Value: value}
}

// tagOp appends EnhancedTag to the semicolon-delimited tag string unless a
// case-insensitive match is already present.
func tagOp(current map[string]interface{}) (PatchOp, bool) {
	raw := ""
	if s, ok := current[FieldTags].(string); ok {
		raw = s
	}

	tags := splitTags(raw)
	for _, t := range tags {
		if strings.EqualFold(t, EnhancedTag) {
			return PatchOp{}, false
		}
	}

	tags = append(tags, EnhancedTag)
	verb := "add"
	if strings.TrimSpace(raw) != "" {
		verb = "replace"
	}
	return PatchOp{Op: verb, Path: "/fields/" + FieldTags, Value: strings.Join(tags, "; ")}, true
}

// splitTags parses a semicolon-delimited tag string into trimmed, non-empty entries.
func splitTags(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ";") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
