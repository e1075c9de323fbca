// internal/types/conditions.go
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

/*
 * Condition decoding.
 *
 * Persisted rule conditions arrive in several historical shapes:
 *   - group object:  {"group_operator":"AND","conditions":[...]}
 *   - legacy array:  [{"field":...,"operator":...,"value":...}, ...]
 *   - single leaf:   {"field":...,"operator":...,"value":...}
 *   - operator map:  {"duration_weeks":{"gte":12},"OR":[{...},{...}]}
 *   - null/absent:   no conditions
 *
 * DecodeConditions turns every shape into a root ConditionGroup. Flat
 * arrays and single leaves become an implicit AND. Input that cannot be
 * understood is kept as an invalid node rather than dropped, so the rule
 * carrying it never applies instead of silently applying everywhere.
 *
 * Node and ConditionGroup unmarshal through the same path, so a Rule that
 * was marshalled and decoded again compiles to the same tree.
 */

// DecodeConditions parses raw condition JSON into a root group.
func DecodeConditions(raw json.RawMessage) ConditionGroup {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ConditionGroup{GroupOperator: GroupAnd, Conditions: []Node{}}
	}

	var decoded any
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return ConditionGroup{
			GroupOperator: GroupAnd,
			Conditions:    []Node{Invalid(fmt.Sprintf("malformed conditions: %v", err), cloneRaw(trimmed))},
		}
	}
	return decodeRoot(decoded)
}

func decodeRoot(v any) ConditionGroup {
	switch c := v.(type) {
	case nil:
		return ConditionGroup{GroupOperator: GroupAnd, Conditions: []Node{}}

	case []any:
		return ConditionGroup{GroupOperator: GroupAnd, Conditions: decodeNodes(c)}

	case map[string]any:
		node := decodeNode(c)
		if node.Kind == NodeGroup {
			return *node.Group
		}
		return ConditionGroup{GroupOperator: GroupAnd, Conditions: []Node{node}}

	default:
		return ConditionGroup{
			GroupOperator: GroupAnd,
			Conditions:    []Node{invalidFrom("conditions must be an object or array", v)},
		}
	}
}

// UnmarshalJSON implements json.Unmarshaler. Any shape DecodeConditions
// accepts is accepted here.
func (g *ConditionGroup) UnmarshalJSON(data []byte) error {
	*g = DecodeConditions(data)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler. Input that is not a leaf or a
// group decodes to an invalid node holding the original bytes.
func (n *Node) UnmarshalJSON(data []byte) error {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		*n = Invalid(fmt.Sprintf("malformed condition: %v", err), cloneRaw(data))
		return nil
	}
	*n = decodeNode(decoded)
	return nil
}

func decodeNodes(items []any) []Node {
	nodes := make([]Node, 0, len(items))
	for _, item := range items {
		nodes = append(nodes, decodeNode(item))
	}
	return nodes
}

// decodeNode classifies one element of a condition tree.
func decodeNode(v any) Node {
	m, ok := v.(map[string]any)
	if !ok {
		return invalidFrom("condition must be an object", v)
	}

	_, hasOp := m["group_operator"]
	_, hasConds := m["conditions"]
	_, hasField := m["field"]

	switch {
	case hasOp || hasConds:
		return decodeGroup(m)
	case hasField:
		return decodeLeaf(m)
	default:
		return decodeOperatorMap(m)
	}
}

func decodeGroup(m map[string]any) Node {
	op := GroupAnd
	if raw, ok := m["group_operator"]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return invalidFrom("group_operator must be a string", m)
		}
		op = GroupOperator(strings.ToUpper(strings.TrimSpace(s))).OrDefault()
		if !op.Valid() {
			return invalidFrom(fmt.Sprintf("unknown group operator %q", s), m)
		}
	}

	var children []Node
	switch conds := m["conditions"].(type) {
	case nil:
		children = []Node{}
	case []any:
		children = decodeNodes(conds)
	default:
		return invalidFrom("group conditions must be an array", m)
	}
	return Group(op, children...)
}

func decodeLeaf(m map[string]any) Node {
	field, ok := m["field"].(string)
	if !ok || strings.TrimSpace(field) == "" {
		return invalidFrom("condition field must be a non-empty string", m)
	}
	op, ok := m["operator"].(string)
	if !ok || op == "" {
		return invalidFrom(fmt.Sprintf("condition on %q has no operator", field), m)
	}
	return Leaf(strings.TrimSpace(field), op, m["value"])
}

// decodeOperatorMap handles {"field": {"op": value}, "AND": [...], "OR": [...]}.
// Keys are visited in sorted order so the resulting tree is deterministic.
func decodeOperatorMap(m map[string]any) Node {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	children := make([]Node, 0, len(keys))
	for _, key := range keys {
		val := m[key]
		if key == "AND" || key == "OR" {
			items, ok := val.([]any)
			if !ok {
				children = append(children, invalidFrom(key+" must be an array", val))
				continue
			}
			children = append(children, Group(GroupOperator(key), decodeNodes(items)...))
			continue
		}

		ops, ok := val.(map[string]any)
		if !ok {
			children = append(children, invalidFrom(fmt.Sprintf("field %q must map operators to values", key), val))
			continue
		}
		opKeys := make([]string, 0, len(ops))
		for op := range ops {
			opKeys = append(opKeys, op)
		}
		sort.Strings(opKeys)
		for _, op := range opKeys {
			children = append(children, Leaf(key, op, ops[op]))
		}
	}
	return Group(GroupAnd, children...)
}

func invalidFrom(reason string, v any) Node {
	raw, err := json.Marshal(v)
	if err != nil {
		raw = nil
	}
	return Invalid(reason, raw)
}

func cloneRaw(b []byte) json.RawMessage {
	out := make(json.RawMessage, len(b))
	copy(out, b)
	return out
}

var (
	_ json.Unmarshaler = (*Node)(nil)
	_ json.Unmarshaler = (*ConditionGroup)(nil)
)
