package product

import (
	"github.com/nerrad567/tuya-homie-gateway/internal/device"
)

// NodeGroup is one Homie node and the properties assigned to it, in input
// order.
type NodeGroup struct {
	Name       string                 `json:"name"`
	Properties []device.PropertyValue `json:"properties"`
}

// Assignment is the resolver's output: non-empty nodes in rule order.
type Assignment []NodeGroup

// Nodes returns the node names in order, as announced in $nodes.
func (a Assignment) Nodes() []string {
	names := make([]string, len(a))
	for i, g := range a {
		names[i] = g.Name
	}
	return names
}

// NodeFor returns the node a property code was assigned to.
func (a Assignment) NodeFor(code string) (string, bool) {
	for _, g := range a {
		for _, p := range g.Properties {
			if p.Code == code {
				return g.Name, true
			}
		}
	}
	return "", false
}

// Assign partitions props into Homie nodes for productName.
//
// Unknown products use the default product's rules. Each property, taken in
// input order, goes to the first rule (declared order) that is ALL or lists
// its code; properties no rule matches go to the "default" node. Nodes come
// out in rule order with an undeclared "default" node last, and nodes that
// received nothing are left out. The result depends only on the inputs.
func (c *Config) Assign(productName string, props []device.PropertyValue) Assignment {
	rules := c.Rules(productName)

	// Bucket order: declared rules, then the implicit default node if no
	// rule is named "default".
	order := make([]string, 0, len(rules)+1)
	buckets := make(map[string][]device.PropertyValue, len(rules)+1)
	for _, r := range rules {
		if _, seen := buckets[r.Node]; seen {
			continue
		}
		buckets[r.Node] = nil
		order = append(order, r.Node)
	}
	if _, declared := buckets[DefaultNode]; !declared {
		order = append(order, DefaultNode)
	}

	for _, p := range props {
		node := DefaultNode
		for _, r := range rules {
			if r.Matches(p.Code) {
				node = r.Node
				break
			}
		}
		buckets[node] = append(buckets[node], p)
	}

	out := make(Assignment, 0, len(order))
	for _, name := range order {
		if len(buckets[name]) == 0 {
			continue
		}
		out = append(out, NodeGroup{Name: name, Properties: buckets[name]})
	}
	return out
}
