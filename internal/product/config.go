package product

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/nerrad567/tuya-homie-gateway/internal/ordered"
)

const (
	// DefaultProduct is the product whose rules apply to unknown products.
	DefaultProduct = "default"

	// DefaultNode receives properties no rule matched.
	DefaultNode = "default"

	// allKeyword in a rule matches every property code.
	allKeyword = "ALL"
)

// NodeRule assigns property codes to a Homie node.
type NodeRule struct {
	Node  string
	All   bool
	Codes []string

	codes map[string]struct{}
}

// Matches reports whether the rule claims the property code.
func (r NodeRule) Matches(code string) bool {
	if r.All {
		return true
	}
	_, ok := r.codes[code]
	return ok
}

// Product is a named, ordered list of node rules.
type Product struct {
	Name  string
	Rules []NodeRule
}

// Config is the immutable product → node rules table.
//
// It is built once at startup by Load or Parse and shared read-only by the
// metadata publisher, the poller and the API. A "default" product is always
// present.
type Config struct {
	products []Product
	index    map[string]int
}

// defaultProduct is {"default": {"nodes": {"default": "ALL"}}}.
func defaultProduct() Product {
	return Product{
		Name:  DefaultProduct,
		Rules: []NodeRule{{Node: DefaultNode, All: true}},
	}
}

// Default returns the configuration used when no product file is available:
// every property of every product goes to the "default" node.
func Default() *Config {
	return newConfig(nil)
}

func newConfig(products []Product) *Config {
	c := &Config{index: make(map[string]int, len(products)+1)}
	for _, p := range products {
		c.index[p.Name] = len(c.products)
		c.products = append(c.products, p)
	}
	if _, ok := c.index[DefaultProduct]; !ok {
		c.index[DefaultProduct] = len(c.products)
		c.products = append(c.products, defaultProduct())
	}
	return c
}

// Load reads and parses the product file at path.
//
// On any failure it returns Default() together with an error wrapping
// ErrConfigLoad, so callers can log and carry on.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("%w: %w", ErrConfigLoad, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Default(), fmt.Errorf("%w: %s: %w", ErrConfigLoad, path, err)
	}
	return cfg, nil
}

// Parse decodes a product document:
//
//	{
//	  "LampX":   {"nodes": {"light": ["switch_led"], "default": "ALL"}},
//	  "default": {"nodes": {"default": "ALL"}}
//	}
//
// Product and rule order are kept as written. A rule value is "ALL"
// (case-insensitive), a single code, or an array of codes.
func Parse(data []byte) (*Config, error) {
	top, err := ordered.Decode(data)
	if err != nil {
		return nil, err
	}

	products := make([]Product, 0, len(top))
	for _, member := range top {
		p, err := parseProduct(member.Key, member.Value)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	return newConfig(products), nil
}

func parseProduct(name string, raw json.RawMessage) (Product, error) {
	var entry struct {
		Nodes ordered.Object `json:"nodes"`
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Product{}, fmt.Errorf("product %q: %w", name, err)
	}

	p := Product{Name: name}
	for _, member := range entry.Nodes {
		rule, err := parseRule(member.Key, member.Value)
		if err != nil {
			return Product{}, fmt.Errorf("product %q: %w", name, err)
		}
		p.Rules = append(p.Rules, rule)
	}
	return p, nil
}

func parseRule(node string, raw json.RawMessage) (NodeRule, error) {
	if node == "" || strings.ContainsAny(node, "/+#") {
		return NodeRule{}, fmt.Errorf("%w: node name %q is not a valid topic segment", ErrInvalidRule, node)
	}

	rule := NodeRule{Node: node, codes: map[string]struct{}{}}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if strings.EqualFold(single, allKeyword) {
			rule.All = true
			return rule, nil
		}
		rule.add(single)
		return rule, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return NodeRule{}, fmt.Errorf("%w: node %q: want \"ALL\" or a list of codes", ErrInvalidRule, node)
	}
	for _, code := range list {
		if strings.EqualFold(code, allKeyword) {
			rule.All = true
			continue
		}
		rule.add(code)
	}
	return rule, nil
}

func (r *NodeRule) add(code string) {
	if code == "" {
		return
	}
	if _, dup := r.codes[code]; dup {
		return
	}
	r.codes[code] = struct{}{}
	r.Codes = append(r.Codes, code)
}

// Products returns the product names in file order ("default" last when it
// was not declared).
func (c *Config) Products() []string {
	names := make([]string, len(c.products))
	for i, p := range c.products {
		names[i] = p.Name
	}
	return names
}

// Rules returns the node rules applied to productName, falling back to the
// default product's rules.
func (c *Config) Rules(productName string) []NodeRule {
	i, ok := c.index[productName]
	if !ok {
		i = c.index[DefaultProduct]
	}
	rules := make([]NodeRule, len(c.products[i].Rules))
	copy(rules, c.products[i].Rules)
	return rules
}
