// Package product maps backend properties onto Homie nodes.
//
// A product file lists, per backend product name, which property codes
// belong to which Homie node:
//
//	{
//	  "LampX":   {"nodes": {"light": ["switch_led", "bright_value"], "default": "ALL"}},
//	  "default": {"nodes": {"default": "ALL"}}
//	}
//
// Rules are evaluated first-match-wins in the order written. A missing or
// broken file is never fatal: Load falls back to a single "default" node
// for everything.
package product
