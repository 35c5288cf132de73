package product

import "errors"

var (
	// ErrConfigLoad is returned by Load when the product file is missing or
	// invalid. Load still returns a usable default configuration with it.
	ErrConfigLoad = errors.New("product: config load failed")

	// ErrInvalidRule is returned by Parse for a node rule that is neither
	// "ALL" nor a list of property codes.
	ErrInvalidRule = errors.New("product: invalid node rule")
)
