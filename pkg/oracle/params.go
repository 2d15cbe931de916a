package oracle

import "fmt"

// Params are the module constants every node must agree on.
type Params struct {
	Priority       uint64
	Longevity      uint64
	WindowCapacity int
	TagPrefix      string
}

// DefaultParams returns the reference parameters.
func DefaultParams() Params {
	return Params{
		Priority:       100,
		Longevity:      3,
		WindowCapacity: DefaultWindowCapacity,
		TagPrefix:      "ocw-demo",
	}
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if p.Longevity == 0 {
		return fmt.Errorf("%w: longevity must be at least one block", ErrInvalidParams)
	}
	if p.WindowCapacity < 1 {
		return fmt.Errorf("%w: window capacity must be positive", ErrInvalidParams)
	}
	if p.TagPrefix == "" {
		return fmt.Errorf("%w: tag prefix must be set", ErrInvalidParams)
	}
	return nil
}
