package kernel

// Lookup resolves the --algorithm flag value to a concrete Kernel[uint64].
// spmv, tc, and bp are recognized names from the original algorithm set that
// this core does not carry an implementation for; they resolve to
// Unimplemented rather than panicking, matching the original's treatment of
// algorithms it hasn't built as a configuration error.
func Lookup(name string, damping float64) (Kernel[uint64], error) {
	switch name {
	case "pagerank":
		return NewPageRank(damping), nil
	case "bfs":
		return NewBFS(), nil
	case "cc":
		return NewCC(), nil
	case "sssp":
		return NewSSSP(), nil
	case "spmv", "tc", "bp":
		return nil, &Unimplemented{Algorithm: name}
	default:
		return nil, &Unimplemented{Algorithm: name}
	}
}
