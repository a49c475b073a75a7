package tilegraph

import "fmt"

// LocalFetcherMode selects how a VertexFetcher obtains source-vertex values
// for a tile (spec §4.3).
type LocalFetcherMode int

const (
	FetcherDirectAccess LocalFetcherMode = iota
	FetcherGlobalFetcher
	FetcherConstantValue
	FetcherFake
)

// ParseLocalFetcherMode maps a --local-fetcher-mode flag value to its mode.
func ParseLocalFetcherMode(s string) (LocalFetcherMode, error) {
	switch s {
	case "DirectAccess":
		return FetcherDirectAccess, nil
	case "GlobalFetcher":
		return FetcherGlobalFetcher, nil
	case "ConstantValue":
		return FetcherConstantValue, nil
	case "Fake":
		return FetcherFake, nil
	default:
		return 0, fmt.Errorf("tilegraph: unknown local-fetcher-mode %q", s)
	}
}

// GlobalFetcherMode selects how a GlobalFetcher answers requests (spec §4.8).
type GlobalFetcherMode int

const (
	GlobalFetcherActive GlobalFetcherMode = iota
	GlobalFetcherConstantValue
)

// ParseGlobalFetcherMode maps a --global-fetcher-mode flag value to its mode.
func ParseGlobalFetcherMode(s string) (GlobalFetcherMode, error) {
	switch s {
	case "Active":
		return GlobalFetcherActive, nil
	case "ConstantValue":
		return GlobalFetcherConstantValue, nil
	default:
		return 0, fmt.Errorf("tilegraph: unknown global-fetcher-mode %q", s)
	}
}

// LocalReducerMode selects how a VertexReducer folds a tile's processed
// values into global state (spec §4.5).
type LocalReducerMode int

const (
	ReducerGlobalReducer LocalReducerMode = iota
	ReducerLocking
	ReducerAtomic
)

// ParseLocalReducerMode maps a --local-reducer-mode flag value to its mode.
func ParseLocalReducerMode(s string) (LocalReducerMode, error) {
	switch s {
	case "GlobalReducer":
		return ReducerGlobalReducer, nil
	case "Locking":
		return ReducerLocking, nil
	case "Atomic":
		return ReducerAtomic, nil
	default:
		return 0, fmt.Errorf("tilegraph: unknown local-reducer-mode %q", s)
	}
}

// TileProcessorMode toggles whether the per-edge kernel actually runs.
type TileProcessorMode int

const (
	TileProcessorActive TileProcessorMode = iota
	TileProcessorNoop
)

// ParseTileProcessorMode maps a --tile-processor-mode flag value to its mode.
func ParseTileProcessorMode(s string) (TileProcessorMode, error) {
	switch s {
	case "Active":
		return TileProcessorActive, nil
	case "Noop":
		return TileProcessorNoop, nil
	default:
		return 0, fmt.Errorf("tilegraph: unknown tile-processor-mode %q", s)
	}
}

// TileProcessorInputMode selects where a TileProcessor's input jobs come
// from; the Fake variants are used by isolated component tests/benchmarks.
type TileProcessorInputMode int

const (
	InputVertexFetcher TileProcessorInputMode = iota
	InputFakeVertexFetcher
	InputConstantValue
)

// ParseTileProcessorInputMode maps a --tile-processor-input-mode flag value.
func ParseTileProcessorInputMode(s string) (TileProcessorInputMode, error) {
	switch s {
	case "VertexFetcher":
		return InputVertexFetcher, nil
	case "FakeVertexFetcher":
		return InputFakeVertexFetcher, nil
	case "ConstantValue":
		return InputConstantValue, nil
	default:
		return 0, fmt.Errorf("tilegraph: unknown tile-processor-input-mode %q", s)
	}
}

// TileProcessorOutputMode selects where a TileProcessor sends ProcessedBlocks.
type TileProcessorOutputMode int

const (
	OutputVertexReducer TileProcessorOutputMode = iota
	OutputFakeVertexReducer
	OutputNoop
)

// ParseTileProcessorOutputMode maps a --tile-processor-output-mode flag value.
func ParseTileProcessorOutputMode(s string) (TileProcessorOutputMode, error) {
	switch s {
	case "VertexReducer":
		return OutputVertexReducer, nil
	case "FakeVertexReducer":
		return OutputFakeVertexReducer, nil
	case "Noop":
		return OutputNoop, nil
	default:
		return 0, fmt.Errorf("tilegraph: unknown tile-processor-output-mode %q", s)
	}
}
