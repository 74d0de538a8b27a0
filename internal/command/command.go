// Package command dispatches decoded commands against an accessibility tree and
// runs batches of them with per-item isolation.
package command

import (
	"time"

	"axquery/internal/locator"
	"axquery/internal/traverse"
)

// Kind names a command.
type Kind string

const (
	KindFind        Kind = "find"
	KindQuery       Kind = "query"
	KindCollect     Kind = "collect"
	KindDescribe    Kind = "describe"
	KindExtractText Kind = "extract_text"
	KindAct         Kind = "act"
	KindSet         Kind = "set"
	KindBatch       Kind = "batch"
)

// Kinds lists every supported kind.
var Kinds = []Kind{
	KindFind, KindQuery, KindCollect, KindDescribe,
	KindExtractText, KindAct, KindSet, KindBatch,
}

// Supported reports whether k is a known kind.
func (k Kind) Supported() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Shape selects how collected nodes are returned.
type Shape string

const (
	ShapeRecords Shape = "records"
	ShapeText    Shape = "text"
	ShapeFacts   Shape = "facts"
)

// Command is one decoded request. Zero limits fall back to executor defaults,
// except MaxDepth, where nil means unset and 0 walks the start node only.
type Command struct {
	ID   string
	Kind Kind

	// Locator selects the target for find/query/act/set and the starting
	// point for collect/describe/extract_text (the root when nil).
	Locator *locator.Locator

	Filter      *locator.Locator
	FilterScope traverse.FilterScope

	MaxDepth       *int
	MaxNodes       int
	StrictChildren *bool
	Timeout        time.Duration

	Attributes []string
	Output     Shape

	Action    string
	Attribute string
	Value     string

	Commands []Command

	// DecodeErr is a wire-decoding failure reported as this command's result,
	// so one malformed batch item does not reject its siblings.
	DecodeErr error
}

// Result is the outcome of one command. Batch results are positional.
type Result struct {
	ID      string
	Kind    Kind
	Success bool
	Error   *Error

	Node       *traverse.Record
	Records    []traverse.Record
	Text       string
	Facts      []string
	Truncated  bool
	NearMisses []string
	Stats      *traverse.Stats

	Batch []Result
}

// Defaults are the limits applied when a command leaves them unset.
type Defaults struct {
	MaxDepth       int
	MaxNodes       int
	MaxVisits      int
	Timeout        time.Duration
	StrictChildren bool
	Output         Shape
}

// DefaultLimits returns conservative limits for interactive use.
func DefaultLimits() Defaults {
	return Defaults{
		MaxDepth:       25,
		MaxNodes:       500,
		MaxVisits:      20000,
		Timeout:        5 * time.Second,
		StrictChildren: true,
		Output:         ShapeRecords,
	}
}
