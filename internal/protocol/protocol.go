// Package protocol is the JSON wire format for commands and results, shared by
// the CLI and the HTTP endpoint.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"axquery/internal/command"
	"axquery/internal/locator"
	"axquery/internal/traverse"
)

// Criterion is the wire form of locator.Criterion.
type Criterion struct {
	Attribute string `json:"attribute"`
	Value     string `json:"value"`
	Match     string `json:"match,omitempty"`
}

// Locator is the wire form of locator.Locator. MatchAll defaults to true.
type Locator struct {
	Criteria      []Criterion `json:"criteria,omitempty"`
	MatchAll      *bool       `json:"match_all,omitempty"`
	RootPath      []string    `json:"root_path,omitempty"`
	Descendant    *Locator    `json:"descendant,omitempty"`
	RequireAction string      `json:"require_action,omitempty"`
	NameContains  string      `json:"name_contains,omitempty"`
}

// Request is one command envelope.
type Request struct {
	ID             string    `json:"id,omitempty"`
	Command        string    `json:"command"`
	Locator        *Locator  `json:"locator,omitempty"`
	Filter         *Locator  `json:"filter,omitempty"`
	FilterScope    string    `json:"filter_scope,omitempty"`
	MaxDepth       *int      `json:"max_depth,omitempty"`
	MaxNodes       int       `json:"max_nodes,omitempty"`
	StrictChildren *bool     `json:"strict_children,omitempty"`
	Attributes     []string  `json:"attributes,omitempty"`
	Output         string    `json:"output,omitempty"`
	Action         string    `json:"action,omitempty"`
	Attribute      string    `json:"attribute,omitempty"`
	Value          string    `json:"value,omitempty"`
	TimeoutMs      int       `json:"timeout_ms,omitempty"`
	Commands       []Request `json:"commands,omitempty"`
}

// Error is the wire form of command.Error.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response is the wire form of command.Result.
type Response struct {
	ID             string            `json:"id,omitempty"`
	Command        string            `json:"command"`
	Success        bool              `json:"success"`
	Error          *Error            `json:"error,omitempty"`
	Node           *traverse.Record  `json:"node,omitempty"`
	Records        []traverse.Record `json:"records,omitempty"`
	Text           string            `json:"text,omitempty"`
	Facts          []string          `json:"facts,omitempty"`
	Truncated      bool              `json:"truncated,omitempty"`
	NearMisses     []string          `json:"near_misses,omitempty"`
	Stats          *traverse.Stats   `json:"stats,omitempty"`
	Batch          []Response        `json:"batch,omitempty"`
	OverallSuccess *bool             `json:"overall_success,omitempty"`
}

// Decode reads exactly one request. Unknown fields are rejected.
func Decode(r io.Reader) (command.Command, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var req Request
	if err := dec.Decode(&req); err != nil {
		return command.Command{}, fmt.Errorf("%w: %v", command.ErrInvalidCommand, err)
	}
	if dec.More() {
		return command.Command{}, fmt.Errorf("%w: trailing data after request", command.ErrInvalidCommand)
	}
	cmd, err := req.ToCommand()
	if err != nil {
		return command.Command{}, err
	}
	return cmd, nil
}

// DecodeBytes is Decode over a byte slice.
func DecodeBytes(data []byte) (command.Command, error) {
	return Decode(bytes.NewReader(data))
}

// ToCommand converts the envelope. Errors in batch items are attached to the
// item rather than returned, so siblings still run.
func (r Request) ToCommand() (command.Command, error) {
	cmd := command.Command{
		ID:             r.ID,
		Kind:           command.Kind(r.Command),
		MaxDepth:       r.MaxDepth,
		MaxNodes:       r.MaxNodes,
		StrictChildren: r.StrictChildren,
		Timeout:        time.Duration(r.TimeoutMs) * time.Millisecond,
		Attributes:     r.Attributes,
		Output:         command.Shape(r.Output),
		Action:         r.Action,
		Attribute:      r.Attribute,
		Value:          r.Value,
	}
	if r.Command == "" {
		return cmd, fmt.Errorf("%w: missing command", command.ErrInvalidCommand)
	}

	var err error
	if cmd.Locator, err = r.Locator.ToLocator(); err != nil {
		return cmd, err
	}
	if cmd.Filter, err = r.Filter.ToLocator(); err != nil {
		return cmd, fmt.Errorf("filter: %w", err)
	}
	if cmd.FilterScope, err = traverse.ParseFilterScope(r.FilterScope); err != nil {
		return cmd, fmt.Errorf("%w: %v", command.ErrInvalidCommand, err)
	}

	for i, sub := range r.Commands {
		item, err := sub.ToCommand()
		if err != nil {
			item.DecodeErr = fmt.Errorf("item %d: %w", i, err)
		}
		cmd.Commands = append(cmd.Commands, item)
	}
	return cmd, nil
}

// ToLocator converts and validates structure that does not depend on context;
// emptiness is checked by the executor. A nil receiver yields nil.
func (l *Locator) ToLocator() (*locator.Locator, error) {
	if l == nil {
		return nil, nil
	}
	out := &locator.Locator{
		MatchAll:             true,
		RequireAction:        l.RequireAction,
		ComputedNameContains: l.NameContains,
	}
	if l.MatchAll != nil {
		out.MatchAll = *l.MatchAll
	}
	for _, c := range l.Criteria {
		mt, err := locator.ParseMatchType(c.Match)
		if err != nil {
			return nil, err
		}
		out.Criteria = append(out.Criteria, locator.NewCriterion(c.Attribute, c.Value, mt))
	}
	for _, s := range l.RootPath {
		seg, err := locator.ParsePathSegment(s)
		if err != nil {
			return nil, err
		}
		out.RootPathHint = append(out.RootPathHint, seg)
	}
	if l.Descendant != nil {
		d, err := l.Descendant.ToLocator()
		if err != nil {
			return nil, fmt.Errorf("descendant: %w", err)
		}
		out.Descendant = d
	}
	return out, nil
}

// FromResult converts a result, including nested batch results.
func FromResult(res command.Result) Response {
	resp := Response{
		ID:         res.ID,
		Command:    string(res.Kind),
		Success:    res.Success,
		Node:       res.Node,
		Records:    res.Records,
		Text:       res.Text,
		Facts:      res.Facts,
		Truncated:  res.Truncated,
		NearMisses: res.NearMisses,
		Stats:      res.Stats,
	}
	if res.Error != nil {
		resp.Error = &Error{Code: string(res.Error.Code), Message: res.Error.Message}
	}
	if res.Kind == command.KindBatch && res.Batch != nil {
		resp.Batch = make([]Response, len(res.Batch))
		for i, item := range res.Batch {
			resp.Batch[i] = FromResult(item)
		}
		ok := res.Success
		resp.OverallSuccess = &ok
	}
	return resp
}

// ErrorResponse reports a request that could not be decoded.
func ErrorResponse(id string, err error) Response {
	return Response{
		ID:    id,
		Error: &Error{Code: string(command.Classify(err)), Message: err.Error()},
	}
}

// Encode writes a response as indented JSON followed by a newline.
func Encode(w io.Writer, resp Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
