//go:build sqlite_vtable

// Package vtable bridges adapters to the embedded SQL engine's
// virtual-table protocol (mattn/go-sqlite3, built with the
// sqlite_vtable tag).
//
// Each scan walks a fixed state machine: the engine's BestIndex call is
// the PLANNING phase (constraints are claimed per field capability),
// the cursor's Filter call is the FILTERING phase (claimed constraints
// are bound to values, producing the Bounds), then rows stream with
// row-level rechecks for non-exact filters until the cursor closes.
// Nothing is cached across scans.
package vtable

import (
	"encoding/json"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/leapstack-labs/tablebridge/pkg/core"
)

// constraint operators carried from planning to filtering.
const (
	opEQ = "eq"
	opGT = "gt"
	opGE = "ge"
	opLT = "lt"
	opLE = "le"
)

// claim records one constraint the bridge promised to enforce. Its
// position in the plan matches the position of its bound value in the
// engine's Filter argument list.
type claim struct {
	Column string `json:"col"`
	Op     string `json:"op"`
}

// scanPlan is the planning result, serialized into the engine's index
// string — the only channel between BestIndex and Filter.
type scanPlan struct {
	Claims []claim         `json:"claims,omitempty"`
	Order  []core.SortTerm `json:"order,omitempty"`
}

func (p scanPlan) encode() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode scan plan: %w", err)
	}
	return string(raw), nil
}

func decodePlan(idxStr string) (scanPlan, error) {
	var p scanPlan
	if idxStr == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(idxStr), &p); err != nil {
		return p, fmt.Errorf("failed to decode scan plan %q: %w", idxStr, err)
	}
	return p, nil
}

// filterKindForOp maps an engine constraint operator to the filter kind
// a field must support for the constraint to be claimable.
func filterKindForOp(op sqlite3.Op) (string, core.FilterKind, bool) {
	switch op {
	case sqlite3.OpEQ:
		return opEQ, core.KindEqual, true
	case sqlite3.OpGT:
		return opGT, core.KindRange, true
	case sqlite3.OpGE:
		return opGE, core.KindRange, true
	case sqlite3.OpLT:
		return opLT, core.KindRange, true
	case sqlite3.OpLE:
		return opLE, core.KindRange, true
	default:
		return "", 0, false
	}
}

// filterForClaim builds the filter for one bound constraint value.
func filterForClaim(op string, value any) (core.Filter, error) {
	switch op {
	case opEQ:
		return core.Equal{Value: value}, nil
	case opGT:
		return core.Range{Low: value}, nil
	case opGE:
		return core.Range{Low: value, IncludeLow: true}, nil
	case opLT:
		return core.Range{High: value}, nil
	case opLE:
		return core.Range{High: value, IncludeHigh: true}, nil
	default:
		return nil, fmt.Errorf("unknown claim operator %q", op)
	}
}

// baseCost is the planner cost of an unconstrained full scan. Every
// claimed constraint divides it, so more pushdown always looks cheaper
// to the engine.
const baseCost = 1000.0

func planCost(claimed int) float64 {
	return baseCost / float64(1+claimed)
}
