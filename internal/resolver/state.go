package resolver

import (
	"sort"

	"github.com/mrz1836/depositor/internal/catalog"
	"github.com/mrz1836/depositor/internal/deposit"
	"github.com/mrz1836/depositor/internal/gateway"
)

// Phase is the resolver's position in the selection workflow.
type Phase int

// Phases.
const (
	PhaseIdle Phase = iota
	PhaseSelectingAsset
	PhaseSelectingGateway
	PhaseFetching
	PhaseResolved
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSelectingAsset:
		return "selecting_asset"
	case PhaseSelectingGateway:
		return "selecting_gateway"
	case PhaseFetching:
		return "fetching"
	case PhaseResolved:
		return "resolved"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition happens without a new selection.
func (p Phase) Terminal() bool {
	return p == PhaseResolved || p == PhaseError
}

// State is an immutable snapshot of a resolver. Values returned by the
// resolver are copies; mutating them has no effect on the resolver.
type State struct {
	Phase   Phase
	Account string
	Asset   string

	// Gateway is empty for a direct deposit.
	Gateway gateway.ID

	// Target is nil until resolution finishes, and stays nil for
	// unsupported or unknown gateways.
	Target   *deposit.Target
	Fetching bool

	// Availability maps every registered gateway to whether it backs Asset.
	Availability map[gateway.ID]bool
	Backing      *catalog.BackingAsset

	// Err is set in PhaseError and carries a pkg/errors sentinel.
	Err error

	// Generation increments on every selection.
	Generation uint64
}

// AvailableGatewayCount returns how many gateways back the selected asset.
func (s State) AvailableGatewayCount() int {
	n := 0
	for _, enabled := range s.Availability {
		if enabled {
			n++
		}
	}
	return n
}

// EnabledGateways returns the IDs of gateways backing the selected asset, sorted.
func (s State) EnabledGateways() []gateway.ID {
	var out []gateway.ID
	for id, enabled := range s.Availability {
		if enabled {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Direct reports whether the deposit goes straight to the account.
func (s State) Direct() bool {
	return s.Gateway == ""
}

func (s State) clone() State {
	cp := s
	if s.Target != nil {
		t := *s.Target
		cp.Target = &t
	}
	if s.Backing != nil {
		b := *s.Backing
		cp.Backing = &b
	}
	if s.Availability != nil {
		cp.Availability = make(map[gateway.ID]bool, len(s.Availability))
		for k, v := range s.Availability {
			cp.Availability[k] = v
		}
	}
	return cp
}
