package query

import (
	"fmt"
	"strings"
)

// Phase is the position of a Context in its step cycle. Each Advance runs
// the phase after the current one.
type Phase uint8

// Step phases. Order is the sort of a flat view and the pivot build of a
// grouped one.
const (
	PhaseIdle Phase = iota
	PhaseFilter
	PhaseOrder
	PhaseTraverse
	PhaseDone
)

var phaseNames = [...]string{"idle", "filter", "order", "traverse", "done"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", p)
}

// ParsePhase is the inverse of Phase.String.
func ParsePhase(name string) (Phase, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range phaseNames {
		if s == n {
			return Phase(i), nil
		}
	}
	return PhaseIdle, fmt.Errorf("unknown phase %q", name)
}

// next returns the phase Advance runs from p.
func (p Phase) next() Phase {
	if p == PhaseDone || p == PhaseIdle {
		return PhaseFilter
	}
	return p + 1
}
