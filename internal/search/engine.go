package search

import "fmt"

// Reason classifies how a search ended.
type Reason int

const (
	// Feasible: the binary search found a quality within the byte budget.
	Feasible Reason = iota
	// AlreadyFeasibleAtMax: the maximum quality fits, no search needed.
	AlreadyFeasibleAtMax
	// InfeasibleAtMinimum: even the minimum quality exceeds the budget.
	InfeasibleAtMinimum
	// NotSearchable: the format has no quality knob; a single
	// best-effort encode was (or must be) used instead.
	NotSearchable
)

func (r Reason) String() string {
	switch r {
	case Feasible:
		return "feasible"
	case AlreadyFeasibleAtMax:
		return "already_feasible_at_max"
	case InfeasibleAtMinimum:
		return "infeasible_at_minimum"
	case NotSearchable:
		return "not_searchable"
	default:
		return "unknown"
	}
}

// Bounds are the inclusive integer quality limits for a search.
type Bounds struct {
	Min int
	Max int
}

// Validate rejects bounds the engine cannot search.
func (b Bounds) Validate() error {
	if b.Min < 1 || b.Max > 100 {
		return &BoundsError{Reason: fmt.Sprintf("quality must stay within [1,100], got [%d,%d]", b.Min, b.Max)}
	}
	if b.Min > b.Max {
		return &BoundsError{Reason: fmt.Sprintf("min quality %d exceeds max quality %d", b.Min, b.Max)}
	}
	return nil
}

// Outcome is the result of one quality search.
type Outcome struct {
	// Best is the highest-quality feasible probe, nil when no quality in
	// range fits the target. When set, Best.Size <= target always holds.
	Best *ProbeResult

	// Fallback holds the minimum-quality probe when the search is
	// infeasible, so callers with a force policy can still emit the
	// smallest result the bounds allow.
	Fallback *ProbeResult

	Reason Reason
	Probes int
}

// FindBestQuality locates the maximal integer quality in bounds whose
// encoded size does not exceed targetBytes.
//
// The engine assumes the oracle is monotonic: size non-decreasing in
// quality. Real encoders can wobble at the margins (chroma subsampling
// toggles and the like); the search still terminates and still returns
// a feasible result then, but maximality holds only under the
// assumption.
//
// The two endpoint probes come first: max quality as a short-circuit
// for generous targets, min quality to detect infeasibility before the
// bisection starts. Total cost is O(log(max-min)) oracle calls; each
// call re-encodes the whole image, so the encode dominates.
func FindBestQuality(o Oracle, b Bounds, targetBytes int64) (*Outcome, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if targetBytes <= 0 {
		return nil, &BoundsError{Reason: fmt.Sprintf("target size must be positive, got %d bytes", targetBytes)}
	}

	out := &Outcome{}
	probe := func(q int) (ProbeResult, error) {
		r, err := o.Probe(q)
		if err != nil {
			return ProbeResult{}, err
		}
		out.Probes++
		return r, nil
	}

	top, err := probe(b.Max)
	if err != nil {
		return nil, err
	}
	if top.Size <= targetBytes {
		out.Best = &top
		out.Reason = AlreadyFeasibleAtMax
		return out, nil
	}

	bottom, err := probe(b.Min)
	if err != nil {
		return nil, err
	}
	if bottom.Size > targetBytes {
		out.Fallback = &bottom
		out.Reason = InfeasibleAtMinimum
		return out, nil
	}

	// Endpoints are resolved: min fits, max does not. Bisect the open
	// interval, keeping the best feasible probe seen. Later feasible
	// probes are always higher quality because the search moves up
	// after every success.
	best := bottom
	lo, hi := b.Min+1, b.Max-1
	for lo <= hi {
		mid := (lo + hi) / 2
		r, err := probe(mid)
		if err != nil {
			return nil, err
		}
		if r.Size <= targetBytes {
			best = r
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}

	out.Best = &best
	out.Reason = Feasible
	return out, nil
}
