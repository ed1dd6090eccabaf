package trunks

import (
	"context"
	"math/rand"
	"sort"
	"time"
)

// Selector picks a trunk with a free channel for each outbound call.
//
// Selection runs in two passes: first the affinity filter (country code,
// falling back to default trunks), then the scheme orders the survivors and
// the first trunk that yields a channel wins.
type Selector struct {
	pool  []Trunk
	usage Usage
	rng   *rand.Rand
}

func NewSelector(pool []Trunk, usage Usage, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{pool: pool, usage: usage, rng: rng}
}

// Pick acquires a channel on a trunk for countryCode using scheme.
// The caller must Release the returned trunk when the call ends.
func (s *Selector) Pick(ctx context.Context, scheme Scheme, countryCode string) (Trunk, error) {
	if !scheme.Valid() {
		scheme = SchemeRandomDefault
	}

	candidates := s.eligible(countryCode)
	if len(candidates) == 0 {
		return Trunk{}, ErrNoTrunks
	}

	ordered, err := s.order(ctx, scheme, candidates)
	if err != nil {
		return Trunk{}, err
	}

	for _, t := range ordered {
		limit := t.Channels
		if limit <= 0 {
			continue
		}
		ok, err := s.usage.Acquire(ctx, t.ID, limit)
		if err != nil {
			return Trunk{}, err
		}
		if ok {
			_ = s.usage.SetLastUsed(ctx, t.ID)
			return t, nil
		}
	}
	return Trunk{}, ErrNoCapacity
}

// Release returns the channel taken by Pick.
func (s *Selector) Release(ctx context.Context, trunkID string) error {
	return s.usage.Release(ctx, trunkID)
}

// ByAddress resolves the trunk an inbound call arrived on, by the dialed
// number or, failing that, by the SIP registration id the switch reported.
func (s *Selector) ByAddress(addr string) (Trunk, bool) {
	if addr == "" {
		return Trunk{}, false
	}
	for _, t := range s.pool {
		if t.Number != "" && t.Number == addr {
			return t, true
		}
	}
	for _, t := range s.pool {
		if t.SIPRegID != "" && t.SIPRegID == addr {
			return t, true
		}
	}
	return Trunk{}, false
}

// Free reports whether the trunk still has a spare channel for an inbound
// leg. Unlike Pick it does not take one; the switch owns the inbound leg.
func (s *Selector) Free(ctx context.Context, trunkID string) (bool, error) {
	for _, t := range s.pool {
		if t.ID != trunkID {
			continue
		}
		if t.Channels <= 0 {
			return false, nil
		}
		active, err := s.usage.Active(ctx, t.ID)
		if err != nil {
			return false, err
		}
		return active < t.Channels, nil
	}
	return false, nil
}

// eligible applies the affinity filter with the default-pool fallback.
func (s *Selector) eligible(countryCode string) []Trunk {
	matched := make([]Trunk, 0, len(s.pool))
	defaults := make([]Trunk, 0, len(s.pool))
	for _, t := range s.pool {
		if countryCode != "" && len(t.CountryCodes) > 0 && t.Serves(countryCode) {
			matched = append(matched, t)
		}
		if t.Default {
			defaults = append(defaults, t)
		}
	}
	if len(matched) > 0 {
		return matched
	}
	if len(defaults) > 0 {
		return defaults
	}
	// No affinity and no defaults: any trunk that serves everyone.
	open := make([]Trunk, 0, len(s.pool))
	for _, t := range s.pool {
		if len(t.CountryCodes) == 0 {
			open = append(open, t)
		}
	}
	return open
}

func (s *Selector) order(ctx context.Context, scheme Scheme, candidates []Trunk) ([]Trunk, error) {
	out := make([]Trunk, len(candidates))
	copy(out, candidates)

	switch scheme {
	case SchemeRandomDefault:
		s.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		return out, nil

	case SchemeRandomNoRepeat:
		s.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		if len(out) < 2 {
			return out, nil
		}
		last, err := s.usage.LastUsed(ctx)
		if err != nil {
			return nil, err
		}
		// Move the previously used trunk to the back so it is tried last.
		for i, t := range out {
			if t.ID == last {
				out = append(append(out[:i:i], out[i+1:]...), t)
				break
			}
		}
		return out, nil

	case SchemeEvenLoaded:
		loads := make(map[string]int, len(out))
		for _, t := range out {
			n, err := s.usage.Active(ctx, t.ID)
			if err != nil {
				return nil, err
			}
			loads[t.ID] = n
		}
		sort.SliceStable(out, func(i, j int) bool { return loads[out[i].ID] < loads[out[j].ID] })
		return out, nil

	case SchemeEvenLoadedDaily:
		totals := make(map[string]int, len(out))
		for _, t := range out {
			n, err := s.usage.DailyTotal(ctx, t.ID)
			if err != nil {
				return nil, err
			}
			totals[t.ID] = n
		}
		sort.SliceStable(out, func(i, j int) bool { return totals[out[i].ID] < totals[out[j].ID] })
		return out, nil
	}
	return out, nil
}
