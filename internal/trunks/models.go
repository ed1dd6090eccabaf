package trunks

import "errors"

var (
	ErrInvalidArgument = errors.New("trunks: invalid argument")

	// ErrNoTrunks means the pool has no trunk for the destination at all.
	ErrNoTrunks = errors.New("trunks: no trunk for destination")

	// ErrNoCapacity means every eligible trunk is at its channel limit.
	ErrNoCapacity = errors.New("trunks: all channels busy")
)

// Scheme names a trunk selection strategy. Stored per order.
type Scheme string

const (
	// SchemeRandomDefault picks any eligible trunk with free channels.
	SchemeRandomDefault Scheme = "random_default"

	// SchemeRandomNoRepeat avoids the trunk used for the previous call when
	// an alternative exists, spreading caller ids.
	SchemeRandomNoRepeat Scheme = "random_without_repetition"

	// SchemeEvenLoaded prefers the trunk with the fewest live channels.
	SchemeEvenLoaded Scheme = "even_loaded"

	// SchemeEvenLoadedDaily prefers the trunk with the fewest calls today.
	SchemeEvenLoadedDaily Scheme = "even_loaded_daily"
)

// Valid reports whether s is a known scheme.
func (s Scheme) Valid() bool {
	switch s {
	case SchemeRandomDefault, SchemeRandomNoRepeat, SchemeEvenLoaded, SchemeEvenLoadedDaily:
		return true
	default:
		return false
	}
}

// Trunk is one outbound SIP trunk.
type Trunk struct {
	ID   string
	Name string

	// Number is the public caller id of the trunk. Inbound calls dialed to
	// it resolve back to this trunk.
	Number string

	// SIPRegID is the registration id the switch reports for inbound legs
	// that arrive without a dialed number.
	SIPRegID string

	// OrderID hard-links the trunk to one campaign. Inbound calls from
	// unknown numbers on a linked trunk may create a lead in that campaign.
	OrderID string

	// Channels is the concurrent call capacity the carrier sold us.
	Channels int

	// CountryCodes restricts the trunk to destinations with these prefixes.
	// Empty means the trunk takes any destination.
	CountryCodes []string

	// Default marks fallback trunks used when no affinity matches.
	Default bool
}

// Serves reports whether the trunk may carry a call to countryCode.
func (t Trunk) Serves(countryCode string) bool {
	if len(t.CountryCodes) == 0 {
		return true
	}
	for _, cc := range t.CountryCodes {
		if cc == countryCode {
			return true
		}
	}
	return false
}
