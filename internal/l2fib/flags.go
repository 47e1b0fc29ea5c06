package l2fib

import "strings"

// Flags are the per-entry attribute bits carried in a Value, grounded on
// foreach_l2fib_entry_result_attr in l2_fib.h.
type Flags uint8

const (
	// FlagStatic marks an entry as administratively provisioned: it is
	// never aged out and never overwritten by learning.
	FlagStatic Flags = 1 << iota
	// FlagFilter drops traffic matching the MAC instead of forwarding it.
	// Always paired with FlagStatic and sw_if_index == NoInterface.
	FlagFilter
	// FlagBVI routes matching traffic to the bridge-group virtual
	// interface instead of a physical port. Always paired with
	// FlagStatic.
	FlagBVI
	// FlagAgeNot exempts an entry from aging regardless of the bridge
	// domain's mac-age setting. Provisioned entries always carry it.
	FlagAgeNot
	// FlagLearnEventPending marks an entry the ager must report in the
	// next event batch, then clear, before considering it for aging.
	FlagLearnEventPending
	// FlagLearnMoved distinguishes a move (same MAC, new interface) from
	// a fresh learn when FlagLearnEventPending is set.
	FlagLearnMoved
)

// Has reports whether all bits in want are set in f.
func (f Flags) Has(want Flags) bool {
	return f&want == want
}

var flagNames = []struct {
	bit  Flags
	name string
}{
	{FlagStatic, "static"},
	{FlagFilter, "filter"},
	{FlagBVI, "bvi"},
	{FlagAgeNot, "age-not"},
	{FlagLearnEventPending, "learn-event-pending"},
	{FlagLearnMoved, "learn-moved"},
}

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for _, e := range flagNames {
		if f.Has(e.bit) {
			names = append(names, e.name)
		}
	}
	return strings.Join(names, "|")
}
