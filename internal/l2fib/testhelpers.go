package l2fib

import "fmt"

// TestAddRange provisions count sequential entries starting at startMAC,
// each incremented per IncrementMAC, all bound to swIfIndex in bdIndex.
// Grounded on l2fib_test_command_fn's "add" clause, reinterpreted as a
// library helper returning the MACs it added instead of driving a CLI.
func TestAddRange(t *Table, startMAC MAC, bdIndex uint32, swIfIndex uint32, count int) []MAC {
	mac := startMAC
	added := make([]MAC, 0, count)
	for i := 0; i < count; i++ {
		t.Add(mac, bdIndex, swIfIndex, 0)
		added = append(added, mac)
		mac = IncrementMAC(mac)
	}
	return added
}

// TestCheckRange verifies that count sequential entries starting at
// startMAC are present in bdIndex, returning the first missing MAC it
// encounters. Grounded on l2fib_test_command_fn's "check" clause.
func TestCheckRange(t *Table, startMAC MAC, bdIndex uint32, count int) (missing *MAC, err error) {
	mac := startMAC
	for i := 0; i < count; i++ {
		if _, ok := t.Lookup(mac, bdIndex); !ok {
			m := mac
			return &m, fmt.Errorf("l2fib: entry for %s not found", mac)
		}
		mac = IncrementMAC(mac)
	}
	return nil, nil
}

// TestDelRange deletes count sequential entries starting at startMAC from
// bdIndex, ignoring ones already absent. Grounded on
// l2fib_test_command_fn's "del" clause.
func TestDelRange(t *Table, startMAC MAC, bdIndex uint32, count int) {
	mac := startMAC
	for i := 0; i < count; i++ {
		_ = t.Del(mac, bdIndex, 0)
		mac = IncrementMAC(mac)
	}
}
