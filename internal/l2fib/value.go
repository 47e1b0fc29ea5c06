package l2fib

// NoInterface is the sw_if_index sentinel used by filter entries: "no
// interface", matching VPP's ~0.
const NoInterface uint32 = ^uint32(0)

// Value packs everything an L2-FIB entry carries besides its key, matching
// l2fib_entry_result_t's bitfield layout:
//
//	bits 63..32  sw_if_index (32 bits)
//	bits 31..24  flags        (8 bits)
//	bits 23..8   sn            (16 bits, composite bd_seq<<8|if_seq)
//	bits 7..0    timestamp     (8 bits, minutes since the table was created, mod 256)
type Value uint64

// NewValue packs a Value from its fields.
func NewValue(swIfIndex uint32, flags Flags, sn uint16, timestamp uint8) Value {
	return Value(uint64(swIfIndex)<<32 | uint64(flags)<<24 | uint64(sn)<<8 | uint64(timestamp))
}

// SwIfIndex extracts the packed interface index.
func (v Value) SwIfIndex() uint32 {
	return uint32(v >> 32)
}

// Flags extracts the packed attribute flags.
func (v Value) Flags() Flags {
	return Flags(v >> 24)
}

// SN extracts the packed composite sequence number this entry was last
// touched at.
func (v Value) SN() uint16 {
	return uint16(v >> 8)
}

// Timestamp extracts the packed last-seen minute, mod 256.
func (v Value) Timestamp() uint8 {
	return uint8(v)
}

// WithFlags returns a copy of v with additional bits or-ed into its flags.
func (v Value) WithFlags(f Flags) Value {
	return NewValue(v.SwIfIndex(), v.Flags()|f, v.SN(), v.Timestamp())
}

// WithoutFlags returns a copy of v with the given bits cleared from its
// flags.
func (v Value) WithoutFlags(f Flags) Value {
	return NewValue(v.SwIfIndex(), v.Flags()&^f, v.SN(), v.Timestamp())
}

// WithSN returns a copy of v stamped with a new composite sequence number.
func (v Value) WithSN(sn uint16) Value {
	return NewValue(v.SwIfIndex(), v.Flags(), sn, v.Timestamp())
}

// WithTimestamp returns a copy of v stamped with a new last-seen minute.
func (v Value) WithTimestamp(ts uint8) Value {
	return NewValue(v.SwIfIndex(), v.Flags(), v.SN(), ts)
}
