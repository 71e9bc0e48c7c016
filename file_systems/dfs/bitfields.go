package dfs

// bitField identifies a value packed into part of a catalogue byte alongside
// other values.
type bitField int

const (
	// Fields in the "extra bits" byte of each file's record in sector 1. Each
	// holds the bits above the 16 stored in the record's low and high bytes
	// (above the low byte only, for the start sector).
	fieldStartSectorHigh bitField = iota
	fieldLoadAddressHigh
	fieldLengthHigh
	fieldExecAddressHigh

	// Fields in the header of sector 1.
	fieldFileCount       // byte 5; the number of files times 8
	fieldBootOption      // byte 6
	fieldSectorCountHigh // byte 6
)

type bitFieldLayout struct {
	shift uint
	mask  byte
}

// bitFieldLayouts is the only place that knows where packed values live.
var bitFieldLayouts = map[bitField]bitFieldLayout{
	fieldStartSectorHigh: {shift: 0, mask: 0x03},
	fieldLoadAddressHigh: {shift: 2, mask: 0x0c},
	fieldLengthHigh:      {shift: 4, mask: 0x30},
	fieldExecAddressHigh: {shift: 6, mask: 0xc0},
	fieldFileCount:       {shift: 3, mask: 0xf8},
	fieldBootOption:      {shift: 4, mask: 0x30},
	fieldSectorCountHigh: {shift: 0, mask: 0x03},
}

// get extracts the field's value from `packed`.
func (field bitField) get(packed byte) uint8 {
	layout := bitFieldLayouts[field]
	return (packed & layout.mask) >> layout.shift
}

// set returns `packed` with the field replaced by `value`. Bits outside the
// field are unchanged, and bits of `value` that don't fit are dropped.
func (field bitField) set(packed byte, value uint8) byte {
	layout := bitFieldLayouts[field]
	return (packed &^ layout.mask) | ((value << layout.shift) & layout.mask)
}

// maxValue is the largest value the field can hold.
func (field bitField) maxValue() uint8 {
	layout := bitFieldLayouts[field]
	return layout.mask >> layout.shift
}

////////////////////////////////////////////////////////////////////////////////
// Splitting and joining values stored partly in the extra bits byte.

// ioProcessorMarker is the value of an address's high field when the address
// refers to the I/O processor rather than a second processor.
const ioProcessorMarker = 0x03

// joinAddress builds a load or execution address from its low 16 bits and
// its 2-bit high field. Addresses with both high bits set are sign-extended to
// 32 bits.
func joinAddress(low uint16, high uint8) uint32 {
	value := uint32(low) | uint32(high)<<16
	if high == ioProcessorMarker {
		value |= 0xffff0000
	}
	return value
}

// splitAddress is the inverse of joinAddress.
func splitAddress(value uint32) (uint16, uint8) {
	return uint16(value), uint8(value>>16) & fieldLoadAddressHigh.maxValue()
}

func joinLength(low uint16, high uint8) uint32 {
	return uint32(low) | uint32(high)<<16
}

func splitLength(value uint32) (uint16, uint8) {
	return uint16(value), uint8(value>>16) & fieldLengthHigh.maxValue()
}

func joinStartSector(low uint8, high uint8) uint32 {
	return uint32(low) | uint32(high)<<8
}

func splitStartSector(value uint32) (uint8, uint8) {
	return uint8(value), uint8(value>>8) & fieldStartSectorHigh.maxValue()
}
