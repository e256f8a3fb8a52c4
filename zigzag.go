package protostream

// Zig32 maps a signed value to its zigzag code so small magnitudes get small codes.
func Zig32(v int32) uint32 {
	return uint32(v<<1) ^ uint32(v>>31)
}

// Zag32 is the inverse of Zig32.
func Zag32(u uint32) int32 {
	return int32(u>>1) ^ -int32(u&1)
}

// Zig64 maps a signed value to its zigzag code so small magnitudes get small codes.
func Zig64(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

// Zag64 is the inverse of Zig64.
func Zag64(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}
