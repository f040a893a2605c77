package model

// UnknownSize marks a byte count that has not been established yet, either
// because the caller did not declare one or the server sent no Content-Length.
const UnknownSize int64 = -1

// Progress is a snapshot of a running download. Processed grows as chunks are
// written to the sink; Total stays UnknownSize until either the caller or the
// server establishes the expected size.
type Progress struct {
	Processed int64
	Total     int64
}

// KnownTotal reports whether the expected size has been established.
func (p Progress) KnownTotal() bool {
	return p.Total != UnknownSize
}
