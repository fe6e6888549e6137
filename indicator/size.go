package indicator

// SizePoint is a timestamped size sample.
type SizePoint struct {
	TsMs int64
	Size float64
}

// TotalSize sums the sizes currently in a window snapshot.
func TotalSize(points []SizePoint) float64 {
	total := 0.0
	for _, p := range points {
		total += p.Size
	}
	return total
}
