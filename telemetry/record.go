package telemetry

// Sample is one named value inside a telemetry frame.
type Sample struct {
	Key   string
	Value float64
}

// Record is the ordered set of samples decoded from exactly one input line.
// A decoded Record is never empty; lines that yield zero samples are not
// emitted as records at all.
type Record []Sample

// Get returns the value for key and whether it was present.
func (r Record) Get(key string) (float64, bool) {
	for _, s := range r {
		if s.Key == key {
			return s.Value, true
		}
	}
	return 0, false
}

// Keys returns the channel keys in frame order.
func (r Record) Keys() []string {
	keys := make([]string, len(r))
	for i, s := range r {
		keys[i] = s.Key
	}
	return keys
}

// Equal reports whether two records have the same keys, order and values.
func (r Record) Equal(other Record) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if r[i] != other[i] {
			return false
		}
	}
	return true
}

// InfoPair is a single device-metadata key/value decoded from an info frame.
type InfoPair struct {
	Key   string
	Value string
}
