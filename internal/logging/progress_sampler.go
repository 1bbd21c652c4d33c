package logging

// ProgressSampler suppresses repetitive progress logs while preserving signal
// when the pass changes or the percentage crosses a bucket boundary.
type ProgressSampler struct {
	bucketSize float64
	lastPass   int
	lastBucket int
}

// NewProgressSampler constructs a sampler with the given bucket width in
// percentage points (default 10).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastPass: -1, lastBucket: -1}
}

// ShouldLog reports whether a sample for pass at percent (0-100) should be
// logged. Negative percent means unknown and only a pass change logs it.
func (s *ProgressSampler) ShouldLog(percent float64, pass int) bool {
	if s == nil {
		return true
	}
	emit := false
	if pass != s.lastPass {
		s.lastPass = pass
		s.lastBucket = -1
		emit = true
	}
	if percent < 0 {
		return emit
	}
	if percent > 100 {
		percent = 100
	}
	if bucket := int(percent / s.bucketSize); bucket > s.lastBucket {
		s.lastBucket = bucket
		emit = true
	}
	return emit
}

// Reset clears the sampler state when a new job starts.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastPass = -1
	s.lastBucket = -1
}
