package engine

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

// progressTracker records the encoded position reported by ffmpeg's
// -progress output. The position never moves backwards.
type progressTracker struct {
	mu       sync.Mutex
	position time.Duration
	seen     bool
	ended    bool
	speed    float64
}

func (p *progressTracker) consume(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		p.apply(key, value)
	}
}

func (p *progressTracker) apply(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch key {
	case "out_time_us", "out_time_ms":
		// ffmpeg reports microseconds under both keys.
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || us < 0 {
			return
		}
		p.advance(time.Duration(us) * time.Microsecond)
	case "out_time":
		if d, ok := parseClock(value); ok {
			p.advance(d)
		}
	case "speed":
		if v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(value), "x"), 64); err == nil {
			p.speed = v
		}
	case "progress":
		p.seen = true
		if value == "end" {
			p.ended = true
		}
	}
}

func (p *progressTracker) advance(d time.Duration) {
	p.seen = true
	if d > p.position {
		p.position = d
	}
}

func (p *progressTracker) snapshot() (position time.Duration, seen, ended bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position, p.seen, p.ended
}

// parseClock parses HH:MM:SS.micro timestamps.
func parseClock(value string) (time.Duration, bool) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	s, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil || h < 0 || m < 0 || s < 0 {
		return 0, false
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s*float64(time.Second)), true
}

// tailBuffer keeps the last few lines written to it.
type tailBuffer struct {
	mu      sync.Mutex
	lines   []string
	limit   int
	partial strings.Builder
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: max(limit, 1)}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, b := range p {
		if b != '\n' {
			t.partial.WriteByte(b)
			continue
		}
		t.push(t.partial.String())
		t.partial.Reset()
	}
	return len(p), nil
}

func (t *tailBuffer) push(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.limit {
		t.lines = t.lines[len(t.lines)-t.limit:]
	}
}

// String returns the retained lines, including an unterminated last line.
func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	lines := append([]string(nil), t.lines...)
	if rest := strings.TrimSpace(t.partial.String()); rest != "" {
		lines = append(lines, rest)
	}
	return strings.Join(lines, "\n")
}
