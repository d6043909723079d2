package decision

import (
	"context"
	"sync"
	"time"
)

// Record is one audited decision.
type Record struct {
	ID            string        `json:"id"`
	Kind          Kind          `json:"kind"`
	LobbyCode     string        `json:"lobbyCode"`
	PlayerID      string        `json:"playerId"`
	PersonalityID string        `json:"personalityId"`
	Round         int           `json:"round"`
	Outcome       Outcome       `json:"outcome"`
	Reason        string        `json:"reason,omitempty"`
	Choice        string        `json:"choice,omitempty"`
	Confidence    float64       `json:"confidence"`
	Duration      time.Duration `json:"duration"`
	Raw           string        `json:"raw,omitempty"`
	Error         string        `json:"error,omitempty"`
	At            time.Time     `json:"at"`
}

// Recorder receives every decision the engine makes.
type Recorder interface {
	Record(ctx context.Context, r Record) error
}

// History lists recorded decisions, newest first.
type History interface {
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// MemoryRecorder keeps the last N records in a ring.
type MemoryRecorder struct {
	mu   sync.Mutex
	buf  []Record
	next int
	full bool
}

func NewMemoryRecorder(size int) *MemoryRecorder {
	if size <= 0 {
		size = 500
	}
	return &MemoryRecorder{buf: make([]Record, size)}
}

func (m *MemoryRecorder) Record(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf[m.next] = r
	m.next = (m.next + 1) % len(m.buf)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

func (m *MemoryRecorder) Recent(_ context.Context, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.next
	if m.full {
		n = len(m.buf)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Record, 0, limit)
	for i := 1; i <= limit; i++ {
		out = append(out, m.buf[(m.next-i+len(m.buf))%len(m.buf)])
	}
	return out, nil
}
