package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

// memoryStore is an in-memory Store for service tests.
type memoryStore struct {
	mu           sync.Mutex
	byCode       map[string]*Session
	participants map[uuid.UUID]map[string]*Participant
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		byCode:       make(map[string]*Session),
		participants: make(map[uuid.UUID]map[string]*Participant),
	}
}

func (m *memoryStore) CreateSession(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byCode[s.Code] = s
	return nil
}

func (m *memoryStore) GetByCode(_ context.Context, code string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byCode[code], nil
}

func (m *memoryStore) SetActiveModule(_ context.Context, id uuid.UUID, mod Module) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byCode {
		if s.ID == id {
			s.ActiveModule = mod
			return nil
		}
	}
	return errors.New("session not found")
}

func (m *memoryStore) AddParticipant(_ context.Context, p *Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	roster, ok := m.participants[p.SessionID]
	if !ok {
		roster = make(map[string]*Participant)
		m.participants[p.SessionID] = roster
	}
	// Same upsert semantics as the database: nickname is the identity key.
	if existing, ok := roster[p.Nickname]; ok {
		*p = *existing
		return nil
	}
	roster[p.Nickname] = p
	return nil
}

func (m *memoryStore) ListParticipants(_ context.Context, sessionID uuid.UUID) ([]Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Participant
	for _, p := range m.participants[sessionID] {
		out = append(out, *p)
	}
	return out, nil
}

func TestCreateAllocatesUniqueCode(t *testing.T) {
	svc := NewService(newMemoryStore())

	a, err := svc.Create(context.Background(), "friday night")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, err := svc.Create(context.Background(), "saturday night")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.Code == b.Code {
		t.Errorf("two sessions share code %q", a.Code)
	}
	if len(a.Code) != CodeLength {
		t.Errorf("code %q length = %d, want %d", a.Code, len(a.Code), CodeLength)
	}
}

func TestLookupUnknownCode(t *testing.T) {
	svc := NewService(newMemoryStore())
	if _, err := svc.Lookup(context.Background(), "ZZZZZZ"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Lookup unknown = %v, want ErrSessionNotFound", err)
	}
}

func TestJoinResumesExistingNickname(t *testing.T) {
	svc := NewService(newMemoryStore())
	sess, err := svc.Create(context.Background(), "pub night")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := svc.Join(context.Background(), sess.Code, "ale")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	again, err := svc.Join(context.Background(), sess.Code, "ale")
	if err != nil {
		t.Fatalf("re-Join: %v", err)
	}
	if first.ID != again.ID {
		t.Errorf("re-joining with the same nickname minted a new identity")
	}

	roster, err := svc.Participants(context.Background(), sess.Code)
	if err != nil {
		t.Fatalf("Participants: %v", err)
	}
	if len(roster) != 1 {
		t.Errorf("roster = %d entries, want 1", len(roster))
	}
}

func TestJoinUnknownSession(t *testing.T) {
	svc := NewService(newMemoryStore())
	if _, err := svc.Join(context.Background(), "ZZZZZZ", "ale"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Join unknown = %v, want ErrSessionNotFound", err)
	}
}

func TestSetActiveModule(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store)
	sess, err := svc.Create(context.Background(), "pub night")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.SetActiveModule(context.Background(), sess.Code, ModuleBand); err != nil {
		t.Fatalf("SetActiveModule: %v", err)
	}
	got, _ := svc.Lookup(context.Background(), sess.Code)
	if got.ActiveModule != ModuleBand {
		t.Errorf("active module = %s, want %s", got.ActiveModule, ModuleBand)
	}
}
