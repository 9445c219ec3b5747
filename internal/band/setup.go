package band

import (
	"errors"
	"fmt"

	"github.com/encorelive/encore/internal/realtime"
)

// Setup is the operator-side assignment board for one round: which
// participant plays which role of the selected song.
type Setup struct {
	song        string
	manifest    *Manifest
	assignments map[string]*realtime.Assignment
	setupSent   bool
}

// Setup errors reported back to the operator.
var (
	ErrNoSongSelected = errors.New("band: no song selected")
	ErrNoAssignments  = errors.New("band: assign at least one musician")
	ErrSetupNotSent   = errors.New("band: send setup before start")
)

// NewSetup creates an empty board.
func NewSetup() *Setup {
	return &Setup{assignments: make(map[string]*realtime.Assignment)}
}

// SelectSong binds the board to a song. Changing the song clears every
// assignment, since role slots are data-driven per manifest.
func (s *Setup) SelectSong(song string, m *Manifest) {
	s.song = song
	s.manifest = m
	s.assignments = make(map[string]*realtime.Assignment, len(m.Roles))
	s.setupSent = false
}

// Song returns the selected song id, empty if none.
func (s *Setup) Song() string { return s.song }

// Roles returns the role slots of the selected song.
func (s *Setup) Roles() []RoleSlot {
	if s.manifest == nil {
		return nil
	}
	return s.manifest.Roles
}

// Assign binds a participant to a role. A participant already holding
// another role is moved, not duplicated: the other role is cleared first.
func (s *Setup) Assign(role, userID, nickname string) error {
	if s.manifest == nil {
		return ErrNoSongSelected
	}
	slot := s.roleSlot(role)
	if slot == nil {
		return fmt.Errorf("band: unknown role %q for song %s", role, s.song)
	}

	for r, a := range s.assignments {
		if a == nil {
			continue
		}
		same := (userID != "" && a.UserID == userID) || (userID == "" && a.Nickname == nickname)
		if same && r != role {
			delete(s.assignments, r)
		}
	}

	s.assignments[role] = &realtime.Assignment{
		UserID:   userID,
		Nickname: nickname,
		Role:     role,
		Label:    slot.Label,
	}
	return nil
}

// Clear frees a role slot.
func (s *Setup) Clear(role string) {
	delete(s.assignments, role)
}

func (s *Setup) roleSlot(role string) *RoleSlot {
	for i := range s.manifest.Roles {
		if s.manifest.Roles[i].ID == role {
			return &s.manifest.Roles[i]
		}
	}
	return nil
}

// Assignments returns the current assignment list in manifest role order.
func (s *Setup) Assignments() []realtime.Assignment {
	if s.manifest == nil {
		return nil
	}
	out := make([]realtime.Assignment, 0, len(s.assignments))
	for _, slot := range s.manifest.Roles {
		if a, ok := s.assignments[slot.ID]; ok && a != nil {
			out = append(out, *a)
		}
	}
	return out
}

// validateForSetup checks the preconditions for broadcasting the board.
func (s *Setup) validateForSetup() error {
	if s.song == "" || s.manifest == nil {
		return ErrNoSongSelected
	}
	if len(s.Assignments()) == 0 {
		return ErrNoAssignments
	}
	return nil
}

// markSetupSent records a successful setup broadcast; start is only valid
// afterwards.
func (s *Setup) markSetupSent() { s.setupSent = true }

// SetupSent reports whether a setup broadcast has gone out for this board.
func (s *Setup) SetupSent() bool { return s.setupSent }

// Reset clears assignments and lifecycle flags locally. It does not notify
// other clients; that takes an explicit stop broadcast or durable-record
// clear.
func (s *Setup) Reset() {
	s.song = ""
	s.manifest = nil
	s.assignments = make(map[string]*realtime.Assignment)
	s.setupSent = false
}
