package session

import "sync"

// Roster is the shared session-id-to-Session mapping (spec §5: "the
// session roster" is one of the three independently-locked shared
// structures). Sessions remove themselves on disconnect.
type Roster struct {
	mu       sync.Mutex
	sessions map[uint32]*Session
	nextID   uint32

	totalAccepted uint64
}

func NewRoster() *Roster {
	return &Roster{sessions: make(map[uint32]*Session)}
}

// Add assigns the next session id and registers sess under it.
func (r *Roster) Add(sess *Session) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	sess.ID = id
	r.sessions[id] = sess
	r.totalAccepted++
	return id
}

func (r *Roster) Remove(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Roster) Get(id uint32) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Snapshots returns a consistent-at-an-instant copy of every active
// session, for admin ListClients (spec §4.F).
func (r *Roster) Snapshots() []Snapshot {
	r.mu.Lock()
	ss := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		ss = append(ss, s)
	}
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(ss))
	for _, s := range ss {
		out = append(out, s.Snapshot())
	}
	return out
}

// ActiveCount reports |{s : s.state != Disconnecting}| (spec §8 property
// 5, used by ServerStats' ActiveClients field).
func (r *Roster) ActiveCount() int {
	r.mu.Lock()
	ss := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		ss = append(ss, s)
	}
	r.mu.Unlock()

	n := 0
	for _, s := range ss {
		if s.getState() != StateDisconnecting {
			n++
		}
	}
	return n
}

// TotalAccepted returns the monotonic total-clients-ever-accepted counter.
func (r *Roster) TotalAccepted() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalAccepted
}
