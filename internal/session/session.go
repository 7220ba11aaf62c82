// Package session implements the per-connection client session state
// machine (spec §4.E): handshake, upload staging, compile submission, and
// status/result polling, all driven over the framed wire codec.
package session

import (
	"bytes"
	"hash/crc32"
	"net"
	"sync"
	"time"

	"github.com/ssuji15/wolf/internal/apperr"
	"github.com/ssuji15/wolf/internal/compiler"
	"github.com/ssuji15/wolf/internal/scheduler"
)

// State is the session's lifecycle stage (spec §3/§4.E).
type State uint8

const (
	StateConnecting State = iota
	StateAuthenticated
	StateIdle
	StateUploading
	StateProcessing
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateIdle:
		return "idle"
	case StateUploading:
		return "uploading"
	case StateProcessing:
		return "processing"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// UploadInProgress is the transient per-session upload state (spec §3).
// A session is Uploading iff exactly one of these exists for it.
type UploadInProgress struct {
	Filename       string
	ExpectedSize   uint64
	ChunkSize      uint32
	ChunkCount     uint32
	ExpectedCRC    uint32
	runningCRC     uint32
	chunksReceived uint32
	data           bytes.Buffer
}

// Session is a per-connection record (spec §3: ClientSession). Fields are
// guarded by mu: the session handler goroutine writes them, and the admin
// plane writes State too (MarkDisconnecting, ForceClose); Snapshot gives
// admin/control-plane readers a consistent copy.
type Session struct {
	mu sync.Mutex

	ID          uint32
	PeerAddr    string
	State       State
	ClientName  string
	Platform    string
	ConnectedAt time.Time
	LastActive  time.Time
	BytesSent   uint64
	BytesRecv   uint64
	ActiveJobs  uint32

	upload *UploadInProgress

	// pendingSource holds the last successfully assembled upload's bytes
	// until the next CompileRequest consumes them (spec §4.E: the
	// assembled file lands in the per-session staging area).
	pendingSource []byte

	conn net.Conn
}

// Snapshot is a consistent, lock-free-to-read copy of session state for
// admin ListClients rows (spec §4.F: "consistent reads").
type Snapshot struct {
	ID          uint32
	PeerAddr    string
	State       State
	ConnectedAt time.Time
	ActiveJobs  uint32
	BytesSent   uint64
	BytesRecv   uint64
}

// New builds a Session with no id assigned yet; Roster.Add assigns the
// id atomically when the session is registered.
func New(conn net.Conn) *Session {
	now := time.Now()
	return &Session{
		PeerAddr:    conn.RemoteAddr().String(),
		State:       StateConnecting,
		ConnectedAt: now,
		LastActive:  now,
		conn:        conn,
	}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:          s.ID,
		PeerAddr:    s.PeerAddr,
		State:       s.State,
		ConnectedAt: s.ConnectedAt,
		ActiveJobs:  s.ActiveJobs,
		BytesSent:   s.BytesSent,
		BytesRecv:   s.BytesRecv,
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.LastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.State = st
	s.mu.Unlock()
}

func (s *Session) getState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State
}

func (s *Session) addBytesRecv(n int) {
	s.mu.Lock()
	s.BytesRecv += uint64(n)
	s.mu.Unlock()
}

func (s *Session) addBytesSent(n int) {
	s.mu.Lock()
	s.BytesSent += uint64(n)
	s.mu.Unlock()
}

// beginUpload installs a fresh UploadInProgress and transitions to
// Uploading. Called only from Idle (checked by the caller).
func (s *Session) beginUpload(u *UploadInProgress) {
	s.mu.Lock()
	s.upload = u
	s.State = StateUploading
	s.mu.Unlock()
}

func (s *Session) currentUpload() *UploadInProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upload
}

func (s *Session) endUpload() {
	s.mu.Lock()
	s.upload = nil
	s.State = StateIdle
	s.mu.Unlock()
}

func (s *Session) abortUpload() {
	s.mu.Lock()
	s.upload = nil
	s.mu.Unlock()
}

// ForceClose closes the underlying connection, unblocking the handler's
// read loop so it tears the session down immediately (admin
// DisconnectClient with Force set, spec §4.F: "closes its transport
// immediately").
func (s *Session) ForceClose() error {
	s.mu.Lock()
	s.State = StateDisconnecting
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// MarkDisconnecting flags the session Disconnecting without touching its
// transport (admin DisconnectClient without Force, spec §4.F: "marks the
// target session Disconnecting"). The connection itself is left alone;
// it closes in its own time when the client disconnects or the read
// deadline lapses.
func (s *Session) MarkDisconnecting() {
	s.mu.Lock()
	s.State = StateDisconnecting
	s.mu.Unlock()
}

// appendChunk validates and appends one FileUploadChunk's payload to the
// in-progress upload (spec §4.E upload rules).
func (u *UploadInProgress) appendChunk(declaredSize uint32, data []byte) error {
	if uint32(len(data)) != declaredSize {
		return apperr.InvalidArgument("upload", "chunk size mismatch: declared %d, got %d", declaredSize, len(data))
	}
	u.data.Write(data)
	u.runningCRC = crc32.Update(u.runningCRC, crc32.IEEETable, data)
	u.chunksReceived++
	return nil
}

func (u *UploadInProgress) complete() ([]byte, error) {
	if u.runningCRC != u.ExpectedCRC {
		return nil, apperr.InvalidArgument("upload", "checksum mismatch: expected %#x, got %#x", u.ExpectedCRC, u.runningCRC)
	}
	return u.data.Bytes(), nil
}

// newJob builds the scheduler.Job for a CompileRequest;
// kept here to avoid session importing scheduler's internals beyond the
// public Job type.
func newJob(sessionID uint32, lang compiler.Language, mode scheduler.Mode, priority int, filename, compilerArgs, executionArgs string, source []byte) *scheduler.Job {
	j := &scheduler.Job{
		SessionID:     sessionID,
		Language:      lang,
		Mode:          mode,
		Priority:      priority,
		Filename:      filename,
		CompilerArgs:  compilerArgs,
		ExecutionArgs: executionArgs,
	}
	j.SetSource(source)
	return j
}
