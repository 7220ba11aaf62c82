// Package adminserver implements the local control plane (spec §4.F):
// a filesystem-namespace listener, mode 0600, serving at most one
// concurrent session, that lets an operator observe and mutate session
// and scheduler state using the same framed wire codec as the public
// listener.
package adminserver

import (
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ssuji15/wolf/internal/apperr"
	"github.com/ssuji15/wolf/internal/protocol"
	"github.com/ssuji15/wolf/internal/scheduler"
	"github.com/ssuji15/wolf/internal/session"
)

// ShutdownRequest is delivered to the onShutdown callback passed to New
// when an admin client issues a Shutdown command.
type ShutdownRequest struct {
	DelaySeconds uint32
	Force        bool
}

// Server is the admin control-plane listener. One Server instance owns
// exactly one filesystem socket; additional admin connections queue in
// the listen backlog while one session is being served (spec §4.F:
// "additional connections wait").
type Server struct {
	socketPath string
	timeout    time.Duration
	startedAt  time.Time

	roster    *session.Roster
	scheduler *scheduler.Scheduler
	configs   *configStore

	// onShutdown is invoked (non-blocking) when an admin client issues
	// Shutdown; the caller wires this to the process's graceful-drain
	// sequence (cmd/codeserverd).
	onShutdown func(ShutdownRequest)

	listener net.Listener
}

// New builds an admin server bound to socketPath once Serve is called.
// startedAt feeds ServerStats' uptime-derived fields.
func New(socketPath string, timeout time.Duration, roster *session.Roster, sched *scheduler.Scheduler, startedAt time.Time, onShutdown func(ShutdownRequest)) *Server {
	return &Server{
		socketPath: socketPath,
		timeout:    timeout,
		startedAt:  startedAt,
		roster:     roster,
		scheduler:  sched,
		configs:    newConfigStore(sched),
		onShutdown: onShutdown,
	}
}

// Listen binds the Unix domain socket with mode 0600, removing any
// stale socket file left by a prior unclean shutdown.
func (s *Server) Listen() error {
	_ = os.Remove(s.socketPath)
	l, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		l.Close()
		return err
	}
	s.listener = l
	return nil
}

// Serve accepts admin connections one at a time until the listener is
// closed (by Close, typically from signal handling). Serving
// sequentially on one goroutine is what gives the "at most one
// concurrent session" guarantee: a second connection simply sits in the
// kernel accept backlog until the first disconnects.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		s.serveOne(conn)
	}
}

// Close unlinks the socket and stops Serve's accept loop.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	_ = os.Remove(s.socketPath)
	return err
}

// adminSession is the transient per-connection record: connect time,
// last-activity time, authentication flag and executed-command count.
// No session id is kept; only one admin session is served at a time.
type adminSession struct {
	connectedAt   time.Time
	lastActivity  time.Time
	authenticated bool
	commandCount  uint64
}

func (s *Server) serveOne(conn net.Conn) {
	defer conn.Close()
	as := &adminSession{connectedAt: time.Now(), lastActivity: time.Now()}

	log.Info().Str("peer", conn.RemoteAddr().String()).Msg("admin session accepted")

	for {
		if s.timeout > 0 {
			idleFor := time.Since(as.lastActivity)
			if idleFor >= s.timeout {
				log.Info().Msg("admin session idle timeout, disconnecting")
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(s.timeout - idleFor))
		}
		msg, err := protocol.ReadMessage(conn)
		if err != nil {
			if _, ok := protocol.AsFramingError(err); ok {
				log.Warn().Err(err).Msg("admin framing error, closing connection")
			} else if err != io.EOF {
				log.Debug().Err(err).Msg("admin read failed, closing connection")
			}
			return
		}
		as.lastActivity = time.Now()
		as.commandCount++

		if !as.authenticated && msg.Header.Kind != protocol.KindAdminConnect {
			s.sendError(conn, msg.Header.CorrelationID, apperr.Permission("admin", "admin command before authentication"))
			continue
		}

		if !s.dispatch(conn, as, msg) {
			return
		}
	}
}

func (s *Server) dispatch(conn net.Conn, as *adminSession, msg protocol.Message) bool {
	switch msg.Header.Kind {
	case protocol.KindAdminConnect:
		as.authenticated = true
		s.sendAck(conn, msg.Header.CorrelationID)
		return true
	case protocol.KindAdminDisconnect:
		s.sendAck(conn, msg.Header.CorrelationID)
		return false
	case protocol.KindListClients:
		return s.handleListClients(conn, msg)
	case protocol.KindListJobs:
		return s.handleListJobs(conn, msg)
	case protocol.KindServerStats:
		return s.handleServerStats(conn, msg)
	case protocol.KindDisconnectClient:
		return s.handleDisconnectClient(conn, msg)
	case protocol.KindKillJob:
		return s.handleKillJob(conn, msg)
	case protocol.KindShutdown:
		return s.handleShutdown(conn, msg)
	case protocol.KindConfigGet:
		return s.handleConfigGet(conn, msg)
	case protocol.KindConfigSet:
		return s.handleConfigSet(conn, msg)
	default:
		s.sendError(conn, msg.Header.CorrelationID, apperr.InvalidArgument("admin", "unexpected message kind %s", msg.Header.Kind))
		return true
	}
}

func (s *Server) handleListClients(conn net.Conn, msg protocol.Message) bool {
	req, err := protocol.DecodeListClientsRequest(msg.Payload)
	if err != nil {
		s.sendError(conn, msg.Header.CorrelationID, apperr.InvalidArgument("admin", "%v", err))
		return true
	}
	snaps := s.roster.Snapshots()
	rows := make([]protocol.ClientRow, 0, len(snaps))
	now := time.Now()
	for _, sn := range snaps {
		rows = append(rows, protocol.ClientRow{
			SessionID:     sn.ID,
			PeerAddr:      sn.PeerAddr,
			State:         uint16(sn.State),
			ConnectedSecs: uint32(now.Sub(sn.ConnectedAt).Seconds()),
			ActiveJobs:    sn.ActiveJobs,
			BytesSent:     sn.BytesSent,
			BytesReceived: sn.BytesRecv,
		})
	}
	rows, hasMore := paginate(rows, req.Offset)
	resp := protocol.ListClientsResponsePayload{HasMore: hasMore, Rows: rows}
	s.send(conn, protocol.KindListClients, msg.Header.CorrelationID, resp.Encode())
	return true
}

func (s *Server) handleListJobs(conn net.Conn, msg protocol.Message) bool {
	req, err := protocol.DecodeListJobsRequest(msg.Payload)
	if err != nil {
		s.sendError(conn, msg.Header.CorrelationID, apperr.InvalidArgument("admin", "%v", err))
		return true
	}
	jobs := s.scheduler.List()
	now := time.Now()
	rows := make([]protocol.JobRow, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, protocol.JobRow{
			JobID:           j.ID,
			SessionID:       j.SessionID,
			Language:        uint16(j.Language),
			State:           uint16(j.State),
			SecsSinceSubmit: uint32(now.Sub(j.SubmittedAt).Seconds()),
			Pid:             int32(j.Pid),
			Filename:        j.Filename,
		})
	}
	rows, hasMore := paginate(rows, req.Offset)
	resp := protocol.ListJobsResponsePayload{HasMore: hasMore, Rows: rows}
	s.send(conn, protocol.KindListJobs, msg.Header.CorrelationID, resp.Encode())
	return true
}

func (s *Server) handleServerStats(conn net.Conn, msg protocol.Message) bool {
	stats := s.scheduler.Stats()
	now := time.Now()
	resp := protocol.ServerStatsPayload{
		StartTime:      s.startedAt.Unix(),
		CurrentTime:    now.Unix(),
		TotalClients:   uint32(s.roster.TotalAccepted()),
		ActiveClients:  uint32(s.roster.ActiveCount()),
		TotalJobs:      uint32(stats.TotalJobs),
		ActiveJobs:     uint32(stats.ActiveJobs),
		CompletedJobs:  uint32(stats.CompletedJobs),
		FailedJobs:     uint32(stats.FailedJobs),
		CancelledJobs:  uint32(stats.CancelledJobs),
		TimeoutJobs:    uint32(stats.TimeoutJobs),
		AvgCompileSecs: stats.AvgCompileSecs(),
		AvgExecuteSecs: stats.AvgExecuteSecs(),
	}
	s.send(conn, protocol.KindServerStats, msg.Header.CorrelationID, resp.Encode())
	return true
}

func (s *Server) handleDisconnectClient(conn net.Conn, msg protocol.Message) bool {
	req, err := protocol.DecodeTargetForce(msg.Payload)
	if err != nil {
		s.sendError(conn, msg.Header.CorrelationID, apperr.InvalidArgument("admin", "%v", err))
		return true
	}
	sess, ok := s.roster.Get(req.TargetID)
	if !ok {
		s.sendError(conn, msg.Header.CorrelationID, apperr.NotFound("admin", "session %d not found", req.TargetID))
		return true
	}
	if req.Force {
		if err := sess.ForceClose(); err != nil {
			log.Debug().Err(err).Uint32("session_id", req.TargetID).Msg("force close failed")
		}
	} else {
		sess.MarkDisconnecting()
	}
	s.sendAck(conn, msg.Header.CorrelationID)
	return true
}

func (s *Server) handleKillJob(conn net.Conn, msg protocol.Message) bool {
	req, err := protocol.DecodeTargetForce(msg.Payload)
	if err != nil {
		s.sendError(conn, msg.Header.CorrelationID, apperr.InvalidArgument("admin", "%v", err))
		return true
	}
	if err := s.scheduler.Cancel(req.TargetID); err != nil {
		s.sendError(conn, msg.Header.CorrelationID, apperr.NotFound("admin", "%v", err))
		return true
	}
	s.sendAck(conn, msg.Header.CorrelationID)
	return true
}

func (s *Server) handleShutdown(conn net.Conn, msg protocol.Message) bool {
	req, err := protocol.DecodeTargetForce(msg.Payload)
	if err != nil {
		s.sendError(conn, msg.Header.CorrelationID, apperr.InvalidArgument("admin", "%v", err))
		return true
	}
	s.sendAck(conn, msg.Header.CorrelationID)
	if s.onShutdown != nil {
		s.onShutdown(ShutdownRequest{DelaySeconds: req.TargetID, Force: req.Force})
	}
	return false
}

func (s *Server) handleConfigGet(conn net.Conn, msg protocol.Message) bool {
	req, err := protocol.DecodeConfigGetRequest(msg.Payload)
	if err != nil {
		s.sendError(conn, msg.Header.CorrelationID, apperr.InvalidArgument("admin", "%v", err))
		return true
	}
	value, found := s.configs.Get(req.Key)
	resp := protocol.ConfigGetResponsePayload{Key: req.Key, Value: value, Found: found}
	s.send(conn, protocol.KindConfigGet, msg.Header.CorrelationID, resp.Encode())
	return true
}

func (s *Server) handleConfigSet(conn net.Conn, msg protocol.Message) bool {
	req, err := protocol.DecodeConfigSetRequest(msg.Payload)
	if err != nil {
		s.sendError(conn, msg.Header.CorrelationID, apperr.InvalidArgument("admin", "%v", err))
		return true
	}
	if err := s.configs.Set(req.Key, req.Value); err != nil {
		s.sendError(conn, msg.Header.CorrelationID, apperr.InvalidArgument("admin", "%v", err))
		return true
	}
	s.sendAck(conn, msg.Header.CorrelationID)
	return true
}

func paginate[T any](rows []T, offset uint32) ([]T, bool) {
	const pageSize = 100
	if int(offset) >= len(rows) {
		return nil, false
	}
	end := int(offset) + pageSize
	hasMore := end < len(rows)
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end], hasMore
}

func (s *Server) send(conn net.Conn, kind protocol.Kind, correlationID uint32, payload []byte) {
	if err := protocol.Write(conn, kind, 0, correlationID, nowMillis(), payload); err != nil {
		log.Debug().Err(err).Msg("admin write failed")
	}
}

func (s *Server) sendAck(conn net.Conn, correlationID uint32) {
	s.send(conn, protocol.KindAck, correlationID, nil)
}

func (s *Server) sendError(conn net.Conn, correlationID uint32, e *apperr.Error) {
	p := protocol.ErrorPayload{ErrorCode: uint32(e.Code), Message: e.Message, Context: e.Context}
	s.send(conn, protocol.KindError, correlationID, p.Encode())
}

func nowMillis() uint64 { return uint64(time.Now().UnixMilli()) }

// configStore is the handful of runtime-tunable knobs ConfigGet/Set can
// reach. Only scheduler.max_queue_depth feeds back into a running
// component; the rest are accepted and stored for visibility (spec
// doesn't mandate which keys exist, only the protocol shape).
type configStore struct {
	mu        sync.Mutex
	sched     *scheduler.Scheduler
	overrides map[string]string
}

func newConfigStore(sched *scheduler.Scheduler) *configStore {
	return &configStore{sched: sched, overrides: make(map[string]string)}
}

func (c *configStore) Get(key string) (string, bool) {
	if key == "scheduler.max_queue_depth" {
		return strconv.Itoa(c.sched.MaxQueueDepth()), true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.overrides[key]
	return v, ok
}

func (c *configStore) Set(key, value string) error {
	if key == "scheduler.max_queue_depth" {
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.sched.SetMaxQueueDepth(n)
		return nil
	}
	c.mu.Lock()
	c.overrides[key] = value
	c.mu.Unlock()
	return nil
}
