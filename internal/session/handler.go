package session

import (
	"io"
	"net"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ssuji15/wolf/internal/apperr"
	"github.com/ssuji15/wolf/internal/compiler"
	"github.com/ssuji15/wolf/internal/protocol"
	"github.com/ssuji15/wolf/internal/scheduler"
)

const serverVersionMajor, serverVersionMinor, serverVersionPatch = 1, 0, 0

// Deps bundles the collaborators a session needs to serve requests,
// mirroring Design Notes §9's "Service value passed by reference"
// instead of ambient globals.
type Deps struct {
	Roster      *Roster
	Scheduler   *scheduler.Scheduler
	Registry    *compiler.Registry
	MaxFileSize int64
	Timeout     time.Duration
}

// Handler drives one accepted connection end to end (spec §4.E).
type Handler struct {
	deps Deps
	sess *Session
	conn net.Conn
}

func NewHandler(deps Deps, conn net.Conn) *Handler {
	return &Handler{deps: deps, conn: conn}
}

// Serve registers the session, runs the read loop until disconnect, and
// unregisters on return. It never returns an error to the caller; all
// failures are logged and end the connection.
func (h *Handler) Serve() {
	h.sess = New(h.conn)
	id := h.deps.Roster.Add(h.sess)
	h.sess.ID = id
	defer func() {
		h.deps.Scheduler.CancelSessionJobs(h.sess.ID)
		h.deps.Roster.Remove(h.sess.ID)
		h.conn.Close()
	}()

	log.Info().Uint32("session_id", id).Str("peer", h.sess.PeerAddr).Msg("session accepted")

	for {
		if h.deps.Timeout > 0 {
			_ = h.conn.SetReadDeadline(time.Now().Add(h.deps.Timeout))
		}
		msg, err := protocol.ReadMessage(h.conn)
		if err != nil {
			if fe, ok := protocol.AsFramingError(err); ok {
				log.Warn().Uint32("session_id", id).Str("reason", fe.Reason.String()).Msg("framing error, closing connection")
			} else if err != io.EOF {
				log.Debug().Err(err).Uint32("session_id", id).Msg("read failed, closing connection")
			}
			return
		}
		h.sess.touch()
		h.sess.addBytesRecv(protocol.HeaderSize + len(msg.Payload))

		if h.sess.getState() == StateConnecting {
			if msg.Header.Kind != protocol.KindHello {
				h.sendError(msg.Header.CorrelationID, apperr.InvalidArgument("handshake", "first message must be Hello"))
				return
			}
		}

		if !h.dispatch(msg) {
			return
		}
	}
}

// dispatch handles one message; it returns false when the session should
// be torn down.
func (h *Handler) dispatch(msg protocol.Message) bool {
	switch msg.Header.Kind {
	case protocol.KindHello:
		return h.handleHello(msg)
	case protocol.KindFileUploadStart:
		return h.handleFileUploadStart(msg)
	case protocol.KindFileUploadChunk:
		return h.handleFileUploadChunk(msg)
	case protocol.KindFileUploadEnd:
		return h.handleFileUploadEnd(msg)
	case protocol.KindCompileRequest:
		return h.handleCompileRequest(msg)
	case protocol.KindStatusRequest:
		return h.handleStatusRequest(msg)
	case protocol.KindResultRequest:
		return h.handleResultRequest(msg)
	case protocol.KindPing:
		return h.handlePing(msg)
	default:
		h.sendError(msg.Header.CorrelationID, apperr.InvalidArgument("dispatch", "unexpected message kind %s in state %s", msg.Header.Kind, h.sess.getState()))
		return true
	}
}

func (h *Handler) handleHello(msg protocol.Message) bool {
	hello, err := protocol.DecodeHello(msg.Payload)
	if err != nil {
		h.sendError(msg.Header.CorrelationID, apperr.InvalidArgument("hello", "%v", err))
		return true
	}
	h.sess.mu.Lock()
	h.sess.ClientName = hello.ClientName
	h.sess.Platform = hello.Platform
	h.sess.mu.Unlock()
	h.sess.setState(StateIdle)

	reply := protocol.HelloPayload{
		VersionMajor: serverVersionMajor,
		VersionMinor: serverVersionMinor,
		VersionPatch: serverVersionPatch,
		ClientName:   "codeserverd",
		Platform:     "linux",
	}
	h.send(protocol.KindHello, msg.Header.CorrelationID, reply.Encode())
	return true
}

func (h *Handler) handleFileUploadStart(msg protocol.Message) bool {
	if h.sess.getState() != StateIdle {
		h.sendError(msg.Header.CorrelationID, apperr.Permission("upload", "FileUploadStart outside Idle"))
		return true
	}
	start, err := protocol.DecodeFileUploadStart(msg.Payload)
	if err != nil {
		h.sendError(msg.Header.CorrelationID, apperr.InvalidArgument("upload", "%v", err))
		return true
	}
	if h.deps.MaxFileSize > 0 && int64(start.FileSize) > h.deps.MaxFileSize {
		h.sendError(msg.Header.CorrelationID, apperr.QuotaExceeded("upload", "file size %d exceeds max %d", start.FileSize, h.deps.MaxFileSize))
		return true
	}
	h.sess.beginUpload(&UploadInProgress{
		Filename:     start.Filename,
		ExpectedSize: start.FileSize,
		ChunkSize:    start.ChunkSize,
		ChunkCount:   start.ChunkCount,
		ExpectedCRC:  start.FileChecksum,
	})
	h.sendAck(msg.Header.CorrelationID)
	return true
}

func (h *Handler) handleFileUploadChunk(msg protocol.Message) bool {
	if h.sess.getState() != StateUploading {
		h.sendError(msg.Header.CorrelationID, apperr.Permission("upload", "FileUploadChunk outside Uploading"))
		return true
	}
	chunk, err := protocol.DecodeFileUploadChunk(msg.Payload)
	if err != nil {
		h.sendError(msg.Header.CorrelationID, apperr.InvalidArgument("upload", "%v", err))
		return true
	}
	upload := h.sess.currentUpload()
	if err := upload.appendChunk(chunk.ChunkSize, chunk.Data); err != nil {
		h.sess.abortUpload()
		h.sess.setState(StateIdle)
		h.sendError(msg.Header.CorrelationID, err.(*apperr.Error))
		return true
	}
	h.sendAck(msg.Header.CorrelationID)
	return true
}

func (h *Handler) handleFileUploadEnd(msg protocol.Message) bool {
	if h.sess.getState() != StateUploading {
		h.sendError(msg.Header.CorrelationID, apperr.Permission("upload", "FileUploadEnd outside Uploading"))
		return true
	}
	upload := h.sess.currentUpload()
	data, err := upload.complete()
	if err != nil {
		h.sess.abortUpload()
		h.sess.setState(StateIdle)
		h.sendError(msg.Header.CorrelationID, err.(*apperr.Error))
		return true
	}
	h.sess.mu.Lock()
	h.sess.pendingSource = data
	h.sess.mu.Unlock()
	h.sess.endUpload()
	h.sendAck(msg.Header.CorrelationID)
	return true
}

func (h *Handler) handleCompileRequest(msg protocol.Message) bool {
	if h.sess.getState() != StateIdle {
		h.sendError(msg.Header.CorrelationID, apperr.Permission("submit", "CompileRequest outside Idle"))
		return true
	}
	req, err := protocol.DecodeCompileRequest(msg.Payload)
	if err != nil {
		h.sendError(msg.Header.CorrelationID, apperr.InvalidArgument("submit", "%v", err))
		return true
	}
	if !compiler.ValidateArgs(req.CompilerArgs) || !compiler.ValidateArgs(req.ExecutionArgs) {
		h.sendError(msg.Header.CorrelationID, apperr.InvalidArgument("submit", "compiler_args/execution_args contain disallowed characters"))
		return true
	}

	h.sess.mu.Lock()
	source := h.sess.pendingSource
	h.sess.pendingSource = nil
	h.sess.mu.Unlock()

	job := newJob(h.sess.ID, compiler.Language(req.Language), scheduler.Mode(req.Mode), int(req.Priority), req.Filename, req.CompilerArgs, req.ExecutionArgs, source)
	jobID, err := h.deps.Scheduler.Submit(job)
	if err != nil {
		h.sendError(msg.Header.CorrelationID, apperr.QuotaExceeded("submit", "%v", err))
		return true
	}

	h.sess.mu.Lock()
	h.sess.ActiveJobs++
	h.sess.mu.Unlock()
	h.sess.setState(StateProcessing)

	resp := protocol.CompileResponsePayload{JobID: jobID, Status: uint16(scheduler.StateQueued)}
	h.send(protocol.KindCompileResponse, msg.Header.CorrelationID, resp.Encode())
	return true
}

func (h *Handler) handleStatusRequest(msg protocol.Message) bool {
	req, err := protocol.DecodeJobIDPayload(msg.Payload)
	if err != nil {
		h.sendError(msg.Header.CorrelationID, apperr.InvalidArgument("status", "%v", err))
		return true
	}
	job, ok := h.deps.Scheduler.Find(req.JobID)
	if !ok {
		h.sendError(msg.Header.CorrelationID, apperr.NotFound("status", "job %d not found", req.JobID))
		return true
	}
	if job.SessionID != h.sess.ID {
		h.sendError(msg.Header.CorrelationID, apperr.Permission("status", "job %d not owned by this session", req.JobID))
		return true
	}
	resp := protocol.StatusResponsePayload{
		JobID:     job.ID,
		State:     uint16(job.State),
		StartTime: job.StartedAt.Unix(),
		EndTime:   job.EndedAt.Unix(),
		Pid:       int32(job.Pid),
	}
	h.send(protocol.KindStatusResponse, msg.Header.CorrelationID, resp.Encode())
	return true
}

func (h *Handler) handleResultRequest(msg protocol.Message) bool {
	req, err := protocol.DecodeJobIDPayload(msg.Payload)
	if err != nil {
		h.sendError(msg.Header.CorrelationID, apperr.InvalidArgument("result", "%v", err))
		return true
	}
	job, ok := h.deps.Scheduler.Find(req.JobID)
	if !ok {
		h.sendError(msg.Header.CorrelationID, apperr.NotFound("result", "job %d not found", req.JobID))
		return true
	}
	if job.SessionID != h.sess.ID {
		h.sendError(msg.Header.CorrelationID, apperr.Permission("result", "job %d not owned by this session", req.JobID))
		return true
	}
	if !job.State.Terminal() {
		h.sendError(msg.Header.CorrelationID, apperr.Permission("result", "job %d not completed", req.JobID))
		return true
	}

	h.sess.mu.Lock()
	if h.sess.ActiveJobs > 0 {
		h.sess.ActiveJobs--
	}
	h.sess.mu.Unlock()
	if h.sess.getState() == StateProcessing {
		h.sess.setState(StateIdle)
	}

	elapsed := uint32(job.EndedAt.Sub(job.StartedAt).Milliseconds())
	resp := protocol.ResultResponsePayload{
		JobID:      job.ID,
		State:      uint16(job.State),
		ExitCode:   int32(job.ExitCode),
		StdoutSize: uint32(job.StdoutSize),
		StderrSize: uint32(job.StderrSize),
		ElapsedMs:  elapsed,
	}
	h.send(protocol.KindResultResponse, msg.Header.CorrelationID, resp.Encode())
	return true
}

func (h *Handler) handlePing(msg protocol.Message) bool {
	h.send(protocol.KindPong, msg.Header.CorrelationID, nil)
	return true
}

func (h *Handler) send(kind protocol.Kind, correlationID uint32, payload []byte) {
	if err := protocol.Write(h.conn, kind, 0, correlationID, nowMillis(), payload); err != nil {
		log.Debug().Err(err).Msg("write failed")
		return
	}
	h.sess.addBytesSent(protocol.HeaderSize + len(payload))
}

func (h *Handler) sendAck(correlationID uint32) {
	h.send(protocol.KindAck, correlationID, nil)
}

func (h *Handler) sendError(correlationID uint32, e *apperr.Error) {
	p := protocol.ErrorPayload{ErrorCode: uint32(e.Code), Message: e.Message, Context: e.Context}
	h.send(protocol.KindError, correlationID, p.Encode())
}

func nowMillis() uint64 { return uint64(time.Now().UnixMilli()) }
