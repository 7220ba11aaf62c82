package session

import (
	"context"
	"hash/crc32"
	"net"
	"testing"
	"time"

	"github.com/ssuji15/wolf/internal/apperr"
	"github.com/ssuji15/wolf/internal/compiler"
	"github.com/ssuji15/wolf/internal/protocol"
	"github.com/ssuji15/wolf/internal/sandbox"
	"github.com/ssuji15/wolf/internal/scheduler"
)

// fakeExecutor is a minimal hand-written Executor stand-in (no mocking
// framework, matching the teacher's testing style).
type fakeExecutor struct {
	exitCode int
	stdout   []byte
	stderr   []byte
}

func (f *fakeExecutor) CreateSandbox(jobID uint32, submittedAt time.Time) (string, error) {
	return "/tmp/fake", nil
}
func (f *fakeExecutor) PlaceSource(dir, filename string, data []byte) error { return nil }
func (f *fakeExecutor) RunStep(ctx context.Context, dir, command string, timeout time.Duration, maxOutputBytes int, onStart func(pid int)) (sandbox.StepResult, error) {
	if onStart != nil {
		onStart(1234)
	}
	return sandbox.StepResult{ExitCode: f.exitCode, Stdout: f.stdout, Stderr: f.stderr}, nil
}
func (f *fakeExecutor) Retire(dir string) error { return nil }

func newTestDeps(t *testing.T) (Deps, *scheduler.Scheduler, context.CancelFunc) {
	t.Helper()
	registry := compiler.NewRegistryWithDescriptors(map[compiler.Language]compiler.Descriptor{
		compiler.LanguagePython: {Language: compiler.LanguagePython, ExecutablePath: "/usr/bin/python3"},
	})
	sched := scheduler.New(scheduler.Config{
		MaxQueueDepth:   16,
		RetentionWindow: time.Hour,
		SweepInterval:   time.Minute,
		CompileTimeout:  time.Second,
		ExecuteTimeout:  time.Second,
		MaxOutputBytes:  4096,
	}, registry, &fakeExecutor{exitCode: 0, stdout: []byte("hi")}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go sched.Run(ctx)

	return Deps{
		Roster:      NewRoster(),
		Scheduler:   sched,
		Registry:    registry,
		MaxFileSize: 1 << 20,
		Timeout:     5 * time.Second,
	}, sched, cancel
}

func sendMsg(t *testing.T, conn net.Conn, kind protocol.Kind, corrID uint32, payload []byte) {
	t.Helper()
	if err := protocol.Write(conn, kind, 0, corrID, uint64(time.Now().UnixMilli()), payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

func recvMsg(t *testing.T, conn net.Conn) protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	msg, err := protocol.ReadMessage(conn)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	return msg
}

func uploadSource(t *testing.T, conn net.Conn, corrBase uint32, filename string, src []byte) {
	t.Helper()
	start := protocol.FileUploadStartPayload{
		FileSize:     uint64(len(src)),
		ChunkCount:   1,
		ChunkSize:    uint32(len(src)),
		Filename:     filename,
		FileChecksum: crc32.ChecksumIEEE(src),
	}
	sendMsg(t, conn, protocol.KindFileUploadStart, corrBase, start.Encode())
	if m := recvMsg(t, conn); m.Header.Kind != protocol.KindAck {
		t.Fatalf("FileUploadStart reply = %s, want Ack", m.Header.Kind)
	}

	chunk := protocol.FileUploadChunkPayload{ChunkID: 0, ChunkSize: uint32(len(src)), Data: src}
	sendMsg(t, conn, protocol.KindFileUploadChunk, corrBase+1, chunk.Encode())
	if m := recvMsg(t, conn); m.Header.Kind != protocol.KindAck {
		t.Fatalf("FileUploadChunk reply = %s, want Ack", m.Header.Kind)
	}

	sendMsg(t, conn, protocol.KindFileUploadEnd, corrBase+2, nil)
	if m := recvMsg(t, conn); m.Header.Kind != protocol.KindAck {
		t.Fatalf("FileUploadEnd reply = %s, want Ack", m.Header.Kind)
	}
}

func doHandshake(t *testing.T, conn net.Conn) {
	t.Helper()
	hello := protocol.HelloPayload{VersionMajor: 1, ClientName: "t", Platform: "x"}
	sendMsg(t, conn, protocol.KindHello, 1, hello.Encode())
	m := recvMsg(t, conn)
	if m.Header.Kind != protocol.KindHello {
		t.Fatalf("handshake reply = %s, want Hello", m.Header.Kind)
	}
	if m.Header.CorrelationID != 1 {
		t.Errorf("correlation id = %d, want 1", m.Header.CorrelationID)
	}
}

func TestHandshakeMustBeHelloFirst(t *testing.T) {
	deps, _, cancel := newTestDeps(t)
	defer cancel()
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	go NewHandler(deps, serverConn).Serve()

	sendMsg(t, clientConn, protocol.KindPing, 1, nil)
	m := recvMsg(t, clientConn)
	if m.Header.Kind != protocol.KindError {
		t.Fatalf("reply = %s, want Error", m.Header.Kind)
	}
	errPayload, err := protocol.DecodeError(m.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if apperr.Code(errPayload.ErrorCode) != apperr.CodeInvalidArgument {
		t.Errorf("error code = %v, want InvalidArgument", apperr.Code(errPayload.ErrorCode))
	}
}

func TestCompileOnlySuccessFlow(t *testing.T) {
	deps, sched, cancel := newTestDeps(t)
	defer cancel()
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	go NewHandler(deps, serverConn).Serve()

	doHandshake(t, clientConn)
	uploadSource(t, clientConn, 10, "main.py", []byte("print('hi')\n"))

	req := protocol.CompileRequestPayload{
		Language: uint16(compiler.LanguagePython),
		Mode:     uint16(scheduler.ModeInterpret),
		Filename: "main.py",
		Priority: 5,
	}
	sendMsg(t, clientConn, protocol.KindCompileRequest, 20, req.Encode())
	m := recvMsg(t, clientConn)
	if m.Header.Kind != protocol.KindCompileResponse {
		t.Fatalf("reply = %s, want CompileResponse", m.Header.Kind)
	}
	resp, err := protocol.DecodeCompileResponse(m.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if resp.JobID == 0 {
		t.Fatal("job id is zero")
	}

	deadline := time.After(2 * time.Second)
	for {
		j, _ := sched.Find(resp.JobID)
		if j.State.Terminal() {
			if j.State != scheduler.StateCompleted {
				t.Errorf("terminal state = %v, want Completed", j.State)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("job never completed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	sendMsg(t, clientConn, protocol.KindResultRequest, 30, protocol.JobIDPayload{JobID: resp.JobID}.Encode())
	m = recvMsg(t, clientConn)
	if m.Header.Kind != protocol.KindResultResponse {
		t.Fatalf("result reply = %s, want ResultResponse", m.Header.Kind)
	}
	result, err := protocol.DecodeResultResponse(m.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if result.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", result.ExitCode)
	}
}

func TestResultRequestBeforeTerminalIsPermissionError(t *testing.T) {
	deps, _, cancel := newTestDeps(t)
	defer cancel()
	// Park the worker so the job stays Queued: the handler gets a scheduler
	// whose Run is never started.
	deps.Scheduler = scheduler.New(scheduler.Config{
		MaxQueueDepth:   16,
		RetentionWindow: time.Hour,
		SweepInterval:   time.Minute,
		CompileTimeout:  time.Second,
		ExecuteTimeout:  time.Second,
		MaxOutputBytes:  4096,
	}, deps.Registry, &fakeExecutor{}, nil)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	go NewHandler(deps, serverConn).Serve()

	doHandshake(t, clientConn)
	uploadSource(t, clientConn, 10, "main.py", []byte("x"))
	req := protocol.CompileRequestPayload{Language: uint16(compiler.LanguagePython), Mode: uint16(scheduler.ModeInterpret), Filename: "main.py"}
	sendMsg(t, clientConn, protocol.KindCompileRequest, 20, req.Encode())
	m := recvMsg(t, clientConn) // CompileResponse
	resp, _ := protocol.DecodeCompileResponse(m.Payload)

	// The job is still Queued, so the result request is refused with a
	// not-completed Permission error.
	sendMsg(t, clientConn, protocol.KindResultRequest, 30, protocol.JobIDPayload{JobID: resp.JobID}.Encode())
	m = recvMsg(t, clientConn)
	if m.Header.Kind != protocol.KindError {
		t.Fatalf("reply = %s, want Error", m.Header.Kind)
	}
	errPayload, _ := protocol.DecodeError(m.Payload)
	if apperr.Code(errPayload.ErrorCode) != apperr.CodePermission {
		t.Errorf("error code = %v, want Permission", apperr.Code(errPayload.ErrorCode))
	}
}

func TestCrossSessionStatusRequestDenied(t *testing.T) {
	deps, sched, cancel := newTestDeps(t)
	defer cancel()

	aConn, aServer := net.Pipe()
	defer aConn.Close()
	go NewHandler(deps, aServer).Serve()
	doHandshake(t, aConn)
	uploadSource(t, aConn, 10, "main.py", []byte("x"))
	req := protocol.CompileRequestPayload{Language: uint16(compiler.LanguagePython), Mode: uint16(scheduler.ModeInterpret), Filename: "main.py"}
	sendMsg(t, aConn, protocol.KindCompileRequest, 20, req.Encode())
	m := recvMsg(t, aConn)
	resp, _ := protocol.DecodeCompileResponse(m.Payload)

	bConn, bServer := net.Pipe()
	defer bConn.Close()
	go NewHandler(deps, bServer).Serve()
	doHandshake(t, bConn)

	sendMsg(t, bConn, protocol.KindStatusRequest, 99, protocol.JobIDPayload{JobID: resp.JobID}.Encode())
	m = recvMsg(t, bConn)
	if m.Header.Kind != protocol.KindError {
		t.Fatalf("reply = %s, want Error", m.Header.Kind)
	}
	errPayload, _ := protocol.DecodeError(m.Payload)
	if apperr.Code(errPayload.ErrorCode) != apperr.CodePermission {
		t.Errorf("error code = %v, want Permission", apperr.Code(errPayload.ErrorCode))
	}

	_ = sched
}

func TestFileUploadChunkSizeMismatchIsInvalidArgument(t *testing.T) {
	deps, _, cancel := newTestDeps(t)
	defer cancel()
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	go NewHandler(deps, serverConn).Serve()

	doHandshake(t, clientConn)

	start := protocol.FileUploadStartPayload{FileSize: 5, ChunkCount: 1, ChunkSize: 5, Filename: "a.c"}
	sendMsg(t, clientConn, protocol.KindFileUploadStart, 10, start.Encode())
	if m := recvMsg(t, clientConn); m.Header.Kind != protocol.KindAck {
		t.Fatalf("reply = %s, want Ack", m.Header.Kind)
	}

	badChunk := protocol.FileUploadChunkPayload{ChunkID: 0, ChunkSize: 5, Data: []byte("xx")}
	sendMsg(t, clientConn, protocol.KindFileUploadChunk, 11, badChunk.Encode())
	m := recvMsg(t, clientConn)
	if m.Header.Kind != protocol.KindError {
		t.Fatalf("reply = %s, want Error", m.Header.Kind)
	}
	errPayload, _ := protocol.DecodeError(m.Payload)
	if apperr.Code(errPayload.ErrorCode) != apperr.CodeInvalidArgument {
		t.Errorf("error code = %v, want InvalidArgument", apperr.Code(errPayload.ErrorCode))
	}
}

func TestPingPong(t *testing.T) {
	deps, _, cancel := newTestDeps(t)
	defer cancel()
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	go NewHandler(deps, serverConn).Serve()

	doHandshake(t, clientConn)
	sendMsg(t, clientConn, protocol.KindPing, 50, nil)
	m := recvMsg(t, clientConn)
	if m.Header.Kind != protocol.KindPong {
		t.Fatalf("reply = %s, want Pong", m.Header.Kind)
	}
	if m.Header.CorrelationID != 50 {
		t.Errorf("correlation id = %d, want 50", m.Header.CorrelationID)
	}
}
