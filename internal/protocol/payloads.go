package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Fixed field widths, matching the original C structures' char arrays.
const (
	clientNameSize     = 64
	clientPlatformSize = 32
	filenameSize       = 256
	commandArgsSize    = 1024
	errorMessageSize   = 4096
	errorContextSize   = 256
	statusMessageSize  = 256
	peerAddrSize       = 64
	configKeySize      = 64
	configValueSize    = 256
)

func be16(v uint16) []byte { b := make([]byte, 2); binary.BigEndian.PutUint16(b, v); return b }
func be32(v uint32) []byte { b := make([]byte, 4); binary.BigEndian.PutUint32(b, v); return b }
func be64(v uint64) []byte { b := make([]byte, 8); binary.BigEndian.PutUint64(b, v); return b }

func requireLen(payload []byte, want int, what string) error {
	if len(payload) < want {
		return fmt.Errorf("%s: payload too short: have %d want at least %d", what, len(payload), want)
	}
	return nil
}

// ---- Hello ----

type HelloPayload struct {
	VersionMajor uint16
	VersionMinor uint16
	VersionPatch uint16
	Capabilities uint16
	ClientName   string
	Platform     string
}

const helloPayloadSize = 2 + 2 + 2 + 2 + clientNameSize + clientPlatformSize

func (p HelloPayload) Encode() []byte {
	buf := make([]byte, helloPayloadSize)
	binary.BigEndian.PutUint16(buf[0:2], p.VersionMajor)
	binary.BigEndian.PutUint16(buf[2:4], p.VersionMinor)
	binary.BigEndian.PutUint16(buf[4:6], p.VersionPatch)
	binary.BigEndian.PutUint16(buf[6:8], p.Capabilities)
	putFixedString(buf, 8, clientNameSize, p.ClientName)
	putFixedString(buf, 8+clientNameSize, clientPlatformSize, p.Platform)
	return buf
}

func DecodeHello(payload []byte) (HelloPayload, error) {
	if err := requireLen(payload, helloPayloadSize, "Hello"); err != nil {
		return HelloPayload{}, err
	}
	return HelloPayload{
		VersionMajor: binary.BigEndian.Uint16(payload[0:2]),
		VersionMinor: binary.BigEndian.Uint16(payload[2:4]),
		VersionPatch: binary.BigEndian.Uint16(payload[4:6]),
		Capabilities: binary.BigEndian.Uint16(payload[6:8]),
		ClientName:   getFixedString(payload, 8, clientNameSize),
		Platform:     getFixedString(payload, 8+clientNameSize, clientPlatformSize),
	}, nil
}

// ---- FileUploadStart ----

type FileUploadStartPayload struct {
	FileSize     uint64
	ChunkCount   uint32
	ChunkSize    uint32
	Filename     string
	FileChecksum uint32
}

const fileUploadStartSize = 8 + 4 + 4 + filenameSize + 4

func (p FileUploadStartPayload) Encode() []byte {
	buf := make([]byte, fileUploadStartSize)
	binary.BigEndian.PutUint64(buf[0:8], p.FileSize)
	binary.BigEndian.PutUint32(buf[8:12], p.ChunkCount)
	binary.BigEndian.PutUint32(buf[12:16], p.ChunkSize)
	putFixedString(buf, 16, filenameSize, p.Filename)
	binary.BigEndian.PutUint32(buf[16+filenameSize:20+filenameSize], p.FileChecksum)
	return buf
}

func DecodeFileUploadStart(payload []byte) (FileUploadStartPayload, error) {
	if err := requireLen(payload, fileUploadStartSize, "FileUploadStart"); err != nil {
		return FileUploadStartPayload{}, err
	}
	return FileUploadStartPayload{
		FileSize:     binary.BigEndian.Uint64(payload[0:8]),
		ChunkCount:   binary.BigEndian.Uint32(payload[8:12]),
		ChunkSize:    binary.BigEndian.Uint32(payload[12:16]),
		Filename:     getFixedString(payload, 16, filenameSize),
		FileChecksum: binary.BigEndian.Uint32(payload[16+filenameSize : 20+filenameSize]),
	}, nil
}

// ---- FileUploadChunk ----

const fileUploadChunkHeaderSize = 4 + 4 + 4

type FileUploadChunkPayload struct {
	ChunkID       uint32
	ChunkSize     uint32
	ChunkChecksum uint32
	Data          []byte
}

func (p FileUploadChunkPayload) Encode() []byte {
	buf := make([]byte, fileUploadChunkHeaderSize+len(p.Data))
	binary.BigEndian.PutUint32(buf[0:4], p.ChunkID)
	binary.BigEndian.PutUint32(buf[4:8], p.ChunkSize)
	binary.BigEndian.PutUint32(buf[8:12], p.ChunkChecksum)
	copy(buf[12:], p.Data)
	return buf
}

func DecodeFileUploadChunk(payload []byte) (FileUploadChunkPayload, error) {
	if err := requireLen(payload, fileUploadChunkHeaderSize, "FileUploadChunk"); err != nil {
		return FileUploadChunkPayload{}, err
	}
	p := FileUploadChunkPayload{
		ChunkID:       binary.BigEndian.Uint32(payload[0:4]),
		ChunkSize:     binary.BigEndian.Uint32(payload[4:8]),
		ChunkChecksum: binary.BigEndian.Uint32(payload[8:12]),
	}
	p.Data = append([]byte(nil), payload[fileUploadChunkHeaderSize:]...)
	return p, nil
}

// ---- CompileRequest ----

type CompileRequestPayload struct {
	Language      uint16
	Mode          uint16
	Flags         uint16
	Priority      uint16
	Filename      string
	CompilerArgs  string
	ExecutionArgs string
}

const compileRequestSize = 2 + 2 + 2 + 2 + filenameSize + commandArgsSize + commandArgsSize

func (p CompileRequestPayload) Encode() []byte {
	buf := make([]byte, compileRequestSize)
	binary.BigEndian.PutUint16(buf[0:2], p.Language)
	binary.BigEndian.PutUint16(buf[2:4], p.Mode)
	binary.BigEndian.PutUint16(buf[4:6], p.Flags)
	binary.BigEndian.PutUint16(buf[6:8], p.Priority)
	off := 8
	putFixedString(buf, off, filenameSize, p.Filename)
	off += filenameSize
	putFixedString(buf, off, commandArgsSize, p.CompilerArgs)
	off += commandArgsSize
	putFixedString(buf, off, commandArgsSize, p.ExecutionArgs)
	return buf
}

func DecodeCompileRequest(payload []byte) (CompileRequestPayload, error) {
	if err := requireLen(payload, compileRequestSize, "CompileRequest"); err != nil {
		return CompileRequestPayload{}, err
	}
	off := 8
	p := CompileRequestPayload{
		Language: binary.BigEndian.Uint16(payload[0:2]),
		Mode:     binary.BigEndian.Uint16(payload[2:4]),
		Flags:    binary.BigEndian.Uint16(payload[4:6]),
		Priority: binary.BigEndian.Uint16(payload[6:8]),
	}
	p.Filename = getFixedString(payload, off, filenameSize)
	off += filenameSize
	p.CompilerArgs = getFixedString(payload, off, commandArgsSize)
	off += commandArgsSize
	p.ExecutionArgs = getFixedString(payload, off, commandArgsSize)
	return p, nil
}

// ---- CompileResponse ----

type CompileResponsePayload struct {
	JobID           uint32
	Status          uint16
	ExitCode        int32
	OutputSize      uint32
	ErrorSize       uint32
	ExecutionTimeMs uint32
}

const compileResponseSize = 4 + 2 + 2 + 4 + 4 + 4 + 4

func (p CompileResponsePayload) Encode() []byte {
	buf := make([]byte, compileResponseSize)
	binary.BigEndian.PutUint32(buf[0:4], p.JobID)
	binary.BigEndian.PutUint16(buf[4:6], p.Status)
	// buf[6:8] reserved
	binary.BigEndian.PutUint32(buf[8:12], uint32(p.ExitCode))
	binary.BigEndian.PutUint32(buf[12:16], p.OutputSize)
	binary.BigEndian.PutUint32(buf[16:20], p.ErrorSize)
	binary.BigEndian.PutUint32(buf[20:24], p.ExecutionTimeMs)
	return buf
}

func DecodeCompileResponse(payload []byte) (CompileResponsePayload, error) {
	if err := requireLen(payload, compileResponseSize, "CompileResponse"); err != nil {
		return CompileResponsePayload{}, err
	}
	return CompileResponsePayload{
		JobID:           binary.BigEndian.Uint32(payload[0:4]),
		Status:          binary.BigEndian.Uint16(payload[4:6]),
		ExitCode:        int32(binary.BigEndian.Uint32(payload[8:12])),
		OutputSize:      binary.BigEndian.Uint32(payload[12:16]),
		ErrorSize:       binary.BigEndian.Uint32(payload[16:20]),
		ExecutionTimeMs: binary.BigEndian.Uint32(payload[20:24]),
	}, nil
}

// ---- StatusRequest / ResultRequest share a shape (job id only) ----

type JobIDPayload struct {
	JobID uint32
}

const jobIDPayloadSize = 4

func (p JobIDPayload) Encode() []byte { return be32(p.JobID) }

func DecodeJobIDPayload(payload []byte) (JobIDPayload, error) {
	if err := requireLen(payload, jobIDPayloadSize, "JobID"); err != nil {
		return JobIDPayload{}, err
	}
	return JobIDPayload{JobID: binary.BigEndian.Uint32(payload[0:4])}, nil
}

// ---- StatusResponse ----

type StatusResponsePayload struct {
	JobID     uint32
	State     uint16
	Progress  uint16
	StartTime int64
	EndTime   int64
	Pid       int32
	Message   string
}

const statusResponseSize = 4 + 2 + 2 + 8 + 8 + 4 + statusMessageSize

func (p StatusResponsePayload) Encode() []byte {
	buf := make([]byte, statusResponseSize)
	binary.BigEndian.PutUint32(buf[0:4], p.JobID)
	binary.BigEndian.PutUint16(buf[4:6], p.State)
	binary.BigEndian.PutUint16(buf[6:8], p.Progress)
	binary.BigEndian.PutUint64(buf[8:16], uint64(p.StartTime))
	binary.BigEndian.PutUint64(buf[16:24], uint64(p.EndTime))
	binary.BigEndian.PutUint32(buf[24:28], uint32(p.Pid))
	putFixedString(buf, 28, statusMessageSize, p.Message)
	return buf
}

func DecodeStatusResponse(payload []byte) (StatusResponsePayload, error) {
	if err := requireLen(payload, statusResponseSize, "StatusResponse"); err != nil {
		return StatusResponsePayload{}, err
	}
	return StatusResponsePayload{
		JobID:     binary.BigEndian.Uint32(payload[0:4]),
		State:     binary.BigEndian.Uint16(payload[4:6]),
		Progress:  binary.BigEndian.Uint16(payload[6:8]),
		StartTime: int64(binary.BigEndian.Uint64(payload[8:16])),
		EndTime:   int64(binary.BigEndian.Uint64(payload[16:24])),
		Pid:       int32(binary.BigEndian.Uint32(payload[24:28])),
		Message:   getFixedString(payload, 28, statusMessageSize),
	}, nil
}

// ---- ResultResponse ----

type ResultResponsePayload struct {
	JobID      uint32
	State      uint16
	ExitCode   int32
	StdoutSize uint32
	StderrSize uint32
	ElapsedMs  uint32
}

const resultResponseSize = 4 + 2 + 2 + 4 + 4 + 4 + 4

func (p ResultResponsePayload) Encode() []byte {
	buf := make([]byte, resultResponseSize)
	binary.BigEndian.PutUint32(buf[0:4], p.JobID)
	binary.BigEndian.PutUint16(buf[4:6], p.State)
	binary.BigEndian.PutUint32(buf[8:12], uint32(p.ExitCode))
	binary.BigEndian.PutUint32(buf[12:16], p.StdoutSize)
	binary.BigEndian.PutUint32(buf[16:20], p.StderrSize)
	binary.BigEndian.PutUint32(buf[20:24], p.ElapsedMs)
	return buf
}

func DecodeResultResponse(payload []byte) (ResultResponsePayload, error) {
	if err := requireLen(payload, resultResponseSize, "ResultResponse"); err != nil {
		return ResultResponsePayload{}, err
	}
	return ResultResponsePayload{
		JobID:      binary.BigEndian.Uint32(payload[0:4]),
		State:      binary.BigEndian.Uint16(payload[4:6]),
		ExitCode:   int32(binary.BigEndian.Uint32(payload[8:12])),
		StdoutSize: binary.BigEndian.Uint32(payload[12:16]),
		StderrSize: binary.BigEndian.Uint32(payload[16:20]),
		ElapsedMs:  binary.BigEndian.Uint32(payload[20:24]),
	}, nil
}

// ---- Error ----

type ErrorPayload struct {
	ErrorCode uint32
	ErrorLine uint32
	Message   string
	Context   string
}

const errorPayloadSize = 4 + 4 + errorMessageSize + errorContextSize

func (p ErrorPayload) Encode() []byte {
	buf := make([]byte, errorPayloadSize)
	binary.BigEndian.PutUint32(buf[0:4], p.ErrorCode)
	binary.BigEndian.PutUint32(buf[4:8], p.ErrorLine)
	putFixedString(buf, 8, errorMessageSize, p.Message)
	putFixedString(buf, 8+errorMessageSize, errorContextSize, p.Context)
	return buf
}

func DecodeError(payload []byte) (ErrorPayload, error) {
	if err := requireLen(payload, errorPayloadSize, "Error"); err != nil {
		return ErrorPayload{}, err
	}
	return ErrorPayload{
		ErrorCode: binary.BigEndian.Uint32(payload[0:4]),
		ErrorLine: binary.BigEndian.Uint32(payload[4:8]),
		Message:   getFixedString(payload, 8, errorMessageSize),
		Context:   getFixedString(payload, 8+errorMessageSize, errorContextSize),
	}, nil
}

// ---- Admin: ListClients ----

type ListClientsRequestPayload struct {
	Offset uint32
}

func (p ListClientsRequestPayload) Encode() []byte { return be32(p.Offset) }

func DecodeListClientsRequest(payload []byte) (ListClientsRequestPayload, error) {
	if err := requireLen(payload, 4, "ListClientsRequest"); err != nil {
		return ListClientsRequestPayload{}, err
	}
	return ListClientsRequestPayload{Offset: binary.BigEndian.Uint32(payload[0:4])}, nil
}

type ClientRow struct {
	SessionID     uint32
	PeerAddr      string
	State         uint16
	ConnectedSecs uint32
	ActiveJobs    uint32
	BytesSent     uint64
	BytesReceived uint64
}

const clientRowSize = 4 + peerAddrSize + 2 + 2 + 4 + 4 + 8 + 8

func (r ClientRow) encodeInto(buf []byte) {
	binary.BigEndian.PutUint32(buf[0:4], r.SessionID)
	putFixedString(buf, 4, peerAddrSize, r.PeerAddr)
	off := 4 + peerAddrSize
	binary.BigEndian.PutUint16(buf[off:off+2], r.State)
	off += 4 // 2 bytes of state + 2 reserved
	binary.BigEndian.PutUint32(buf[off:off+4], r.ConnectedSecs)
	off += 4
	binary.BigEndian.PutUint32(buf[off:off+4], r.ActiveJobs)
	off += 4
	binary.BigEndian.PutUint64(buf[off:off+8], r.BytesSent)
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], r.BytesReceived)
}

func decodeClientRow(buf []byte) ClientRow {
	r := ClientRow{
		SessionID: binary.BigEndian.Uint32(buf[0:4]),
		PeerAddr:  getFixedString(buf, 4, peerAddrSize),
	}
	off := 4 + peerAddrSize
	r.State = binary.BigEndian.Uint16(buf[off : off+2])
	off += 4
	r.ConnectedSecs = binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	r.ActiveJobs = binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	r.BytesSent = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	r.BytesReceived = binary.BigEndian.Uint64(buf[off : off+8])
	return r
}

type ListClientsResponsePayload struct {
	HasMore bool
	Rows    []ClientRow
}

func (p ListClientsResponsePayload) Encode() []byte {
	buf := make([]byte, 8+len(p.Rows)*clientRowSize)
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(p.Rows)))
	if p.HasMore {
		buf[4] = 1
	}
	off := 8
	for _, r := range p.Rows {
		r.encodeInto(buf[off : off+clientRowSize])
		off += clientRowSize
	}
	return buf
}

func DecodeListClientsResponse(payload []byte) (ListClientsResponsePayload, error) {
	if err := requireLen(payload, 8, "ListClientsResponse"); err != nil {
		return ListClientsResponsePayload{}, err
	}
	count := binary.BigEndian.Uint32(payload[0:4])
	out := ListClientsResponsePayload{HasMore: payload[4] != 0}
	off := 8
	for i := uint32(0); i < count; i++ {
		if err := requireLen(payload, off+clientRowSize, "ListClientsResponse row"); err != nil {
			return ListClientsResponsePayload{}, err
		}
		out.Rows = append(out.Rows, decodeClientRow(payload[off:off+clientRowSize]))
		off += clientRowSize
	}
	return out, nil
}

// ---- Admin: ListJobs ----

type ListJobsRequestPayload struct {
	Offset uint32
}

func (p ListJobsRequestPayload) Encode() []byte { return be32(p.Offset) }

func DecodeListJobsRequest(payload []byte) (ListJobsRequestPayload, error) {
	if err := requireLen(payload, 4, "ListJobsRequest"); err != nil {
		return ListJobsRequestPayload{}, err
	}
	return ListJobsRequestPayload{Offset: binary.BigEndian.Uint32(payload[0:4])}, nil
}

type JobRow struct {
	JobID           uint32
	SessionID       uint32
	Language        uint16
	State           uint16
	SecsSinceSubmit uint32
	Pid             int32
	Filename        string
}

const jobRowSize = 4 + 4 + 2 + 2 + 4 + 4 + filenameSize

func (r JobRow) encodeInto(buf []byte) {
	binary.BigEndian.PutUint32(buf[0:4], r.JobID)
	binary.BigEndian.PutUint32(buf[4:8], r.SessionID)
	binary.BigEndian.PutUint16(buf[8:10], r.Language)
	binary.BigEndian.PutUint16(buf[10:12], r.State)
	binary.BigEndian.PutUint32(buf[12:16], r.SecsSinceSubmit)
	binary.BigEndian.PutUint32(buf[16:20], uint32(r.Pid))
	putFixedString(buf, 20, filenameSize, r.Filename)
}

func decodeJobRow(buf []byte) JobRow {
	return JobRow{
		JobID:           binary.BigEndian.Uint32(buf[0:4]),
		SessionID:       binary.BigEndian.Uint32(buf[4:8]),
		Language:        binary.BigEndian.Uint16(buf[8:10]),
		State:           binary.BigEndian.Uint16(buf[10:12]),
		SecsSinceSubmit: binary.BigEndian.Uint32(buf[12:16]),
		Pid:             int32(binary.BigEndian.Uint32(buf[16:20])),
		Filename:        getFixedString(buf, 20, filenameSize),
	}
}

type ListJobsResponsePayload struct {
	HasMore bool
	Rows    []JobRow
}

func (p ListJobsResponsePayload) Encode() []byte {
	buf := make([]byte, 8+len(p.Rows)*jobRowSize)
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(p.Rows)))
	if p.HasMore {
		buf[4] = 1
	}
	off := 8
	for _, r := range p.Rows {
		r.encodeInto(buf[off : off+jobRowSize])
		off += jobRowSize
	}
	return buf
}

func DecodeListJobsResponse(payload []byte) (ListJobsResponsePayload, error) {
	if err := requireLen(payload, 8, "ListJobsResponse"); err != nil {
		return ListJobsResponsePayload{}, err
	}
	count := binary.BigEndian.Uint32(payload[0:4])
	out := ListJobsResponsePayload{HasMore: payload[4] != 0}
	off := 8
	for i := uint32(0); i < count; i++ {
		if err := requireLen(payload, off+jobRowSize, "ListJobsResponse row"); err != nil {
			return ListJobsResponsePayload{}, err
		}
		out.Rows = append(out.Rows, decodeJobRow(payload[off:off+jobRowSize]))
		off += jobRowSize
	}
	return out, nil
}

// ---- Admin: ServerStats ----

type ServerStatsPayload struct {
	StartTime          int64
	CurrentTime        int64
	TotalClients       uint32
	ActiveClients      uint32
	TotalJobs          uint32
	ActiveJobs         uint32
	CompletedJobs      uint32
	FailedJobs         uint32
	CancelledJobs      uint32
	TimeoutJobs        uint32
	TotalBytesReceived uint64
	TotalBytesSent     uint64
	AvgCompileSecs     float64
	AvgExecuteSecs     float64
}

const serverStatsSize = 8 + 8 + 4*8 + 8 + 8 + 8 + 8

func (p ServerStatsPayload) Encode() []byte {
	buf := make([]byte, serverStatsSize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(p.StartTime))
	binary.BigEndian.PutUint64(buf[8:16], uint64(p.CurrentTime))
	binary.BigEndian.PutUint32(buf[16:20], p.TotalClients)
	binary.BigEndian.PutUint32(buf[20:24], p.ActiveClients)
	binary.BigEndian.PutUint32(buf[24:28], p.TotalJobs)
	binary.BigEndian.PutUint32(buf[28:32], p.ActiveJobs)
	binary.BigEndian.PutUint32(buf[32:36], p.CompletedJobs)
	binary.BigEndian.PutUint32(buf[36:40], p.FailedJobs)
	binary.BigEndian.PutUint32(buf[40:44], p.CancelledJobs)
	binary.BigEndian.PutUint32(buf[44:48], p.TimeoutJobs)
	binary.BigEndian.PutUint64(buf[48:56], p.TotalBytesReceived)
	binary.BigEndian.PutUint64(buf[56:64], p.TotalBytesSent)
	binary.BigEndian.PutUint64(buf[64:72], math.Float64bits(p.AvgCompileSecs))
	binary.BigEndian.PutUint64(buf[72:80], math.Float64bits(p.AvgExecuteSecs))
	return buf
}

func DecodeServerStats(payload []byte) (ServerStatsPayload, error) {
	if err := requireLen(payload, serverStatsSize, "ServerStats"); err != nil {
		return ServerStatsPayload{}, err
	}
	return ServerStatsPayload{
		StartTime:          int64(binary.BigEndian.Uint64(payload[0:8])),
		CurrentTime:        int64(binary.BigEndian.Uint64(payload[8:16])),
		TotalClients:       binary.BigEndian.Uint32(payload[16:20]),
		ActiveClients:      binary.BigEndian.Uint32(payload[20:24]),
		TotalJobs:          binary.BigEndian.Uint32(payload[24:28]),
		ActiveJobs:         binary.BigEndian.Uint32(payload[28:32]),
		CompletedJobs:      binary.BigEndian.Uint32(payload[32:36]),
		FailedJobs:         binary.BigEndian.Uint32(payload[36:40]),
		CancelledJobs:      binary.BigEndian.Uint32(payload[40:44]),
		TimeoutJobs:        binary.BigEndian.Uint32(payload[44:48]),
		TotalBytesReceived: binary.BigEndian.Uint64(payload[48:56]),
		TotalBytesSent:     binary.BigEndian.Uint64(payload[56:64]),
		AvgCompileSecs:     math.Float64frombits(binary.BigEndian.Uint64(payload[64:72])),
		AvgExecuteSecs:     math.Float64frombits(binary.BigEndian.Uint64(payload[72:80])),
	}, nil
}

// ---- Admin: DisconnectClient / KillJob / Shutdown ----

type TargetForcePayload struct {
	TargetID uint32
	Force    bool
}

const targetForceSize = 8

func (p TargetForcePayload) Encode() []byte {
	buf := make([]byte, targetForceSize)
	binary.BigEndian.PutUint32(buf[0:4], p.TargetID)
	if p.Force {
		buf[4] = 1
	}
	return buf
}

func DecodeTargetForce(payload []byte) (TargetForcePayload, error) {
	if err := requireLen(payload, targetForceSize, "TargetForce"); err != nil {
		return TargetForcePayload{}, err
	}
	return TargetForcePayload{
		TargetID: binary.BigEndian.Uint32(payload[0:4]),
		Force:    payload[4] != 0,
	}, nil
}

// ShutdownPayload reuses TargetForcePayload's shape: TargetID carries the
// delay in seconds.
type ShutdownPayload = TargetForcePayload

// ---- Admin: ConfigGet / ConfigSet ----

type ConfigGetRequestPayload struct {
	Key string
}

const configGetRequestSize = configKeySize

func (p ConfigGetRequestPayload) Encode() []byte {
	buf := make([]byte, configGetRequestSize)
	putFixedString(buf, 0, configKeySize, p.Key)
	return buf
}

func DecodeConfigGetRequest(payload []byte) (ConfigGetRequestPayload, error) {
	if err := requireLen(payload, configGetRequestSize, "ConfigGetRequest"); err != nil {
		return ConfigGetRequestPayload{}, err
	}
	return ConfigGetRequestPayload{Key: getFixedString(payload, 0, configKeySize)}, nil
}

type ConfigGetResponsePayload struct {
	Key   string
	Value string
	Found bool
}

const configGetResponseSize = configKeySize + configValueSize + 4

func (p ConfigGetResponsePayload) Encode() []byte {
	buf := make([]byte, configGetResponseSize)
	putFixedString(buf, 0, configKeySize, p.Key)
	putFixedString(buf, configKeySize, configValueSize, p.Value)
	if p.Found {
		buf[configKeySize+configValueSize] = 1
	}
	return buf
}

func DecodeConfigGetResponse(payload []byte) (ConfigGetResponsePayload, error) {
	if err := requireLen(payload, configGetResponseSize, "ConfigGetResponse"); err != nil {
		return ConfigGetResponsePayload{}, err
	}
	return ConfigGetResponsePayload{
		Key:   getFixedString(payload, 0, configKeySize),
		Value: getFixedString(payload, configKeySize, configValueSize),
		Found: payload[configKeySize+configValueSize] != 0,
	}, nil
}

type ConfigSetRequestPayload struct {
	Key   string
	Value string
}

const configSetRequestSize = configKeySize + configValueSize

func (p ConfigSetRequestPayload) Encode() []byte {
	buf := make([]byte, configSetRequestSize)
	putFixedString(buf, 0, configKeySize, p.Key)
	putFixedString(buf, configKeySize, configValueSize, p.Value)
	return buf
}

func DecodeConfigSetRequest(payload []byte) (ConfigSetRequestPayload, error) {
	if err := requireLen(payload, configSetRequestSize, "ConfigSetRequest"); err != nil {
		return ConfigSetRequestPayload{}, err
	}
	return ConfigSetRequestPayload{
		Key:   getFixedString(payload, 0, configKeySize),
		Value: getFixedString(payload, configKeySize, configValueSize),
	}, nil
}
