// Package protocol implements the framed binary wire codec shared by the
// public client listener and the admin control-plane listener.
package protocol

// Kind identifies the payload carried by a Message. Client requests occupy
// 1..99, server responses occupy 100..199, admin messages occupy 200..255.
type Kind uint16

const (
	KindInvalid Kind = 0

	// Client requests (both directions for Hello/Ping).
	KindHello           Kind = 1
	KindFileUploadStart Kind = 2
	KindFileUploadChunk Kind = 3
	KindFileUploadEnd   Kind = 4
	KindCompileRequest  Kind = 5
	KindStatusRequest   Kind = 6
	KindResultRequest   Kind = 7
	KindPing            Kind = 8

	// Server responses.
	KindAck             Kind = 100
	KindNack            Kind = 101
	KindError           Kind = 102
	KindCompileResponse Kind = 103
	KindStatusResponse  Kind = 104
	KindResultResponse  Kind = 105
	KindPong            Kind = 106

	// Admin messages.
	KindAdminConnect       Kind = 200
	KindAdminDisconnect    Kind = 201
	KindListClients        Kind = 202
	KindListJobs           Kind = 203
	KindServerStats        Kind = 204
	KindDisconnectClient   Kind = 205
	KindKillJob            Kind = 206
	KindShutdown           Kind = 207
	KindConfigGet          Kind = 208
	KindConfigSet          Kind = 209
)

// IsKnown reports whether k is a recognized message kind.
func (k Kind) IsKnown() bool {
	switch k {
	case KindHello, KindFileUploadStart, KindFileUploadChunk, KindFileUploadEnd,
		KindCompileRequest, KindStatusRequest, KindResultRequest, KindPing,
		KindAck, KindNack, KindError, KindCompileResponse, KindStatusResponse,
		KindResultResponse, KindPong,
		KindAdminConnect, KindAdminDisconnect, KindListClients, KindListJobs,
		KindServerStats, KindDisconnectClient, KindKillJob, KindShutdown,
		KindConfigGet, KindConfigSet:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	switch k {
	case KindHello:
		return "Hello"
	case KindFileUploadStart:
		return "FileUploadStart"
	case KindFileUploadChunk:
		return "FileUploadChunk"
	case KindFileUploadEnd:
		return "FileUploadEnd"
	case KindCompileRequest:
		return "CompileRequest"
	case KindStatusRequest:
		return "StatusRequest"
	case KindResultRequest:
		return "ResultRequest"
	case KindPing:
		return "Ping"
	case KindAck:
		return "Ack"
	case KindNack:
		return "Nack"
	case KindError:
		return "Error"
	case KindCompileResponse:
		return "CompileResponse"
	case KindStatusResponse:
		return "StatusResponse"
	case KindResultResponse:
		return "ResultResponse"
	case KindPong:
		return "Pong"
	case KindAdminConnect:
		return "AdminConnect"
	case KindAdminDisconnect:
		return "AdminDisconnect"
	case KindListClients:
		return "ListClients"
	case KindListJobs:
		return "ListJobs"
	case KindServerStats:
		return "ServerStats"
	case KindDisconnectClient:
		return "DisconnectClient"
	case KindKillJob:
		return "KillJob"
	case KindShutdown:
		return "Shutdown"
	case KindConfigGet:
		return "ConfigGet"
	case KindConfigSet:
		return "ConfigSet"
	default:
		return "Unknown"
	}
}
