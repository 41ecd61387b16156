package server

import (
	"github.com/goccy/go-json"

	"github.com/garrison-chat/garrison/internal/database"
	"github.com/garrison-chat/garrison/internal/types"
)

// Client to server envelope. The payload shape depends on Type.
type ClientEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Server to client envelope. SequenceId is per session, strictly
// increasing across every frame the session emits.
type ServerEnvelope struct {
	Type       string `json:"type"`
	SequenceId uint64 `json:"sequence_id"`
	Payload    any    `json:"payload,omitempty"`
}

const (
	CmdLogin              = "LOGIN"
	CmdCreateUser         = "CREATEUSER"
	CmdLogout             = "LOGOUT"
	CmdGetUser            = "GETUSER"
	CmdCreateBarrack      = "CREATEBARRACK"
	CmdDestroyBarrack     = "DESTROYBARRACK"
	CmdJoinBarrack        = "JOINBARRACK"
	CmdLeaveBarrack       = "LEAVEBARRACK"
	CmdMessageBarrack     = "MESSAGEBARRACK"
	CmdGetBarrack         = "GETBARRACK"
	CmdGetBarracks        = "GETBARRACKS"
	CmdGetBarrackMember   = "GETBARRACKMEMBER"
	CmdGetBarrackMembers  = "GETBARRACKMEMBERS"
	CmdGetBarrackMessages = "GETBARRACKMESSAGES"
)

const (
	TypeAuthSuccess            = "AUTH_SUCCESS"
	TypeAuthFailure            = "AUTH_FAILURE"
	TypeLogoutSuccess          = "LOGOUT_SUCCESS"
	TypeGetUserName            = "GET_USER_NAME"
	TypeCreateBarrackSuccess   = "CREATE_BARRACK_SUCCESS"
	TypeCreateBarrackFailure   = "CREATE_BARRACK_FAILURE"
	TypeDestroyBarrackSuccess  = "DESTROY_BARRACK_SUCCESS"
	TypeDestroyBarrackFailure  = "DESTROY_BARRACK_FAILURE"
	TypeJoinBarrackSuccess     = "JOIN_BARRACK_SUCCESS"
	TypeJoinBarrackFailure     = "JOIN_BARRACK_FAILURE"
	TypeLeaveBarrackSuccess    = "LEAVE_BARRACK_SUCCESS"
	TypeLeaveBarrackFailure    = "LEAVE_BARRACK_FAILURE"
	TypeMessageBarrackSuccess  = "MESSAGE_BARRACK_SUCCESS"
	TypeMessageBarrackFailure  = "MESSAGE_BARRACK_FAILURE"
	TypeListBarrackResponse    = "LIST_BARRACK_RESPONSE"
	TypeGetBarrackResponse     = "GET_BARRACK_RESPONSE"
	TypeBarrackMemberResponse  = "GET_BARRACK_MEMBER_RESPONSE"
	TypeBarrackMembersResponse = "GET_BARRACK_MEMBERS_RESPONSE"
	TypeBarrackMessagesResp    = "GET_BARRACK_MESSAGES_RESPONSE"
	TypeReceiveMessage         = "RECEIVE_MESSAGE_BROADCAST"
	TypeUserJoinedNotify       = "USER_JOINED_BARRACK_NOTIFY"
	TypeUserLeftNotify         = "USER_LEFT_BARRACK_NOTIFY"
	TypeErrorMessage           = "ERROR_MESSAGE"
)

// Wire-level error codes carried alongside the domain taxonomy.
const (
	errCodeInvalidJSON    = "INVALID_JSON"
	errCodeUnknownCommand = "UNKNOWN_COMMAND"
	errCodeServerBusy     = "SERVER_BUSY"
)

type LoginPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type CreateUserPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type GetUserPayload struct {
	UserId string `json:"user_id" validate:"required"`
}

type CreateBarrackPayload struct {
	BarrackName string `json:"barrack_name" validate:"required"`
	IsPrivate   bool   `json:"is_private"`
	Password    string `json:"password"`
}

type DestroyBarrackPayload struct {
	BarrackId string `json:"barrack_id" validate:"required"`
}

type JoinBarrackPayload struct {
	BarrackId string `json:"barrack_id" validate:"required"`
	Password  string `json:"password"`
}

type LeaveBarrackPayload struct {
	BarrackId string `json:"barrack_id" validate:"required"`
}

type MessageBarrackPayload struct {
	BarrackId string `json:"barrack_id" validate:"required"`
	Content   string `json:"content" validate:"required"`
}

type GetBarrackPayload struct {
	BarrackId string `json:"barrack_id" validate:"required"`
}

type GetBarrackMemberPayload struct {
	BarrackId string `json:"barrack_id" validate:"required"`
	UserId    string `json:"user_id" validate:"required"`
}

type GetBarrackMembersPayload struct {
	BarrackId string `json:"barrack_id" validate:"required"`
}

type GetBarrackMessagesPayload struct {
	BarrackId string `json:"barrack_id" validate:"required"`
	Limit     int    `json:"limit" validate:"gte=0"`
}

type ErrorPayload struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

type AuthSuccessPayload struct {
	UserId   string `json:"user_id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

type UserNamePayload struct {
	UserId   string `json:"user_id"`
	Username string `json:"username"`
}

type BarrackPayload struct {
	BarrackId   string `json:"barrack_id"`
	BarrackName string `json:"barrack_name"`
	AdminId     string `json:"admin_id"`
	IsPrivate   bool   `json:"is_private"`
}

type BarrackListPayload struct {
	Barracks []database.BarrackSummary `json:"barracks"`
}

type MemberPayload struct {
	BarrackId string `json:"barrack_id"`
	UserId    string `json:"user_id"`
}

type MemberListPayload struct {
	BarrackId string          `json:"barrack_id"`
	Members   []MemberPayload `json:"members"`
}

type MessagePayload struct {
	MessageId      string `json:"message_id"`
	BarrackId      string `json:"barrack_id"`
	SenderUserId   string `json:"sender_user_id"`
	SenderUsername string `json:"sender_username,omitempty"`
	Content        string `json:"content"`
	SentAt         string `json:"sent_at"`
}

type MessageListPayload struct {
	BarrackId string           `json:"barrack_id"`
	Messages  []MessagePayload `json:"messages"`
}

type PresencePayload struct {
	BarrackId string `json:"barrack_id"`
	UserId    string `json:"user_id"`
	Username  string `json:"username,omitempty"`
}

func newEnvelope(msgType string, seq uint64, payload any) ServerEnvelope {
	return ServerEnvelope{Type: msgType, SequenceId: seq, Payload: payload}
}

func errorEnvelope(seq uint64, code, msg string) ServerEnvelope {
	return newEnvelope(TypeErrorMessage, seq, ErrorPayload{ErrorCode: code, Message: msg})
}

// failureEnvelope maps a domain error onto a command-specific failure
// reply carrying the taxonomy code.
func failureEnvelope(msgType string, seq uint64, err error) ServerEnvelope {
	payload := ErrorPayload{
		ErrorCode: string(types.CodeOf(err)),
		Message:   err.Error(),
	}
	return newEnvelope(msgType, seq, payload)
}

func barrackPayload(b types.Barrack) BarrackPayload {
	return BarrackPayload{
		BarrackId:   b.Id,
		BarrackName: b.Name,
		AdminId:     b.AdminId,
		IsPrivate:   b.IsPrivate,
	}
}

func messagePayload(msg types.ChatMessage, senderName string) MessagePayload {
	return MessagePayload{
		MessageId:      msg.MessageId,
		BarrackId:      msg.BarrackId,
		SenderUserId:   msg.SenderUserId,
		SenderUsername: senderName,
		Content:        msg.Content,
		SentAt:         msg.SentAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}
