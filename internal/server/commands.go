package server

import (
	"github.com/rs/zerolog"

	"github.com/garrison-chat/garrison/internal/auth"
	"github.com/garrison-chat/garrison/internal/barrack"
	"github.com/garrison-chat/garrison/internal/types"
)

// commandRouter binds each command to one domain operation and shapes
// the reply. Requester identity always comes from the session's
// authenticated user, never from the payload.
type commandRouter struct {
	log      zerolog.Logger
	auth     *auth.Manager
	barracks *barrack.Manager
	rooms    *RoomRegistry
}

func newCommandRouter(logger zerolog.Logger, authMgr *auth.Manager, barracks *barrack.Manager, rooms *RoomRegistry) *commandRouter {
	return &commandRouter{
		log:      logger.With().Str("component", "commands").Logger(),
		auth:     authMgr,
		barracks: barracks,
		rooms:    rooms,
	}
}

func (cr *commandRouter) login(sess *Session, p LoginPayload) {
	seq := sess.NextSequenceId()

	userId, token, err := cr.auth.Authenticate(p.Username, p.Password)
	if err != nil {
		sess.Queue(failureEnvelope(TypeAuthFailure, seq, err))
		return
	}

	sess.Authenticate(userId, token)
	sess.Queue(newEnvelope(TypeAuthSuccess, seq, AuthSuccessPayload{
		UserId:   userId,
		Username: p.Username,
		Token:    token,
	}))
}

func (cr *commandRouter) createUser(sess *Session, p CreateUserPayload) {
	seq := sess.NextSequenceId()

	userId, token, err := cr.auth.CreateAccount(p.Username, p.Password)
	if err != nil {
		sess.Queue(failureEnvelope(TypeAuthFailure, seq, err))
		return
	}

	sess.Authenticate(userId, token)
	sess.Queue(newEnvelope(TypeAuthSuccess, seq, AuthSuccessPayload{
		UserId:   userId,
		Username: p.Username,
		Token:    token,
	}))
}

// logout invalidates the session's token and drops it from every room.
// Logging out an unauthenticated session still succeeds.
func (cr *commandRouter) logout(sess *Session) {
	seq := sess.NextSequenceId()

	if token := sess.ClearAuth(); token != "" {
		cr.auth.InvalidateToken(token)
	}
	cr.rooms.LeaveAll(sess.Id())

	sess.Queue(newEnvelope(TypeLogoutSuccess, seq, nil))
}

func (cr *commandRouter) getUser(sess *Session, _ string, p GetUserPayload) {
	seq := sess.NextSequenceId()

	username, err := cr.auth.GetUsername(p.UserId)
	if err != nil {
		sess.Queue(failureEnvelope(TypeErrorMessage, seq, err))
		return
	}

	sess.Queue(newEnvelope(TypeGetUserName, seq, UserNamePayload{
		UserId:   p.UserId,
		Username: username,
	}))
}

func (cr *commandRouter) createBarrack(sess *Session, userId string, p CreateBarrackPayload) {
	seq := sess.NextSequenceId()

	b, err := cr.barracks.CreateBarrack(userId, p.BarrackName, p.IsPrivate, p.Password)
	if err != nil {
		sess.Queue(failureEnvelope(TypeCreateBarrackFailure, seq, err))
		return
	}

	sess.Queue(newEnvelope(TypeCreateBarrackSuccess, seq, barrackPayload(b)))
}

func (cr *commandRouter) destroyBarrack(sess *Session, userId string, p DestroyBarrackPayload) {
	seq := sess.NextSequenceId()

	if err := cr.barracks.DestroyBarrack(userId, p.BarrackId); err != nil {
		sess.Queue(failureEnvelope(TypeDestroyBarrackFailure, seq, err))
		return
	}

	cr.rooms.Remove(p.BarrackId)
	sess.Queue(newEnvelope(TypeDestroyBarrackSuccess, seq, DestroyBarrackPayload{BarrackId: p.BarrackId}))
}

func (cr *commandRouter) joinBarrack(sess *Session, userId string, p JoinBarrackPayload) {
	seq := sess.NextSequenceId()

	b, err := cr.barracks.JoinBarrack(userId, p.BarrackId, p.Password)
	if err != nil {
		// an existing member rejoining after a reconnect still gets
		// live delivery restored before the failure reply
		if types.CodeOf(err) == types.ErrCodeDuplicateEntry {
			cr.rooms.GetOrCreate(p.BarrackId).Join(sess)
		}
		sess.Queue(failureEnvelope(TypeJoinBarrackFailure, seq, err))
		return
	}

	cr.rooms.GetOrCreate(p.BarrackId).Join(sess)
	sess.Queue(newEnvelope(TypeJoinBarrackSuccess, seq, barrackPayload(b)))

	cr.rooms.Broadcast(p.BarrackId, ServerEnvelope{
		Type: TypeUserJoinedNotify,
		Payload: PresencePayload{
			BarrackId: p.BarrackId,
			UserId:    userId,
			Username:  cr.username(userId),
		},
	}, sess.Id())
}

func (cr *commandRouter) leaveBarrack(sess *Session, userId string, p LeaveBarrackPayload) {
	seq := sess.NextSequenceId()

	if err := cr.barracks.LeaveBarrack(userId, p.BarrackId); err != nil {
		sess.Queue(failureEnvelope(TypeLeaveBarrackFailure, seq, err))
		return
	}

	cr.rooms.Leave(p.BarrackId, sess.Id())
	sess.Queue(newEnvelope(TypeLeaveBarrackSuccess, seq, LeaveBarrackPayload{BarrackId: p.BarrackId}))

	cr.rooms.Broadcast(p.BarrackId, ServerEnvelope{
		Type: TypeUserLeftNotify,
		Payload: PresencePayload{
			BarrackId: p.BarrackId,
			UserId:    userId,
			Username:  cr.username(userId),
		},
	}, sess.Id())
}

func (cr *commandRouter) messageBarrack(sess *Session, userId string, p MessageBarrackPayload) {
	seq := sess.NextSequenceId()

	msg, err := cr.barracks.MessageBarrack(userId, p.BarrackId, p.Content)
	if err != nil {
		sess.Queue(failureEnvelope(TypeMessageBarrackFailure, seq, err))
		return
	}

	payload := messagePayload(msg, cr.username(userId))
	sess.Queue(newEnvelope(TypeMessageBarrackSuccess, seq, payload))

	// the sender already holds the message via the success reply
	cr.rooms.Broadcast(p.BarrackId, ServerEnvelope{
		Type:    TypeReceiveMessage,
		Payload: payload,
	}, sess.Id())
}

func (cr *commandRouter) getBarrack(sess *Session, _ string, p GetBarrackPayload) {
	seq := sess.NextSequenceId()

	b, err := cr.barracks.GetBarrack(p.BarrackId)
	if err != nil {
		sess.Queue(failureEnvelope(TypeErrorMessage, seq, err))
		return
	}

	sess.Queue(newEnvelope(TypeGetBarrackResponse, seq, barrackPayload(b)))
}

func (cr *commandRouter) getBarracks(sess *Session) {
	seq := sess.NextSequenceId()

	summaries, err := cr.barracks.ListBarracks()
	if err != nil {
		sess.Queue(failureEnvelope(TypeErrorMessage, seq, err))
		return
	}

	sess.Queue(newEnvelope(TypeListBarrackResponse, seq, BarrackListPayload{Barracks: summaries}))
}

func (cr *commandRouter) getBarrackMember(sess *Session, _ string, p GetBarrackMemberPayload) {
	seq := sess.NextSequenceId()

	member, err := cr.barracks.GetBarrackMember(p.BarrackId, p.UserId)
	if err != nil {
		sess.Queue(failureEnvelope(TypeErrorMessage, seq, err))
		return
	}

	sess.Queue(newEnvelope(TypeBarrackMemberResponse, seq, MemberPayload{
		BarrackId: member.BarrackId,
		UserId:    member.UserId,
	}))
}

func (cr *commandRouter) getBarrackMembers(sess *Session, _ string, p GetBarrackMembersPayload) {
	seq := sess.NextSequenceId()

	members, err := cr.barracks.GetBarrackMembers(p.BarrackId)
	if err != nil {
		sess.Queue(failureEnvelope(TypeErrorMessage, seq, err))
		return
	}

	out := make([]MemberPayload, 0, len(members))
	for _, m := range members {
		out = append(out, MemberPayload{BarrackId: m.BarrackId, UserId: m.UserId})
	}
	sess.Queue(newEnvelope(TypeBarrackMembersResponse, seq, MemberListPayload{
		BarrackId: p.BarrackId,
		Members:   out,
	}))
}

func (cr *commandRouter) getBarrackMessages(sess *Session, _ string, p GetBarrackMessagesPayload) {
	seq := sess.NextSequenceId()

	msgs, err := cr.barracks.GetBarrackMessages(p.BarrackId, p.Limit)
	if err != nil {
		sess.Queue(failureEnvelope(TypeErrorMessage, seq, err))
		return
	}

	out := make([]MessagePayload, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messagePayload(m, cr.username(m.SenderUserId)))
	}
	sess.Queue(newEnvelope(TypeBarrackMessagesResp, seq, MessageListPayload{
		BarrackId: p.BarrackId,
		Messages:  out,
	}))
}

// username resolves best effort; an unresolvable id leaves the name
// empty rather than failing the command.
func (cr *commandRouter) username(userId string) string {
	name, err := cr.auth.GetUsername(userId)
	if err != nil {
		cr.log.Debug().Err(err).Str("user_id", userId).Msg("failed to resolve username")
		return ""
	}
	return name
}
