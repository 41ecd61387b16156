package server

import (
	"runtime/debug"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/garrison-chat/garrison/internal/stats"
	"github.com/garrison-chat/garrison/internal/types"
)

const taskQueueSize = 512

type task struct {
	sess *Session
	env  ClientEnvelope
}

// Dispatcher validates incoming envelopes and executes commands on a
// fixed worker pool. Malformed envelopes are rejected synchronously on
// the submitting goroutine; well-formed ones are queued.
type Dispatcher struct {
	log      zerolog.Logger
	stats    stats.Recorder
	validate *validator.Validate
	router   *commandRouter

	tasks chan task
	wg    sync.WaitGroup
}

func NewDispatcher(logger zerolog.Logger, router *commandRouter, rec stats.Recorder, workers int) *Dispatcher {
	d := &Dispatcher{
		log:      logger.With().Str("component", "dispatch").Logger(),
		stats:    rec,
		validate: validator.New(),
		router:   router,
		tasks:    make(chan task, taskQueueSize),
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}

	return d
}

// Submit hands one parsed envelope to the pool. A missing type, an
// unknown command or a full queue is answered immediately with an
// error frame; the connection stays open.
func (d *Dispatcher) Submit(sess *Session, env ClientEnvelope) {
	if env.Type == "" {
		d.stats.CommandRejected("missing_type")
		sess.Queue(errorEnvelope(sess.NextSequenceId(), errCodeInvalidJSON, "missing message type"))
		return
	}

	if !knownCommand(env.Type) {
		d.stats.CommandRejected("unknown_command")
		sess.Queue(errorEnvelope(sess.NextSequenceId(), errCodeUnknownCommand, "unknown command: "+env.Type))
		return
	}

	if len(env.Payload) == 0 && commandNeedsPayload(env.Type) {
		d.stats.CommandRejected("missing_payload")
		sess.Queue(errorEnvelope(sess.NextSequenceId(), string(types.ErrCodeInvalidData), "missing payload"))
		return
	}

	select {
	case d.tasks <- task{sess: sess, env: env}:
	default:
		d.stats.CommandRejected("queue_full")
		sess.Queue(errorEnvelope(sess.NextSequenceId(), errCodeServerBusy, "server busy"))
	}
}

// Close stops accepting work and waits for in-flight commands.
func (d *Dispatcher) Close() {
	close(d.tasks)
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for t := range d.tasks {
		d.execute(t)
	}
}

func (d *Dispatcher) execute(t task) {
	defer func() {
		if r := recover(); r != nil {
			d.stats.CommandRejected("panic")
			d.log.Error().
				Interface("panic", r).
				Str("type", t.env.Type).
				Bytes("stack", debug.Stack()).
				Msg("command handler panicked")
			t.sess.Queue(errorEnvelope(t.sess.NextSequenceId(), string(types.ErrCodeDatabase), "internal error"))
		}
	}()

	d.stats.CommandDispatched(t.env.Type)
	d.log.Debug().Uint64("session_id", t.sess.Id()).Str("type", t.env.Type).Msg("executing command")

	switch t.env.Type {
	case CmdLogin:
		runCommand(d, t, d.router.login)
	case CmdCreateUser:
		runCommand(d, t, d.router.createUser)
	case CmdLogout:
		d.router.logout(t.sess)
	case CmdGetUser:
		runAuthedCommand(d, t, d.router.getUser)
	case CmdCreateBarrack:
		runAuthedCommand(d, t, d.router.createBarrack)
	case CmdDestroyBarrack:
		runAuthedCommand(d, t, d.router.destroyBarrack)
	case CmdJoinBarrack:
		runAuthedCommand(d, t, d.router.joinBarrack)
	case CmdLeaveBarrack:
		runAuthedCommand(d, t, d.router.leaveBarrack)
	case CmdMessageBarrack:
		runAuthedCommand(d, t, d.router.messageBarrack)
	case CmdGetBarrack:
		runAuthedCommand(d, t, d.router.getBarrack)
	case CmdGetBarracks:
		d.requireAuth(t.sess, func(string) {
			d.router.getBarracks(t.sess)
		})
	case CmdGetBarrackMember:
		runAuthedCommand(d, t, d.router.getBarrackMember)
	case CmdGetBarrackMembers:
		runAuthedCommand(d, t, d.router.getBarrackMembers)
	case CmdGetBarrackMessages:
		runAuthedCommand(d, t, d.router.getBarrackMessages)
	}
}

// runCommand decodes and validates the payload, then invokes handle.
func runCommand[T any](d *Dispatcher, t task, handle func(*Session, T)) {
	var payload T
	if len(t.env.Payload) > 0 {
		if err := json.Unmarshal(t.env.Payload, &payload); err != nil {
			d.stats.CommandRejected("bad_payload")
			t.sess.Queue(errorEnvelope(t.sess.NextSequenceId(), errCodeInvalidJSON, "malformed payload"))
			return
		}
	}

	if err := d.validate.Struct(payload); err != nil {
		d.stats.CommandRejected("invalid_payload")
		t.sess.Queue(errorEnvelope(t.sess.NextSequenceId(), string(types.ErrCodeInvalidData), "invalid payload: "+err.Error()))
		return
	}

	handle(t.sess, payload)
}

// runAuthedCommand additionally requires an authenticated session and
// passes the requester's user id to the handler.
func runAuthedCommand[T any](d *Dispatcher, t task, handle func(*Session, string, T)) {
	d.requireAuth(t.sess, func(userId string) {
		runCommand(d, t, func(sess *Session, payload T) {
			handle(sess, userId, payload)
		})
	})
}

func (d *Dispatcher) requireAuth(sess *Session, fn func(userId string)) {
	userId := sess.UserId()
	if userId == "" {
		d.stats.CommandRejected("unauthenticated")
		sess.Queue(errorEnvelope(sess.NextSequenceId(), string(types.ErrCodeInvalidToken), "not authenticated"))
		return
	}
	fn(userId)
}

// commandNeedsPayload reports whether the command carries a payload
// object; LOGOUT and GETBARRACKS take none.
func commandNeedsPayload(cmdType string) bool {
	switch cmdType {
	case CmdLogout, CmdGetBarracks:
		return false
	}
	return true
}

func knownCommand(cmdType string) bool {
	switch cmdType {
	case CmdLogin, CmdCreateUser, CmdLogout, CmdGetUser,
		CmdCreateBarrack, CmdDestroyBarrack, CmdJoinBarrack, CmdLeaveBarrack,
		CmdMessageBarrack, CmdGetBarrack, CmdGetBarracks,
		CmdGetBarrackMember, CmdGetBarrackMembers, CmdGetBarrackMessages:
		return true
	}
	return false
}
