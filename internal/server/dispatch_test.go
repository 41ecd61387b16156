package server

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"

	"github.com/garrison-chat/garrison/internal/auth"
	"github.com/garrison-chat/garrison/internal/barrack"
	"github.com/garrison-chat/garrison/internal/database"
	"github.com/garrison-chat/garrison/internal/messagestore"
	"github.com/garrison-chat/garrison/internal/stats"
	"github.com/garrison-chat/garrison/internal/testutil"
	"github.com/garrison-chat/garrison/internal/types"
)

func newTestDispatcher(t *testing.T, store *database.MockStore) *Dispatcher {
	t.Helper()

	logger := testutil.TestLogger(t)
	authMgr := auth.NewManager(logger, store)
	barracks := barrack.NewManager(logger, store, &messagestore.MockMessageStore{}, stats.NopRecorder{}, 16, 100)
	t.Cleanup(barracks.Close)

	rooms := NewRoomRegistry(logger, stats.NopRecorder{})
	router := newCommandRouter(logger, authMgr, barracks, rooms)

	d := NewDispatcher(logger, router, stats.NopRecorder{}, 2)
	t.Cleanup(d.Close)
	return d
}

func TestDispatcherSubmit(t *testing.T) {
	t.Run("missing type rejected synchronously", func(t *testing.T) {
		d := newTestDispatcher(t, &database.MockStore{})
		sess := newTestSession(1)

		d.Submit(sess, ClientEnvelope{})

		env := recvFrame(t, sess)
		assert.Equal(t, TypeErrorMessage, env.Type)
		assert.Equal(t, errCodeInvalidJSON, env.Payload.(ErrorPayload).ErrorCode)
	})

	t.Run("missing payload rejected synchronously", func(t *testing.T) {
		d := newTestDispatcher(t, &database.MockStore{})
		sess := newTestSession(1)

		d.Submit(sess, ClientEnvelope{Type: CmdLogin})

		env := recvFrame(t, sess)
		assert.Equal(t, TypeErrorMessage, env.Type)
		assert.Equal(t, string(types.ErrCodeInvalidData), env.Payload.(ErrorPayload).ErrorCode)
	})

	t.Run("unknown command rejected", func(t *testing.T) {
		d := newTestDispatcher(t, &database.MockStore{})
		sess := newTestSession(1)

		d.Submit(sess, ClientEnvelope{Type: "TELEPORT"})

		env := recvFrame(t, sess)
		assert.Equal(t, TypeErrorMessage, env.Type)
		assert.Equal(t, errCodeUnknownCommand, env.Payload.(ErrorPayload).ErrorCode)
	})

	t.Run("unauthenticated command rejected", func(t *testing.T) {
		d := newTestDispatcher(t, &database.MockStore{})
		sess := newTestSession(1)

		d.Submit(sess, ClientEnvelope{
			Type:    CmdCreateBarrack,
			Payload: json.RawMessage(`{"barrack_name":"mess-hall"}`),
		})

		env := recvFrame(t, sess)
		assert.Equal(t, TypeErrorMessage, env.Type)
		assert.Equal(t, string(types.ErrCodeInvalidToken), env.Payload.(ErrorPayload).ErrorCode)
	})

	t.Run("payload validation failure rejected", func(t *testing.T) {
		d := newTestDispatcher(t, &database.MockStore{})
		sess := newTestSession(1)
		sess.Authenticate("u-1", "tok")

		d.Submit(sess, ClientEnvelope{
			Type:    CmdJoinBarrack,
			Payload: json.RawMessage(`{"password":"x"}`),
		})

		env := recvFrame(t, sess)
		assert.Equal(t, TypeErrorMessage, env.Type)
		assert.Equal(t, string(types.ErrCodeInvalidData), env.Payload.(ErrorPayload).ErrorCode)
	})

	t.Run("malformed payload rejected", func(t *testing.T) {
		d := newTestDispatcher(t, &database.MockStore{})
		sess := newTestSession(1)
		sess.Authenticate("u-1", "tok")

		d.Submit(sess, ClientEnvelope{
			Type:    CmdJoinBarrack,
			Payload: json.RawMessage(`{"barrack_id":42}`),
		})

		env := recvFrame(t, sess)
		assert.Equal(t, TypeErrorMessage, env.Type)
		assert.Equal(t, errCodeInvalidJSON, env.Payload.(ErrorPayload).ErrorCode)
	})

	t.Run("valid command executes on the pool", func(t *testing.T) {
		store := &database.MockStore{}
		store.On("GetUserByUsername", "alice").
			Return(types.UserAccount{}, types.NewError(types.ErrCodeUserNotFound, "user not found"))

		d := newTestDispatcher(t, store)
		sess := newTestSession(1)

		d.Submit(sess, ClientEnvelope{
			Type:    CmdLogin,
			Payload: json.RawMessage(`{"username":"alice","password":"secret"}`),
		})

		env := recvFrame(t, sess)
		assert.Equal(t, TypeAuthFailure, env.Type)
		assert.Equal(t, string(types.ErrCodeInvalidCredentials), env.Payload.(ErrorPayload).ErrorCode)
	})
}
