package messagestore

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrison-chat/garrison/internal/testutil"
	"github.com/garrison-chat/garrison/internal/types"
)

func openTestStore(t *testing.T) *BadgerStore {
	t.Helper()

	s, err := Open("", testutil.TestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func appendN(t *testing.T, s *BadgerStore, barrackId string, n int) []types.ChatMessage {
	t.Helper()

	msgs := make([]types.ChatMessage, 0, n)
	for i := 0; i < n; i++ {
		id, err := uuid.NewV7()
		require.NoError(t, err)

		msg := types.ChatMessage{
			MessageId:    id.String(),
			BarrackId:    barrackId,
			SenderUserId: "u-1",
			Content:      fmt.Sprintf("message %d", i),
			SentAt:       types.Now(),
		}
		require.NoError(t, s.Append(msg))
		msgs = append(msgs, msg)
	}
	return msgs
}

func TestFetchNewestFirst(t *testing.T) {
	s := openTestStore(t)
	written := appendN(t, s, "b-1", 5)

	got, err := s.Fetch("b-1", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, written[4], got[0])
	assert.Equal(t, written[3], got[1])
	assert.Equal(t, written[2], got[2])
}

func TestFetchScopedToBarrack(t *testing.T) {
	s := openTestStore(t)
	appendN(t, s, "b-1", 3)
	other := appendN(t, s, "b-2", 1)

	got, err := s.Fetch("b-2", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, other[0], got[0])
}

func TestFetchEmptyBarrack(t *testing.T) {
	s := openTestStore(t)

	got, err := s.Fetch("nope", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeleteBarrackMessages(t *testing.T) {
	s := openTestStore(t)
	appendN(t, s, "b-1", 4)
	appendN(t, s, "b-2", 2)

	require.NoError(t, s.DeleteBarrackMessages("b-1"))

	got, err := s.Fetch("b-1", 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	// other barracks untouched
	got, err = s.Fetch("b-2", 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// deleting again is a no-op
	require.NoError(t, s.DeleteBarrackMessages("b-1"))
}
