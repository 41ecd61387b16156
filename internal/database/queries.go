package database

import (
	"github.com/goccy/go-json"

	"github.com/garrison-chat/garrison/internal/types"
)

func (s *PgStore) CreateUser(user types.UserAccount) error {
	_, err := s.conn.Exec(
		"INSERT INTO user_accounts (user_id, username, hashed_password, salt, created_at) "+
			"VALUES ($1, $2, $3, $4, $5)",
		user.Id,
		user.Username,
		user.HashedPassword,
		user.Salt,
		user.CreatedAt,
	)

	return translateErr(err, "create user", types.ErrCodeDatabase)
}

func (s *PgStore) GetUserByUsername(username string) (types.UserAccount, error) {
	row := s.conn.QueryRow(
		"SELECT user_id, username, hashed_password, salt, created_at FROM user_accounts "+
			"WHERE username = $1 LIMIT 1",
		username,
	)

	var u types.UserAccount
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.HashedPassword,
		&u.Salt,
		&u.CreatedAt,
	)

	return u, translateErr(err, "get user by username", types.ErrCodeUserNotFound)
}

func (s *PgStore) GetUserById(userId string) (types.UserAccount, error) {
	row := s.conn.QueryRow(
		"SELECT user_id, username, hashed_password, salt, created_at FROM user_accounts "+
			"WHERE user_id = $1 LIMIT 1",
		userId,
	)

	var u types.UserAccount
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.HashedPassword,
		&u.Salt,
		&u.CreatedAt,
	)

	return u, translateErr(err, "get user by id", types.ErrCodeUserNotFound)
}

func (s *PgStore) CreateBarrack(barrack types.Barrack) error {
	_, err := s.conn.Exec(
		"INSERT INTO barracks (barrack_id, barrack_name, admin_id, is_private, hashed_password, salt, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7)",
		barrack.Id,
		barrack.Name,
		barrack.AdminId,
		barrack.IsPrivate,
		barrack.HashedPassword,
		barrack.Salt,
		barrack.CreatedAt,
	)

	return translateErr(err, "create barrack", types.ErrCodeDatabase)
}

func (s *PgStore) GetBarrackById(barrackId string) (types.Barrack, error) {
	row := s.conn.QueryRow(
		"SELECT barrack_id, barrack_name, admin_id, is_private, hashed_password, salt, created_at "+
			"FROM barracks WHERE barrack_id = $1 LIMIT 1",
		barrackId,
	)

	var b types.Barrack
	err := row.Scan(
		&b.Id,
		&b.Name,
		&b.AdminId,
		&b.IsPrivate,
		&b.HashedPassword,
		&b.Salt,
		&b.CreatedAt,
	)

	return b, translateErr(err, "get barrack", types.ErrCodeNotFound)
}

func (s *PgStore) ListBarracks() ([]BarrackSummary, error) {
	rows, err := s.conn.Query(
		"SELECT b.barrack_id, b.barrack_name, COUNT(m.user_id) FROM barracks b " +
			"LEFT JOIN barrack_members m ON b.barrack_id = m.barrack_id " +
			"GROUP BY b.barrack_id, b.barrack_name ORDER BY b.barrack_name",
	)
	if err != nil {
		return nil, translateErr(err, "list barracks", types.ErrCodeDatabase)
	}
	defer rows.Close()

	summaries := make([]BarrackSummary, 0)
	for rows.Next() {
		var bs BarrackSummary
		if err := rows.Scan(&bs.Id, &bs.Name, &bs.MemberCount); err != nil {
			return nil, translateErr(err, "scan barrack summary", types.ErrCodeDatabase)
		}
		summaries = append(summaries, bs)
	}

	return summaries, translateErr(rows.Err(), "list barracks", types.ErrCodeDatabase)
}

// DestroyBarrack removes the barrack, its memberships and writes the
// BarrackDestroyed outbox event in a single transaction, so the event is
// visible to the relay iff the deletion committed.
func (s *PgStore) DestroyBarrack(barrackId string) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return translateErr(err, "begin destroy barrack", types.ErrCodeDatabase)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.Exec("DELETE FROM barracks WHERE barrack_id = $1", barrackId)
	if err != nil {
		return translateErr(err, "delete barrack", types.ErrCodeDatabase)
	}

	// membership rows go via ON DELETE CASCADE
	affected, err := res.RowsAffected()
	if err != nil {
		return translateErr(err, "delete barrack", types.ErrCodeDatabase)
	}
	if affected == 0 {
		err = types.NewError(types.ErrCodeNotFound, "barrack not found")
		return err
	}

	payload, err := json.Marshal(types.BarrackDestroyedPayload{BarrackId: barrackId})
	if err != nil {
		return types.WrapError(types.ErrCodeDatabase, "marshal outbox payload", err)
	}

	_, err = tx.Exec(
		"INSERT INTO event_outbox (event_type, payload, created_at) VALUES ($1, $2, $3)",
		types.EventBarrackDestroyed,
		payload,
		types.Now(),
	)
	if err != nil {
		return translateErr(err, "insert outbox event", types.ErrCodeDatabase)
	}

	err = tx.Commit()
	return translateErr(err, "commit destroy barrack", types.ErrCodeDatabase)
}

func (s *PgStore) AddBarrackMember(member types.BarrackMember) error {
	_, err := s.conn.Exec(
		"INSERT INTO barrack_members (barrack_id, user_id, joined_at) VALUES ($1, $2, $3)",
		member.BarrackId,
		member.UserId,
		member.JoinedAt,
	)

	// a duplicate insert surfaces as DUPLICATE_ENTRY ("already a member"),
	// not a generic database error
	return translateErr(err, "add barrack member", types.ErrCodeDatabase)
}

func (s *PgStore) RemoveBarrackMember(barrackId, userId string) error {
	res, err := s.conn.Exec(
		"DELETE FROM barrack_members WHERE barrack_id = $1 AND user_id = $2",
		barrackId,
		userId,
	)
	if err != nil {
		return translateErr(err, "remove barrack member", types.ErrCodeDatabase)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return translateErr(err, "remove barrack member", types.ErrCodeDatabase)
	}
	if affected == 0 {
		return types.NewError(types.ErrCodeMemberNotFound, "user is not a member of this barrack")
	}
	return nil
}

func (s *PgStore) GetBarrackMembers(barrackId string) ([]types.BarrackMember, error) {
	rows, err := s.conn.Query(
		"SELECT barrack_id, user_id, joined_at FROM barrack_members WHERE barrack_id = $1 ORDER BY joined_at",
		barrackId,
	)
	if err != nil {
		return nil, translateErr(err, "get barrack members", types.ErrCodeDatabase)
	}
	defer rows.Close()

	members := make([]types.BarrackMember, 0)
	for rows.Next() {
		var m types.BarrackMember
		if err := rows.Scan(&m.BarrackId, &m.UserId, &m.JoinedAt); err != nil {
			return nil, translateErr(err, "scan barrack member", types.ErrCodeDatabase)
		}
		members = append(members, m)
	}

	return members, translateErr(rows.Err(), "get barrack members", types.ErrCodeDatabase)
}

func (s *PgStore) GetUnprocessedOutboxEvents(limit int) ([]types.OutboxEvent, error) {
	rows, err := s.conn.Query(
		"SELECT event_id, event_type, payload, created_at FROM event_outbox "+
			"ORDER BY event_id LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, translateErr(err, "fetch outbox events", types.ErrCodeDatabase)
	}
	defer rows.Close()

	events := make([]types.OutboxEvent, 0, limit)
	for rows.Next() {
		var e types.OutboxEvent
		if err := rows.Scan(&e.EventId, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, translateErr(err, "scan outbox event", types.ErrCodeDatabase)
		}
		events = append(events, e)
	}

	return events, translateErr(rows.Err(), "fetch outbox events", types.ErrCodeDatabase)
}

func (s *PgStore) DeleteOutboxEvent(eventId int64) error {
	_, err := s.conn.Exec("DELETE FROM event_outbox WHERE event_id = $1", eventId)
	return translateErr(err, "delete outbox event", types.ErrCodeDatabase)
}
