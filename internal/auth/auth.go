// Package auth implements the credential and token service. Tokens are
// opaque random strings held only in process memory; a restart forces
// every client to authenticate again.
package auth

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/garrison-chat/garrison/internal/crypto"
	"github.com/garrison-chat/garrison/internal/database"
	"github.com/garrison-chat/garrison/internal/types"
)

type Manager struct {
	log   zerolog.Logger
	store database.Store

	// one lock guards both maps; token lookup is linear in live token
	// count, which is bounded by concurrently authenticated sessions
	mu        sync.Mutex
	tokens    map[string]string // token -> user id
	usernames map[string]string // user id -> username
}

func NewManager(logger zerolog.Logger, store database.Store) *Manager {
	return &Manager{
		log:       logger.With().Str("component", "auth").Logger(),
		store:     store,
		tokens:    make(map[string]string),
		usernames: make(map[string]string),
	}
}

// Authenticate verifies username/password and issues a fresh token.
func (m *Manager) Authenticate(username, password string) (string, string, error) {
	if username == "" || password == "" {
		return "", "", types.NewError(types.ErrCodeInvalidCredentials, "invalid credentials")
	}

	user, err := m.store.GetUserByUsername(username)
	if err != nil {
		if types.CodeOf(err) == types.ErrCodeUserNotFound {
			return "", "", types.NewError(types.ErrCodeInvalidCredentials, "invalid credentials")
		}
		return "", "", err
	}

	if !crypto.VerifyPassword(password, user.Salt, user.HashedPassword) {
		return "", "", types.NewError(types.ErrCodeInvalidPassword, "invalid password")
	}

	token, err := m.IssueToken(user.Id)
	if err != nil {
		return "", "", err
	}

	m.mu.Lock()
	m.usernames[user.Id] = user.Username
	m.mu.Unlock()

	m.log.Debug().Str("user_id", user.Id).Msg("user authenticated")
	return user.Id, token, nil
}

// CreateAccount registers a new user and issues a token for it.
func (m *Manager) CreateAccount(username, password string) (string, string, error) {
	if username == "" || password == "" {
		return "", "", types.NewError(types.ErrCodeInvalidCredentials, "invalid credentials")
	}

	if _, err := m.store.GetUserByUsername(username); err == nil {
		return "", "", types.NewError(types.ErrCodeUserAlreadyExists, "user already exists")
	} else if types.CodeOf(err) != types.ErrCodeUserNotFound {
		return "", "", err
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return "", "", types.WrapError(types.ErrCodeDatabase, "generate salt", err)
	}
	digest, err := crypto.HashPassword(password, salt)
	if err != nil {
		return "", "", types.WrapError(types.ErrCodeDatabase, "hash password", err)
	}

	user := types.UserAccount{
		Id:             uuid.NewString(),
		Username:       username,
		HashedPassword: digest,
		Salt:           salt,
		CreatedAt:      types.Now(),
	}

	if err := m.store.CreateUser(user); err != nil {
		if types.CodeOf(err) == types.ErrCodeDuplicateEntry {
			return "", "", types.NewError(types.ErrCodeUserAlreadyExists, "user already exists")
		}
		return "", "", err
	}

	token, err := m.IssueToken(user.Id)
	if err != nil {
		return "", "", err
	}

	m.mu.Lock()
	m.usernames[user.Id] = user.Username
	m.mu.Unlock()

	m.log.Info().Str("user_id", user.Id).Str("username", username).Msg("account created")
	return user.Id, token, nil
}

// IssueToken binds a new random token to userId. Prior tokens for the
// same user stay valid.
func (m *Manager) IssueToken(userId string) (string, error) {
	token, err := crypto.GenerateAuthToken(crypto.AuthTokenBytes)
	if err != nil {
		return "", types.WrapError(types.ErrCodeDatabase, "generate token", err)
	}

	m.mu.Lock()
	m.tokens[token] = userId
	m.mu.Unlock()

	return token, nil
}

func (m *Manager) ValidateToken(token string) (string, error) {
	m.mu.Lock()
	userId, ok := m.tokens[token]
	m.mu.Unlock()

	if !ok {
		return "", types.NewError(types.ErrCodeInvalidToken, "invalid token")
	}
	return userId, nil
}

// InvalidateToken is idempotent.
func (m *Manager) InvalidateToken(token string) {
	m.mu.Lock()
	delete(m.tokens, token)
	m.mu.Unlock()
}

// GetUsername resolves a user id, cache first, store on miss.
func (m *Manager) GetUsername(userId string) (string, error) {
	m.mu.Lock()
	name, ok := m.usernames[userId]
	m.mu.Unlock()
	if ok {
		return name, nil
	}

	user, err := m.store.GetUserById(userId)
	if err != nil {
		var te *types.Error
		if errors.As(err, &te) {
			return "", te
		}
		return "", types.WrapError(types.ErrCodeDatabase, "get user", err)
	}

	m.mu.Lock()
	m.usernames[user.Id] = user.Username
	m.mu.Unlock()

	return user.Username, nil
}
