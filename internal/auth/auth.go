// Package auth registers users, verifies their credentials and resolves the
// bearer tokens that identify them on later requests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/justestif/listify/internal/apperr"
	"github.com/justestif/listify/internal/credentials"
	"github.com/justestif/listify/internal/db"
)

var (
	// ErrInvalidCredentials is the single failure login reports, whichever check failed.
	ErrInvalidCredentials = apperr.Auth("Invalid email or password")

	errUserNotFound = apperr.NotFound("User not found")
)

// Service implements registration, login and profile lookup.
type Service struct {
	users     db.UserRepository
	playlists db.PlaylistRepository
	hasher    credentials.Hasher
	tokens    credentials.TokenIssuer
	logger    *log.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewService wires the service to its store and credential primitives.
func NewService(store db.Store, hasher credentials.Hasher, tokens credentials.TokenIssuer, logger *log.Logger) *Service {
	return &Service{
		users:     store.Users(),
		playlists: store.Playlists(),
		hasher:    hasher,
		tokens:    tokens,
		logger:    logger,
	}
}

// RegisterInput is the body of a registration request.
type RegisterInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Image    string `json:"image"`
}

// LoginInput is the body of a login request.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Session is an authenticated user together with the token that proves it.
type Session struct {
	User        *db.User
	PlaylistIDs []string // oldest first
	Token       string
}

// Profile is a user with their playlists, oldest first.
type Profile struct {
	User      *db.User
	Playlists []db.Playlist
}

// Register creates an account and signs the new user in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := apperr.Validate(in, "Name, email, and password are required"); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.internal("register", err)
	}

	user := &db.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Image:        in.Image,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, apperr.Conflict("User with this email already exists", nil)
		}
		return nil, s.internal("register", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return s.session(user, []string{})
}

// Login checks the email and password and issues a fresh token.
// Unknown emails and wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = normalizeEmail(in.Email)
	if err := apperr.Validate(in, "Email and password are required"); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if errors.Is(err, db.ErrNotFound) {
		// burn the same bcrypt time as a real comparison
		_ = s.hasher.Verify(s.dummy(), in.Password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, s.internal("login", err)
	}

	if err := s.hasher.Verify(user.PasswordHash, in.Password); err != nil {
		if errors.Is(err, credentials.ErrMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, s.internal("login", err)
	}

	playlists, err := s.playlists.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, s.internal("login", err)
	}
	ids := make([]string, len(playlists))
	for i, p := range playlists {
		ids[i] = p.ID
	}
	return s.session(user, ids)
}

// Profile returns the user and their playlists.
func (s *Service) Profile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.users.Get(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, s.internal("profile", err)
	}

	playlists, err := s.playlists.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.internal("profile", err)
	}
	if playlists == nil {
		playlists = []db.Playlist{}
	}
	return &Profile{User: user, Playlists: playlists}, nil
}

// Authenticate resolves a bearer token to the user ID it was issued for.
func (s *Service) Authenticate(token string) (string, error) {
	if token == "" {
		return "", apperr.Auth("Access token required")
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.Debug("rejected token", "err", err)
		return "", apperr.Auth("Invalid or expired token")
	}
	return claims.UserID, nil
}

func (s *Service) session(user *db.User, playlistIDs []string) (*Session, error) {
	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, s.internal("issue token", err)
	}
	return &Session{User: user, PlaylistIDs: playlistIDs, Token: token}, nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("listify-timing-equaliser")
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

func (s *Service) internal(op string, err error) error {
	s.logger.Error("auth operation failed", "op", op, "err", err)
	return fmt.Errorf("%s: %w", op, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
