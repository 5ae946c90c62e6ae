package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/agentmatrix/core"
	"github.com/poiesic/agentmatrix/credential"
)

type usersDoc struct {
	Users []*core.User `json:"users"`
}

func (d *usersDoc) normalize() {
	if d.Users == nil {
		d.Users = []*core.User{}
	}
}

func (d *usersDoc) findByEmail(tenantID, email string) *core.User {
	for _, u := range d.Users {
		if u.TenantID == tenantID && u.Email == email {
			return u
		}
	}
	return nil
}

// UpsertUser creates the user identified by (tenant, email), or resets the
// password and role of the existing one.
func (s *Store) UpsertUser(ctx context.Context, tenantID, email, password string, role core.Role) (*core.User, error) {
	email = strings.TrimSpace(email)
	switch {
	case strings.TrimSpace(tenantID) == "":
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, core.ErrEmptyTenant)
	case email == "":
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, core.ErrEmptyEmail)
	}
	if err := core.ValidateRole(role); err != nil {
		return nil, err
	}
	hash, err := credential.HashWithRounds(password, s.hashRounds)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, err)
	}

	l := s.lock(usersCollection)
	l.Lock()
	defer l.Unlock()

	var result *core.User
	_, _, err = update(ctx, s, usersCollection, func(doc *usersDoc) error {
		if user := doc.findByEmail(tenantID, email); user != nil {
			user.PasswordHash = hash
			user.Role = role
			user.UpdatedAt = core.NowPtr()
			result = user
			return nil
		}
		result = &core.User{
			ID:           core.NewID(),
			TenantID:     tenantID,
			Email:        email,
			PasswordHash: hash,
			Role:         role,
			CreatedAt:    core.Now(),
		}
		doc.Users = append(doc.Users, result)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user upserted", "tenant", tenantID, "user", result.ID, "role", role)
	return result, nil
}

// Authenticate returns the user when email and password match.
// Unknown emails and wrong passwords both fail with ErrInvalidCredentials.
func (s *Store) Authenticate(ctx context.Context, tenantID, email, password string) (*core.User, error) {
	doc, _, err := loadDoc[usersDoc](ctx, s.backend, usersCollection)
	if err != nil {
		return nil, err
	}
	user := doc.findByEmail(tenantID, strings.TrimSpace(email))
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	ok, err := credential.Verify(password, user.PasswordHash)
	if err != nil {
		s.logger.Warn("unreadable password hash", "tenant", tenantID, "user", user.ID, "err", err)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUser returns a user of the tenant by id.
func (s *Store) GetUser(ctx context.Context, tenantID, userID string) (*core.User, error) {
	doc, _, err := loadDoc[usersDoc](ctx, s.backend, usersCollection)
	if err != nil {
		return nil, err
	}
	for _, u := range doc.Users {
		if u.TenantID == tenantID && u.ID == userID {
			return u, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
}
