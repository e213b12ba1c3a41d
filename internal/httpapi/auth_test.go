package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"cantina/backend/internal/domain"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	userStore := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      domain.RoleAdmin,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, userStore)
	_, err := manager.Login(domain.LoginRequest{
		Username: "admin",
		Password: "admin123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	users, err := userStore.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if users[0].Password == "admin123" {
		t.Fatalf("expected password to be upgraded from plain-text")
	}
	if !strings.HasPrefix(users[0].Password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", users[0].Password)
	}
}

func TestCreateEmployeeStoresPasswordHash(t *testing.T) {
	userStore := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      domain.RoleAdmin,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, userStore)
	employee, err := manager.CreateEmployee(domain.EmployeeCreateRequest{
		Username: "newhire",
		Password: "pass1234",
		Name:     "New Hire",
	})
	if err != nil {
		t.Fatalf("create employee failed: %v", err)
	}
	if employee.Username != "newhire" {
		t.Fatalf("unexpected username %s", employee.Username)
	}
	if employee.Role != domain.RoleEmployee {
		t.Fatalf("expected employee role, got %s", employee.Role)
	}

	users, err := userStore.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	var found *domain.UserAccount
	for i := range users {
		if users[i].Username == "newhire" {
			found = &users[i]
			break
		}
	}
	if found == nil {
		t.Fatalf("expected employee to be saved")
	}
	if found.Password == "pass1234" {
		t.Fatalf("expected employee password to be hashed")
	}
	if !strings.HasPrefix(found.Password, "$2") {
		t.Fatalf("expected bcrypt hash prefix, got %s", found.Password)
	}

	_, err = manager.Login(domain.LoginRequest{
		Username: "newhire",
		Password: "pass1234",
	})
	if err != nil {
		t.Fatalf("login with hashed employee failed: %v", err)
	}
}

func TestCreateEmployeeRejectsWeakInput(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, &userStoreStub{})

	if _, err := manager.CreateEmployee(domain.EmployeeCreateRequest{Username: "ab", Password: "pass1234"}); err == nil {
		t.Fatalf("expected short username to be rejected")
	}
	if _, err := manager.CreateEmployee(domain.EmployeeCreateRequest{Username: "newhire", Password: "123"}); err == nil {
		t.Fatalf("expected short password to be rejected")
	}
}

func TestUpdateEmployeePassword(t *testing.T) {
	userStore := &userStoreStub{}
	manager := NewAuthManager("test-secret", time.Hour, userStore)

	if _, err := manager.CreateEmployee(domain.EmployeeCreateRequest{
		Username: "newhire", Password: "firstpass",
	}); err != nil {
		t.Fatalf("create employee: %v", err)
	}

	if err := manager.UpdateEmployeePassword("newhire", "secondpass"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	if userStore.updates != 1 {
		t.Fatalf("expected password update persisted to the store, got %d updates", userStore.updates)
	}

	if _, err := manager.Login(domain.LoginRequest{Username: "newhire", Password: "firstpass"}); err == nil {
		t.Fatalf("old password should no longer work")
	}
	if _, err := manager.Login(domain.LoginRequest{Username: "newhire", Password: "secondpass"}); err != nil {
		t.Fatalf("new password should work: %v", err)
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, &userStoreStub{})

	token, err := manager.sign("admin", domain.RoleAdmin, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	actor, err := manager.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if actor.Username != "admin" || actor.Role != domain.RoleAdmin {
		t.Fatalf("unexpected actor %+v", actor)
	}

	other := NewAuthManager("a-completely-different-secret", time.Hour, &userStoreStub{})
	if _, err := other.ParseToken(token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}

	if _, err := manager.ParseToken(token + "x"); err == nil {
		t.Fatalf("expected tampered token to be rejected")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, &userStoreStub{})

	token, err := manager.sign("admin", domain.RoleAdmin, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := manager.ParseToken(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}
