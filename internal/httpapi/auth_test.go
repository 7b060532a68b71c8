package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"warungpos/backend/internal/domain"
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
	stub := &userStoreStub{
		users: map[string]domain.UserAccount{
			"owner": {
				Username:  "owner",
				Password:  "owner123",
				Role:      "owner",
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	auth := NewAuthManager(testSecret, time.Hour, stub)

	stub.mu.Lock()
	stored := stub.users["owner"].Password
	updates := stub.updates
	stub.mu.Unlock()

	if !strings.HasPrefix(stored, "$2") {
		t.Errorf("stored password should be a bcrypt hash, got %q", stored)
	}
	if updates == 0 {
		t.Error("password upgrade was never written back to the store")
	}

	resp, err := auth.Login(domain.LoginRequest{Username: "owner", Password: "owner123"})
	if err != nil {
		t.Fatalf("Login after upgrade: %v", err)
	}
	if resp.Role != "owner" || resp.AccessToken == "" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	hash, _ := hashPassword("secret-pass")
	stub := &userStoreStub{
		users: map[string]domain.UserAccount{
			"gone": {Username: "gone", Password: hash, Role: "staff", Active: false},
		},
	}

	auth := NewAuthManager(testSecret, time.Hour, stub)
	if _, err := auth.Login(domain.LoginRequest{Username: "gone", Password: "secret-pass"}); err == nil {
		t.Error("inactive account should not log in")
	}
}

func TestParseTokenRoundTrip(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour, nil)

	token, err := auth.sign("owner", "owner", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	actor, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if actor.Username != "owner" || actor.Role != "owner" {
		t.Errorf("actor = %+v", actor)
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour, nil)
	other := NewAuthManager("another-secret-another-secret-32", time.Hour, nil)

	token, err := other.sign("owner", "owner", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Error("token signed with a different secret must be rejected")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour, nil)

	token, err := auth.sign("owner", "owner", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Error("expired token must be rejected")
	}
}

func TestCreateStaffValidation(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour, &userStoreStub{})

	if _, err := auth.CreateStaff(domain.StaffCreateRequest{Username: "ab", Password: "longenough"}); err == nil {
		t.Error("short username should be rejected")
	}
	if _, err := auth.CreateStaff(domain.StaffCreateRequest{Username: "valid", Password: "123"}); err == nil {
		t.Error("short password should be rejected")
	}

	staff, err := auth.CreateStaff(domain.StaffCreateRequest{Username: "Budi", Password: "rahasia1"})
	if err != nil {
		t.Fatalf("CreateStaff: %v", err)
	}
	if staff.Username != "budi" || staff.Role != "staff" || !staff.Active {
		t.Errorf("staff = %+v", staff)
	}

	if _, err := auth.CreateStaff(domain.StaffCreateRequest{Username: "budi", Password: "rahasia1"}); err == nil {
		t.Error("duplicate username should be rejected")
	}

	listed := auth.ListStaff()
	if len(listed) != 1 || listed[0].Username != "budi" {
		t.Errorf("ListStaff = %+v", listed)
	}
}
