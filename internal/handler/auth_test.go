package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mesa-digital/api/internal/auth"
	"github.com/mesa-digital/api/internal/database"
	"github.com/mesa-digital/api/internal/enum"
	"github.com/mesa-digital/api/internal/handler"
	"github.com/mesa-digital/api/internal/middleware"
)

// --- Mock store ---

type mockAuthStore struct {
	userByEmail map[string]database.User
	userByID    map[uuid.UUID]database.User
}

func newMockAuthStore() *mockAuthStore {
	return &mockAuthStore{
		userByEmail: make(map[string]database.User),
		userByID:    make(map[uuid.UUID]database.User),
	}
}

func (m *mockAuthStore) addUser(u database.User) {
	m.userByEmail[u.Email] = u
	m.userByID[u.ID] = u
}

func (m *mockAuthStore) GetUserByEmail(_ context.Context, email string) (database.User, error) {
	u, ok := m.userByEmail[email]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *mockAuthStore) GetUserByID(_ context.Context, id uuid.UUID) (database.User, error) {
	u, ok := m.userByID[id]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

// --- Helpers ---

func makeTestUser(t *testing.T) database.User {
	t.Helper()
	return database.User{
		ID:             uuid.New(),
		Email:          "kitchen@mesa.test",
		HashedPassword: hashPassword(t, "correct-password"),
		FullName:       "Test Kitchen",
		Role:           enum.UserRoleKitchen,
		IsActive:       true,
	}
}

func setupAuthRouter(store *mockAuthStore) *chi.Mux {
	h := handler.NewAuthHandler(store, testJWTSecret)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		h.RegisterAuthenticatedRoutes(r)
	})
	return r
}

// --- Login tests ---

func TestLogin_ValidCredentials(t *testing.T) {
	store := newMockAuthStore()
	store.addUser(makeTestUser(t))
	r := setupAuthRouter(store)

	rr := doRequest(t, r, "POST", "/auth/login", map[string]string{
		"email":    "Kitchen@Mesa.test",
		"password": "correct-password",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	access, _ := resp["access_token"].(string)
	if access == "" {
		t.Fatal("expected non-empty access_token")
	}
	if resp["refresh_token"] == nil || resp["refresh_token"] == "" {
		t.Error("expected non-empty refresh_token")
	}

	claims, err := auth.ValidateToken(testJWTSecret, access)
	if err != nil {
		t.Fatalf("access token does not validate: %v", err)
	}
	if claims.Role != enum.UserRoleKitchen {
		t.Errorf("token role: got %q, want KITCHEN", claims.Role)
	}

	userResp, ok := resp["user"].(map[string]interface{})
	if !ok {
		t.Fatal("expected user object in response")
	}
	if userResp["email"] != "kitchen@mesa.test" {
		t.Errorf("user email: got %v, want kitchen@mesa.test", userResp["email"])
	}
	if _, leaked := userResp["hashed_password"]; leaked {
		t.Error("hashed_password must not be returned")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	store := newMockAuthStore()
	store.addUser(makeTestUser(t))
	r := setupAuthRouter(store)

	rr := doRequest(t, r, "POST", "/auth/login", map[string]string{
		"email":    "kitchen@mesa.test",
		"password": "wrong-password",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestLogin_UserNotFound(t *testing.T) {
	r := setupAuthRouter(newMockAuthStore())

	rr := doRequest(t, r, "POST", "/auth/login", map[string]string{
		"email":    "nobody@mesa.test",
		"password": "password",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestLogin_InactiveUser(t *testing.T) {
	store := newMockAuthStore()
	u := makeTestUser(t)
	u.IsActive = false
	store.addUser(u)
	r := setupAuthRouter(store)

	rr := doRequest(t, r, "POST", "/auth/login", map[string]string{
		"email":    "kitchen@mesa.test",
		"password": "correct-password",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	r := setupAuthRouter(newMockAuthStore())

	rr := doRequest(t, r, "POST", "/auth/login", map[string]string{"email": "kitchen@mesa.test"})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Refresh tests ---

func TestRefresh_ValidToken(t *testing.T) {
	store := newMockAuthStore()
	u := makeTestUser(t)
	store.addUser(u)
	r := setupAuthRouter(store)

	refresh, err := auth.GenerateRefreshToken(testJWTSecret, u.ID)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	rr := doRequest(t, r, "POST", "/auth/refresh", map[string]string{"refresh_token": refresh})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["access_token"] == nil || resp["access_token"] == "" {
		t.Error("expected non-empty access_token")
	}
}

func TestRefresh_AccessTokenRejected(t *testing.T) {
	store := newMockAuthStore()
	u := makeTestUser(t)
	store.addUser(u)
	r := setupAuthRouter(store)

	access, err := auth.GenerateToken(testJWTSecret, u.ID, u.Role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	rr := doRequest(t, r, "POST", "/auth/refresh", map[string]string{"refresh_token": access})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRefresh_DeactivatedUser(t *testing.T) {
	store := newMockAuthStore()
	u := makeTestUser(t)
	u.IsActive = false
	store.addUser(u)
	r := setupAuthRouter(store)

	refresh, _ := auth.GenerateRefreshToken(testJWTSecret, u.ID)
	rr := doRequest(t, r, "POST", "/auth/refresh", map[string]string{"refresh_token": refresh})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

// --- Me tests ---

func TestMe_ReturnsCurrentUser(t *testing.T) {
	store := newMockAuthStore()
	u := makeTestUser(t)
	store.addUser(u)
	r := setupAuthRouter(store)

	rr := doAuthRequest(t, r, "GET", "/auth/me", nil, &auth.Claims{UserID: u.ID, Role: u.Role})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["id"] != u.ID.String() {
		t.Errorf("id: got %v, want %s", resp["id"], u.ID)
	}
}

func TestMe_NoToken(t *testing.T) {
	r := setupAuthRouter(newMockAuthStore())

	rr := doRequest(t, r, "GET", "/auth/me", nil)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
