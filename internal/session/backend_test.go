package session_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"digiclassroom/session/internal/model"
)

const testSecret = "test-secret"

type backendUser struct {
	ID              string
	Name            string
	Email           string
	Password        string
	InstitutionName string
	Subject         string
	RollNumber      string
}

type fakeClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// fakeBackend plays the DigiClassRoom REST API: role-scoped login, me and
// signup endpoints issuing HS256 access tokens. Routes can be gated so a
// test controls exactly when a round-trip resolves. Gates and flags must
// be set before the first request.
type fakeBackend struct {
	t            *testing.T
	srv          *httptest.Server
	gates        map[string]chan struct{}
	brokenSignup bool

	mu            sync.Mutex
	users         map[model.Role]map[string]backendUser
	refreshGrants map[string]refreshGrant
}

type refreshGrant struct {
	role  model.Role
	email string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	b := &fakeBackend{
		t:     t,
		gates: map[string]chan struct{}{},
		users: map[model.Role]map[string]backendUser{
			model.RoleAdmin:   {},
			model.RoleTeacher: {},
			model.RoleStudent: {},
		},
		refreshGrants: map[string]refreshGrant{},
	}

	r := chi.NewRouter()
	r.Post("/admin/signup", b.handleSignup)
	r.Post("/{role}/login", b.handleLogin)
	r.Get("/{role}/me", b.handleMe)
	r.Post("/{role}/refresh", b.handleRefresh)
	b.srv = httptest.NewServer(r)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) addUser(role model.Role, user backendUser) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[role][user.Email] = user
}

// gate makes the given route block until the returned channel is closed.
func (b *fakeBackend) gate(route string) chan struct{} {
	ch := make(chan struct{})
	b.gates[route] = ch
	return ch
}

func (b *fakeBackend) wait(route string) {
	if ch, ok := b.gates[route]; ok {
		<-ch
	}
}

// issueRefresh hands out a single-use refresh token for the given
// account, mirroring the backend's rotation: redeeming it invalidates it.
func (b *fakeBackend) issueRefresh(role model.Role, email string) string {
	token := "refresh-" + uuid.NewString()
	b.mu.Lock()
	b.refreshGrants[token] = refreshGrant{role: role, email: email}
	b.mu.Unlock()
	return token
}

func (b *fakeBackend) mint(role model.Role, email string) string {
	b.t.Helper()
	now := time.Now().UTC()
	claims := fakeClaims{
		Email: email,
		Role:  string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		b.t.Fatalf("mint token: %v", err)
	}
	return token
}

func (b *fakeBackend) parseBearer(r *http.Request) (*fakeClaims, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, false
	}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), &fakeClaims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}
	claims, ok := token.Claims.(*fakeClaims)
	return claims, ok
}

func (b *fakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	role, ok := model.ParseRole(chi.URLParam(r, "role"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown_role"})
		return
	}
	b.wait(string(role) + "/login")

	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	user, found := b.users[role][body["email"]]
	b.mu.Unlock()
	if !found || user.Password != body["password"] {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_credentials"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"accessToken":  b.mint(role, user.Email),
		"refreshToken": b.issueRefresh(role, user.Email),
	})
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	role, ok := model.ParseRole(chi.URLParam(r, "role"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown_role"})
		return
	}
	b.wait(string(role) + "/refresh")

	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	grant, found := b.refreshGrants[body["refreshToken"]]
	if found {
		delete(b.refreshGrants, body["refreshToken"])
	}
	b.mu.Unlock()
	if !found || grant.role != role {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_refresh_token"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"accessToken":  b.mint(role, grant.email),
		"refreshToken": b.issueRefresh(role, grant.email),
	})
}

func (b *fakeBackend) handleMe(w http.ResponseWriter, r *http.Request) {
	role, ok := model.ParseRole(chi.URLParam(r, "role"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown_role"})
		return
	}
	b.wait(string(role) + "/me")

	claims, ok := b.parseBearer(r)
	if !ok || claims.Role != string(role) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
		return
	}

	b.mu.Lock()
	user, found := b.users[role][claims.Email]
	b.mu.Unlock()
	if !found {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unknown_user"})
		return
	}

	// the role in the body is deliberately wrong: clients must tag the
	// role themselves, never trust this field
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": map[string]string{
			"id":              user.ID,
			"name":            user.Name,
			"email":           user.Email,
			"role":            "server-says-" + string(role),
			"institutionName": user.InstitutionName,
			"subject":         user.Subject,
			"rollNumber":      user.RollNumber,
		},
	})
}

func (b *fakeBackend) handleSignup(w http.ResponseWriter, r *http.Request) {
	b.wait("admin/signup")

	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)

	user := backendUser{
		ID:              uuid.NewString(),
		Name:            body["name"],
		Email:           body["email"],
		Password:        body["password"],
		InstitutionName: body["institutionName"],
	}
	b.addUser(model.RoleAdmin, user)

	resp := map[string]interface{}{
		"admin": map[string]string{
			"id":              user.ID,
			"name":            user.Name,
			"email":           user.Email,
			"institutionName": user.InstitutionName,
		},
	}
	if !b.brokenSignup {
		resp["accessToken"] = b.mint(model.RoleAdmin, user.Email)
		resp["refreshToken"] = b.issueRefresh(model.RoleAdmin, user.Email)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
