// Package session owns the authenticated session: the bearer token issued by
// the API and the user record that goes with it. A Manager restores the
// session from storage at startup, establishes it on login or registration,
// and tears it down on logout. Consumers read snapshots through Current and
// attach the token to their own requests.
//
// Tokens are trusted until the server rejects them: there is no expiry check
// and no refresh.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"postdesk/internal/auth/token"
	"postdesk/internal/logging"
	"postdesk/internal/store"
	"postdesk/internal/transport"
)

// Storage keys.
const (
	TokenKey = "authToken"
	UserKey  = "userData"
)

// API endpoints.
const (
	LoginPath    = "/api/v1/auth/login"
	RegisterPath = "/api/v1/auth/register"
	MePath       = "/api/v1/auth/me"
)

const (
	loginFallback    = "login failed"
	registerFallback = "registration failed"
)

// MinPasswordLength is enforced by ValidateRegistration.
const MinPasswordLength = 6

// Session is a snapshot of the current identity. The zero value is the
// unauthenticated session.
type Session struct {
	Token string
	User  User
}

// Authenticated reports whether the snapshot carries a token and a user record.
func (s Session) Authenticated() bool {
	return s.Token != "" && s.User != nil
}

// Manager is safe for concurrent use. Concurrent logins are not coordinated:
// the last one to finish wins, in memory and in storage.
type Manager struct {
	store  store.Store
	client *transport.Client

	mu      sync.RWMutex
	session Session
	// gen changes whenever the session is replaced, so late background
	// results for an older session are dropped.
	gen uint64

	bg sync.WaitGroup
}

// NewManager returns a Manager with an empty session. Call Restore to load
// a persisted one.
func NewManager(st store.Store, client *transport.Client) *Manager {
	return &Manager{store: st, client: client}
}

// Current returns a copy of the current session.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Session{Token: m.session.Token, User: m.session.User.Clone()}
}

// Token returns the current bearer token, or "".
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Token
}

// Wait blocks until background user fetches started by Restore finish.
func (m *Manager) Wait() {
	m.bg.Wait()
}

// Restore loads the persisted session. Missing usernames and ids are filled
// from the token's claims. When the record still has no username or name, the
// current-user endpoint is fetched in the background (see Wait) and its
// answer replaces the record. Restore never fails: problems are logged and
// leave the session empty or partially filled.
func (m *Manager) Restore(ctx context.Context) Session {
	tok, user, ok := m.loadPersisted()
	if !ok {
		m.install("", nil)
		return Session{}
	}

	if claims, err := token.Decode(tok); err != nil {
		logging.SessionDebug("restore: token claims unavailable: %v", err)
	} else {
		user.fillUsername(claims, user.Email())
		if !token.Truthy(user["id"]) {
			if uid, ok := claims.UID(); ok {
				user["id"] = uid
			}
		}
	}

	gen := m.install(tok, user)
	logging.Session("restored session for %s", user.DisplayName())
	logging.AuditResult(logging.AuditRestore, user.DisplayName(), nil)

	if !user.hasName() {
		m.bg.Add(1)
		go func() {
			defer m.bg.Done()
			if full, ok := m.fetchCurrentUser(ctx, tok); ok {
				m.replaceUser(gen, full)
			}
		}()
	}
	return m.Current()
}

func (m *Manager) loadPersisted() (string, User, bool) {
	tok, ok, err := m.store.Get(TokenKey)
	if err != nil {
		logging.SessionWarn("restore: failed to read token: %v", err)
		return "", nil, false
	}
	if !ok || tok == "" {
		return "", nil, false
	}

	raw, ok, err := m.store.Get(UserKey)
	if err != nil {
		logging.SessionWarn("restore: failed to read user record: %v", err)
		return "", nil, false
	}
	if !ok {
		logging.SessionWarn("restore: token present without a user record")
		return "", nil, false
	}

	user, err := decodeUser(raw)
	if err != nil {
		logging.SessionWarn("restore: persisted user record is corrupt: %v", err)
		return "", nil, false
	}
	return tok, user, true
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates against the API and installs the resulting session.
// On failure the returned *Error carries a user-facing message and neither
// storage nor the in-memory session is touched.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	err := m.login(ctx, email, password)
	if err != nil {
		logging.AuditResult(logging.AuditLoginFailed, email, err)
	} else {
		logging.AuditResult(logging.AuditLogin, email, nil)
	}
	return err
}

func (m *Manager) login(ctx context.Context, email, password string) error {
	resp, err := m.client.Do(ctx, http.MethodPost, LoginPath, credentials{Email: email, Password: password}, "")
	if err != nil {
		logging.SessionWarn("login request failed: %v", err)
		return &Error{Kind: KindNetwork, Message: err.Error(), Err: err}
	}
	if !resp.OK() {
		msg := transport.ErrorMessage(resp.Body, loginFallback)
		logging.Session("login rejected with status %d: %s", resp.Status, msg)
		return &Error{Kind: KindRejected, Status: resp.Status, Message: msg}
	}

	tok, user := parseLoginResponse(resp.Body, email)

	if claims, err := token.Decode(tok); err != nil {
		logging.SessionDebug("login: token claims unavailable: %v", err)
	} else {
		user.fillUsername(claims, email)
		if uid, ok := claims.UID(); ok {
			user["id"] = uid
		}
	}

	if !token.Truthy(user["email"]) && email != "" {
		user["email"] = email
	}
	user.Normalize()

	if err := m.persist(tok, user); err != nil {
		logging.SessionWarn("login: failed to persist session: %v", err)
		return &Error{Kind: KindStorage, Message: fmt.Sprintf("failed to save session: %v", err), Err: err}
	}
	gen := m.install(tok, user)
	logging.Session("logged in as %s", user.DisplayName())

	if !user.hasName() && tok != "" {
		if full, ok := m.fetchCurrentUser(ctx, tok); ok {
			m.replaceUser(gen, full)
		}
	}
	return nil
}

// parseLoginResponse picks the token and user record out of a successful
// login body. A body that is not a JSON object is itself the token.
func parseLoginResponse(body, email string) (string, User) {
	data, ok := transport.ParseObject(body)
	if !ok {
		return body, User{"email": email}
	}

	tok := body
	for _, key := range []string{"token", "access_token"} {
		if s, ok := data[key].(string); ok && s != "" {
			tok = s
			break
		}
	}

	if u, ok := data["user"].(map[string]interface{}); ok {
		return tok, User(u)
	}

	// The body itself is the user record; the credential and an empty "user"
	// wrapper are not user attributes.
	user := User(data)
	for _, key := range []string{"token", "access_token", "user"} {
		delete(user, key)
	}
	return tok, user
}

type registration struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Register creates an account and then logs in with the same email and
// password, returning Login's result. Registration alone never establishes a
// session.
func (m *Manager) Register(ctx context.Context, username, email, password, confirmPassword string) error {
	payload := registration{
		Username:        username,
		Email:           email,
		Password:        password,
		ConfirmPassword: confirmPassword,
	}
	resp, err := m.client.Do(ctx, http.MethodPost, RegisterPath, payload, "")
	if err != nil {
		logging.SessionWarn("register request failed: %v", err)
		err = &Error{Kind: KindNetwork, Message: err.Error(), Err: err}
		logging.AuditResult(logging.AuditRegisterFail, email, err)
		return err
	}
	if !resp.OK() {
		msg := transport.ErrorMessage(resp.Body, registerFallback)
		logging.Session("registration rejected with status %d: %s", resp.Status, msg)
		err := &Error{Kind: KindRejected, Status: resp.Status, Message: msg}
		logging.AuditResult(logging.AuditRegisterFail, email, err)
		return err
	}

	logging.Session("registered %s, logging in", email)
	logging.AuditResult(logging.AuditRegister, email, nil)
	return m.Login(ctx, email, password)
}

// ValidateRegistration runs the client-side checks the registration form applies.
func ValidateRegistration(password, confirmPassword string) error {
	if password != confirmPassword {
		return &Error{Kind: KindValidation, Message: "passwords do not match"}
	}
	if len(password) < MinPasswordLength {
		return &Error{Kind: KindValidation, Message: fmt.Sprintf("password must be at least %d characters", MinPasswordLength)}
	}
	return nil
}

// Logout clears the persisted session and empties the in-memory one. The
// in-memory session is cleared even when storage fails.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.session = Session{}
	m.gen++
	m.mu.Unlock()

	err := errors.Join(m.store.Remove(TokenKey), m.store.Remove(UserKey))
	if err != nil {
		logging.SessionWarn("logout: failed to clear storage: %v", err)
		err = &Error{Kind: KindStorage, Message: fmt.Sprintf("failed to clear session: %v", err), Err: err}
		logging.AuditResult(logging.AuditLogout, "", err)
		return err
	}
	logging.Session("logged out")
	logging.AuditResult(logging.AuditLogout, "", nil)
	return nil
}

// fetchCurrentUser asks the API for the full user record. Failures are logged.
func (m *Manager) fetchCurrentUser(ctx context.Context, tok string) (User, bool) {
	resp, err := m.client.Do(ctx, http.MethodGet, MePath, nil, tok)
	if err != nil {
		logging.SessionWarn("fetch current user failed: %v", err)
		return nil, false
	}
	if !resp.OK() {
		logging.SessionWarn("fetch current user: status %d", resp.Status)
		return nil, false
	}
	data, ok := transport.ParseObject(resp.Body)
	if !ok {
		logging.SessionWarn("fetch current user: response is not a JSON object")
		return nil, false
	}
	return User(data), true
}

func (m *Manager) persist(tok string, user User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := m.store.Set(TokenKey, tok); err != nil {
		return err
	}
	return m.store.Set(UserKey, string(data))
}

func (m *Manager) install(tok string, user User) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = Session{Token: tok, User: user}
	m.gen++
	return m.gen
}

// replaceUser swaps in a fetched record if the session it was fetched for
// is still the current one, and persists it.
func (m *Manager) replaceUser(gen uint64, user User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen {
		logging.SessionDebug("discarding fetched user record for a replaced session")
		return
	}

	data, err := json.Marshal(user)
	if err != nil {
		logging.SessionWarn("failed to encode fetched user record: %v", err)
		return
	}
	if err := m.store.Set(UserKey, string(data)); err != nil {
		logging.SessionWarn("failed to persist fetched user record: %v", err)
	}
	m.session.User = user
	logging.Session("user record refreshed for %s", user.DisplayName())
	logging.AuditResult(logging.AuditUserRefresh, user.DisplayName(), nil)
}
