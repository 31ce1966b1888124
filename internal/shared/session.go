package shared

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "meridian:sess:"

// FlashMessage is a one-time notice shown on the next rendered page.
type FlashMessage struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SessionManager issues cookie-identified sessions whose state lives in
// Redis. Only the opaque session ID travels in the cookie.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
}

// Session is the per-request view of one visitor's state. Mutations mark it
// dirty; Commit persists dirty sessions and refreshes the cookie.
type Session struct {
	ID        string
	values    map[string]string
	userID    string
	flashes   []FlashMessage
	isNew     bool
	dirty     bool
	destroyed bool
}

type sessionRecord struct {
	Values  map[string]string `json:"v"`
	UserID  string            `json:"uid"`
	Flashes []FlashMessage    `json:"f"`
}

// NewSessionManager wires a manager to its Redis backend.
func NewSessionManager(client *redis.Client, cookieName, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
	}
}

// Load resolves the request's session. A missing cookie, a bad signature and
// an expired Redis record all yield a fresh session rather than an error.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return sm.fresh(), nil
	}
	if err != nil {
		return nil, err
	}

	id, ok := sm.verifyCookieValue(cookie.Value)
	if !ok {
		return sm.fresh(), nil
	}

	raw, err := sm.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		sess := sm.fresh()
		sess.ID = id
		return sess, nil
	}
	if err != nil {
		return nil, err
	}

	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &Session{ID: id, values: rec.Values, userID: rec.UserID, flashes: rec.Flashes}, nil
}

// Commit writes the session to Redis when it changed and always refreshes
// the cookie so active visitors keep sliding their expiry forward.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.destroyed {
		if err := sm.client.Del(ctx, sessionKeyPrefix+sess.ID).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		sm.writeCookie(w, "", -1, time.Time{})
		return nil
	}

	if sess.ID == "" {
		sess.ID = newSessionID()
	}

	if sess.dirty || sess.isNew {
		data, err := json.Marshal(sessionRecord{Values: sess.values, UserID: sess.userID, Flashes: sess.flashes})
		if err != nil {
			return err
		}
		if err := sm.client.Set(ctx, sessionKeyPrefix+sess.ID, data, sm.ttl).Err(); err != nil {
			return err
		}
		sess.dirty = false
	}

	sm.writeCookie(w, sm.signCookieValue(sess.ID), 0, time.Now().Add(sm.ttl))
	return nil
}

// The cookie carries "<id>.<hmac(id)>" so a forged or tampered ID never
// reaches Redis.
func (sm *SessionManager) signCookieValue(id string) string {
	mac := hmac.New(sha256.New, sm.secret)
	_, _ = mac.Write([]byte(id))
	return id + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (sm *SessionManager) verifyCookieValue(value string) (string, bool) {
	id, sig, found := strings.Cut(value, ".")
	if !found || id == "" {
		return "", false
	}
	mac := hmac.New(sha256.New, sm.secret)
	_, _ = mac.Write([]byte(id))
	want := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return "", false
	}
	return id, true
}

func (sm *SessionManager) writeCookie(w http.ResponseWriter, value string, maxAge int, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Expires:  expires,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Destroy schedules the session for deletion on the next Commit.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess != nil {
		sess.destroyed = true
	}
}

// TTL is the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration { return sm.ttl }

// CookieName is the cookie the manager reads and writes.
func (sm *SessionManager) CookieName() string { return sm.cookieName }

func (sm *SessionManager) fresh() *Session {
	return &Session{ID: newSessionID(), values: make(map[string]string), isNew: true, dirty: true}
}

// Set stores a string value under key.
func (s *Session) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Get returns the value under key, or "" when absent.
func (s *Session) Get(key string) string {
	if s.values == nil {
		return ""
	}
	return s.values[key]
}

// Delete removes key from the session.
func (s *Session) Delete(key string) {
	if s.values != nil {
		delete(s.values, key)
		s.dirty = true
	}
}

// SetUser ties the session to a signed-in user.
func (s *Session) SetUser(id string) {
	s.userID = id
	s.dirty = true
}

// User is the signed-in user's ID, or "" for anonymous sessions.
func (s *Session) User() string { return s.userID }

// AddFlash queues a one-time message for the next page render.
func (s *Session) AddFlash(msg FlashMessage) {
	s.flashes = append(s.flashes, msg)
	s.dirty = true
}

// PopFlash removes and returns the oldest queued flash, or nil.
func (s *Session) PopFlash() *FlashMessage {
	if len(s.flashes) == 0 {
		return nil
	}
	msg := s.flashes[0]
	s.flashes = s.flashes[1:]
	s.dirty = true
	return &msg
}

func newSessionID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
