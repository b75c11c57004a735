package auth

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/ecg-auth-engine/pkg/models"
)

var (
	ErrEmptyUserID     = errors.New("auth: user id is empty")
	ErrUserExists      = errors.New("auth: user already registered")
	ErrUnknownUser     = errors.New("auth: unknown user")
	ErrSessionInvalid  = errors.New("auth: session invalid or expired")
	ErrTooManyAttempts = errors.New("auth: too many login attempts, slow down")
)

// DefaultSessionTimeout is used by NewMatcher when the caller passes a
// zero or negative duration, so a misconfigured SESSION_TIMEOUT doesn't
// silently mint sessions that never expire.
const DefaultSessionTimeout = time.Hour

// Store is the persistence boundary the matcher reads from and writes to.
// store.JSONStore satisfies it; tests can substitute an in-memory fake.
type Store interface {
	Load() (map[string]models.UserTemplate, error)
	Save(map[string]models.UserTemplate) error
}

// AuditSink receives a best-effort, non-blocking copy of every login
// attempt. A nil sink (the default when no audit database is configured)
// is valid — Record is a no-op on it.
type AuditSink interface {
	Record(models.LoginAttempt)
}

// LoginResult reports the outcome of a Login call, including the
// diagnostics the protocol surfaces regardless of accept/reject.
type LoginResult struct {
	Accepted       bool
	UserID         string
	BestSimilarity float64
	Threshold      float64
	Session        models.Session
}

// Matcher owns the enrolled-user store and the session table. Both are
// guarded by a single lock, since deleting a user cascades across both and
// the specification requires sequential consistency between them — there
// is no second lock anywhere in this package.
type Matcher struct {
	mu                  sync.RWMutex
	users               map[string]models.UserTemplate
	sessions            map[string]models.Session
	similarityThreshold float64
	sessionTimeout      time.Duration

	store       Store
	audit       AuditSink
	loginLimits *loginLimiter
}

// NewMatcher loads the initial user set from store (an empty store is not
// an error — it means no users are enrolled yet) and wires an optional
// audit sink. sessionTimeout is how long an accepted login's session stays
// valid; a non-positive value falls back to DefaultSessionTimeout rather
// than minting sessions that expire immediately or never.
func NewMatcher(store Store, audit AuditSink, similarityThreshold float64, sessionTimeout time.Duration) (*Matcher, error) {
	users, err := store.Load()
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = make(map[string]models.UserTemplate)
	}
	if sessionTimeout <= 0 {
		sessionTimeout = DefaultSessionTimeout
	}
	return &Matcher{
		users:               users,
		sessions:            make(map[string]models.Session),
		similarityThreshold: similarityThreshold,
		sessionTimeout:      sessionTimeout,
		store:               store,
		audit:               audit,
		loginLimits:         newLoginLimiter(maxLoginAttempts, loginAttemptWindow),
	}, nil
}

func normalizeUserID(userID string) string {
	return strings.ToLower(strings.TrimSpace(userID))
}

// Register enrolls a new user with their first sample. It fails if the
// user id is empty or already present.
func (m *Matcher) Register(userID string, signature models.SignatureRecord) (models.UserTemplate, error) {
	userID = normalizeUserID(userID)
	if userID == "" {
		return models.UserTemplate{}, ErrEmptyUserID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[userID]; exists {
		return models.UserTemplate{}, ErrUserExists
	}

	now := time.Now()
	template := models.UserTemplate{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		Templates: []models.UserSample{sampleFrom(signature, now)},
	}
	m.users[userID] = template

	if err := m.store.Save(m.users); err != nil {
		delete(m.users, userID)
		return models.UserTemplate{}, err
	}
	return template, nil
}

func sampleFrom(sig models.SignatureRecord, at time.Time) models.UserSample {
	return models.UserSample{
		RawVector:        sig.RawVector,
		NormalizedVector: sig.NormalizedVector,
		HashHex:          sig.HashHex,
		RegisteredAt:     at,
	}
}

// Login compares signature's raw feature vector against every candidate
// user's stored raw vectors (or just one user's, if userID is given),
// accepting the best match if it clears the similarity threshold. Every
// call, accepted or not, is mirrored best-effort to the audit sink.
func (m *Matcher) Login(signature models.SignatureRecord, userID string, remoteAddr string) (LoginResult, error) {
	candidateID := normalizeUserID(userID)

	// Throttle by the targeted identity, not the source address: the risk
	// this guards against is brute-forcing one victim's enrolled template,
	// which an attacker can mount from any number of rotating IPs. Unscoped
	// attempts (no userID given) fall back to remoteAddr since there is no
	// single victim to key on.
	limitKey := candidateID
	if limitKey == "" {
		limitKey = remoteAddr
	}
	if !m.loginLimits.allow(limitKey) {
		return LoginResult{}, ErrTooManyAttempts
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var candidates map[string]models.UserTemplate
	if candidateID != "" {
		t, ok := m.users[candidateID]
		if !ok {
			return LoginResult{}, ErrUnknownUser
		}
		candidates = map[string]models.UserTemplate{candidateID: t}
	} else {
		candidates = m.users
	}

	bestUser := ""
	bestSimilarity := 0.0
	for id, template := range candidates {
		for _, sample := range template.Templates {
			sim := hybridSimilarity(signature.RawVector, sample.RawVector)
			if sim > bestSimilarity {
				bestSimilarity = sim
				bestUser = id
			}
		}
	}

	accepted := bestUser != "" && bestSimilarity >= m.similarityThreshold
	result := LoginResult{
		Accepted:       accepted,
		UserID:         bestUser,
		BestSimilarity: bestSimilarity,
		Threshold:      m.similarityThreshold,
	}

	if accepted {
		now := time.Now()
		session := models.Session{
			ID:        uuid.NewString(),
			UserID:    bestUser,
			CreatedAt: now,
			ExpiresAt: now.Add(m.sessionTimeout),
		}

		template := m.users[bestUser]
		template.LoginCount++
		template.LastLogin = &now
		m.users[bestUser] = template

		if err := m.store.Save(m.users); err != nil {
			return LoginResult{}, err
		}
		m.sessions[session.ID] = session
		result.Session = session
	}

	m.recordAudit(models.LoginAttempt{
		AttemptedAt: time.Now(),
		UserID:      result.UserID,
		Accepted:    result.Accepted,
		Similarity:  result.BestSimilarity,
		Threshold:   result.Threshold,
		RemoteAddr:  remoteAddr,
	})

	return result, nil
}

// recordAudit fires the audit sink on its own goroutine so a slow or down
// database never blocks the accept/reject decision path.
func (m *Matcher) recordAudit(attempt models.LoginAttempt) {
	if m.audit == nil {
		return
	}
	go m.audit.Record(attempt)
}

// UpdateTemplate appends a new sample for an already-enrolled user,
// evicting the oldest sample once the window exceeds MaxSamplesPerUser.
func (m *Matcher) UpdateTemplate(userID string, signature models.SignatureRecord) error {
	userID = normalizeUserID(userID)

	m.mu.Lock()
	defer m.mu.Unlock()

	template, ok := m.users[userID]
	if !ok {
		return ErrUnknownUser
	}
	template.AddSample(sampleFrom(signature, time.Now()))
	m.users[userID] = template
	return m.store.Save(m.users)
}

// DeleteUser removes a user's record and revokes every session bound to
// them.
func (m *Matcher) DeleteUser(userID string) error {
	userID = normalizeUserID(userID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return ErrUnknownUser
	}
	delete(m.users, userID)
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return m.store.Save(m.users)
}

// ListUsers returns a snapshot of every enrolled user's template.
func (m *Matcher) ListUsers() []models.UserTemplate {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.UserTemplate, 0, len(m.users))
	for _, t := range m.users {
		out = append(out, t)
	}
	return out
}

// VerifySession reports whether a session id is present and unexpired,
// atomically deleting it if it has expired since the last sweep.
func (m *Matcher) VerifySession(sessionID string) (models.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return models.Session{}, false
	}
	if session.Expired(time.Now()) {
		delete(m.sessions, sessionID)
		return models.Session{}, false
	}
	return session, true
}

// Logout revokes a single session.
func (m *Matcher) Logout(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// CleanupExpiredSessions sweeps every expired session from the table and
// returns how many were removed. Intended to be called periodically.
func (m *Matcher) CleanupExpiredSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}
