package auth

import (
	"testing"
	"time"

	"github.com/rawblock/ecg-auth-engine/pkg/models"
)

// memStore is an in-memory Store fake for tests, kept deliberately simple:
// it just hands back whatever was last saved.
type memStore struct {
	saved map[string]models.UserTemplate
	err   error
}

func newMemStore() *memStore {
	return &memStore{saved: make(map[string]models.UserTemplate)}
}

func (m *memStore) Load() (map[string]models.UserTemplate, error) {
	return m.saved, nil
}

func (m *memStore) Save(users map[string]models.UserTemplate) error {
	if m.err != nil {
		return m.err
	}
	m.saved = users
	return nil
}

type memAudit struct {
	attempts []models.LoginAttempt
}

func (a *memAudit) Record(attempt models.LoginAttempt) {
	a.attempts = append(a.attempts, attempt)
}

func sigWith(vector []float64) models.SignatureRecord {
	return models.SignatureRecord{RawVector: vector, NormalizedVector: vector, HashHex: "test"}
}

func TestMatcher_RegisterAndLoginAccepts(t *testing.T) {
	m, err := NewMatcher(newMemStore(), nil, 0.85, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error constructing matcher: %v", err)
	}

	vector := []float64{0.1, 0.4, 0.9, 0.2, 0.6, 0.3, 0.8, 0.5}
	if _, err := m.Register("alice", sigWith(vector)); err != nil {
		t.Fatalf("unexpected error registering: %v", err)
	}

	result, err := m.Login(sigWith(vector), "", "127.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error logging in: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("expected login with the exact enrolled vector to be accepted, best=%f", result.BestSimilarity)
	}
	if result.UserID != "alice" {
		t.Fatalf("expected matched user 'alice', got %q", result.UserID)
	}
	if result.Session.ID == "" {
		t.Fatalf("expected a session to be issued on acceptance")
	}
}

func TestMatcher_LoginRejectsDissimilarVector(t *testing.T) {
	m, err := NewMatcher(newMemStore(), nil, 0.85, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error constructing matcher: %v", err)
	}

	enrolled := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	if _, err := m.Register("bob", sigWith(enrolled)); err != nil {
		t.Fatalf("unexpected error registering: %v", err)
	}

	attempt := []float64{8, 7, 6, 5, 4, 3, 2, 1}
	result, err := m.Login(sigWith(attempt), "", "127.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error logging in: %v", err)
	}
	if result.Accepted {
		t.Fatalf("expected a reversed, dissimilar vector to be rejected")
	}
}

func TestMatcher_RegisterRejectsDuplicateUser(t *testing.T) {
	m, _ := NewMatcher(newMemStore(), nil, 0.85, time.Hour)
	v := []float64{1, 2, 3}
	if _, err := m.Register("carol", sigWith(v)); err != nil {
		t.Fatalf("unexpected error on first registration: %v", err)
	}
	if _, err := m.Register("carol", sigWith(v)); err != ErrUserExists {
		t.Fatalf("expected ErrUserExists on duplicate registration, got %v", err)
	}
}

func TestMatcher_RegisterRejectsEmptyUserID(t *testing.T) {
	m, _ := NewMatcher(newMemStore(), nil, 0.85, time.Hour)
	if _, err := m.Register("   ", sigWith([]float64{1})); err != ErrEmptyUserID {
		t.Fatalf("expected ErrEmptyUserID for a blank user id, got %v", err)
	}
}

func TestMatcher_LoginUnknownUserErrors(t *testing.T) {
	m, _ := NewMatcher(newMemStore(), nil, 0.85, time.Hour)
	_, err := m.Login(sigWith([]float64{1, 2}), "nobody", "127.0.0.1")
	if err != ErrUnknownUser {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
}

func TestMatcher_AuditSinkRecordsEveryAttempt(t *testing.T) {
	audit := &memAudit{}
	m, _ := NewMatcher(newMemStore(), audit, 0.85, time.Hour)
	v := []float64{1, 2, 3, 4, 5}
	m.Register("dana", sigWith(v))
	m.Login(sigWith(v), "", "10.0.0.1")

	// recordAudit fires on its own goroutine; give it a moment to land.
	deadline := time.Now().Add(time.Second)
	for len(audit.attempts) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if len(audit.attempts) != 1 {
		t.Fatalf("expected exactly one audit record after one login, got %d", len(audit.attempts))
	}
}

func TestUserTemplate_AddSampleEvictsOldestPastMax(t *testing.T) {
	var u models.UserTemplate
	for i := 0; i < MaxSamplesPerUserForTest+1; i++ {
		u.AddSample(models.UserSample{HashHex: string(rune('a' + i)), RegisteredAt: time.Now()})
	}
	if len(u.Templates) != MaxSamplesPerUserForTest {
		t.Fatalf("expected template window capped at %d, got %d", MaxSamplesPerUserForTest, len(u.Templates))
	}
	if u.Templates[0].HashHex == "a" {
		t.Fatalf("expected the oldest sample to have been evicted")
	}
}

// MaxSamplesPerUserForTest mirrors models.MaxSamplesPerUser so this test
// doesn't hardcode the constant twice.
const MaxSamplesPerUserForTest = models.MaxSamplesPerUser

func TestMatcher_DeleteUserCascadesSessionRevocation(t *testing.T) {
	m, _ := NewMatcher(newMemStore(), nil, 0.5, time.Hour)
	v := []float64{1, 2, 3, 4}
	m.Register("erin", sigWith(v))
	result, err := m.Login(sigWith(v), "", "127.0.0.1")
	if err != nil || !result.Accepted {
		t.Fatalf("expected login to succeed as setup, err=%v accepted=%v", err, result.Accepted)
	}

	if err := m.DeleteUser("erin"); err != nil {
		t.Fatalf("unexpected error deleting user: %v", err)
	}
	if _, ok := m.VerifySession(result.Session.ID); ok {
		t.Fatalf("expected session to be revoked when its user is deleted")
	}
}

func TestMatcher_LoginUsesConfiguredSessionTimeout(t *testing.T) {
	m, _ := NewMatcher(newMemStore(), nil, 0.5, 90*time.Second)
	v := []float64{1, 2, 3, 4}
	m.Register("gail", sigWith(v))

	before := time.Now()
	result, err := m.Login(sigWith(v), "", "127.0.0.1")
	if err != nil || !result.Accepted {
		t.Fatalf("expected login to succeed as setup, err=%v accepted=%v", err, result.Accepted)
	}

	maxExpected := before.Add(95 * time.Second)
	minExpected := before.Add(85 * time.Second)
	if result.Session.ExpiresAt.After(maxExpected) || result.Session.ExpiresAt.Before(minExpected) {
		t.Fatalf("expected session to expire ~90s after login, got ExpiresAt=%v (login at %v)", result.Session.ExpiresAt, before)
	}
}

func TestMatcher_NewMatcherDefaultsNonPositiveSessionTimeout(t *testing.T) {
	m, _ := NewMatcher(newMemStore(), nil, 0.5, 0)
	if m.sessionTimeout != DefaultSessionTimeout {
		t.Fatalf("expected a non-positive session timeout to default to %v, got %v", DefaultSessionTimeout, m.sessionTimeout)
	}
}

func TestMatcher_LoginThrottlesRepeatedAttemptsAgainstOneUser(t *testing.T) {
	m, _ := NewMatcher(newMemStore(), nil, 0.99, time.Hour)
	enrolled := []float64{1, 2, 3, 4, 5}
	m.Register("hank", sigWith(enrolled))

	attempt := sigWith([]float64{5, 4, 3, 2, 1})
	var lastErr error
	for i := 0; i < maxLoginAttempts; i++ {
		if _, err := m.Login(attempt, "hank", "127.0.0.1"); err != nil {
			t.Fatalf("unexpected error within the attempt budget (attempt %d): %v", i, err)
		}
	}
	_, lastErr = m.Login(attempt, "hank", "127.0.0.1")
	if lastErr != ErrTooManyAttempts {
		t.Fatalf("expected ErrTooManyAttempts once the per-user budget is exhausted, got %v", lastErr)
	}

	// A different target identity has its own budget.
	m.Register("iris", sigWith(enrolled))
	if _, err := m.Login(attempt, "iris", "127.0.0.1"); err != nil {
		t.Fatalf("expected a different target user's budget to be unaffected, got %v", err)
	}
}

func TestMatcher_VerifySessionExpiresOldSessions(t *testing.T) {
	m, _ := NewMatcher(newMemStore(), nil, 0.5, time.Hour)
	m.mu.Lock()
	m.sessions["stale"] = models.Session{
		ID:        "stale",
		UserID:    "frank",
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	m.mu.Unlock()

	if _, ok := m.VerifySession("stale"); ok {
		t.Fatalf("expected an expired session to fail verification")
	}
	if n := m.CleanupExpiredSessions(); n != 0 {
		t.Fatalf("expected VerifySession to have already swept the stale session, got %d more", n)
	}
}
