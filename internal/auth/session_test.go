package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

const testKey = "0123456789abcdef0123456789abcdef"

func newTestManager(t *testing.T) *SessionManager {
	t.Helper()
	m, err := NewSessionManager(testKey)
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}
	return m
}

func validSession() Session {
	return Session{
		AccessToken: "lin_oauth_abc",
		UserID:      "user-1",
		UserName:    "Ada",
		UserEmail:   "ada@example.com",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

// **Property 5: Session round trip**
// Qualquer sessão selada pode ser aberta com a mesma chave e mantém os dados
func TestSessionRoundTrip(t *testing.T) {
	m := newTestManager(t)
	properties := gopter.NewProperties(nil)

	properties.Property("sealed sessions open with the same data", prop.ForAll(
		func(token, userID, name string) bool {
			if token == "" || userID == "" {
				return true
			}

			in := Session{
				AccessToken: token,
				UserID:      userID,
				UserName:    name,
				ExpiresAt:   time.Now().Add(time.Hour),
			}

			sealed, err := m.Seal(in)
			if err != nil {
				t.Logf("Seal error: %v", err)
				return false
			}

			out, err := m.Open(sealed)
			if err != nil {
				t.Logf("Open error: %v", err)
				return false
			}

			return out.AccessToken == in.AccessToken &&
				out.UserID == in.UserID &&
				out.UserName == in.UserName &&
				!out.IssuedAt.IsZero()
		},
		gen.AlphaString(),
		gen.Identifier(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestSessionSealIsRandomized(t *testing.T) {
	m := newTestManager(t)
	s := validSession()

	a, _ := m.Seal(s)
	b, _ := m.Seal(s)
	if a == b {
		t.Error("two seals of the same session should differ")
	}
}

func TestSessionOpenRejectsTampering(t *testing.T) {
	m := newTestManager(t)
	sealed, err := m.Seal(validSession())
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	// Troca um caractere no meio do texto cifrado
	b := []byte(sealed)
	mid := len(b) / 2
	if b[mid] == 'A' {
		b[mid] = 'B'
	} else {
		b[mid] = 'A'
	}

	if _, err := m.Open(string(b)); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Open(tampered) error = %v, want ErrInvalidSession", err)
	}
	if _, err := m.Open("not-base64!"); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Open(garbage) error = %v, want ErrInvalidSession", err)
	}
	if _, err := m.Open(""); !errors.Is(err, ErrNoSession) {
		t.Errorf("Open(\"\") error = %v, want ErrNoSession", err)
	}
}

func TestSessionOpenRejectsOtherKey(t *testing.T) {
	m := newTestManager(t)
	other, err := NewSessionManager("another-secret-another-secret-xx")
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}

	sealed, _ := m.Seal(validSession())
	if _, err := other.Open(sealed); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Open with other key error = %v, want ErrInvalidSession", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	m := newTestManager(t)

	expired := validSession()
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	sealed, _ := m.Seal(expired)
	if _, err := m.Open(sealed); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Open(expired token) error = %v, want ErrSessionExpired", err)
	}

	old := validSession()
	old.ExpiresAt = time.Now().Add(30 * 24 * time.Hour)
	sealed, _ = m.Seal(old)

	m.now = func() time.Time { return time.Now().Add(SessionDuration + time.Hour) }
	if _, err := m.Open(sealed); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Open(old session) error = %v, want ErrSessionExpired", err)
	}
}

func TestNewSessionManagerRequiresKey(t *testing.T) {
	if _, err := NewSessionManager(""); err == nil {
		t.Error("expected error for empty key")
	}
}
