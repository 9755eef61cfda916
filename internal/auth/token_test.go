package auth

import (
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/auth-gate/internal/domain"
)

const testSecret = "test-secret"

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func testSubject() Subject {
	return Subject{Email: "user@example.com", UserID: "6f1c1c2e-7d0b-4a7e-9a55-1e0e4c9b2f10", Role: domain.RoleUser}
}

func TestTokenManager_RoundTrip(t *testing.T) {
	clock := newFakeClock()
	tm := NewTokenManager(testSecret, WithClock(clock.Now))

	for _, kind := range []TokenKind{KindAccess, KindRefresh} {
		t.Run(kind.String(), func(t *testing.T) {
			wire, issued, err := tm.Issue(testSubject(), kind, time.Hour)
			require.NoError(t, err)

			decoded, err := tm.Decode(wire)
			require.NoError(t, err)
			assert.Equal(t, testSubject(), decoded.User)
			assert.Equal(t, kind, decoded.Kind())
			assert.Equal(t, issued.ID, decoded.ID)
			assert.Equal(t, clock.Now().Add(time.Hour).Unix(), decoded.ExpiresAt.Unix())
		})
	}
}

func TestTokenManager_UniqueIDs(t *testing.T) {
	tm := NewTokenManager(testSecret)
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		_, claims, err := tm.Issue(testSubject(), KindAccess, time.Minute)
		require.NoError(t, err)
		_, dup := seen[claims.ID]
		require.False(t, dup, "duplicate jti %s", claims.ID)
		seen[claims.ID] = struct{}{}
	}
}

func TestTokenManager_BitFlipNeverDecodes(t *testing.T) {
	tm := NewTokenManager(testSecret)
	wire, _, err := tm.Issue(testSubject(), KindAccess, time.Hour)
	require.NoError(t, err)

	for i := 0; i < len(wire); i++ {
		for bit := 0; bit < 8; bit++ {
			corrupted := []byte(wire)
			corrupted[i] ^= 1 << bit
			_, err := tm.Decode(string(corrupted))
			require.Error(t, err, "flip of bit %d at byte %d decoded", bit, i)
		}
	}
}

func TestTokenManager_Expired(t *testing.T) {
	clock := newFakeClock()
	tm := NewTokenManager(testSecret, WithClock(clock.Now))
	wire, _, err := tm.Issue(testSubject(), KindAccess, time.Minute)
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	_, err = tm.Decode(wire)
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = tm.Decode(wire)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	wire, _, err := NewTokenManager("other-secret").Issue(testSubject(), KindAccess, time.Hour)
	require.NoError(t, err)

	_, err = NewTokenManager(testSecret).Decode(wire)
	assert.ErrorIs(t, err, ErrTokenSignatureInvalid)
}

func TestTokenManager_RejectsOtherAlgorithms(t *testing.T) {
	tm := NewTokenManager(testSecret)
	claims := &Claims{
		User: testSubject(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = tm.Decode(hs512)
	assert.ErrorIs(t, err, ErrTokenSignatureInvalid)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tm.Decode(none)
	assert.Error(t, err)
}

func TestTokenManager_StructuralValidation(t *testing.T) {
	tm := NewTokenManager(testSecret)
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	cases := map[string]*Claims{
		"missing jti":   {User: testSubject(), RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}},
		"missing email": {User: Subject{UserID: "u", Role: domain.RoleUser}, RegisteredClaims: jwt.RegisteredClaims{ID: "j", ExpiresAt: exp}},
		"missing id":    {User: Subject{Email: "e@x.io", Role: domain.RoleUser}, RegisteredClaims: jwt.RegisteredClaims{ID: "j", ExpiresAt: exp}},
		"missing role":  {User: Subject{Email: "e@x.io", UserID: "u"}, RegisteredClaims: jwt.RegisteredClaims{ID: "j", ExpiresAt: exp}},
		"missing exp":   {User: testSubject(), RegisteredClaims: jwt.RegisteredClaims{ID: "j"}},
	}
	for name, claims := range cases {
		t.Run(name, func(t *testing.T) {
			wire, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
			require.NoError(t, err)
			_, err = tm.Decode(wire)
			assert.ErrorIs(t, err, ErrTokenMalformed)
		})
	}
}

func TestTokenManager_Garbage(t *testing.T) {
	tm := NewTokenManager(testSecret)
	for _, raw := range []string{"", "abc", "a.b.c", strings.Repeat("x", 300)} {
		_, err := tm.Decode(raw)
		assert.ErrorIs(t, err, ErrTokenMalformed, raw)
	}
}

func TestTokenManager_IssueRejectsNonPositiveTTL(t *testing.T) {
	_, _, err := NewTokenManager(testSecret).Issue(testSubject(), KindAccess, 0)
	assert.Error(t, err)
}

func TestTokenManager_DecodeIgnoringExpiry(t *testing.T) {
	clock := newFakeClock()
	tm := NewTokenManager(testSecret, WithClock(clock.Now))
	wire, issued, err := tm.Issue(testSubject(), KindAccess, time.Minute)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = tm.Decode(wire)
	require.ErrorIs(t, err, ErrTokenExpired)

	claims, err := tm.DecodeIgnoringExpiry(wire)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, claims.ID)
	assert.Equal(t, testSubject(), claims.User)

	_, err = NewTokenManager("other-secret").DecodeIgnoringExpiry(wire)
	assert.ErrorIs(t, err, ErrTokenSignatureInvalid)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		User:             testSubject(),
		RegisteredClaims: jwt.RegisteredClaims{ID: "j"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = tm.DecodeIgnoringExpiry(noExp)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}
