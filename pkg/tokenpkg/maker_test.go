package tokenpkg

import (
	"testing"
	"time"

	"github.com/go-petr/marketrush/pkg/randompkg"
)

func randomSubject() Subject {
	return Subject{
		UserID: randompkg.String(20),
		Email:  randompkg.Email(),
		Status: "approved",
	}
}

func TestNewMaker(t *testing.T) {
	t.Parallel()

	key := randompkg.String(32)

	testCases := []struct {
		name      string
		tokenType string
		check     func(t *testing.T, m Maker)
	}{
		{
			name:      "JWT",
			tokenType: TypeJWT,
			check: func(t *testing.T, m Maker) {
				if _, ok := m.(*JWTMaker); !ok {
					t.Errorf("NewMaker(%q) = %T, want *JWTMaker", TypeJWT, m)
				}
			},
		},
		{
			name:      "PASETO",
			tokenType: TypePaseto,
			check: func(t *testing.T, m Maker) {
				if _, ok := m.(*PasetoMaker); !ok {
					t.Errorf("NewMaker(%q) = %T, want *PasetoMaker", TypePaseto, m)
				}
			},
		},
		{
			name:      "DefaultsToPASETO",
			tokenType: "",
			check: func(t *testing.T, m Maker) {
				if _, ok := m.(*PasetoMaker); !ok {
					t.Errorf("NewMaker(\"\") = %T, want *PasetoMaker", m)
				}
			},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m, err := NewMaker(tc.tokenType, key)
			if err != nil {
				t.Fatalf("NewMaker(%q, key) returned error: %v", tc.tokenType, err)
			}

			tc.check(t, m)
		})
	}
}

func TestCrossMakerTokenRejected(t *testing.T) {
	t.Parallel()

	key := randompkg.String(32)

	jwtMaker, err := NewJWTMaker(key)
	if err != nil {
		t.Fatalf("NewJWTMaker(key) returned error: %v", err)
	}

	pasetoMaker, err := NewPasetoMaker(key)
	if err != nil {
		t.Fatalf("NewPasetoMaker(key) returned error: %v", err)
	}

	token, _, err := jwtMaker.CreateToken(randomSubject(), time.Minute)
	if err != nil {
		t.Fatalf("jwtMaker.CreateToken returned error: %v", err)
	}

	if _, err := pasetoMaker.VerifyToken(token); err != ErrInvalidToken {
		t.Errorf("pasetoMaker.VerifyToken(jwt) returned %v, want %v", err, ErrInvalidToken)
	}
}
