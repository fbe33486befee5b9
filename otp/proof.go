package otp

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const proofAudience = "survey-submission"

var ErrInvalidProof = errors.New("invalid or expired verification token")

type proofClaims struct {
	SurveyID int `json:"sid"`
	jwt.RegisteredClaims
}

// Proofs signs and checks the token handed out after a successful Verify.
// The token states that its subject controls the email address, for one
// survey, for a short time. It grants nothing else.
type Proofs struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewProofs(secret string, ttl time.Duration) *Proofs {
	return &Proofs{
		secret: []byte("proof:" + secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (p *Proofs) Issue(surveyID int, email string) (string, error) {
	now := p.now()
	claims := proofClaims{
		SurveyID: surveyID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   email,
			Audience:  jwt.ClaimStrings{proofAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

// Check returns the verified email carried by token, provided the token
// was issued for surveyID and has not expired.
func (p *Proofs) Check(token string, surveyID int) (string, error) {
	claims := &proofClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return p.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(proofAudience),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidProof, err)
	}
	if claims.SurveyID != surveyID || claims.Subject == "" {
		return "", ErrInvalidProof
	}
	return claims.Subject, nil
}
