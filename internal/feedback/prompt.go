// Package feedback holds the per-closure feedback prompt capability. A
// Prompt is constructed once, when the closure pipeline notifies the
// requester, and carries the (ticket, requester) pair the rating is scoped
// to. Submission checks the submitter against the prompt, never against
// stored ticket data.
package feedback

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Prompt scopes a rating to one ticket and its original requester.
type Prompt struct {
	TicketID    int64
	RequesterID string
}

// PromptSigner serializes prompts as signed tokens so the capability can
// ride inside platform component ids and survive process restarts.
type PromptSigner struct {
	secret []byte
}

// NewPromptSigner builds a signer over a shared secret.
func NewPromptSigner(secret string) *PromptSigner {
	return &PromptSigner{secret: []byte(secret)}
}

type promptClaims struct {
	TicketID int64 `json:"tid"`
	jwt.RegisteredClaims
}

// Sign produces the compact token for a prompt. Tokens carry no expiry: a
// stale prompt is still bound to the right pair, so expiring it would only
// strand slow raters.
func (s *PromptSigner) Sign(prompt Prompt) (string, error) {
	claims := &promptClaims{
		TicketID: prompt.TicketID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  prompt.RequesterID,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse validates a token and reconstructs the prompt it carries.
func (s *PromptSigner) Parse(tokenStr string) (Prompt, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &promptClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return Prompt{}, err
	}

	claims, ok := parsed.Claims.(*promptClaims)
	if !ok || !parsed.Valid {
		return Prompt{}, errors.New("invalid prompt token")
	}
	if claims.TicketID == 0 || claims.Subject == "" {
		return Prompt{}, errors.New("prompt token missing ticket or requester")
	}
	return Prompt{TicketID: claims.TicketID, RequesterID: claims.Subject}, nil
}
