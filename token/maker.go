package token

import (
	"time"

	"github.com/google/uuid"
)

// Maker creates and verifies access tokens. Tokens are issued by the
// dashboard's auth service; this backend mostly verifies them.
type Maker interface {
	CreateToken(userID uuid.UUID, email string, duration time.Duration) (string, error)

	VerifyToken(token string) (*Payload, error)
}
