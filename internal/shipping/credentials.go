package shipping

import (
	"strings"
	"time"
)

// Credentials are the provider login for one account. The core only reads them.
type Credentials struct {
	Email    string
	Password string
	Enabled  bool
	TestMode bool
}

// Complete reports whether both email and password are present.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.Email) != "" && c.Password != ""
}

func (c Credentials) cacheKey() string {
	return strings.ToLower(strings.TrimSpace(c.Email))
}

// PersistedToken is the token written back to the settings store after a login.
// ExpiresAt is the hard limit; ReissueAt is when the refresher logs in again regardless.
type PersistedToken struct {
	Value     string    `dynamodbav:"token" json:"token"`
	ExpiresAt time.Time `dynamodbav:"expires_at" json:"expires_at"`
	ReissueAt time.Time `dynamodbav:"reissue_at" json:"reissue_at"`
}

// Account is everything the client needs to act for one shipping account.
type Account struct {
	Credentials Credentials
	Token       *PersistedToken
}
