package untis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appLog "untiscal/internal/log"
	"untiscal/internal/model"
)

// ErrNoSession indicates the session bundle is missing or carries no
// bearer token; the external login flow has to run first.
var ErrNoSession = errors.New("no session token")

// flexID tolerates both string and numeric JSON encodings of an ID.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// sessionBundle is the JSON file deposited by the external SSO login flow.
type sessionBundle struct {
	Cookies     []model.Cookie `json:"cookies"`
	BearerToken string         `json:"bearer_token"`
	PersonID    flexID         `json:"person_id"`
	TenantID    flexID         `json:"tenant_id"`
	Timestamp   float64        `json:"timestamp"` // unix seconds
}

// LoadSession reads a session bundle file and turns it into an immutable
// credential bound to the given server host. Tenant and person identifiers
// missing from the bundle are recovered from the bearer token claims.
func LoadSession(path, server string) (model.Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Credential{}, fmt.Errorf("read session bundle: %w", err)
	}

	var b sessionBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return model.Credential{}, fmt.Errorf("parse session bundle: %w", err)
	}
	if b.BearerToken == "" {
		return model.Credential{}, ErrNoSession
	}

	cred := model.Credential{
		Server:      server,
		BearerToken: b.BearerToken,
		TenantID:    string(b.TenantID),
		PersonID:    string(b.PersonID),
		Cookies:     b.Cookies,
	}

	if cred.TenantID == "" || cred.PersonID == "" || cred.Username == "" {
		tenant, person, username, cerr := tokenClaims(b.BearerToken)
		if cerr != nil {
			appLog.Warn("could not decode bearer token claims", "err", cerr)
		} else {
			if cred.TenantID == "" {
				cred.TenantID = tenant
			}
			if cred.PersonID == "" {
				cred.PersonID = person
			}
			cred.Username = username
		}
	}

	if b.Timestamp > 0 {
		age := time.Since(time.Unix(int64(b.Timestamp), 0))
		appLog.Info("session bundle loaded",
			"cookies", len(b.Cookies),
			"age_minutes", fmt.Sprintf("%.1f", age.Minutes()),
		)
	}

	return cred, nil
}

// tokenClaims decodes routing claims from the bearer JWT without verifying
// the signature. We do not hold the signing key; the token is only a carrier
// for tenant_id / person_id / username.
func tokenClaims(token string) (tenant, person, username string, err error) {
	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return "", "", "", err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", "", errors.New("unexpected claims type")
	}
	return claimString(claims, "tenant_id"),
		claimString(claims, "person_id"),
		claimString(claims, "username"),
		nil
}

// claimString renders a claim value as a string regardless of its JSON type.
func claimString(claims jwt.MapClaims, key string) string {
	v, ok := claims[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	default:
		return fmt.Sprint(t)
	}
}
