package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/healtrip/healtrip-api/internal/utils"
)

var ErrIdentityUnavailable = errors.New("identity provider unavailable")

// IdentityClient reads user profiles from the external auth provider.
type IdentityClient struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func NewIdentityClient(baseURL, secretKey string, timeout time.Duration) *IdentityClient {
	return &IdentityClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		http:      &http.Client{Timeout: timeout},
	}
}

type providerUser struct {
	ID                    string `json:"id"`
	FirstName             string `json:"first_name"`
	LastName              string `json:"last_name"`
	PrimaryEmailAddressID string `json:"primary_email_address_id"`
	EmailAddresses        []struct {
		ID           string `json:"id"`
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

func (u providerUser) email() string {
	for _, e := range u.EmailAddresses {
		if e.ID == u.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

// Lookup fetches the provider's view of externalID.
func (c *IdentityClient) Lookup(ctx context.Context, externalID string) (*utils.Identity, error) {
	if c.secretKey == "" {
		return nil, ErrIdentityUnavailable
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/users/"+url.PathEscape(externalID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Status: resp.StatusCode, Message: "identity lookup failed"}
	}

	var u providerUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	return &utils.Identity{
		ExternalID: u.ID,
		Email:      u.email(),
		FirstName:  u.FirstName,
		LastName:   u.LastName,
	}, nil
}
