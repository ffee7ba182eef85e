package auth

import (
	"context"
	"fmt"
	"strings"
)

// Identity names the API client a key belongs to.
type Identity struct {
	Client string
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

type StaticAPIKeyValidator struct {
	keys map[string]Identity
}

// NewStaticAPIKeyValidator parses "key:client,key:client". An empty list
// yields a validator that rejects every key.
func NewStaticAPIKeyValidator(keys string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{keys: map[string]Identity{}}
	keys = strings.TrimSpace(keys)
	if keys == "" {
		return validator, nil
	}

	for _, entry := range strings.Split(keys, ",") {
		key, client, ok := strings.Cut(strings.TrimSpace(entry), ":")
		key = strings.TrimSpace(key)
		client = strings.TrimSpace(client)
		if !ok || key == "" || client == "" || strings.Contains(client, ":") {
			return nil, fmt.Errorf("invalid static key entry %q: expected key:client", entry)
		}
		if _, dup := validator.keys[key]; dup {
			return nil, fmt.Errorf("duplicate static key for client %q", client)
		}
		validator.keys[key] = Identity{Client: client}
	}
	return validator, nil
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := v.keys[apiKey]
	return identity, ok
}

func (v *StaticAPIKeyValidator) Len() int {
	return len(v.keys)
}
