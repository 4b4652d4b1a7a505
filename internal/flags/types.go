package flags

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("flag not found")
	ErrInvalidKey = errors.New("invalid flag key")
)

type Flag struct {
	Key       string    `json:"key"`
	Value     bool      `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	providerPrefix = "provider."
	disabledSuffix = ".disabled"
)

// ProviderKey is the flag that switches an upstream provider off when true.
func ProviderKey(provider string) string {
	return providerPrefix + provider + disabledSuffix
}

// ProviderFromKey reports the provider a kill-switch key refers to.
func ProviderFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, providerPrefix) || !strings.HasSuffix(key, disabledSuffix) {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(key, providerPrefix), disabledSuffix)
	return name, name != ""
}
