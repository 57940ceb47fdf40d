package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService groups the engine's secrets in the OS keychain.
	KeyringService = "realty-engine"

	proxyPasswordEnv = "REALTY_PROXY_PASSWORD"
)

var ErrNotFound = errors.New("secret not found")

// ProxyAccount names the keychain entry for a proxy user.
func ProxyAccount(proxyURL, username string) string {
	return fmt.Sprintf("realty:proxy:%s@%s", username, proxyURL)
}

// ProxyPassword looks in the keychain first, then REALTY_PROXY_PASSWORD.
func ProxyPassword(account string) (string, error) {
	if strings.TrimSpace(account) != "" {
		pw, err := keyring.Get(KeyringService, account)
		if err == nil && strings.TrimSpace(pw) != "" {
			return pw, nil
		}
	}
	if pw := os.Getenv(proxyPasswordEnv); pw != "" {
		return pw, nil
	}
	return "", fmt.Errorf("proxy password: %w (set it in the keychain or %s)", ErrNotFound, proxyPasswordEnv)
}

func SetProxyPassword(account string, password string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, account, password)
}

func DeleteProxyPassword(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}
