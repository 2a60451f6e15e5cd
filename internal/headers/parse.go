package headers

import (
	"fmt"
	"sort"
	"strings"

	"mcp-remote/pkg/logging"
)

const (
	// KeysForEncryption names the header whose pipe-separated value selects
	// the header keys to encrypt. It is never forwarded.
	KeysForEncryption = "keysforencryption"

	// DefaultEncryptedKeys is the encryption list used when connecting.
	DefaultEncryptedKeys = "password"
	// DefaultSecretKey is the header holding the encryption passphrase.
	DefaultSecretKey = "secret"
)

// Parse turns a "key:value,key:value" string into a header map.
//
// Keys are lower-cased. Values named by encryptionKeyNames (comma-separated)
// or by a keysforencryption header (pipe-separated, takes precedence) are
// encrypted with the value of secretKeyName as passphrase, when present.
// The secret and the keysforencryption control header are always removed.
func Parse(raw, encryptionKeyNames, secretKeyName string, c *Cipher) (map[string]string, error) {
	parsed := make(map[string]string)

	for _, entry := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		parsed[key] = strings.TrimSpace(value)
	}

	keys := strings.Split(encryptionKeyNames, ",")
	if override, ok := parsed[KeysForEncryption]; ok {
		keys = strings.Split(override, "|")
	}

	secretKeyName = strings.ToLower(strings.TrimSpace(secretKeyName))
	secret, hasSecret := parsed[secretKeyName]

	var encrypted []string
	for _, k := range keys {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || k == secretKeyName || k == KeysForEncryption {
			continue
		}
		value, ok := parsed[k]
		if !ok || !hasSecret {
			continue
		}
		if c == nil {
			return nil, fmt.Errorf("header %q requires encryption but no cipher was provided", k)
		}
		enc, err := c.Encrypt(value, secret)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt header %q: %w", k, err)
		}
		parsed[k] = enc
		encrypted = append(encrypted, k)
	}

	delete(parsed, secretKeyName)
	delete(parsed, KeysForEncryption)

	if len(encrypted) > 0 {
		sort.Strings(encrypted)
		logging.Debug("Headers", "Encrypted header values: %s", strings.Join(encrypted, ", "))
	}

	return parsed, nil
}

// Names returns the sorted header names of h, for logging without values.
func Names(h map[string]string) []string {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
