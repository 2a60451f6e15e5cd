package oauth

import (
	"errors"
	"os"
	"time"
)

// ClientInfo is the result of dynamic client registration.
type ClientInfo struct {
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret,omitempty"`
	RedirectURI  string    `json:"redirect_uri,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// LoadClientInfo reads the registered client. It returns nil without error
// when no client has been registered yet.
func LoadClientInfo(path string) (*ClientInfo, error) {
	var info ClientInfo
	if err := ReadJSON(path, &info); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return &info, nil
}

// SaveClientInfo persists the registered client.
func SaveClientInfo(path string, info *ClientInfo) error {
	return WriteJSON(path, info)
}
