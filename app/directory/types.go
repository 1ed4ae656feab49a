package directory

import (
	"errors"
)

var (
	// ErrSourceUnavailable means an account or mapping snapshot could not
	// be read or parsed. Fatal to the request that needed the directory.
	ErrSourceUnavailable = errors.New("account source unavailable")

	// ErrNotFound means no account carries the requested puid.
	ErrNotFound = errors.New("account not found")
)

// Account is one publisher that can be addressed by its puid.
type Account struct {
	PUID       string `json:"puid"`
	InternalID string `json:"-"`
	Name       string `json:"name"`
	Signature  string `json:"signature"`
	AvatarURL  string `json:"head_img,omitempty"`
}

// OriginKey returns the value joined with msglog origin identifiers.
// key is either "puid" or "internal_id".
func (a Account) OriginKey(key string) string {
	if key == "internal_id" {
		return a.InternalID
	}
	return a.PUID
}
