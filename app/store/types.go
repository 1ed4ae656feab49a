package store

import (
	"errors"
	"time"
)

const (
	// ContentPrefix is the allow-list for feed items: only article links
	// under the publisher platform survive.
	ContentPrefix = "https://mp.weixin.qq.com"

	msgTypeLink = "Link"
	batchSize   = 500
)

var (
	// ErrStoreUnavailable means the message log could not be opened or
	// queried. Fatal to the request.
	ErrStoreUnavailable = errors.New("message store unavailable")

	ErrInvalidLimit = errors.New("limit must be at least 1")
)

// Message is one link-type post captured in the message log.
type Message struct {
	Title       string
	Description string
	URL         string
	ImageURL    string
	PublishedAt *time.Time
}

// Row is a raw msglog row before payload decoding.
type Row struct {
	MessageID string
	Payload   []byte
	Time      interface{}
}

// OriginID builds the msglog slave_origin_uid for an account key.
func OriginID(prefix, key string) string {
	return prefix + " " + key
}
