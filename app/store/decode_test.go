package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayloadJSON(t *testing.T) {
	attrs, ok := DecodePayload([]byte(`{"attributes":{"title":"T","description":"D","url":"https://mp.weixin.qq.com/s/a","image":"https://img/x.jpg"}}`))
	require.True(t, ok)
	assert.Equal(t, "T", attrs.Title)
	assert.Equal(t, "D", attrs.Description)
	assert.Equal(t, "https://mp.weixin.qq.com/s/a", attrs.URL)
	assert.Equal(t, "https://img/x.jpg", attrs.Image)
}

func TestDecodePayloadJSONWithoutAttributes(t *testing.T) {
	_, ok := DecodePayload([]byte(`{"text":"hello"}`))
	assert.False(t, ok)

	_, ok = DecodePayload([]byte(`{"attributes":null}`))
	assert.False(t, ok)

	_, ok = DecodePayload([]byte(`{"attributes":`))
	assert.False(t, ok)
}

func TestDecodePayloadPickleDict(t *testing.T) {
	payload := "(dp0\nS'attributes'\np1\n(dp2\nS'title'\np3\nS'Hi'\np4\nsS'url'\np5\nS'https://mp.weixin.qq.com/s/x'\np6\nss."

	attrs, ok := DecodePayload([]byte(payload))
	require.True(t, ok)
	assert.Equal(t, "Hi", attrs.Title)
	assert.Equal(t, "https://mp.weixin.qq.com/s/x", attrs.URL)
	assert.Empty(t, attrs.Description)
}

func TestDecodePayloadPickleObject(t *testing.T) {
	payload := "\x80\x02}X\x0a\x00\x00\x00attributesc" +
		"ehforwarderbot.message\nLinkAttribute\n" +
		")\x81}(X\x05\x00\x00\x00titleX\x02\x00\x00\x00HiX\x03\x00\x00\x00urlX\x1c\x00\x00\x00https://mp.weixin.qq.com/s/xubs."

	attrs, ok := DecodePayload([]byte(payload))
	require.True(t, ok)
	assert.Equal(t, "Hi", attrs.Title)
	assert.Equal(t, "https://mp.weixin.qq.com/s/x", attrs.URL)
}

func TestDecodePayloadGarbage(t *testing.T) {
	for _, payload := range [][]byte{nil, []byte("   "), {0xff, 0xfe, 0x00}} {
		_, ok := DecodePayload(payload)
		assert.False(t, ok, "payload %q", payload)
	}
}

func TestDecodeTime(t *testing.T) {
	t.Run("native", func(t *testing.T) {
		now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		got := decodeTime(now)
		require.NotNil(t, got)
		assert.True(t, got.Equal(now))
	})

	t.Run("rfc3339 utc", func(t *testing.T) {
		got := decodeTime("2024-05-01T10:00:00Z")
		require.NotNil(t, got)
		assert.True(t, got.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	})

	t.Run("offset", func(t *testing.T) {
		got := decodeTime([]byte("2024-05-01T18:00:00+08:00"))
		require.NotNil(t, got)
		assert.True(t, got.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	})

	t.Run("naive sql text", func(t *testing.T) {
		got := decodeTime("2024-05-01 10:00:00.123456")
		require.NotNil(t, got)
		assert.Equal(t, 2024, got.Year())
		assert.Equal(t, 10, got.Hour())
	})

	t.Run("unix seconds", func(t *testing.T) {
		got := decodeTime(int64(1714557600))
		require.NotNil(t, got)
		assert.Equal(t, int64(1714557600), got.Unix())
	})

	t.Run("unparseable", func(t *testing.T) {
		assert.Nil(t, decodeTime("yesterday-ish"))
		assert.Nil(t, decodeTime(""))
		assert.Nil(t, decodeTime(nil))
		assert.Nil(t, decodeTime(time.Time{}))
	})
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://mp.weixin.qq.com/s/a", "https://mp.weixin.qq.com/s/a"},
		{"https://mp.weixin.qq.com/s/a", "https://mp.weixin.qq.com/s/a"},
		{"  HTTP://mp.weixin.qq.com/s/a ", "https://mp.weixin.qq.com/s/a"},
		{"https://mp.weixin.qq.com/s?u=http://x", "https://mp.weixin.qq.com/s?u=http://x"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeURL(tt.in), tt.in)
	}
}

func TestAssemble(t *testing.T) {
	link := func(url string) []byte {
		return []byte(`{"attributes":{"title":"t","url":"` + url + `"}}`)
	}

	rows := []Row{
		{MessageID: "5", Payload: link("https://mp.weixin.qq.com/s/a"), Time: "2024-05-05T00:00:00Z"},
		{MessageID: "4", Payload: link("http://mp.weixin.qq.com/s/a"), Time: "2024-05-04T00:00:00Z"},
		{MessageID: "3", Payload: link("https://example.com/s/b"), Time: "2024-05-03T00:00:00Z"},
		{MessageID: "2", Payload: []byte{0xff}, Time: "2024-05-02T00:00:00Z"},
		{MessageID: "1", Payload: link(""), Time: "2024-05-01T00:00:00Z"},
		{MessageID: "0", Payload: link("http://mp.weixin.qq.com/s/c"), Time: "2024-04-30T00:00:00Z"},
	}

	messages := Assemble(rows)
	require.Len(t, messages, 2)
	assert.Equal(t, "https://mp.weixin.qq.com/s/a", messages[0].URL)
	assert.Equal(t, 5, messages[0].PublishedAt.UTC().Day())
	assert.Equal(t, "https://mp.weixin.qq.com/s/c", messages[1].URL)
}
