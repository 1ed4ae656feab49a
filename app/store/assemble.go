package store

import (
	"log/slog"
	"strings"

	"github.com/lysyi3m/mp-rss/app/metrics"
)

// NormalizeURL rewrites a plain-http scheme to https. Only the scheme is
// touched; URLs embedded in query strings are left alone.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if len(u) >= 7 && strings.EqualFold(u[:7], "http://") {
		return "https://" + u[7:]
	}
	if len(u) >= 8 && strings.EqualFold(u[:8], "https://") {
		return "https://" + u[8:]
	}
	return u
}

// Assemble decodes rows in the order given (newest first) and keeps the
// first message seen for each normalized URL. Rows that fail to decode,
// lack a URL or point outside ContentPrefix are dropped.
func Assemble(rows []Row) []Message {
	messages := make([]Message, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))

	for _, row := range rows {
		msg, ok := DecodeRow(row)
		if !ok {
			metrics.RowsDropped.WithLabelValues(metrics.DropDecode).Inc()
			slog.Debug("Skipping undecodable msglog row", "message_id", row.MessageID)
			continue
		}

		msg.URL = NormalizeURL(msg.URL)
		if msg.URL == "" {
			metrics.RowsDropped.WithLabelValues(metrics.DropNoURL).Inc()
			continue
		}
		if !strings.HasPrefix(msg.URL, ContentPrefix) {
			metrics.RowsDropped.WithLabelValues(metrics.DropDomain).Inc()
			continue
		}
		if _, dup := seen[msg.URL]; dup {
			metrics.RowsDropped.WithLabelValues(metrics.DropDuplicate).Inc()
			continue
		}
		seen[msg.URL] = struct{}{}

		messages = append(messages, msg)
	}

	return messages
}
