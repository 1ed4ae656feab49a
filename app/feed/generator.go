package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lysyi3m/mp-rss/app/metrics"
	"github.com/lysyi3m/mp-rss/app/store"
	"golang.org/x/text/language"
)

// Channel is the per-account metadata of an RSS document.
type Channel struct {
	Name      string
	Signature string
	SelfURL   string
}

type RSSGenerator struct {
	language string
	version  string
	now      func() time.Time
}

type options struct {
	now func() time.Time
}

type Option func(*options)

// WithClock replaces time.Now as the source of render time.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewRSSGenerator validates lang as a BCP 47 tag and returns a generator
// that stamps documents with it.
func NewRSSGenerator(lang, version string, opts ...Option) (*RSSGenerator, error) {
	tag, err := language.Parse(cmp.Or(lang, DefaultLanguage))
	if err != nil {
		return nil, fmt.Errorf("invalid feed language %q: %w", lang, err)
	}

	return &RSSGenerator{
		language: tag.String(),
		version:  version,
		now:      applyOptions(opts).now,
	}, nil
}

func (g *RSSGenerator) Run(channel Channel, messages []store.Message) (string, error) {
	var buf bytes.Buffer

	renderedAt := g.now().In(time.Local)

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	writeRequiredElement(&buf, "title", channel.Name, 4)
	writeElement(&buf, "link", cmp.Or(channel.SelfURL, store.ContentPrefix), 4)
	writeElement(&buf, "description", cmp.Or(channel.Signature, fmt.Sprintf("%s - WeChat Public Account", channel.Name)), 4)
	writeElement(&buf, "language", g.language, 4)
	writeElement(&buf, "lastBuildDate", renderedAt.Format(time.RFC1123Z), 4)
	writeElement(&buf, "generator", fmt.Sprintf("mp-rss/%s", cmp.Or(g.version, "dev")), 4)

	if channel.SelfURL != "" {
		buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
			escapeAttr(channel.SelfURL)))
	}

	for _, msg := range messages {
		g.writeItem(&buf, msg, renderedAt)
	}

	buf.WriteString("  </channel>\n</rss>\n")

	metrics.FeedsRendered.WithLabelValues("rss").Inc()
	metrics.FeedItems.Observe(float64(len(messages)))

	return buf.String(), nil
}

func (g *RSSGenerator) writeItem(buf *bytes.Buffer, msg store.Message, renderedAt time.Time) {
	buf.WriteString("    <item>\n")

	writeElement(buf, "title", cmp.Or(msg.Title, "Untitled"), 6)
	writeElement(buf, "link", msg.URL, 6)
	writeElement(buf, "description", itemBody(msg), 6)

	buf.WriteString("      <guid isPermaLink=\"true\">")
	xml.EscapeText(buf, []byte(msg.URL))
	buf.WriteString("</guid>\n")

	published := renderedAt
	if msg.PublishedAt != nil {
		published = msg.PublishedAt.In(time.Local)
	}
	writeElement(buf, "pubDate", published.Format(time.RFC1123Z), 6)

	buf.WriteString("    </item>\n")
}

// itemBody prefixes the description with the cover image. Telegraph
// hosts full articles rather than images, so those become a link.
func itemBody(msg store.Message) string {
	var body strings.Builder

	if msg.ImageURL != "" {
		image := html.EscapeString(msg.ImageURL)
		if strings.Contains(msg.ImageURL, "telegra.ph") {
			body.WriteString(`<a href="` + image + `">[Telegraph]</a><br/>`)
		} else {
			body.WriteString(`<img src="` + image + `" /><br/>`)
		}
	}
	body.WriteString(msg.Description)

	return body.String()
}

func writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}
	writeRequiredElement(buf, tag, content, indent)
}

// writeRequiredElement writes the element even when content is empty.
func writeRequiredElement(buf *bytes.Buffer, tag, content string, indent int) {
	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

// escapeAttr escapes an attribute value. Characters XML does not allow
// become U+FFFD.
func escapeAttr(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}
