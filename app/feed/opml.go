package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"
	"time"

	"github.com/lysyi3m/mp-rss/app/directory"
	"github.com/lysyi3m/mp-rss/app/metrics"
	"github.com/lysyi3m/mp-rss/app/store"
)

type OPMLGenerator struct {
	now func() time.Time
}

func NewOPMLGenerator(opts ...Option) *OPMLGenerator {
	return &OPMLGenerator{now: applyOptions(opts).now}
}

// Run renders an OPML 2.0 subscription list. With groups (puid to label)
// the outlines are nested by label in first-seen order, unlabelled
// accounts last under AllGroup; without groups the list is flat.
func (g *OPMLGenerator) Run(accounts []directory.Account, baseURL, title string, groups map[string]string) (string, error) {
	var buf bytes.Buffer

	title = cmp.Or(title, DefaultOPMLTitle)
	baseURL = strings.TrimRight(baseURL, "/")

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n<opml version=\"2.0\">\n  <head>\n")
	writeElement(&buf, "title", title, 4)
	writeElement(&buf, "dateCreated", g.now().In(time.Local).Format(time.RFC1123Z), 4)
	buf.WriteString("  </head>\n")

	if len(accounts) == 0 {
		buf.WriteString("  <body></body>\n</opml>\n")
		metrics.FeedsRendered.WithLabelValues("opml").Inc()
		return buf.String(), nil
	}

	buf.WriteString("  <body>\n")

	if len(groups) == 0 {
		for _, account := range accounts {
			writeOutline(&buf, account, baseURL, 4)
		}
	} else {
		for _, group := range groupAccounts(accounts, groups) {
			label := escapeAttr(group.label)
			buf.WriteString(fmt.Sprintf("    <outline text=\"%s\" title=\"%s\">\n", label, label))
			for _, account := range group.accounts {
				writeOutline(&buf, account, baseURL, 6)
			}
			buf.WriteString("    </outline>\n")
		}
	}

	buf.WriteString("  </body>\n</opml>\n")

	metrics.FeedsRendered.WithLabelValues("opml").Inc()

	return buf.String(), nil
}

type accountGroup struct {
	label    string
	accounts []directory.Account
}

func groupAccounts(accounts []directory.Account, groups map[string]string) []accountGroup {
	var ordered []accountGroup
	index := make(map[string]int)
	var rest []directory.Account

	for _, account := range accounts {
		label := strings.TrimSpace(groups[account.PUID])
		if label == "" || label == AllGroup {
			rest = append(rest, account)
			continue
		}

		i, ok := index[label]
		if !ok {
			i = len(ordered)
			index[label] = i
			ordered = append(ordered, accountGroup{label: label})
		}
		ordered[i].accounts = append(ordered[i].accounts, account)
	}

	if len(rest) > 0 {
		ordered = append(ordered, accountGroup{label: AllGroup, accounts: rest})
	}

	return ordered
}

func writeOutline(buf *bytes.Buffer, account directory.Account, baseURL string, indent int) {
	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	name := escapeAttr(account.Name)
	buf.WriteString(fmt.Sprintf(
		"<outline type=\"rss\" text=\"%s\" title=\"%s\" description=\"%s\" xmlUrl=\"%s\" htmlUrl=\"%s\" />\n",
		name,
		name,
		escapeAttr(account.Signature),
		escapeAttr(baseURL+"/api/rss/"+account.PUID),
		store.ContentPrefix,
	))
}
