package api

import (
	"context"

	"github.com/lysyi3m/mp-rss/app/cfg"
	"github.com/lysyi3m/mp-rss/app/directory"
	"github.com/lysyi3m/mp-rss/app/feed"
	"github.com/lysyi3m/mp-rss/app/store"
)

type DirectoryInterface interface {
	Accounts(ctx context.Context) ([]directory.Account, error)
	Get(ctx context.Context, puid string) (directory.Account, error)
	Refresh(ctx context.Context) ([]directory.Account, error)
	Loaded() bool
	Size() int
}

type StoreInterface interface {
	MessagesFor(ctx context.Context, originID string, limit int) ([]store.Message, error)
	HasArticles(ctx context.Context, originID string) (bool, error)
	BatchHasArticles(ctx context.Context, originIDs []string) (map[string]bool, error)
	BatchArticleCounts(ctx context.Context, originIDs []string) (map[string]int, error)
	Ping(ctx context.Context) error
}

type RSSGeneratorInterface interface {
	Run(channel feed.Channel, messages []store.Message) (string, error)
}

type OPMLGeneratorInterface interface {
	Run(accounts []directory.Account, baseURL, title string, groups map[string]string) (string, error)
}

var (
	_ DirectoryInterface     = (*directory.Cache)(nil)
	_ StoreInterface         = (*store.Reader)(nil)
	_ RSSGeneratorInterface  = (*feed.RSSGenerator)(nil)
	_ OPMLGeneratorInterface = (*feed.OPMLGenerator)(nil)
)

type Handler struct {
	directory DirectoryInterface
	store     StoreInterface
	rss       RSSGeneratorInterface
	opml      OPMLGeneratorInterface
	cfg       *cfg.Cfg
}

type opmlRequest struct {
	PUIDs  []string          `json:"puids"`
	Groups map[string]string `json:"groups"`
	Title  string            `json:"title"`
}
