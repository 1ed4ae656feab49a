package api

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/mp-rss/app/cfg"
	"github.com/lysyi3m/mp-rss/app/directory"
	"github.com/lysyi3m/mp-rss/app/feed"
	"github.com/lysyi3m/mp-rss/app/store"
	"github.com/samber/lo"
)

func NewHandler(dir DirectoryInterface, st StoreInterface, rss RSSGeneratorInterface,
	opml OPMLGeneratorInterface, c *cfg.Cfg) *Handler {
	return &Handler{
		directory: dir,
		store:     st,
		rss:       rss,
		opml:      opml,
		cfg:       c,
	}
}

func (h *Handler) ListAccounts(c *gin.Context) {
	refresh := false
	if raw := c.Query("refresh"); raw != "" {
		var err error
		if refresh, err = strconv.ParseBool(raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "refresh must be a boolean"})
			return
		}
	}

	var (
		accounts []directory.Account
		err      error
	)
	if refresh {
		accounts, err = h.directory.Refresh(c.Request.Context())
	} else {
		accounts, err = h.directory.Accounts(c.Request.Context())
	}
	if err != nil {
		h.respondError(c, err, "list_accounts")
		return
	}

	if refresh {
		slog.Info("Account directory refreshed", "accounts", len(accounts))
	}

	if !h.cfg.ExposeAvatars {
		accounts = lo.Map(accounts, func(a directory.Account, _ int) directory.Account {
			a.AvatarURL = ""
			return a
		})
	}

	c.JSON(http.StatusOK, accounts)
}

func (h *Handler) GetFeed(c *gin.Context) {
	puid := c.Param("puid")

	limit := h.cfg.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = min(n, h.cfg.MaxLimit)
	}

	account, err := h.directory.Get(c.Request.Context(), puid)
	if err != nil {
		h.respondError(c, err, "get_account", "puid", puid)
		return
	}

	messages, err := h.store.MessagesFor(c.Request.Context(), h.originID(account), limit)
	if err != nil {
		h.respondError(c, err, "get_messages", "puid", puid)
		return
	}

	rss, err := h.rss.Run(feed.Channel{
		Name:      account.Name,
		Signature: account.Signature,
		SelfURL:   h.baseURL(c) + "/api/rss/" + puid,
	}, messages)
	if err != nil {
		slog.Error("RSS generation error", "puid", puid, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("X-Feed-Items", strconv.Itoa(len(messages)))
	c.Header("X-Feed-Puid", puid)
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(rss))
}

func (h *Handler) HasArticles(c *gin.Context) {
	puid := c.Param("puid")

	account, err := h.directory.Get(c.Request.Context(), puid)
	if err != nil {
		h.respondError(c, err, "get_account", "puid", puid)
		return
	}

	ok, err := h.store.HasArticles(c.Request.Context(), h.originID(account))
	if err != nil {
		h.respondError(c, err, "has_articles", "puid", puid)
		return
	}

	c.JSON(http.StatusOK, gin.H{"has_articles": ok})
}

func (h *Handler) BatchHasArticles(c *gin.Context) {
	accounts, originIDs, ok := h.originIDs(c)
	if !ok {
		return
	}

	found, err := h.store.BatchHasArticles(c.Request.Context(), originIDs)
	if err != nil {
		h.respondError(c, err, "batch_has_articles")
		return
	}

	result := make(map[string]bool, len(accounts))
	for i, account := range accounts {
		result[account.PUID] = found[originIDs[i]]
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) BatchArticleCounts(c *gin.Context) {
	accounts, originIDs, ok := h.originIDs(c)
	if !ok {
		return
	}

	counts, err := h.store.BatchArticleCounts(c.Request.Context(), originIDs)
	if err != nil {
		h.respondError(c, err, "batch_article_counts")
		return
	}

	result := make(map[string]int, len(accounts))
	for i, account := range accounts {
		result[account.PUID] = counts[originIDs[i]]
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) ExportOPML(c *gin.Context) {
	var req opmlRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	accounts, err := h.directory.Accounts(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "export_opml")
		return
	}

	if len(req.PUIDs) > 0 {
		wanted := lo.SliceToMap(req.PUIDs, func(puid string) (string, struct{}) {
			return puid, struct{}{}
		})
		accounts = lo.Filter(accounts, func(a directory.Account, _ int) bool {
			_, ok := wanted[a.PUID]
			return ok
		})
	}

	groups := req.Groups
	if groups == nil {
		groups = h.cfg.Groups
	}

	doc, err := h.opml.Run(accounts, h.baseURL(c), cmp.Or(req.Title, h.cfg.OPMLTitle), groups)
	if err != nil {
		slog.Error("OPML generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+feed.OPMLFilename)
	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(doc))
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":           "ok",
		"timestamp":        time.Now().In(time.Local).Format(time.RFC3339),
		"version":          h.cfg.Version,
		"directory_loaded": h.directory.Loaded(),
		"accounts":         h.directory.Size(),
		"store":            "ok",
	}

	status := http.StatusOK
	if err := h.store.Ping(c.Request.Context()); err != nil {
		slog.Error("Store health check failed", "error", err)
		health["status"] = "degraded"
		health["store"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, health)
}

// originIDs resolves every account in the directory to its msglog
// origin identifier. accounts[i] corresponds to ids[i].
func (h *Handler) originIDs(c *gin.Context) ([]directory.Account, []string, bool) {
	accounts, err := h.directory.Accounts(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "list_accounts")
		return nil, nil, false
	}

	ids := lo.Map(accounts, func(a directory.Account, _ int) string {
		return h.originID(a)
	})

	return accounts, ids, true
}

func (h *Handler) originID(account directory.Account) string {
	return store.OriginID(h.cfg.OriginPrefix, account.OriginKey(h.cfg.OriginKey))
}

// baseURL is the configured public URL, or one rebuilt from the request
// when the service runs without it.
func (h *Handler) baseURL(c *gin.Context) string {
	if h.cfg.BaseUrl != "" {
		return strings.TrimRight(h.cfg.BaseUrl, "/")
	}

	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}

	host := c.Request.Host
	if fwd := c.GetHeader("X-Forwarded-Host"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}

	return scheme + "://" + host
}

func (h *Handler) respondError(c *gin.Context, err error, operation string, args ...any) {
	status := statusFor(err)

	attrs := append([]any{"operation", operation, "status", status, "error", err}, args...)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", attrs...)
	} else {
		slog.Debug("Request rejected", attrs...)
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, directory.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidLimit):
		return http.StatusBadRequest
	case errors.Is(err, directory.ErrSourceUnavailable), errors.Is(err, store.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
