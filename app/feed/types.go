package feed

const (
	DefaultLanguage  = "zh-CN"
	DefaultOPMLTitle = "WeChat MP RSS Feeds"

	// AllGroup collects accounts without a group label. It is always the
	// last group of a bundle.
	AllGroup = "All"

	OPMLFilename = "wechat-mp-feeds.opml"
)
