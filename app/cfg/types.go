package cfg

type Cfg struct {
	// Snapshot sources
	AccountsPath string
	MappingPath  string
	StorePath    string
	InitStore    bool

	// Message store join
	OriginPrefix string
	OriginKey    string

	// HTTP server
	Host          string
	Port          string
	BaseUrl       string
	ExposeAvatars bool
	DefaultLimit  int
	MaxLimit      int

	// Feed presentation
	Language    string
	OPMLTitle   string
	HiddenNames []string
	Groups      map[string]string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}

// Addr returns the listen address for the HTTP server.
func (c *Cfg) Addr() string {
	return c.Host + ":" + c.Port
}

// fileCfg mirrors the YAML settings file. Key names follow the
// config.yaml layout the extraction tooling already writes.
type fileCfg struct {
	AccountsPath string `yaml:"wxpy_pkl_path"`
	MappingPath  string `yaml:"wxpy_puid_pkl_path"`
	StorePath    string `yaml:"tgdata_db_path"`

	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	BaseUrl     string            `yaml:"base_url"`
	Language    string            `yaml:"language"`
	OPMLTitle   string            `yaml:"opml_title"`
	HiddenNames []string          `yaml:"hidden_names"`
	Groups      map[string]string `yaml:"groups"`
}
