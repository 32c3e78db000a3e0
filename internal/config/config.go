package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/chris-bingham/meta-geta/internal/extract"
)

const (
	// ErrCodeNotFound 表示没有找到任何配置文件。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeNoSources 表示配置中没有任何站点。
	ErrCodeNoSources = "config_no_sources"
)

const (
	// EnvPath 指定配置文件路径（优先于 cwd 下的默认文件名）。
	EnvPath = "METAGETA_CONFIG"

	// DefaultConcurrency 是并发的内置默认值（当配置未指定时）。
	DefaultConcurrency = 4
	maxConcurrency     = 32
)

// DefaultExtensions 是默认识别的音频扩展名（不含点，小写）。
var DefaultExtensions = []string{"mp3", "wav"}

// candidateNames 是 cwd 下依次尝试的配置文件名。
var candidateNames = []string{"metageta.toml", "metageta.json", "config.json"}

// Config 是合并默认值并校验后的最终配置（实现层直接消费，不再做二次默认判断）。
type Config struct {
	// File 是实际读取的配置文件（绝对路径）。
	File string

	Concurrency          int
	Extensions           []string
	StripTokens          []string
	CaseInsensitiveMatch bool

	ArtworkDir     string
	ArtworkMaxSize int

	CacheDir   string
	ReportPath string
	ProxyURL   string

	Log LogConfig

	// Sources 按配置顺序排列；下标即 source index。
	Sources []Source
}

// LogConfig 对应 [log] 段。
type LogConfig struct {
	Level      string
	Format     string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Source 是一个抓取站点（加载后不可变）。
type Source struct {
	Name       string
	BaseURL    string
	SearchPath string

	// RatePerSecond<=0 表示不限速。
	RatePerSecond float64

	ResultFields []extract.FieldSpec
	TrackFields  []extract.FieldSpec

	// FieldErr 非空表示该站点有字段选择器无法编译（*extract.FieldError，带字段名）。
	// 该站点的每次尝试都以 parse_failed 失败，其他站点照常运行。
	FieldErr error
}

// fileConfig 是配置文件的原始结构（toml/json 共用 koanf tag）。
type fileConfig struct {
	Concurrency          int         `koanf:"concurrency"`
	Extensions           []string    `koanf:"extensions"`
	StripTokens          []string    `koanf:"strip_tokens"`
	CaseInsensitiveMatch bool        `koanf:"case_insensitive_match"`
	ArtworkDir           string      `koanf:"artwork_dir"`
	Artwork              artworkFile `koanf:"artwork"`
	CacheDir             string      `koanf:"cache_dir"`
	ReportPath           string      `koanf:"report_path"`
	Proxy                proxyFile   `koanf:"proxy"`
	Log                  logFile     `koanf:"log"`
	Sites                []siteFile  `koanf:"sites"`
}

type artworkFile struct {
	MaxSize int `koanf:"max_size"`
}

type proxyFile struct {
	URL string `koanf:"url"`
}

type logFile struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	FilePath   string `koanf:"file_path"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

// siteFile 同时接受旧版 config.json 的 camelCase 键（baseUrl/searchPageSlug/...），
// 两种写法都出现时以 snake_case 为准。
type siteFile struct {
	Name          string      `koanf:"name"`
	BaseURL       string      `koanf:"base_url"`
	SearchPath    string      `koanf:"search_path"`
	RatePerSecond float64     `koanf:"rate_per_second"`
	ResultFields  []fieldFile `koanf:"result_fields"`
	TrackFields   []fieldFile `koanf:"track_fields"`

	LegacyBaseURL    string      `koanf:"baseUrl"`
	LegacySearchSlug string      `koanf:"searchPageSlug"`
	LegacyResults    []fieldFile `koanf:"resultPageSelectors"`
	LegacyTracks     []fieldFile `koanf:"trackPageSelectors"`
}

type fieldFile struct {
	Name      string `koanf:"name"`
	Selector  string `koanf:"selector"`
	Attribute string `koanf:"attribute"`
	First     bool   `koanf:"first"`
	Bracket   bool   `koanf:"bracket"`

	LegacyFirst   bool `koanf:"ignoreSubsequentMatchingEls"`
	LegacyBracket bool `koanf:"bracketSubsequentMatchingEls"`
}

// normalize 把旧版键合并进 snake_case 字段。
func (sf siteFile) normalize() siteFile {
	if strings.TrimSpace(sf.BaseURL) == "" {
		sf.BaseURL = sf.LegacyBaseURL
	}
	if strings.TrimSpace(sf.SearchPath) == "" {
		sf.SearchPath = sf.LegacySearchSlug
	}
	if len(sf.ResultFields) == 0 {
		sf.ResultFields = sf.LegacyResults
	}
	if len(sf.TrackFields) == 0 {
		sf.TrackFields = sf.LegacyTracks
	}
	for _, fields := range [][]fieldFile{sf.ResultFields, sf.TrackFields} {
		for i := range fields {
			fields[i].First = fields[i].First || fields[i].LegacyFirst
			fields[i].Bracket = fields[i].Bracket || fields[i].LegacyBracket
		}
	}
	return sf
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeNoSources:
		return fmt.Sprintf("%s：配置文件 %q 中没有任何 sites", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Load 按约定发现并读取配置文件。
//
// 发现规则（固定）：
// 1) 环境变量 METAGETA_CONFIG 非空：只读取该文件（不存在即 config_not_found）
// 2) 否则依次尝试 <cwd>/metageta.toml、<cwd>/metageta.json、<cwd>/config.json
//
// config.json 可以直接沿用旧版键名（baseUrl、searchPageSlug、resultPageSelectors 等）。
//
// 相对路径（artwork_dir/cache_dir/report_path/log.file_path）以 cwd 为基准。
func Load(cwd string) (Config, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	path, err := discover(cwdAbs, os.Getenv(EnvPath))
	if err != nil {
		return Config{}, err
	}
	return LoadFile(cwdAbs, path)
}

// LoadFile 读取指定配置文件（解析器按扩展名选择：.toml 或 .json）。
func LoadFile(cwd, path string) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Config{}, &Error{Code: ErrCodeNotFound, Path: path, Err: os.ErrNotExist}
		}
		return Config{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}

	k := koanf.New(".")
	var perr error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		perr = k.Load(file.Provider(path), toml.Parser())
	case ".json":
		perr = k.Load(file.Provider(path), json.Parser())
	default:
		perr = fmt.Errorf("不支持的配置文件格式：%q（只支持 .toml / .json）", filepath.Ext(path))
	}
	if perr != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: path, Err: perr}
	}

	var fc fileConfig
	if err := k.Unmarshal("", &fc); err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}
	return build(cwd, path, fc)
}

func discover(cwd, fromEnv string) (string, error) {
	if p := strings.TrimSpace(fromEnv); p != "" {
		p = absCleanFrom(cwd, p)
		if _, err := os.Stat(p); err != nil {
			return "", &Error{Code: ErrCodeNotFound, Path: p, Err: os.ErrNotExist}
		}
		return p, nil
	}
	for _, name := range candidateNames {
		p := filepath.Join(cwd, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", &Error{Code: ErrCodeNotFound, Path: filepath.Join(cwd, candidateNames[0]), Err: os.ErrNotExist}
}

func build(cwd, path string, fc fileConfig) (Config, error) {
	invalid := func(err error) error { return &Error{Code: ErrCodeInvalid, Path: path, Err: err} }

	concurrency := fc.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	// 范围 [1, 32]；超出截断。
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > maxConcurrency {
		concurrency = maxConcurrency
	}

	exts := normExtensions(fc.Extensions)
	if len(exts) == 0 {
		exts = append([]string(nil), DefaultExtensions...)
	}

	proxyURL := strings.TrimSpace(fc.Proxy.URL)
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return Config{}, invalid(fmt.Errorf("proxy.url 无效：%w", err))
		}
	}

	if fc.Artwork.MaxSize < 0 {
		return Config{}, invalid(fmt.Errorf("artwork.max_size 不能为负数：%d", fc.Artwork.MaxSize))
	}

	artworkDir := strings.TrimSpace(fc.ArtworkDir)
	if artworkDir == "" {
		artworkDir = filepath.Join(os.TempDir(), "metageta-artwork")
	} else {
		artworkDir = absCleanFrom(cwd, artworkDir)
	}

	logCfg, err := buildLog(cwd, fc.Log)
	if err != nil {
		return Config{}, invalid(err)
	}

	if len(fc.Sites) == 0 {
		return Config{}, &Error{Code: ErrCodeNoSources, Path: path}
	}
	sources := make([]Source, 0, len(fc.Sites))
	seen := make(map[string]struct{}, len(fc.Sites))
	for i, sf := range fc.Sites {
		src, err := buildSource(sf)
		if err != nil {
			return Config{}, invalid(fmt.Errorf("sites[%d]：%w", i, err))
		}
		key := strings.ToLower(src.Name)
		if _, ok := seen[key]; ok {
			return Config{}, invalid(fmt.Errorf("sites[%d]：重复的站点名 %q", i, src.Name))
		}
		seen[key] = struct{}{}
		sources = append(sources, src)
	}

	return Config{
		File:                 path,
		Concurrency:          concurrency,
		Extensions:           exts,
		StripTokens:          append([]string(nil), fc.StripTokens...),
		CaseInsensitiveMatch: fc.CaseInsensitiveMatch,
		ArtworkDir:           artworkDir,
		ArtworkMaxSize:       fc.Artwork.MaxSize,
		CacheDir:             absCleanFrom(cwd, fc.CacheDir),
		ReportPath:           absCleanFrom(cwd, fc.ReportPath),
		ProxyURL:             proxyURL,
		Log:                  logCfg,
		Sources:              sources,
	}, nil
}

func buildLog(cwd string, lf logFile) (LogConfig, error) {
	level := strings.ToLower(strings.TrimSpace(lf.Level))
	switch level {
	case "":
		level = "info"
	case "debug", "info", "warn", "error":
	default:
		return LogConfig{}, fmt.Errorf("log.level 只能是 debug/info/warn/error，实际是 %q", lf.Level)
	}
	format := strings.ToLower(strings.TrimSpace(lf.Format))
	switch format {
	case "":
		format = "text"
	case "text", "json":
	default:
		return LogConfig{}, fmt.Errorf("log.format 只能是 text/json，实际是 %q", lf.Format)
	}
	return LogConfig{
		Level:      level,
		Format:     format,
		FilePath:   absCleanFrom(cwd, lf.FilePath),
		MaxSizeMB:  lf.MaxSizeMB,
		MaxBackups: lf.MaxBackups,
		MaxAgeDays: lf.MaxAgeDays,
	}, nil
}

// buildSource 校验并编译一个站点。
//
// 规则：
// - name 为空时取 base_url 的 host（旧版 config.json 的站点没有 name）
// - 选择器编译失败不算配置错误：记在 Source.FieldErr 上，其余字段照常编译
// - 其他字段错误（name 为空、first+bracket 同时开启等）仍然让整个配置无效
func buildSource(sf siteFile) (Source, error) {
	sf = sf.normalize()
	base := strings.TrimSpace(sf.BaseURL)
	u, err := url.Parse(base)
	name := strings.TrimSpace(sf.Name)
	if name == "" && err == nil {
		name = u.Hostname()
	}
	if name == "" {
		return Source{}, errors.New("name 不能为空")
	}
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Source{}, fmt.Errorf("站点 %q 的 base_url 无效：%q", name, base)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Source{}, fmt.Errorf("站点 %q 的 base_url 必须是 http/https：%q", name, base)
	}
	if strings.TrimSpace(sf.SearchPath) == "" {
		return Source{}, fmt.Errorf("站点 %q 缺少 search_path", name)
	}
	if sf.RatePerSecond < 0 {
		return Source{}, fmt.Errorf("站点 %q 的 rate_per_second 不能为负数", name)
	}

	if !hasField(sf.ResultFields, extract.FieldTitle) {
		return Source{}, fmt.Errorf("站点 %q 的 result_fields 缺少 %q", name, extract.FieldTitle)
	}
	results, resultErr, err := compileFields(sf.ResultFields)
	if err != nil {
		return Source{}, fmt.Errorf("站点 %q 的 result_fields：%w", name, err)
	}
	tracks, trackErr, err := compileFields(sf.TrackFields)
	if err != nil {
		return Source{}, fmt.Errorf("站点 %q 的 track_fields：%w", name, err)
	}

	src := Source{
		Name:          name,
		BaseURL:       base,
		SearchPath:    strings.TrimSpace(sf.SearchPath),
		RatePerSecond: sf.RatePerSecond,
		ResultFields:  results,
		TrackFields:   tracks,
	}
	if resultErr != nil {
		src.FieldErr = resultErr
	} else {
		src.FieldErr = trackErr
	}
	return src, nil
}

// compileFields 编译字段列表。第一个非法选择器通过 fieldErr 返回（该字段被跳过）；
// 其他编译错误通过 err 返回。
func compileFields(in []fieldFile) (out []extract.FieldSpec, fieldErr, err error) {
	out = make([]extract.FieldSpec, 0, len(in))
	for i, f := range in {
		fs, cerr := extract.Compile(f.Name, f.Selector, f.Attribute, f.First, f.Bracket)
		if cerr != nil {
			if errors.Is(cerr, extract.ErrBadSelector) {
				if fieldErr == nil {
					fieldErr = cerr
				}
				continue
			}
			return nil, nil, fmt.Errorf("[%d]：%w", i, cerr)
		}
		out = append(out, fs)
	}
	return out, fieldErr, nil
}

func hasField(fields []fieldFile, name string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f.Name) == name {
			return true
		}
	}
	return false
}

func normExtensions(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, e := range in {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute；空串保持为空。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}
