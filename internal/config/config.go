package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/lestrrat-go/strftime"
	"github.com/mitchellh/go-homedir"

	"github.com/John-Robertt/gopro-transfer/internal/infra/logx"
)

const (
	// ErrCodeNotFound 表示显式指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	// EnvConfigFile 指定配置文件路径（CLI --config 优先）。
	EnvConfigFile = "GOPRO_CONFIG"
	// DefaultConfigFile 是 cwd 下可选的默认配置文件。
	DefaultConfigFile = ".env"
)

// Settings 是环境变量 / 配置文件中的设置（GOPRO_ 前缀）。
// 环境变量优先于配置文件；两者都缺失时使用 env-default。
type Settings struct {
	SourcePath       string   `yaml:"source_path" json:"source_path" env:"GOPRO_SOURCE_PATH" env-default:"/Volumes/GoPro" validate:"required"`
	DestinationPath  string   `yaml:"destination_path" json:"destination_path" env:"GOPRO_DESTINATION_PATH" env-default:"~/Documents/Videos/GoPro" validate:"required"`
	MediaDir         string   `yaml:"media_dir" json:"media_dir" env:"GOPRO_MEDIA_DIR" env-default:"100GOPRO" validate:"excludesall=/\\"`
	DateFormat       string   `yaml:"date_format" json:"date_format" env:"GOPRO_DATE_FORMAT" env-default:"%Y-%m-%d" validate:"required"`
	FileExtensions   []string `yaml:"file_extensions" json:"file_extensions" env:"GOPRO_FILE_EXTENSIONS" env-default:".MP4,.JPG,.RAW" validate:"min=1,dive,startswith=.,excludesall=/\\"`
	LogLevel         string   `yaml:"log_level" json:"log_level" env:"GOPRO_LOG_LEVEL" env-default:"INFO"`
	LogFile          string   `yaml:"log_file" json:"log_file" env:"GOPRO_LOG_FILE"`
	AllDates         bool     `yaml:"all_dates" json:"all_dates" env:"GOPRO_ALL_DATES" env-default:"false"`
	Move             bool     `yaml:"move" json:"move" env:"GOPRO_MOVE" env-default:"false"`
	TelemetryFormats []string `yaml:"telemetry_formats" json:"telemetry_formats" env:"GOPRO_TELEMETRY_FORMATS" env-default:"json,csv" validate:"min=1,dive,oneof=json csv yaml"`
	FfprobePath      string   `yaml:"ffprobe_path" json:"ffprobe_path" env:"GOPRO_FFPROBE_PATH" env-default:"ffprobe" validate:"required"`
}

// CLIArgs 是 CLI 暴露的覆盖项，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --move=false 必须能覆盖 GOPRO_MOVE=true。
type CLIArgs struct {
	ConfigFile string

	Source      string
	Destination string

	MediaDir   string
	AllFolders bool

	DateFormat string
	Extensions []string
	Formats    []string

	LogLevel string
	LogFile  string

	Move    bool
	MoveSet bool

	AllDates    bool
	AllDatesSet bool

	DryRun    bool
	Telemetry bool
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（各组件直接消费，只读）。
type EffectiveConfig struct {
	// ConfigFile 是实际读取的配置文件；为空表示只用了环境变量与默认值。
	ConfigFile string

	Source      string
	Destination string
	// MediaDir 为空表示全部子目录。
	MediaDir   string
	DateFormat string
	Extensions []string

	LogLevel logx.LogStatus
	LogFile  string

	AllDates  bool
	Move      bool
	DryRun    bool
	Telemetry bool

	TelemetryFormats []string
	FfprobePath      string
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
	case ErrCodeInvalid:
		if e.Path == "" {
			return fmt.Sprintf("%s：配置无效：%v", e.Code, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
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

var validate = validator.New()

// LoadEffective 读取设置并与 CLI 参数合并为最终配置。
//
// 配置文件发现规则（固定）：
// 1) --config 或 GOPRO_CONFIG 指定：必须存在
// 2) 否则 <cwd>/.env 存在则读取（可选）
//
// 覆盖优先级（固定）：CLI > 环境变量 > 配置文件 > 默认值。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath, err := discover(cwdAbs, cli.ConfigFile)
	if err != nil {
		return EffectiveConfig{}, err
	}

	var s Settings
	switch {
	case cfgPath == "":
		err = cleanenv.ReadEnv(&s)
	case strings.EqualFold(filepath.Ext(cfgPath), ".env"):
		err = readDotEnv(cfgPath, &s)
	default:
		err = cleanenv.ReadConfig(cfgPath, &s)
	}
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	return merge(cwdAbs, cli, s, cfgPath)
}

// readDotEnv 读取 .env：只补充进程环境中缺失的键，已有环境变量优先。
// 补充的键只在 ReadEnv 期间存在，返回前删除。
func readDotEnv(path string, s *Settings) error {
	vars, err := godotenv.Read(path)
	if err != nil {
		return err
	}

	var added []string
	defer func() {
		for _, k := range added {
			_ = os.Unsetenv(k)
		}
	}()
	for k, v := range vars {
		if _, ok := os.LookupEnv(k); ok {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return err
		}
		added = append(added, k)
	}
	return cleanenv.ReadEnv(s)
}

func discover(cwd, cliPath string) (string, error) {
	explicit := strings.TrimSpace(cliPath)
	if explicit == "" {
		explicit = strings.TrimSpace(os.Getenv(EnvConfigFile))
	}
	if explicit != "" {
		p, err := expandAbs(cwd, explicit)
		if err != nil {
			return "", &Error{Code: ErrCodeInvalid, Path: explicit, Err: err}
		}
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				return "", &Error{Code: ErrCodeNotFound, Path: p, Err: os.ErrNotExist}
			}
			return "", &Error{Code: ErrCodeInvalid, Path: p, Err: err}
		}
		return p, nil
	}

	p := filepath.Join(cwd, DefaultConfigFile)
	if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
		return p, nil
	}
	return "", nil
}

func merge(cwd string, cli CLIArgs, s Settings, cfgPath string) (EffectiveConfig, error) {
	invalid := func(err error) (EffectiveConfig, error) {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	// CLI 覆盖：字符串/列表以“非空”视为已指定，布尔值看 *Set。
	if v := strings.TrimSpace(cli.Source); v != "" {
		s.SourcePath = v
	}
	if v := strings.TrimSpace(cli.Destination); v != "" {
		s.DestinationPath = v
	}
	if cli.AllFolders {
		s.MediaDir = ""
	} else if v := strings.TrimSpace(cli.MediaDir); v != "" {
		s.MediaDir = v
	}
	if cli.DateFormat != "" {
		s.DateFormat = cli.DateFormat
	}
	if len(cli.Extensions) > 0 {
		s.FileExtensions = cli.Extensions
	}
	if len(cli.Formats) > 0 {
		s.TelemetryFormats = cli.Formats
	}
	if v := strings.TrimSpace(cli.LogLevel); v != "" {
		s.LogLevel = v
	}
	if v := strings.TrimSpace(cli.LogFile); v != "" {
		s.LogFile = v
	}
	if cli.MoveSet {
		s.Move = cli.Move
	}
	if cli.AllDatesSet {
		s.AllDates = cli.AllDates
	}

	s.FileExtensions = normalizeList(s.FileExtensions, false)
	s.TelemetryFormats = normalizeList(s.TelemetryFormats, true)
	s.MediaDir = strings.TrimSpace(s.MediaDir)

	if err := validate.Struct(s); err != nil {
		return invalid(err)
	}

	level, err := logx.ParseLevel(s.LogLevel)
	if err != nil {
		return invalid(err)
	}
	if _, err := strftime.New(s.DateFormat); err != nil {
		return invalid(fmt.Errorf("date_format 无效：%q：%w", s.DateFormat, err))
	}

	source, err := expandAbs(cwd, s.SourcePath)
	if err != nil {
		return invalid(err)
	}
	dest, err := expandAbs(cwd, s.DestinationPath)
	if err != nil {
		return invalid(err)
	}
	logFile := ""
	if strings.TrimSpace(s.LogFile) != "" {
		if logFile, err = expandAbs(cwd, s.LogFile); err != nil {
			return invalid(err)
		}
	}

	return EffectiveConfig{
		ConfigFile:       cfgPath,
		Source:           source,
		Destination:      dest,
		MediaDir:         s.MediaDir,
		DateFormat:       s.DateFormat,
		Extensions:       s.FileExtensions,
		LogLevel:         level,
		LogFile:          logFile,
		AllDates:         s.AllDates,
		Move:             s.Move,
		DryRun:           cli.DryRun,
		Telemetry:        cli.Telemetry,
		TelemetryFormats: s.TelemetryFormats,
		FfprobePath:      strings.TrimSpace(s.FfprobePath),
	}, nil
}

// normalizeList 去掉空白项并去重（保持首次出现的顺序）。
// 扩展名大小写敏感，保持原样；格式名统一小写。
func normalizeList(in []string, lower bool) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// expandAbs 展开 ~ 并以 base 为基准把 p 变为 clean + absolute。
func expandAbs(base, p string) (string, error) {
	p, err := homedir.Expand(strings.TrimSpace(p))
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", nil
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p, nil
	}
	return filepath.Clean(filepath.Join(base, p)), nil
}

// SplitList 解析 CLI 中逗号分隔的列表参数。
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}
