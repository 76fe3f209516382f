package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Inputs      InputsConfig      `yaml:"inputs"`
	EarthEngine EarthEngineConfig `yaml:"earthengine"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Output      OutputConfig      `yaml:"output"`
	Map         MapConfig         `yaml:"map"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// 单个shp及其名称字段
type Dataset struct {
	Path      string `yaml:"path"`
	NameField string `yaml:"name_field"`
}

type InputsConfig struct {
	TrustSites Dataset `yaml:"trust_sites"` // 仅展示
	England    Dataset `yaml:"england"`
	Wales      Dataset `yaml:"wales"`
}

type EarthEngineConfig struct {
	Project         string  `yaml:"project"`
	BaseURL         string  `yaml:"base_url"`
	CredentialsFile string  `yaml:"credentials_file"`
	Dataset         string  `yaml:"dataset"`
	Timeout         string  `yaml:"timeout"` // 空或0表示不超时
	Scale           float64 `yaml:"scale"`
	MaxPixels       float64 `yaml:"max_pixels"`
}

type AnalysisConfig struct {
	TreeCoverMin  float64 `yaml:"tree_cover_min"`
	AreaDivisor   float64 `yaml:"area_divisor"`
	LossThreshold float64 `yaml:"loss_threshold"`
}

type OutputConfig struct {
	HTML        string `yaml:"html"`
	FlaggedShp  string `yaml:"flagged_shp"`
	MetricsFile string `yaml:"metrics_file"`
}

type MapConfig struct {
	Title string `yaml:"title"`
	Zoom  int    `yaml:"zoom"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug/info/warn/error
}

func DefaultConfig() *Config {
	return &Config{
		Inputs: InputsConfig{
			TrustSites: Dataset{Path: filepath.Join("data", "NT_Land_Always_Open.shp"), NameField: "name"},
			England:    Dataset{Path: filepath.Join("data", "england_ct_1991.shp"), NameField: "name"},
			Wales:      Dataset{Path: filepath.Join("data", "wales_ct_1991.shp"), NameField: "name"},
		},
		EarthEngine: EarthEngineConfig{
			Project:   "uk-nationaltrust",
			Dataset:   "UMD/hansen/global_forest_change_2023_v1_11",
			Scale:     30,
			MaxPixels: 1e9,
		},
		Analysis: AnalysisConfig{
			TreeCoverMin:  30,
			AreaDivisor:   1e7,
			LossThreshold: 10.0,
		},
		Output: OutputConfig{
			HTML: "NT_forest_loss.html",
		},
		Map: MapConfig{
			Title: "National Trust forest loss",
			Zoom:  5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// 先读.env（可缺省）与path处的YAML（path可为空），再应用环境变量覆盖
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("EE_PROJECT"); v != "" {
		c.EarthEngine.Project = v
	}
	if v := os.Getenv("EE_BASE_URL"); v != "" {
		c.EarthEngine.BaseURL = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" && c.EarthEngine.CredentialsFile == "" {
		c.EarthEngine.CredentialsFile = v
	}
	if v := os.Getenv("FORESTLOSS_OUTPUT"); v != "" {
		c.Output.HTML = v
	}
	if v := os.Getenv("FORESTLOSS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) Validate() error {
	var missing []string
	if c.Inputs.England.Path == "" {
		missing = append(missing, "inputs.england.path")
	}
	if c.Inputs.Wales.Path == "" {
		missing = append(missing, "inputs.wales.path")
	}
	if c.Inputs.England.NameField == "" || c.Inputs.Wales.NameField == "" {
		missing = append(missing, "inputs.*.name_field")
	}
	if c.EarthEngine.Project == "" {
		missing = append(missing, "earthengine.project")
	}
	if c.Output.HTML == "" {
		missing = append(missing, "output.html")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing %s", strings.Join(missing, ", "))
	}
	if _, err := c.GetTimeout(); err != nil {
		return err
	}
	return nil
}

// 解析earthengine.timeout，0表示不超时
func (c *Config) GetTimeout() (time.Duration, error) {
	s := strings.TrimSpace(c.EarthEngine.Timeout)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("config: earthengine.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: earthengine.timeout must not be negative")
	}
	return d, nil
}
