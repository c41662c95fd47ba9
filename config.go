package main

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
	"tracebycolor/color2svg"
	"tracebycolor/image2color"

	"github.com/BurntSushi/toml"
)

// Config 全部可调参数，可从 TOML 文件读取
type Config struct {
	Colors         int     `toml:"colors"`
	PaletteMethod  string  `toml:"palette_method"`
	SkipWhite      bool    `toml:"skip_white"`
	WhiteThreshold uint8   `toml:"white_threshold"`
	AlphaThreshold uint8   `toml:"alpha_threshold"`
	Fuzz           float64 `toml:"fuzz"`
	Blur           float64 `toml:"blur"`
	Distance       string  `toml:"distance"`
	Partition      bool    `toml:"partition"`

	Backend      string  `toml:"backend"`
	PotracePath  string  `toml:"potrace_path"`
	TurdSize     int     `toml:"turd_size"`
	AlphaMax     float64 `toml:"alpha_max"`
	OptTolerance float64 `toml:"opt_tolerance"`

	Parallel int           `toml:"parallel"`
	Timeout  time.Duration `toml:"timeout"`
	FFmpeg   bool          `toml:"ffmpeg"`
	MaskDir  string        `toml:"mask_dir"`
}

func DefaultConfig() Config {
	p := image2color.DefaultPaletteOptions()
	m := image2color.DefaultMaskOptions()
	v := color2svg.DefaultOptions()
	return Config{
		Colors:         p.MaxColors,
		PaletteMethod:  p.Method.String(),
		SkipWhite:      p.SkipWhite,
		WhiteThreshold: p.WhiteThreshold,
		AlphaThreshold: p.AlphaThreshold,
		Fuzz:           m.Fuzz,
		Blur:           m.Blur,
		Distance:       m.Distance.String(),
		Backend:        "gotrace",
		TurdSize:       v.TurdSize,
		AlphaMax:       v.AlphaMax,
		OptTolerance:   v.OptTolerance,
		Parallel:       runtime.NumCPU(),
		Timeout:        30 * time.Second,
	}
}

// LoadConfig 在默认值上叠加 TOML 文件，未知字段报错
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Validate 检查取值范围
func (c Config) Validate() error {
	var errs []error
	if c.Colors < 1 {
		errs = append(errs, fmt.Errorf("colors must be at least 1, got %d", c.Colors))
	}
	if c.Fuzz < 0 || c.Fuzz > 100 {
		errs = append(errs, fmt.Errorf("fuzz must be within 0-100, got %g", c.Fuzz))
	}
	if c.Blur < 0 {
		errs = append(errs, fmt.Errorf("blur must not be negative, got %g", c.Blur))
	}
	if c.TurdSize < 0 {
		errs = append(errs, fmt.Errorf("turd_size must not be negative, got %d", c.TurdSize))
	}
	if c.AlphaMax < 0 {
		errs = append(errs, fmt.Errorf("alpha_max must not be negative, got %g", c.AlphaMax))
	}
	if c.OptTolerance < 0 {
		errs = append(errs, fmt.Errorf("opt_tolerance must not be negative, got %g", c.OptTolerance))
	}
	if c.Parallel < 1 {
		errs = append(errs, fmt.Errorf("parallel must be at least 1, got %d", c.Parallel))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if _, err := image2color.ParsePaletteMethod(c.PaletteMethod); err != nil {
		errs = append(errs, err)
	}
	if _, err := image2color.ParseDistance(c.Distance); err != nil {
		errs = append(errs, err)
	}
	if _, err := color2svg.ParseBackend(c.Backend, c.vectorizerOptions(), c.PotracePath); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) paletteOptions() image2color.PaletteOptions {
	method, _ := image2color.ParsePaletteMethod(c.PaletteMethod)
	return image2color.PaletteOptions{
		MaxColors:      c.Colors,
		Method:         method,
		SkipWhite:      c.SkipWhite,
		WhiteThreshold: c.WhiteThreshold,
		AlphaThreshold: c.AlphaThreshold,
	}
}

func (c Config) maskOptions() image2color.MaskOptions {
	dist, _ := image2color.ParseDistance(c.Distance)
	return image2color.MaskOptions{
		Fuzz:     c.Fuzz,
		Blur:     c.Blur,
		Distance: dist,
	}
}

func (c Config) vectorizerOptions() color2svg.Options {
	return color2svg.Options{
		TurdSize:     c.TurdSize,
		AlphaMax:     c.AlphaMax,
		OptTolerance: c.OptTolerance,
	}
}
