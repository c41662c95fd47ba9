package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand(os.Stderr).ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

func newRootCommand(logOut io.Writer) *cobra.Command {
	var (
		configPath string
		verbose    bool
		keepWhite  bool
		flagCfg    = DefaultConfig()
	)

	cmd := &cobra.Command{
		Use:           "tracebycolor <input.png> <output.svg> [n_colors]",
		Short:         "按颜色分层描边，把位图转成保留原色的 SVG",
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := log.InfoLevel
			if verbose {
				level = log.DebugLevel
			}
			logger := newLogger(logOut, level)

			cfg := DefaultConfig()
			if configPath != "" {
				var err error
				if cfg, err = LoadConfig(configPath); err != nil {
					return err
				}
			}
			applyFlags(cmd.Flags(), &cfg, flagCfg)
			if cmd.Flags().Changed("keep-white") {
				cfg.SkipWhite = !keepWhite
			}
			if len(args) == 3 {
				n, err := strconv.Atoi(args[2])
				if err != nil {
					return fmt.Errorf("invalid color count %q", args[2])
				}
				cfg.Colors = n
			}

			tracer, err := NewTracer(cfg, logger)
			if err != nil {
				return err
			}
			res, err := tracer.Trace(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			logger.Infof("Used %d of %d colors", len(res.Used), len(res.Palette))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "TOML 配置文件路径")
	f.BoolVarP(&verbose, "verbose", "v", false, "输出调试日志")
	f.BoolVar(&keepWhite, "keep-white", false, "保留近白色图层")
	f.StringVar(&flagCfg.PaletteMethod, "method", flagCfg.PaletteMethod, "调色板提取方式: mediancut, dominant, kmeans")
	f.Float64Var(&flagCfg.Fuzz, "fuzz", flagCfg.Fuzz, "颜色匹配容差（百分比）")
	f.Float64Var(&flagCfg.Blur, "blur", flagCfg.Blur, "二值化前的高斯模糊 sigma")
	f.StringVar(&flagCfg.Distance, "distance", flagCfg.Distance, "颜色距离: rgb, lab")
	f.BoolVar(&flagCfg.Partition, "partition", flagCfg.Partition, "每个像素只归属最近的颜色")
	f.StringVar(&flagCfg.Backend, "backend", flagCfg.Backend, "描边器: gotrace, potrace")
	f.StringVar(&flagCfg.PotracePath, "potrace", flagCfg.PotracePath, "potrace 可执行文件路径")
	f.IntVar(&flagCfg.TurdSize, "turdsize", flagCfg.TurdSize, "忽略的斑点面积")
	f.Float64Var(&flagCfg.AlphaMax, "alphamax", flagCfg.AlphaMax, "拐角平滑度")
	f.Float64Var(&flagCfg.OptTolerance, "opttolerance", flagCfg.OptTolerance, "曲线简化容差")
	f.IntVar(&flagCfg.Parallel, "parallel", flagCfg.Parallel, "并行处理的最大颜色数")
	f.DurationVar(&flagCfg.Timeout, "timeout", flagCfg.Timeout, "单个颜色的超时时间")
	f.BoolVar(&flagCfg.FFmpeg, "ffmpeg", flagCfg.FFmpeg, "无法解码时用 ffmpeg 转换输入")
	f.StringVar(&flagCfg.MaskDir, "mask-dir", flagCfg.MaskDir, "保存中间掩码的目录")

	return cmd
}

// applyFlags 只覆盖命令行上显式给出的参数
func applyFlags(fs *pflag.FlagSet, cfg *Config, from Config) {
	set := map[string]func(){
		"method":       func() { cfg.PaletteMethod = from.PaletteMethod },
		"fuzz":         func() { cfg.Fuzz = from.Fuzz },
		"blur":         func() { cfg.Blur = from.Blur },
		"distance":     func() { cfg.Distance = from.Distance },
		"partition":    func() { cfg.Partition = from.Partition },
		"backend":      func() { cfg.Backend = from.Backend },
		"potrace":      func() { cfg.PotracePath = from.PotracePath },
		"turdsize":     func() { cfg.TurdSize = from.TurdSize },
		"alphamax":     func() { cfg.AlphaMax = from.AlphaMax },
		"opttolerance": func() { cfg.OptTolerance = from.OptTolerance },
		"parallel":     func() { cfg.Parallel = from.Parallel },
		"timeout":      func() { cfg.Timeout = from.Timeout },
		"ffmpeg":       func() { cfg.FFmpeg = from.FFmpeg },
		"mask-dir":     func() { cfg.MaskDir = from.MaskDir },
	}
	fs.Visit(func(f *pflag.Flag) {
		if apply, ok := set[f.Name]; ok {
			apply()
		}
	})
}
