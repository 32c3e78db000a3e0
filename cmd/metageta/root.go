package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chris-bingham/meta-geta/internal/app/run"
	"github.com/chris-bingham/meta-geta/internal/artwork"
	"github.com/chris-bingham/meta-geta/internal/config"
	"github.com/chris-bingham/meta-geta/internal/domain"
	"github.com/chris-bingham/meta-geta/internal/infra/cache"
	"github.com/chris-bingham/meta-geta/internal/infra/fsx"
	"github.com/chris-bingham/meta-geta/internal/infra/httpx"
	"github.com/chris-bingham/meta-geta/internal/logging"
	"github.com/chris-bingham/meta-geta/internal/match"
	"github.com/chris-bingham/meta-geta/internal/provider"
	"github.com/chris-bingham/meta-geta/internal/resolve"
	"github.com/chris-bingham/meta-geta/internal/review"
)

// streams 是命令使用的输入输出（测试可替换）。
//
// 约束：
// - stdout 只输出 review 提示与最终摘要；日志与进度走 stderr
type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer

	// interactive=true 时在 stderr 输出进度。
	interactive bool
	// table=true 时 review 候选以表格展示。
	table bool
}

func newRootCommand(s streams) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metageta [path]",
		Short: "为目录中的音频文件抓取元数据与封面并写入标签",
		Long: `metageta 扫描 path（默认当前目录）顶层的音频文件，
按文件名在配置的各站点搜索，自动写入高置信度匹配；
低置信度匹配在全部搜索完成后逐条提示确认。

配置文件：$METAGETA_CONFIG，或当前目录下的 metageta.toml / metageta.json / config.json。`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return runRoot(cmd.Context(), s, root)
		},
	}
	cmd.SetIn(s.in)
	cmd.SetOut(s.out)
	cmd.SetErr(s.err)
	return cmd
}

func runRoot(ctx context.Context, s streams, root string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("读取当前目录失败：%w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		if config.Code(err) == config.ErrCodeNotFound {
			fmt.Fprintf(s.err, "提示：在当前目录创建 metageta.toml，或用 %s 指定配置文件路径\n", config.EnvPath)
		}
		return err
	}

	log, closer := logging.New(cfg.Log, s.err)
	defer closer.Close()
	log.Debug("配置已加载", "file", cfg.File, "sites", len(cfg.Sources))
	for _, src := range cfg.Sources {
		if src.FieldErr != nil {
			log.Warn("站点选择器无效，该站点的所有尝试都会失败", "source", src.Name, "error", src.FieldErr)
		}
	}

	reg, err := provider.NewRegistry(cfg.Sources)
	if err != nil {
		return fmt.Errorf("初始化站点失败：%w", err)
	}
	pageClient, err := httpx.NewPageClient(cfg.ProxyURL)
	if err != nil {
		return fmt.Errorf("初始化 HTTP 客户端失败：%w", err)
	}
	artClient, err := httpx.NewArtworkClient(cfg.ProxyURL)
	if err != nil {
		return fmt.Errorf("初始化 HTTP 客户端失败：%w", err)
	}
	pages := provider.Fetcher{Client: pageClient}

	rootAbs := root
	if !filepath.IsAbs(rootAbs) {
		rootAbs = filepath.Join(cwd, rootAbs)
	}
	rootAbs = filepath.Clean(rootAbs)

	d := run.Deps{
		Root:     rootAbs,
		Config:   cfg,
		Registry: reg,
		Fetcher:  pages,
		Resolver: &resolve.Resolver{
			Fetcher: pages,
			Artwork: artwork.NewStore(cfg.ArtworkDir, cfg.ArtworkMaxSize, provider.Fetcher{Client: artClient}),
			Cache:   cache.New(cfg.CacheDir),
			Logger:  log.With("component", "resolve"),
		},
		Matcher:     match.New(cfg.CaseInsensitiveMatch),
		Prompter:    review.NewTerminalPrompter(s.in, s.out),
		ReviewOut:   s.out,
		ReviewTable: s.table,
		Logger:      log.With("component", "run"),
	}
	if s.interactive {
		d.Observer = newProgressUI(s.err)
	}

	rr, runErr := run.Execute(ctx, d)

	if cfg.ReportPath != "" {
		if err := writeReportFile(cfg.ReportPath, rr); err != nil {
			log.Error("写入报告失败", "path", cfg.ReportPath, "error", err)
		}
	}
	emitSummary(s, rr)
	if cfg.ReportPath != "" {
		fmt.Fprintf(s.out, "report: %s\n", cfg.ReportPath)
	}
	return runErr
}

func emitSummary(s streams, rr domain.RunReport) {
	sum := rr.Summary
	fmt.Fprintf(s.out, "\n完成：files=%s attempts=%s written=%s reviewed=%s skipped=%s no_result=%s failed=%s (%s)\n",
		humanize.Comma(int64(sum.Files)),
		humanize.Comma(int64(sum.Attempts)),
		humanize.Comma(int64(sum.Written)),
		humanize.Comma(int64(sum.Reviewed)),
		humanize.Comma(int64(sum.Skipped)),
		humanize.Comma(int64(sum.NoResult)),
		humanize.Comma(int64(sum.Failed)),
		formatRunDuration(rr),
	)
	if sum.Failed == 0 {
		return
	}
	for _, it := range rr.Items {
		if it.Status != domain.StatusFailed {
			continue
		}
		key := it.File
		if key == "" {
			key = "<run>"
		}
		if it.Source != "" {
			key += " @" + it.Source
		}
		fmt.Fprintf(s.err, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
	}
}

// formatRunDuration 输出 "3 seconds" 之类的可读耗时。
func formatRunDuration(rr domain.RunReport) string {
	if rr.FinishedAt.Sub(rr.StartedAt) < time.Second {
		return "<1s"
	}
	return strings.TrimSpace(humanize.RelTime(rr.StartedAt, rr.FinishedAt, "", ""))
}

func writeReportFile(path string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), b)
}
