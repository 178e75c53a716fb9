package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/yctsai/baobei/internal/llm"
	"github.com/yctsai/baobei/internal/persona"
	"github.com/yctsai/baobei/internal/trigger"
)

// diagCmd checks the local setup: configuration, credentials, data paths, and
// optionally one live round-trip per configured provider.
func diagCmd() *cobra.Command {
	var live bool
	cmd := &cobra.Command{
		Use:   "diag",
		Short: "Diagnose the local setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			report := buildDiagReport(live)

			renderer, err := glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(100),
			)
			if err != nil {
				// no styled terminal; the raw markdown is still readable
				fmt.Print(report)
				return nil
			}
			out, err := renderer.Render(report)
			if err != nil {
				fmt.Print(report)
				return nil
			}
			fmt.Print(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&live, "live", false, "send one test message to each configured provider")
	return cmd
}

func buildDiagReport(live bool) string {
	var sb strings.Builder
	sb.WriteString("# baobei 診斷報告\n\n")

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(&sb, "## 設定\n\n❌ 設定載入失敗：%v\n", err)
		return sb.String()
	}
	sb.WriteString("## 設定\n\n")
	sb.WriteString("✅ 設定載入成功\n\n")
	fmt.Fprintf(&sb, "| 項目 | 值 |\n|---|---|\n")
	fmt.Fprintf(&sb, "| 使用者設定檔 | `%s` |\n", cfg.Store.Path)
	fmt.Fprintf(&sb, "| 對話紀錄目錄 | `%s` |\n", cfg.History.DataDir)
	fmt.Fprintf(&sb, "| Gateway 位址 | `%s` |\n", cfg.Gateway.Addr)
	fmt.Fprintf(&sb, "| 指定文字供應商 | %s |\n", orDash(cfg.AI.Provider))
	fmt.Fprintf(&sb, "| 指定圖片供應商 | %s |\n", orDash(cfg.AI.ImageProvider))

	sb.WriteString("\n## 供應商\n\n")
	providers := llm.NewProviders(cfg)
	available := 0
	for _, p := range providers {
		if p.Available() {
			available++
			fmt.Fprintf(&sb, "- ✅ **%s**：已設定 API 金鑰\n", p.Name())
		} else {
			fmt.Fprintf(&sb, "- ⚠️ **%s**：未設定 API 金鑰，將被略過\n", p.Name())
		}
	}
	if available == 0 {
		sb.WriteString("\n❌ 沒有任何供應商可用，所有訊息都會走關鍵字回覆。\n")
	}

	if live && available > 0 {
		sb.WriteString("\n## 連線測試\n\n")
		for _, p := range providers {
			if !p.Available() {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			start := time.Now()
			resp, err := p.Chat(ctx, &llm.ChatRequest{Message: "ping", MaxTokens: 10})
			cancel()
			if err != nil {
				fmt.Fprintf(&sb, "- ❌ **%s**：%v\n", p.Name(), err)
				continue
			}
			fmt.Fprintf(&sb, "- ✅ **%s**：%s 回覆於 %s\n", p.Name(), resp.Model, time.Since(start).Round(time.Millisecond))
		}
	}

	sb.WriteString("\n## 資料\n\n")
	sb.WriteString(checkWritable("使用者設定檔目錄", cfg.Store.Path))
	sb.WriteString(checkWritable("對話紀錄目錄", cfg.History.DataDir+"/baobei.db"))

	catalog := persona.NewCatalog()
	fmt.Fprintf(&sb, "\n## 內容\n\n- 人設：%d 種（預設「%s」）\n- 圖片觸發詞：%d 個\n",
		len(catalog.All()), catalog.Default().DisplayName, trigger.Default().Size())

	return sb.String()
}

func checkWritable(label, path string) string {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Sprintf("- ❌ %s `%s` 無法建立：%v\n", label, dir, err)
	}
	marker := filepath.Join(dir, ".baobei-diag")
	if err := os.WriteFile(marker, []byte("ok"), 0o644); err != nil {
		return fmt.Sprintf("- ❌ %s `%s` 無法寫入：%v\n", label, dir, err)
	}
	os.Remove(marker)
	return fmt.Sprintf("- ✅ %s `%s` 可寫入\n", label, dir)
}

func orDash(s string) string {
	if s == "" {
		return "（自動）"
	}
	return s
}
