package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/redbook/internal/models"
	"github.com/ternarybob/redbook/internal/services/xhs"
)

func formatLoginStatus(status *models.LoginStatus) string {
	if status.LoggedIn {
		return fmt.Sprintf("✅ 已登录\n用户名: %s\n\n你可以使用其他功能了。", status.Username)
	}
	return "❌ 未登录\n\n请使用 get_login_qrcode 工具获取二维码进行登录。"
}

func formatAlreadyLoggedIn(result *models.HandshakeResult) string {
	if result.Warning != "" {
		return "你当前已处于登录状态\n\n注意: " + result.Warning
	}
	return "你当前已处于登录状态"
}

func formatQRCodePrompt(result *models.HandshakeResult) string {
	return fmt.Sprintf("请用小红书 App 在 %s 内扫码登录 👇", result.RemainingText())
}

func formatCookiesDeleted(path string) string {
	return fmt.Sprintf("Cookies 已成功删除，登录状态已重置。\n\n删除的文件路径: %s\n\n下次操作时，需要重新登录。", path)
}

func formatPublishResult(result *models.PublishResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n标题: %s\n图片: %d", result.Status, result.Title, result.Images)
	if result.Note != "" {
		fmt.Fprintf(&sb, "\n备注: %s", result.Note)
	}
	return sb.String()
}

func formatVideoResult(result *models.PublishResult) string {
	text := fmt.Sprintf("视频发布完成\n标题: %s", result.Title)
	if result.Note != "" {
		text += "\n备注: " + result.Note
	}
	return text
}

func formatCommentPosted(feedID string) string {
	return fmt.Sprintf("评论发表成功 - Feed ID: %s", feedID)
}

func formatCommentReplied(feedID string) string {
	return fmt.Sprintf("评论回复成功 - Feed ID: %s", feedID)
}

func likeVerb(undo bool) string {
	if undo {
		return "取消点赞"
	}
	return "点赞"
}

func favoriteVerb(undo bool) string {
	if undo {
		return "取消收藏"
	}
	return "收藏"
}

func formatInteraction(verb string, result *xhs.InteractResult) string {
	text := fmt.Sprintf("%s成功 - Feed ID: %s", verb, result.FeedID)
	if !result.Changed {
		text += "（状态未变化，已跳过）"
	}
	return text
}

// indentRaw pretty-prints raw JSON, falling back to the input unchanged
func indentRaw(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
