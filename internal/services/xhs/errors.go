package xhs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingKeyword  = errors.New("缺少关键词参数")
	ErrInvalidFilter   = errors.New("invalid search filter")
	ErrNoFeeds         = errors.New("no feeds captured")
	ErrNoDetail        = errors.New("没有捕获到 feed 详情数据")
	ErrCommentNotFound = errors.New("未找到评论")
	ErrInvalidCount    = errors.New("帖子数量必须大于0")
	ErrInvalidTitle    = errors.New("标题长度超过限制（最多 20 个中文字或 40 个英文单位）")
	ErrInvalidSchedule = errors.New("invalid schedule time")
	ErrVideoMissing    = errors.New("视频文件不存在或不可访问")
)

// UnreachableError means the site replaced the note with a status message
type UnreachableError struct {
	Reason string
}

func (e *UnreachableError) Error() string {
	return "笔记不可访问: " + e.Reason
}

// classifyUnreachable returns the first known status keyword in text, or the text itself
func classifyUnreachable(text string) *UnreachableError {
	text = strings.TrimSpace(text)
	for _, kw := range unreachableKeywords {
		if strings.Contains(text, kw) {
			return &UnreachableError{Reason: kw}
		}
	}
	return &UnreachableError{Reason: text}
}

func commentNotFound(commentID, userID string) error {
	return fmt.Errorf("%w (commentID: %s, userID: %s)", ErrCommentNotFound, commentID, userID)
}
