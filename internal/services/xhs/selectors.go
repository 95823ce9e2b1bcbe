package xhs

// Page selectors. They track the live site markup and change with it.
const (
	SelectorLoginIndicator = ".main-container .user .link-wrapper .channel"
	SelectorQRCode         = ".login-container .qrcode-img"

	selectorCommentsContainer = ".comments-container"
	selectorParentComment     = ".parent-comment"
	selectorShowMore          = ".show-more"
	selectorEndContainer      = ".end-container"
	selectorNoComments        = ".no-comments-text"
	selectorAccessWrapper     = ".access-wrapper, .error-wrapper, .not-found-wrapper, .blocked-wrapper"

	selectorFilterTrigger = "div.filter"

	selectorLikeButton    = ".interact-container .left .like-lottie"
	selectorCollectButton = ".interact-container .left .reds-icon.collect-icon"

	selectorCommentTrigger = "div.input-box div.content-edit span"
	selectorCommentInput   = "div.input-box div.content-edit p.content-input"
	selectorCommentSubmit  = "div.bottom button.submit"
	selectorReplyButton    = ".right .interactions .reply"

	selectorUploadContent  = "div.upload-content"
	selectorCreatorTab     = "div.creator-tab"
	selectorPopover        = "div.d-popover"
	selectorImageInput     = ".upload-input"
	selectorVideoInput     = ".upload-input, input[type='file']"
	selectorImagePreview   = ".img-preview-area .pr"
	selectorTitleInput     = "div.d-input input"
	selectorEditor         = "div.ql-editor"
	selectorEditorFallback = "p[data-placeholder*='输入正文描述']"
	selectorTopicItem      = "#creator-editor-topic-container .item"
	selectorScheduleRadio  = "span.el-radio__label"
	selectorScheduleInput  = "input.el-input__inner[placeholder='选择日期和时间']"
	selectorDateInput      = "input.el-input__inner[placeholder='选择日期']"
	selectorTimeInput      = "input.el-input__inner[placeholder='选择时间']"
	selectorPickerConfirm  = "button.el-picker-panel__link-btn"
	selectorSubmitButton   = "div.submit div.d-button-content"
	selectorVideoPublish   = "button.publishBtn"
)

const (
	endMarkerText      = "THE END"
	noCommentsText     = "这是一片荒地"
	uploadTabText      = "上传图文"
	uploadVideoTabText = "上传视频"
	scheduleRadioText  = "定时发布"
	pickerConfirmText  = "确定"
	submitButtonText   = "发布"
)

// unreachableKeywords are status texts the site shows instead of an inaccessible note
var unreachableKeywords = []string{
	"当前笔记暂时无法浏览",
	"该内容因违规已被删除",
	"该笔记已被删除",
	"内容不存在",
	"笔记不存在",
	"已失效",
	"私密笔记",
	"仅作者可见",
	"因用户设置，你无法查看",
	"因违规无法查看",
}
