package models

// PublishImageRequest is an image note to publish
type PublishImageRequest struct {
	Title      string   `json:"title" validate:"required,titlewidth=40"`
	Content    string   `json:"content" validate:"required,max=1000"`
	Images     []string `json:"images" validate:"required,min=1,dive,required"`
	Tags       []string `json:"tags,omitempty"`
	ScheduleAt string   `json:"schedule_at,omitempty"` // RFC3339, 1h to 14d ahead
}

// PublishVideoRequest is a video note to publish from a local file
type PublishVideoRequest struct {
	Title      string   `json:"title" validate:"required,titlewidth=40"`
	Content    string   `json:"content" validate:"max=1000"`
	Video      string   `json:"video" validate:"required"`
	Tags       []string `json:"tags,omitempty"`
	ScheduleAt string   `json:"schedule_at,omitempty"`
}

// PublishResult describes a completed publish
type PublishResult struct {
	Title  string `json:"title"`
	Images int    `json:"images,omitempty"`
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}
