package types

import "time"

// TaskStatus represents the lifecycle state of a generation Task.
//
// The spec fixes exactly these five statuses; no transitional or
// undocumented states may be introduced.
type TaskStatus string

const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusPartial    TaskStatus = "partial"
	TaskStatusFailed     TaskStatus = "failed"
)

// Terminal reports whether the status has no further transitions.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusPartial, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// AspectRatio is the closed set of supported aspect ratios.
type AspectRatio string

const (
	AspectRatio1x1  AspectRatio = "1:1"
	AspectRatio16x9 AspectRatio = "16:9"
	AspectRatio9x16 AspectRatio = "9:16"
	AspectRatio4x3  AspectRatio = "4:3"
	AspectRatio3x4  AspectRatio = "3:4"
	AspectRatio2x3  AspectRatio = "2:3"
)

// ValidAspectRatio reports whether r belongs to the closed set.
func ValidAspectRatio(r AspectRatio) bool {
	switch r {
	case AspectRatio1x1, AspectRatio16x9, AspectRatio9x16, AspectRatio4x3, AspectRatio3x4, AspectRatio2x3:
		return true
	default:
		return false
	}
}

// ResolutionClass is the closed set of supported resolution tiers.
type ResolutionClass string

const (
	Resolution1K ResolutionClass = "1K"
	Resolution2K ResolutionClass = "2K"
	Resolution4K ResolutionClass = "4K"
)

// ValidResolutionClass reports whether c belongs to the closed set.
func ValidResolutionClass(c ResolutionClass) bool {
	switch c {
	case Resolution1K, Resolution2K, Resolution4K:
		return true
	default:
		return false
	}
}

// RefImageKind distinguishes how a reference image was supplied.
type RefImageKind string

const (
	RefImagePath   RefImageKind = "path"
	RefImageInline RefImageKind = "inline"
)

// RefImage is one reference image attached to an image-to-image request.
type RefImage struct {
	Kind  RefImageKind `json:"kind"`
	Path  string       `json:"path,omitempty"`  // absolute local path, set when Kind == RefImagePath
	Bytes []byte       `json:"bytes,omitempty"` // inline bytes, set when Kind == RefImageInline
	MIME  string       `json:"mime,omitempty"`
}

// GenerateParams carries the normalized parameters a Provider Adapter
// validates and consumes. It is also what gets frozen into Task.ParamsSnapshot.
type GenerateParams struct {
	Prompt      string          `json:"prompt"`
	ModelID     string          `json:"modelId"`
	AspectRatio AspectRatio     `json:"aspectRatio"`
	ImageSize   ResolutionClass `json:"imageSize"`
	Count       int             `json:"count"`
	RefImages   []RefImage      `json:"refImages,omitempty"`
}

// Task is one client submission to generate Count images from one prompt.
type Task struct {
	ID       string        `json:"id"`
	Prompt   string        `json:"prompt"`
	Provider string        `json:"provider"`
	ModelID  string        `json:"modelId"`
	Timeout  time.Duration `json:"timeout"`

	AspectRatio AspectRatio     `json:"aspectRatio"`
	ImageSize   ResolutionClass `json:"imageSize"`
	Count       int             `json:"count"`
	RefImages   []RefImage      `json:"refImages,omitempty"`

	Status       TaskStatus `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`

	TotalCount     int `json:"totalCount"`
	CompletedCount int `json:"completedCount"`

	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	CompletedAt time.Time `json:"completedAt,omitempty"`

	// ParamsSnapshot is the serialized GenerateParams frozen at submit
	// time, for reproducibility and UI display.
	ParamsSnapshot []byte `json:"paramsSnapshot,omitempty"`

	// Images is populated only on API responses that embed a Task's
	// Images (GET /tasks/{id}, GET /images); storage never persists it
	// as part of the Task row itself.
	Images []*Image `json:"images,omitempty"`
}

// ImageStatus is the lifecycle state of a single produced Image.
type ImageStatus string

const (
	ImageStatusPending ImageStatus = "pending"
	ImageStatusSuccess ImageStatus = "success"
	ImageStatusFailed  ImageStatus = "failed"
)

// Image is one artifact produced (or attempted) for a Task.
type Image struct {
	ID     string `json:"id"`
	TaskID string `json:"taskId"`
	Index  int    `json:"index"` // position within the task's requested Count, 0-based

	Path      string `json:"path,omitempty"`      // relative path of full-size bytes, "" until landed
	ThumbPath string `json:"thumbPath,omitempty"` // relative path of thumbnail bytes, "" if none

	ByteSize int64  `json:"byteSize"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	MIME     string `json:"mime,omitempty"`

	Status       ImageStatus `json:"status"`
	ErrorMessage string      `json:"errorMessage,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// ProviderConfig is one registered upstream provider.
type ProviderConfig struct {
	Name         string            `json:"name" yaml:"name"`
	DisplayName  string            `json:"displayName" yaml:"display_name"`
	BaseURL      string            `json:"baseUrl" yaml:"base_url"`
	APIKey       string            `json:"apiKey,omitempty" yaml:"api_key"`
	Extra        map[string]string `json:"extra,omitempty" yaml:"extra"`
	Enabled      bool              `json:"enabled" yaml:"enabled"`
	TimeoutSec   int               `json:"timeoutSec" yaml:"timeout_sec"`
	MaxRetries   int               `json:"maxRetries" yaml:"max_retries"`
	RateLimitRPS float64           `json:"rateLimitRps,omitempty" yaml:"rate_limit_rps"` // outbound requests/sec to this provider, 0 means unlimited
}

// Template is one read-only prompt/style template entry served by the
// Template Service. Pure data; PixelForge never generates or mutates
// these, only loads and filters them.
type Template struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Prompt      string   `json:"prompt"`
	Tags        []string `json:"tags,omitempty"`
	Provider    string   `json:"provider,omitempty"`
	AspectRatio AspectRatio `json:"aspectRatio,omitempty"`
}
