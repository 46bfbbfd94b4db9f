package storage

import "github.com/cuemby/pixelforge/pkg/types"

// TaskFilter narrows ListTasks results.
type TaskFilter struct {
	Keyword string // matched against prompt substring, case-insensitive
}

// Page describes a one-indexed page request.
type Page struct {
	Number int // 1-indexed, defaults to 1
	Size   int // defaults to a server-side cap when <= 0
}

// Store defines the interface for PixelForge's metadata persistence:
// one row per Task, one row per Image, one row per ProviderConfig.
// Each mutating method is its own transaction.
type Store interface {
	// Tasks
	CreateTask(task *types.Task) error
	UpdateTask(task *types.Task) error
	GetTask(id string) (*types.Task, error)
	ListTasks(filter TaskFilter, page Page) ([]*types.Task, int, error)
	ListNonTerminalTasks() ([]*types.Task, error)
	DeleteTaskCascade(id string) error

	// Images
	UpsertImage(image *types.Image) error
	FindImage(id string) (*types.Image, error)
	ListImagesByTask(taskID string) ([]*types.Image, error)
	DeleteImage(id string) error

	// Provider configuration
	UpsertProviderConfig(cfg *types.ProviderConfig) error
	GetProviderConfig(name string) (*types.ProviderConfig, error)
	ListProviderConfigs() ([]*types.ProviderConfig, error)
	DeleteProviderConfig(name string) error

	// Utility
	Close() error
}
