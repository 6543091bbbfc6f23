package storage

import (
	"fmt"
	"sync"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/logger"
)

// Manager resolves disks by name. S3 is only booted when S3_BUCKET is set.
type Manager struct {
	mu    sync.RWMutex
	disks map[string]Disk
}

// NewManager boots the local disk and, when configured, the s3 disk.
func NewManager() *Manager {
	m := &Manager{disks: map[string]Disk{
		"local": NewLocalDisk(
			config.Get("STORAGE_LOCAL_ROOT", "storage"),
			config.Get("STORAGE_URL", "http://localhost:"+config.AppPort()+"/storage"),
		),
	}}

	if config.Get("S3_BUCKET", "") != "" {
		d, err := NewS3Disk(S3Options{
			Bucket:   config.Get("S3_BUCKET", ""),
			Region:   config.Get("S3_REGION", "us-east-1"),
			Key:      config.Get("S3_KEY", ""),
			Secret:   config.Get("S3_SECRET", ""),
			Endpoint: config.Get("S3_ENDPOINT", ""),
			BaseURL:  config.Get("S3_URL", ""),
		})
		if err != nil {
			logger.Warn("storage: s3 disk disabled", "error", err)
		} else {
			m.disks["s3"] = d
		}
	}
	return m
}

// Register plugs in a disk under name.
func (m *Manager) Register(name string, d Disk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disks[name] = d
}

// Disk returns the named disk. An empty name selects STORAGE_DISK.
func (m *Manager) Disk(name string) (Disk, error) {
	if name == "" {
		name = config.Get("STORAGE_DISK", "local")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.disks[name]
	if !ok {
		return nil, fmt.Errorf("storage: disk %q is not configured", name)
	}
	return d, nil
}
