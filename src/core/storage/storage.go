package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"imgtext-server-go/src/core/utils"

	"github.com/google/uuid"
)

// Area 存储区
type Area string

const (
	AreaUploads   Area = "uploads"
	AreaDocuments Area = "documents"
	AreaImages    Area = "images"
)

// Areas 全部存储区，清理时依次扫描
var Areas = []Area{AreaUploads, AreaDocuments, AreaImages}

// ErrNotFound 句柄不存在或不合法
var ErrNotFound = errors.New("artifact not found")

// Artifact 存储区中的一个文件
type Artifact struct {
	Area      Area
	Name      string
	Path      string
	CreatedAt time.Time
}

// Dirs 三个存储区的目录
type Dirs struct {
	Uploads   string
	Documents string
	Images    string
}

// Manager 负责临时文件与输出文件的创建、删除和过期清理
type Manager struct {
	dirs      map[Area]string
	retention time.Duration
	logger    *utils.TaggedLogger
	now       func() time.Time
}

// NewManager 创建存储管理器并确保目录存在
func NewManager(dirs Dirs, retention time.Duration, logger *utils.Logger) (*Manager, error) {
	m := &Manager{
		dirs: map[Area]string{
			AreaUploads:   dirs.Uploads,
			AreaDocuments: dirs.Documents,
			AreaImages:    dirs.Images,
		},
		retention: retention,
		logger:    logger.WithTag("storage"),
		now:       time.Now,
	}
	for _, area := range Areas {
		if err := os.MkdirAll(m.dirs[area], 0755); err != nil {
			return nil, fmt.Errorf("创建%s目录失败: %w", area, err)
		}
	}
	return m, nil
}

// Dir 返回存储区目录
func (m *Manager) Dir(area Area) string {
	return m.dirs[area]
}

// UniqueName 在文件名前加随机前缀，同名上传互不覆盖
func UniqueName(name string) string {
	return uuid.New().String() + "_" + name
}

// Save 把数据写入存储区，name 原样作为文件名
func (m *Manager) Save(area Area, name string, r io.Reader) (*Artifact, error) {
	path := filepath.Join(m.dirs[area], name)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("创建文件失败: %w", err)
	}

	_, copyErr := io.Copy(file, r)
	closeErr := file.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		m.Remove(path)
		return nil, fmt.Errorf("写入文件失败: %w", copyErr)
	}

	m.logger.Debug("文件已保存", map[string]interface{}{"area": area, "path": path})
	return &Artifact{Area: area, Name: name, Path: path, CreatedAt: m.now()}, nil
}

// Create 在存储区中创建文件并交给 write 写入内容，写入失败时删除文件
func (m *Manager) Create(area Area, name string, write func(w io.Writer) error) (*Artifact, error) {
	path := filepath.Join(m.dirs[area], name)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("创建文件失败: %w", err)
	}

	writeErr := write(file)
	closeErr := file.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		m.Remove(path)
		return nil, writeErr
	}
	return &Artifact{Area: area, Name: name, Path: path, CreatedAt: m.now()}, nil
}

// Remove 尽力删除文件，失败只记录日志
func (m *Manager) Remove(path string) bool {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return true
		}
		m.logger.Warn("删除文件失败", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return false
	}
	return true
}

// Open 按句柄打开存储区中的文件，句柄只能是单个文件名
func (m *Manager) Open(area Area, handle string) (*os.File, os.FileInfo, error) {
	if handle == "" || handle != filepath.Base(handle) || strings.ContainsAny(handle, `/\`) || strings.HasPrefix(handle, ".") {
		return nil, nil, ErrNotFound
	}

	path := filepath.Join(m.dirs[area], handle)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, nil, ErrNotFound
	}
	return file, info, nil
}
