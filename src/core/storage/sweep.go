package storage

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// SweepReport 一次过期清理的统计
type SweepReport struct {
	Scanned int `json:"scanned"`
	Expired int `json:"expired"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// Sweep 删除三个存储区中修改时间早于 now-retention 的文件。
// 单个文件失败不影响其余文件，子目录不处理。
func (m *Manager) Sweep(now time.Time) SweepReport {
	var report SweepReport
	threshold := now.Add(-m.retention)

	for _, area := range Areas {
		dir := m.dirs[area]
		entries, err := os.ReadDir(dir)
		if err != nil {
			m.logger.Warn("读取存储目录失败", map[string]interface{}{
				"dir":   dir,
				"error": err.Error(),
			})
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				// 扫描期间被其他请求删除
				continue
			}
			report.Scanned++
			if !info.ModTime().Before(threshold) {
				continue
			}
			report.Expired++
			if m.Remove(filepath.Join(dir, entry.Name())) {
				report.Deleted++
			} else {
				report.Failed++
			}
		}
	}

	m.logger.Info("过期文件清理完成", map[string]interface{}{
		"scanned": report.Scanned,
		"expired": report.Expired,
		"deleted": report.Deleted,
		"failed":  report.Failed,
	})
	return report
}

// Sweeper 按固定间隔执行过期清理
type Sweeper struct {
	manager  *Manager
	interval time.Duration
}

// NewSweeper 创建定时清理器，interval 为 0 时 Run 直接返回
func NewSweeper(manager *Manager, interval time.Duration) *Sweeper {
	return &Sweeper{manager: manager, interval: interval}
}

// Run 阻塞直到 ctx 取消
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.manager.logger.Info("定时清理已关闭")
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.manager.logger.Info("定时清理已启动", map[string]interface{}{
		"interval":  s.interval.String(),
		"retention": s.manager.retention.String(),
	})
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.manager.Sweep(now)
		}
	}
}
