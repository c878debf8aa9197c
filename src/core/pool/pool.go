package pool

import (
	"context"
	"errors"
	"sync"

	"imgtext-server-go/src/core/utils"
)

/*
* 通用资源池：启动时预创建 MinSize 个资源，最多同时借出 MaxSize 个。
* 池中无空闲资源且未达上限时按需创建，达到上限时 Get 阻塞直到有资源归还或 ctx 取消。
* 归还时资源已损坏的调用方使用 Discard，池会在下次需要时重新创建。
 */

// ErrClosed 资源池已关闭
var ErrClosed = errors.New("resource pool closed")

// ResourceFactory 资源工厂接口
type ResourceFactory[T any] interface {
	Create() (T, error)
	Destroy(resource T) error
}

// PoolConfig 资源池配置
type PoolConfig struct {
	MinSize int // 预创建数量
	MaxSize int // 同时存在的最大数量
}

// ResourcePool 通用资源池
type ResourcePool[T any] struct {
	factory ResourceFactory[T]
	idle    chan T
	slots   chan struct{} // 每个存活资源占一个槽位
	logger  *utils.TaggedLogger

	mu     sync.Mutex
	closed bool
}

// NewResourcePool 创建资源池并预创建最小数量的资源
func NewResourcePool[T any](factory ResourceFactory[T], config PoolConfig, logger *utils.Logger) (*ResourcePool[T], error) {
	if config.MaxSize < 1 {
		config.MaxSize = 1
	}
	if config.MinSize > config.MaxSize {
		config.MinSize = config.MaxSize
	}

	p := &ResourcePool[T]{
		factory: factory,
		idle:    make(chan T, config.MaxSize),
		slots:   make(chan struct{}, config.MaxSize),
		logger:  logger.WithTag("pool"),
	}

	for i := 0; i < config.MinSize; i++ {
		resource, err := factory.Create()
		if err != nil {
			p.Close()
			return nil, err
		}
		p.slots <- struct{}{}
		p.idle <- resource
	}
	return p, nil
}

// Get 借出资源，用完后必须 Put 或 Discard
func (p *ResourcePool[T]) Get(ctx context.Context) (T, error) {
	var zero T
	for {
		if p.isClosed() {
			return zero, ErrClosed
		}
		select {
		case resource, ok := <-p.idle:
			if !ok {
				return zero, ErrClosed
			}
			return resource, nil
		default:
		}

		select {
		case resource, ok := <-p.idle:
			if !ok {
				return zero, ErrClosed
			}
			return resource, nil
		case p.slots <- struct{}{}:
			resource, err := p.factory.Create()
			if err != nil {
				<-p.slots
				return zero, err
			}
			return resource, nil
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Put 归还资源
func (p *ResourcePool[T]) Put(resource T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.destroy(resource)
		return
	}
	p.idle <- resource
}

// Discard 销毁已损坏的资源并释放槽位
func (p *ResourcePool[T]) Discard(resource T) {
	p.destroy(resource)
	<-p.slots
}

// Close 关闭资源池并销毁空闲资源，借出中的资源在归还时销毁
func (p *ResourcePool[T]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.idle)
	p.mu.Unlock()

	for resource := range p.idle {
		p.destroy(resource)
	}
}

// GetStats 获取池状态
func (p *ResourcePool[T]) GetStats() (available, total int) {
	return len(p.idle), len(p.slots)
}

func (p *ResourcePool[T]) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *ResourcePool[T]) destroy(resource T) {
	if err := p.factory.Destroy(resource); err != nil {
		p.logger.Warn("销毁资源失败", map[string]interface{}{"error": err})
	}
}
