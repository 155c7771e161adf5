// Package memory provides an in-process storage.Tier used by tests and local experiments.
package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"hybridvault/pkg/storage"
	"hybridvault/pkg/types"
)

// Adapter 是基于 map 的 storage.Tier 实现
// 通过 Fail* 钩子注入故障，用于验证失败隔离逻辑
type Adapter struct {
	kind types.Tier

	mu      sync.Mutex
	objects map[string][]byte
	ctypes  map[string]string

	// 故障注入: 返回非 nil 即让该次调用失败
	FailPut    func(key string) error
	FailGet    func(key string) error
	FailDelete func(key string) error

	Puts    int
	Gets    int
	Deletes int
}

func NewAdapter(kind types.Tier) *Adapter {
	return &Adapter{
		kind:    kind,
		objects: make(map[string][]byte),
		ctypes:  make(map[string]string),
	}
}

func (a *Adapter) Kind() types.Tier { return a.kind }

func (a *Adapter) Put(ctx context.Context, key string, data []byte, contentType string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Puts++

	if a.FailPut != nil {
		if err := a.FailPut(key); err != nil {
			return err
		}
	}
	// 复制一份，防止调用方复用 buffer
	a.objects[key] = bytes.Clone(data)
	a.ctypes[key] = contentType
	return nil
}

func (a *Adapter) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Gets++

	if a.FailGet != nil {
		if err := a.FailGet(key); err != nil {
			return nil, err
		}
	}
	data, ok := a.objects[key]
	if !ok {
		return nil, storage.Permanent("get", key, storage.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (a *Adapter) Delete(ctx context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Deletes++

	if a.FailDelete != nil {
		if err := a.FailDelete(key); err != nil {
			return err
		}
	}
	delete(a.objects, key)
	delete(a.ctypes, key)
	return nil
}

func (a *Adapter) Locate(ctx context.Context, key string) (string, error) {
	return "mem://" + string(a.kind) + "/" + key, nil
}

// Has 检查对象是否存在
func (a *Adapter) Has(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.objects[key]
	return ok
}

// ContentType 返回写入时声明的类型
func (a *Adapter) ContentType(key string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ctypes[key]
}

// Keys 返回排序后的全部 Key
func (a *Adapter) Keys() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	keys := make([]string, 0, len(a.objects))
	for k := range a.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (a *Adapter) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.objects)
}
