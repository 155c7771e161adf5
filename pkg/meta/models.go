package meta

import (
	"encoding/json"
	"time"

	"hybridvault/pkg/types"

	"gorm.io/datatypes"
)

// ObjectRecord 是一个已上传文件的元数据
// 同一时刻只有一个权威位置：Tier + ObjectKey
type ObjectRecord struct {
	ID      uint          `gorm:"primaryKey"`
	OwnerID types.OwnerID `gorm:"not null;uniqueIndex:idx_owner_hash,priority:1"`

	// ContentHash 允许为 NULL (历史数据)，NULL 不参与唯一约束
	ContentHash *string `gorm:"type:char(64);uniqueIndex:idx_owner_hash,priority:2"`

	Filename         string `gorm:"type:varchar(255);not null"` // 存储用的唯一名 (uuid-name)
	OriginalFilename string `gorm:"type:varchar(255)"`
	Size             int64  `gorm:"column:file_size"`
	ContentType      string `gorm:"type:varchar(100)"`

	Tier      types.Tier `gorm:"type:varchar(16);not null;index"`
	ObjectKey string     `gorm:"type:varchar(512);not null"`
	AccessURL string     `gorm:"type:text"`

	// Version 用于乐观锁并发控制 (CAS)，每次迁移 +1
	Version int64 `gorm:"not null;default:1"`

	UploadedAt time.Time `gorm:"index"`
	SyncedAt   *time.Time
	UpdatedAt  time.Time
}

func (ObjectRecord) TableName() string {
	return "files"
}

// Hash 返回内容哈希，历史记录返回零值
func (r *ObjectRecord) Hash() types.ContentHash {
	if r.ContentHash == nil {
		return ""
	}
	return types.ContentHash(*r.ContentHash)
}

// SetHash 设置内容哈希，零值表示清空
func (r *ObjectRecord) SetHash(h types.ContentHash) {
	if h.IsZero() {
		r.ContentHash = nil
		return
	}
	s := h.String()
	r.ContentHash = &s
}

// SyncRun 记录一次同步任务的结果，用于 `hv runs`
type SyncRun struct {
	ID          uint      `gorm:"primaryKey"`
	StartedAt   time.Time `gorm:"index"`
	FinishedAt  time.Time
	Eligible    int
	Processed   int
	Succeeded   int
	Failed      int
	Interrupted bool

	// Errors: 失败条目的错误信息列表 ["failed to sync file 3: ...", ...]
	Errors datatypes.JSON
}

func (SyncRun) TableName() string {
	return "sync_runs"
}

// SetErrors 将错误列表编码为 JSON
func (r *SyncRun) SetErrors(errs []string) error {
	if errs == nil {
		errs = []string{}
	}
	raw, err := json.Marshal(errs)
	if err != nil {
		return err
	}
	r.Errors = datatypes.JSON(raw)
	return nil
}

// ErrorList 解码错误列表，解析失败返回空
func (r *SyncRun) ErrorList() []string {
	var errs []string
	if len(r.Errors) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Errors, &errs); err != nil {
		return nil
	}
	return errs
}

// Duration 本次运行耗时
func (r *SyncRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
