package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RawJSON 以文本列保存的原始JSON
type RawJSON []byte

// Value 实现 driver.Valuer 接口
func (j RawJSON) Value() (driver.Value, error) {
	if j == nil {
		return "null", nil
	}
	return string(j), nil
}

// Scan 实现 sql.Scanner 接口
func (j *RawJSON) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = RawJSON("null")
	case []byte:
		*j = append(RawJSON(nil), v...)
	case string:
		*j = RawJSON(v)
	default:
		return fmt.Errorf("RawJSON: 不支持的类型 %T", value)
	}
	return nil
}

// MarshalJSON 原样输出
func (j RawJSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON 原样保存
func (j *RawJSON) UnmarshalJSON(data []byte) error {
	*j = append((*j)[:0], data...)
	return nil
}

// Document 实时文档存储中的一个文档（会话、角色）
type Document struct {
	Path      string    `gorm:"primaryKey;size:255" json:"path"`
	Parent    string    `gorm:"index;size:255;not null" json:"parent"`
	Body      RawJSON   `gorm:"type:text;not null" json:"body"`
	Version   int64     `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Document) TableName() string {
	return "documents"
}

// Record 只追加集合中的一条记录（聊天日志）
//
// Timestamp 由存储层分配，在同一进程内严格递增。
type Record struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Collection string    `gorm:"size:255;not null;index:idx_records_collection_ts,priority:1" json:"collection"`
	Timestamp  int64     `gorm:"not null;index:idx_records_collection_ts,priority:2" json:"timestamp"`
	Body       RawJSON   `gorm:"type:text;not null" json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName 指定表名
func (Record) TableName() string {
	return "records"
}

// BeforeCreate 创建前分配ID
func (r *Record) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}
