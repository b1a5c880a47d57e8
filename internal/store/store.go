// Package store 实时文档存储
//
// 文档按 "集合/文档ID/子集合/文档ID" 形式的路径寻址。写入即持久化到数据库，
// 订阅者在订阅时和每次变更后收到完整快照。
package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/wfunc/obscura/internal/errors"
)

// DefaultQueryLimit 未指定窗口大小时的默认值
const DefaultQueryLimit = 100

// absentMarker 未定义值标记
type absentMarker struct{}

// Absent 补丁中不允许出现的“未定义”值，用于表达字段缺失而不是 null
var Absent = absentMarker{}

// Unsubscribe 取消订阅，可重复调用
type Unsubscribe func()

// Snapshot 单个文档的快照
type Snapshot struct {
	Path      string          `json:"path"`
	Exists    bool            `json:"exists"`
	Data      json.RawMessage `json:"data,omitempty"`
	Version   int64           `json:"version,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt,omitempty"`
}

// ID 文档ID（路径最后一段）
func (s Snapshot) ID() string {
	return lastSegment(s.Path)
}

// Decode 解码文档内容
func (s Snapshot) Decode(v interface{}) error {
	if !s.Exists {
		return errors.New(errors.ErrDocumentNotFound, s.Path)
	}
	if err := json.Unmarshal(s.Data, v); err != nil {
		return errors.Wrap(err, errors.ErrDataIntegrity, s.Path)
	}
	return nil
}

// Get 读取字段
func (s Snapshot) Get(path string) gjson.Result {
	return gjson.GetBytes(s.Data, path)
}

// CollectionSnapshot 集合中全部文档的快照
type CollectionSnapshot struct {
	Collection string     `json:"collection"`
	Docs       []Snapshot `json:"docs"`
}

// Entry 只追加集合中的一条记录
type Entry struct {
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Decode 解码记录内容
func (e Entry) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return errors.Wrap(err, errors.ErrDataIntegrity, e.ID)
	}
	return nil
}

// Query 窗口查询：按时间戳升序返回最近的 Limit 条
type Query struct {
	Collection string
	Limit      int
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return DefaultQueryLimit
	}
	return q.Limit
}

// DocumentStore 实时文档存储接口
type DocumentStore interface {
	// Put 创建或整体替换文档
	Put(ctx context.Context, path string, doc interface{}) error
	// Create 创建文档，已存在时失败
	Create(ctx context.Context, path string, doc interface{}) error
	// Patch 按字段路径稀疏合并，nil 写入 null，Absent 被拒绝
	Patch(ctx context.Context, path string, fields map[string]interface{}) error
	Get(ctx context.Context, path string) (Snapshot, error)
	List(ctx context.Context, collection string) ([]Snapshot, error)
	Subscribe(ctx context.Context, path string, fn func(Snapshot)) (Unsubscribe, error)
	SubscribeCollection(ctx context.Context, collection string, fn func(CollectionSnapshot)) (Unsubscribe, error)
	// Append 追加记录，ID 与单调时间戳由存储分配
	Append(ctx context.Context, collection string, doc interface{}) (Entry, error)
	Query(ctx context.Context, q Query) ([]Entry, error)
	SubscribeQuery(ctx context.Context, q Query, fn func([]Entry)) (Unsubscribe, error)
	Close() error
}

// FieldPath 拼接字段路径，各段中的特殊字符会被转义
func FieldPath(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, seg := range segments {
		escaped[i] = gjson.Escape(seg)
	}
	return strings.Join(escaped, ".")
}

// Join 拼接文档路径
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// validateDocPath 文档路径必须是偶数段
func validateDocPath(path string) error {
	parts := strings.Split(path, "/")
	if path == "" || len(parts)%2 != 0 {
		return errors.Newf(errors.ErrInvalidParam, "无效的文档路径: %q", path)
	}
	for _, p := range parts {
		if p == "" {
			return errors.Newf(errors.ErrInvalidParam, "无效的文档路径: %q", path)
		}
	}
	return nil
}

// validateCollectionPath 集合路径必须是奇数段
func validateCollectionPath(path string) error {
	parts := strings.Split(path, "/")
	if path == "" || len(parts)%2 != 1 {
		return errors.Newf(errors.ErrInvalidParam, "无效的集合路径: %q", path)
	}
	for _, p := range parts {
		if p == "" {
			return errors.Newf(errors.ErrInvalidParam, "无效的集合路径: %q", path)
		}
	}
	return nil
}

func parentOf(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[:i]
	}
	return ""
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// containsAbsent 递归检查未定义标记
func containsAbsent(v interface{}) bool {
	switch t := v.(type) {
	case absentMarker:
		return true
	case *absentMarker:
		return true
	case map[string]interface{}:
		for _, item := range t {
			if containsAbsent(item) {
				return true
			}
		}
	case []interface{}:
		for _, item := range t {
			if containsAbsent(item) {
				return true
			}
		}
	}
	return false
}

// AppendElement 数组追加的字段路径，在同一事务中追加到数组末尾
func AppendElement(fieldPath string) string {
	return fieldPath + ".-1"
}

// encodedPatch 已编码的补丁，按字段路径字典序应用
type encodedPatch struct {
	keys   []string
	values map[string][]byte
}

// encodePatch 编码并校验补丁，Absent 与空路径被拒绝
func encodePatch(path string, fields map[string]interface{}) (encodedPatch, error) {
	p := encodedPatch{
		keys:   make([]string, 0, len(fields)),
		values: make(map[string][]byte, len(fields)),
	}
	for k, v := range fields {
		if k == "" {
			return p, errors.New(errors.ErrInvalidParam, "空字段路径")
		}
		if containsAbsent(v) {
			return p, errors.Newf(errors.ErrAbsentValue, "%s: %s", path, k)
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return p, errors.Wrap(err, errors.ErrMessageFormat, k)
		}
		p.keys = append(p.keys, k)
		p.values[k] = raw
	}
	sort.Strings(p.keys)
	return p, nil
}

func (p encodedPatch) apply(body []byte) ([]byte, error) {
	for _, k := range p.keys {
		next, err := sjson.SetRawBytes(body, k, p.values[k])
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrInvalidParam, "字段路径 %s", k)
		}
		body = next
	}
	return body, nil
}

// ApplyPatch 在内存中对 JSON 文档执行与 Patch 相同的合并
func ApplyPatch(body []byte, fields map[string]interface{}) ([]byte, error) {
	p, err := encodePatch("", fields)
	if err != nil {
		return nil, err
	}
	return p.apply(body)
}
