package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/wfunc/obscura/internal/errors"
	"github.com/wfunc/obscura/internal/logger"
	"github.com/wfunc/obscura/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 文档写锁分片数
const docLockShards = 64

// Store 基于 gorm 的文档存储
type Store struct {
	db           *gorm.DB
	log          *zap.Logger
	broker       *broker
	writeTimeout time.Duration
	now          func() time.Time

	tsMu   sync.Mutex
	lastTS int64

	// 同一路径的读改写在进程内串行；跨进程由行锁保证
	docLocks [docLockShards]sync.Mutex
}

// Option 存储选项
type Option func(*Store)

// WithLogger 设置日志器
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithWriteTimeout 设置单次读写超时
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Store) { s.writeTimeout = d }
}

// WithClock 替换时钟
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New 创建存储，要求文档表与记录表已迁移
func New(db *gorm.DB, opts ...Option) (*Store, error) {
	s := &Store{
		db:     db,
		log:    zap.NewNop(),
		broker: newBroker(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	// 重启后时间戳仍保持单调
	var last int64
	if err := db.Model(&models.Record{}).Select("COALESCE(MAX(timestamp), 0)").Scan(&last).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery, "读取最大时间戳失败")
	}
	s.lastTS = last

	return s, nil
}

var _ DocumentStore = (*Store)(nil)

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.writeTimeout > 0 {
		return context.WithTimeout(ctx, s.writeTimeout)
	}
	return context.WithCancel(ctx)
}

// syncError 写入失败统一包装为同步错误
func syncError(ctx context.Context, err error, path string) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return errors.Wrap(err, errors.ErrSyncTimeout, path)
	}
	return errors.Wrap(err, errors.ErrSyncWrite, path)
}

func readError(ctx context.Context, err error, path string) error {
	if stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return errors.Wrap(err, errors.ErrSyncTimeout, path)
	}
	return errors.Wrap(err, errors.ErrDatabaseQuery, path)
}

// lockDoc 锁住路径所在分片，返回解锁函数
func (s *Store) lockDoc(path string) func() {
	h := fnv.New32a()
	h.Write([]byte(path))
	mu := &s.docLocks[h.Sum32()%docLockShards]
	mu.Lock()
	return mu.Unlock
}

// forUpdate 读改写时对文档行加锁；SQLite 没有行锁，写入本身串行
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (s *Store) trace(op, path string, start time.Time, err error) {
	logger.LogSyncOperation(s.log, op, path, time.Since(start), err)
}

func marshalDoc(path string, doc interface{}) ([]byte, error) {
	if containsAbsent(doc) {
		return nil, errors.New(errors.ErrAbsentValue, path)
	}
	if raw, ok := doc.(json.RawMessage); ok {
		if !gjson.ValidBytes(raw) {
			return nil, errors.New(errors.ErrMessageFormat, path)
		}
		return raw, nil
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrMessageFormat, path)
	}
	if !gjson.ParseBytes(body).IsObject() {
		return nil, errors.Newf(errors.ErrMessageFormat, "%s: 文档必须是对象", path)
	}
	return body, nil
}

// Put 创建或整体替换文档
func (s *Store) Put(ctx context.Context, path string, doc interface{}) (err error) {
	start := time.Now()
	defer func() { s.trace("put", path, start, err) }()

	if err = validateDocPath(path); err != nil {
		return err
	}
	body, err := marshalDoc(path, doc)
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	unlock := s.lockDoc(path)
	defer unlock()

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Document
		res := forUpdate(tx).Where("path = ?", path).Limit(1).Find(&existing)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return tx.Create(&models.Document{
				Path: path, Parent: parentOf(path), Body: body,
				Version: 1, CreatedAt: now, UpdatedAt: now,
			}).Error
		}
		return tx.Model(&models.Document{}).Where("path = ?", path).Updates(map[string]interface{}{
			"body":       models.RawJSON(body),
			"version":    existing.Version + 1,
			"updated_at": now,
		}).Error
	})
	if err != nil {
		return syncError(ctx, err, path)
	}

	s.publishDoc(path)
	return nil
}

// Create 创建文档，已存在时返回 ErrAlreadyExists
func (s *Store) Create(ctx context.Context, path string, doc interface{}) (err error) {
	start := time.Now()
	defer func() { s.trace("create", path, start, err) }()

	if err = validateDocPath(path); err != nil {
		return err
	}
	body, err := marshalDoc(path, doc)
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	unlock := s.lockDoc(path)
	defer unlock()

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Document{}).Where("path = ?", path).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errors.New(errors.ErrAlreadyExists, path)
		}
		return tx.Create(&models.Document{
			Path: path, Parent: parentOf(path), Body: body,
			Version: 1, CreatedAt: now, UpdatedAt: now,
		}).Error
	})
	if err != nil {
		return syncError(ctx, err, path)
	}

	s.publishDoc(path)
	return nil
}

// Patch 按字段路径合并，字段路径按字典序依次应用
func (s *Store) Patch(ctx context.Context, path string, fields map[string]interface{}) (err error) {
	start := time.Now()
	defer func() { s.trace("patch", path, start, err) }()

	if err = validateDocPath(path); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}

	encoded, err := encodePatch(path, fields)
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	unlock := s.lockDoc(path)
	defer unlock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc models.Document
		res := forUpdate(tx).Where("path = ?", path).Limit(1).Find(&doc)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.New(errors.ErrDocumentNotFound, path)
		}

		body, err := encoded.apply([]byte(doc.Body))
		if err != nil {
			return err
		}

		return tx.Model(&models.Document{}).Where("path = ?", path).Updates(map[string]interface{}{
			"body":       models.RawJSON(body),
			"version":    doc.Version + 1,
			"updated_at": s.now(),
		}).Error
	})
	if err != nil {
		return syncError(ctx, err, path)
	}

	s.publishDoc(path)
	return nil
}

// Get 一次性读取；文档不存在时 Exists 为 false
func (s *Store) Get(ctx context.Context, path string) (Snapshot, error) {
	if err := validateDocPath(path); err != nil {
		return Snapshot{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc models.Document
	res := s.db.WithContext(ctx).Where("path = ?", path).Limit(1).Find(&doc)
	if res.Error != nil {
		return Snapshot{}, readError(ctx, res.Error, path)
	}
	if res.RowsAffected == 0 {
		return Snapshot{Path: path}, nil
	}
	return toSnapshot(doc), nil
}

// List 读取集合中的全部文档，按创建顺序
func (s *Store) List(ctx context.Context, collection string) ([]Snapshot, error) {
	if err := validateCollectionPath(collection); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var docs []models.Document
	if err := s.db.WithContext(ctx).Where("parent = ?", collection).
		Order("created_at ASC").Order("path ASC").Find(&docs).Error; err != nil {
		return nil, readError(ctx, err, collection)
	}

	out := make([]Snapshot, len(docs))
	for i, d := range docs {
		out[i] = toSnapshot(d)
	}
	return out, nil
}

func toSnapshot(d models.Document) Snapshot {
	return Snapshot{
		Path:      d.Path,
		Exists:    true,
		Data:      json.RawMessage(d.Body),
		Version:   d.Version,
		UpdatedAt: d.UpdatedAt,
	}
}

// Subscribe 订阅单个文档
func (s *Store) Subscribe(ctx context.Context, path string, fn func(Snapshot)) (Unsubscribe, error) {
	if err := validateDocPath(path); err != nil {
		return nil, err
	}
	unsub, ok := s.broker.subscribe(topic{kind: topicDocument, path: path}, func() {
		snap, err := s.Get(context.WithoutCancel(ctx), path)
		if err != nil {
			s.log.Warn("刷新文档快照失败", zap.String("path", path), zap.Error(err))
			return
		}
		fn(snap)
	})
	if !ok {
		return nil, errors.New(errors.ErrSubscriptionClosed, path)
	}
	return unsub, nil
}

// SubscribeCollection 订阅集合，任一文档变化时推送整个集合
func (s *Store) SubscribeCollection(ctx context.Context, collection string, fn func(CollectionSnapshot)) (Unsubscribe, error) {
	if err := validateCollectionPath(collection); err != nil {
		return nil, err
	}
	unsub, ok := s.broker.subscribe(topic{kind: topicCollection, path: collection}, func() {
		docs, err := s.List(context.WithoutCancel(ctx), collection)
		if err != nil {
			s.log.Warn("刷新集合快照失败", zap.String("collection", collection), zap.Error(err))
			return
		}
		fn(CollectionSnapshot{Collection: collection, Docs: docs})
	})
	if !ok {
		return nil, errors.New(errors.ErrSubscriptionClosed, collection)
	}
	return unsub, nil
}

func (s *Store) publishDoc(path string) {
	s.broker.publish(topic{kind: topicDocument, path: path})
	s.broker.publish(topic{kind: topicCollection, path: parentOf(path)})
}

// nextTimestamp 单调递增的毫秒时间戳
func (s *Store) nextTimestamp() int64 {
	s.tsMu.Lock()
	defer s.tsMu.Unlock()
	ts := s.now().UnixMilli()
	if ts <= s.lastTS {
		ts = s.lastTS + 1
	}
	s.lastTS = ts
	return ts
}

// Append 追加记录
func (s *Store) Append(ctx context.Context, collection string, doc interface{}) (entry Entry, err error) {
	start := time.Now()
	defer func() { s.trace("append", collection, start, err) }()

	if err = validateCollectionPath(collection); err != nil {
		return Entry{}, err
	}
	body, err := marshalDoc(collection, doc)
	if err != nil {
		return Entry{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rec := models.Record{
		Collection: collection,
		Timestamp:  s.nextTimestamp(),
		Body:       body,
		CreatedAt:  s.now(),
	}
	if err = s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return Entry{}, syncError(ctx, err, collection)
	}

	s.broker.publish(topic{kind: topicRecords, path: collection})
	return toEntry(rec), nil
}

// Query 窗口查询：最近的 Limit 条，按时间戳升序
func (s *Store) Query(ctx context.Context, q Query) ([]Entry, error) {
	if err := validateCollectionPath(q.Collection); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var recs []models.Record
	if err := s.db.WithContext(ctx).Where("collection = ?", q.Collection).
		Order("timestamp DESC").Limit(q.limit()).Find(&recs).Error; err != nil {
		return nil, readError(ctx, err, q.Collection)
	}

	out := make([]Entry, len(recs))
	for i, r := range recs {
		out[len(recs)-1-i] = toEntry(r)
	}
	return out, nil
}

func toEntry(r models.Record) Entry {
	return Entry{ID: r.ID, Timestamp: r.Timestamp, Data: json.RawMessage(r.Body)}
}

// SubscribeQuery 订阅窗口查询
func (s *Store) SubscribeQuery(ctx context.Context, q Query, fn func([]Entry)) (Unsubscribe, error) {
	if err := validateCollectionPath(q.Collection); err != nil {
		return nil, err
	}
	unsub, ok := s.broker.subscribe(topic{kind: topicRecords, path: q.Collection}, func() {
		entries, err := s.Query(context.WithoutCancel(ctx), q)
		if err != nil {
			s.log.Warn("刷新窗口查询失败", zap.String("collection", q.Collection), zap.Error(err))
			return
		}
		fn(entries)
	})
	if !ok {
		return nil, errors.New(errors.ErrSubscriptionClosed, q.Collection)
	}
	return unsub, nil
}

// Subscribers 当前订阅数
func (s *Store) Subscribers() int {
	return s.broker.count()
}

// Close 关闭全部订阅
func (s *Store) Close() error {
	s.broker.close()
	return nil
}
