package store

import (
	"sync"

	"github.com/google/uuid"
)

// topicKind 订阅主题类型
type topicKind int

const (
	topicDocument topicKind = iota
	topicCollection
	topicRecords
)

type topic struct {
	kind topicKind
	path string
}

// subscriber 单个订阅者
//
// wake 的容量为 1，多次变更在回调执行前合并为一次刷新。
type subscriber struct {
	id      string
	topic   topic
	refresh func()
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func (s *subscriber) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscriber) run(wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
			select {
			case <-s.done:
				return
			default:
			}
			s.refresh()
		}
	}
}

// broker 进程内的变更广播
type broker struct {
	mu     sync.RWMutex
	subs   map[topic]map[string]*subscriber
	wg     sync.WaitGroup
	closed bool
}

func newBroker() *broker {
	return &broker{subs: make(map[topic]map[string]*subscriber)}
}

// subscribe 注册订阅者并立即触发一次刷新
func (b *broker) subscribe(t topic, refresh func()) (Unsubscribe, bool) {
	sub := &subscriber{
		id:      uuid.New().String(),
		topic:   t,
		refresh: refresh,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}, false
	}
	if b.subs[t] == nil {
		b.subs[t] = make(map[string]*subscriber)
	}
	b.subs[t][sub.id] = sub
	b.wg.Add(1)
	b.mu.Unlock()

	sub.notify()
	go sub.run(&b.wg)

	return func() { b.remove(sub) }, true
}

func (b *broker) remove(sub *subscriber) {
	b.mu.Lock()
	if set, ok := b.subs[sub.topic]; ok {
		delete(set, sub.id)
		if len(set) == 0 {
			delete(b.subs, sub.topic)
		}
	}
	b.mu.Unlock()
	sub.stop()
}

// publish 通知某个主题的全部订阅者
func (b *broker) publish(t topic) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[t] {
		sub.notify()
	}
}

// count 当前订阅数
func (b *broker) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, set := range b.subs {
		n += len(set)
	}
	return n
}

// close 停止全部订阅者并等待其退出
func (b *broker) close() {
	b.mu.Lock()
	b.closed = true
	all := b.subs
	b.subs = make(map[topic]map[string]*subscriber)
	b.mu.Unlock()

	for _, set := range all {
		for _, sub := range set {
			sub.stop()
		}
	}
	b.wg.Wait()
}
