package dice

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
	mrand "math/rand"
	"sync"
	"time"
)

// Source 随机数源
//
// RollUniform 返回 [low, high] 闭区间内均匀分布的整数，每次调用相互独立。
// low > high 时返回 low。
type Source interface {
	RollUniform(low, high int) int
}

// CryptoSource 基于 crypto/rand 的随机数源（生产环境默认）
type CryptoSource struct{}

// NewCryptoSource 创建加密随机数源
func NewCryptoSource() *CryptoSource {
	return &CryptoSource{}
}

// RollUniform 实现 Source
func (s *CryptoSource) RollUniform(low, high int) int {
	if low >= high {
		return low
	}
	span := big.NewInt(int64(high-low) + 1)
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		// crypto/rand 读取失败时退回到一次性种子
		return low + mrand.New(mrand.NewSource(fallbackSeed())).Intn(high-low+1)
	}
	return low + int(n.Int64())
}

// SeededSource 可重新设置种子的伪随机源，用于复现
type SeededSource struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeededSource 创建指定种子的随机源
func NewSeededSource(seed int64) *SeededSource {
	return &SeededSource{rng: mrand.New(mrand.NewSource(seed))}
}

// RollUniform 实现 Source
func (s *SeededSource) RollUniform(low, high int) int {
	if low >= high {
		return low
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return low + s.rng.Intn(high-low+1)
}

// Seed 重新设置种子
func (s *SeededSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = mrand.New(mrand.NewSource(seed))
}

// SequenceSource 按固定序列返回结果的桩实现
//
// 序列值不做区间裁剪，调用方负责提供合法值；序列耗尽后从头循环。
type SequenceSource struct {
	mu     sync.Mutex
	values []int
	next   int
}

// NewSequenceSource 创建固定序列随机源
func NewSequenceSource(values ...int) *SequenceSource {
	return &SequenceSource{values: append([]int(nil), values...)}
}

// RollUniform 实现 Source
func (s *SequenceSource) RollUniform(low, high int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return low
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

// Calls 已消费的次数
func (s *SequenceSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// NewSeed 生成一个加密安全的 int64 种子
func NewSeed() (int64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("generate seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

func fallbackSeed() int64 {
	return time.Now().UnixNano()
}
