package idgen

import (
	"fmt"
	"sync"
	"time"
)

// ============================================================================
// 雪花算法 ID 生成器
// ============================================================================
//
// 流水号、消息键都需要全局唯一且趋势递增，便于按时间排查对账。
//
// 【雪花算法结构】64位
//
//   0 - 41位时间戳 - 10位机器ID - 12位序列号
//   |   |            |            |
//   |   |            |            +-- 同一毫秒内的序列号（0-4095）
//   |   |            +-- 机器ID（0-1023）
//   |   +-- 毫秒级时间戳（可用约69年）
//   +-- 符号位，始终为0
//
// ============================================================================

const (
	epoch          = int64(1704067200000) // 起始时间戳（2024-01-01 00:00:00 UTC）
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	defaultGenerator = &Snowflake{workerID: 1}
	defaultMu        sync.RWMutex
)

// New 创建指定机器ID的生成器
func New(workerID int64) (*Snowflake, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("workerID 必须在 0-%d 之间: %d", maxWorkerID, workerID)
	}
	return &Snowflake{workerID: workerID}, nil
}

// Init 替换默认生成器的机器ID，服务启动时调用一次
func Init(workerID int64) error {
	s, err := New(workerID)
	if err != nil {
		return err
	}
	defaultMu.Lock()
	defaultGenerator = s
	defaultMu.Unlock()
	return nil
}

func NextID() int64 {
	defaultMu.RLock()
	s := defaultGenerator
	defaultMu.RUnlock()
	return s.Generate()
}

func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	if now <= s.timestamp {
		// 同一毫秒内（或时钟回拨），沿用上次时间戳并递增序列号
		now = s.timestamp
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

// GenerateTransactionNo 生成钱包流水号
// 格式：TXN + 雪花ID，例如 TXN58093485723648001
func GenerateTransactionNo() string {
	return fmt.Sprintf("TXN%d", NextID())
}

// GenerateEventKey 生成账本事件的消息键
func GenerateEventKey() string {
	return fmt.Sprintf("EVT%d", NextID())
}
