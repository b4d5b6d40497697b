package logbus

import (
	"slices"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 消息类型
const (
	TypeLog          = "log"
	TypeAccountState = "account_state"
)

type Message struct {
	Type string `json:"type"`
	Time int64  `json:"time"`
	Data any    `json:"data"`
}

type LogData struct {
	Level  string         `json:"level"`
	Msg    string         `json:"msg"`
	Fields map[string]any `json:"fields,omitempty"`
}

type subscriber struct {
	ch    chan Message
	types []string
}

func (s *subscriber) wants(typ string) bool {
	return len(s.types) == 0 || slices.Contains(s.types, typ)
}

// Bus 保存最近 N 条消息（环形缓冲）并广播给订阅者。订阅者处理不过来时丢消息，不阻塞发布方。
type Bus struct {
	mu     sync.RWMutex
	ring   []Message
	head   int // 最旧一条的位置
	size   int
	subs   map[*subscriber]struct{}
	closed bool
	sink   *zap.Logger
}

// New 创建日志总线；sink 非空时每条 Log 同时写入 zap（控制台/文件）。
func New(capacity int, sink *zap.Logger) *Bus {
	if capacity <= 0 {
		capacity = 200
	}
	return &Bus{
		ring: make([]Message, capacity),
		subs: make(map[*subscriber]struct{}),
		sink: sink,
	}
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.ch)
	}
	b.subs = nil
}

// Snapshot 按时间顺序返回缓冲区里的消息；传入 types 时只返回这些类型。
func (b *Bus) Snapshot(types ...string) []Message {
	filter := subscriber{types: types}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Message, 0, b.size)
	for i := 0; i < b.size; i++ {
		msg := b.ring[(b.head+i)%len(b.ring)]
		if filter.wants(msg.Type) {
			out = append(out, msg)
		}
	}
	return out
}

// Subscribe 返回消息通道和取消函数。types 为空表示订阅全部类型。
func (b *Bus) Subscribe(buffer int, types ...string) (<-chan Message, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	s := &subscriber{ch: make(chan Message, buffer), types: types}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[s]; ok {
				delete(b.subs, s)
				close(s.ch)
			}
		})
	}
	return s.ch, cancel
}

func (b *Bus) Publish(typ string, data any) {
	msg := Message{Type: typ, Time: time.Now().UnixMilli(), Data: data}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if b.size < len(b.ring) {
		b.ring[(b.head+b.size)%len(b.ring)] = msg
		b.size++
	} else {
		b.ring[b.head] = msg
		b.head = (b.head + 1) % len(b.ring)
	}
	for s := range b.subs {
		if !s.wants(typ) {
			continue
		}
		select {
		case s.ch <- msg:
		default:
		}
	}
}

func (b *Bus) Log(level, message string, fields map[string]any) {
	b.Publish(TypeLog, LogData{Level: level, Msg: message, Fields: fields})
	if b.sink != nil {
		b.write(level, message, fields)
	}
}

func (b *Bus) write(level, message string, fields map[string]any) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	zf := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		zf = append(zf, zap.Any(k, fields[k]))
	}

	if ce := b.sink.Check(zapLevel(level), message); ce != nil {
		ce.Write(zf...)
	}
}

func zapLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}
