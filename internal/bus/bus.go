// internal/bus/bus.go
package bus

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/conclave/internal/society/models"
)

// MessageType tags the report carried by a Message.
type MessageType string

const (
	TypeCycle MessageType = "cycle_report"
	TypeEpoch MessageType = "epoch_report"
	TypeFinal MessageType = "final_report"
)

// AllTypes lists every report type posted on the bus.
var AllTypes = []MessageType{TypeCycle, TypeEpoch, TypeFinal}

// Message is the envelope for data transmitted over the ReportBus.
type Message struct {
	ID        string
	Timestamp time.Time
	Type      MessageType
	Payload   interface{}
}

// ReportBus fans reports out to subscribers using a Pub/Sub model. It
// implements models.ReportSink so the coordinator and scheduler can post to it
// directly.
type ReportBus struct {
	logger *zap.Logger

	// Map of message type to a list of channels (subscribers).
	subscribers map[MessageType][]chan Message
	// Channels consumed by an attached sink; Shutdown leaves their buffers to the sink.
	attached   map[chan Message]struct{}
	mu         sync.RWMutex
	bufferSize int

	// WaitGroup to track messages currently being processed by consumers.
	processingWg sync.WaitGroup
	// WaitGroup to track active Post operations.
	activePostsWg sync.WaitGroup
	// WaitGroup to track attached sink goroutines.
	attachedWg sync.WaitGroup

	// Shutdown mechanism
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	isShutdown   bool
	shutdownMu   sync.Mutex
}

// NewReportBus initializes the ReportBus.
func NewReportBus(logger *zap.Logger, bufferSize int) *ReportBus {
	if bufferSize < 0 {
		bufferSize = 0
	}

	return &ReportBus{
		logger:       logger.Named("report_bus"),
		subscribers:  make(map[MessageType][]chan Message),
		attached:     make(map[chan Message]struct{}),
		bufferSize:   bufferSize,
		shutdownChan: make(chan struct{}),
	}
}

// Post sends a message onto the bus. Blocks if subscriber buffers are full.
func (b *ReportBus) Post(ctx context.Context, msgType MessageType, payload interface{}) error {
	b.shutdownMu.Lock()
	if b.isShutdown {
		b.shutdownMu.Unlock()
		return fmt.Errorf("cannot post message: ReportBus is shut down")
	}
	b.activePostsWg.Add(1)
	b.shutdownMu.Unlock()
	defer b.activePostsWg.Done()

	msg := Message{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Type:      msgType,
		Payload:   payload,
	}

	b.logger.Debug("Posting message", zap.String("type", string(msg.Type)), zap.String("id", msg.ID))

	b.mu.RLock()
	subscribers, ok := b.subscribers[msg.Type]
	if !ok || len(subscribers) == 0 {
		b.mu.RUnlock()
		return nil // No one is listening.
	}
	// Copy so the lock is not held during channel sends.
	subsCopy := make([]chan Message, len(subscribers))
	copy(subsCopy, subscribers)
	b.mu.RUnlock()

	for _, ch := range subsCopy {
		b.processingWg.Add(1)
		select {
		case ch <- msg:
			// Delivered. The consumer must call Acknowledge.
		case <-ctx.Done():
			b.processingWg.Done()
			return ctx.Err()
		case <-b.shutdownChan:
			b.processingWg.Done()
			return fmt.Errorf("failed to post message: bus is shutting down")
		}
	}
	return nil
}

// Subscribe returns a channel to listen for specific message types.
func (b *ReportBus) Subscribe(msgTypes ...MessageType) (<-chan Message, func()) {
	ch, unsubscribe := b.subscribe(msgTypes, false)
	return ch, unsubscribe
}

func (b *ReportBus) subscribe(msgTypes []MessageType, attach bool) (chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isShutdownLocked() {
		closedCh := make(chan Message)
		close(closedCh)
		return closedCh, func() {}
	}

	if len(msgTypes) == 0 {
		panic("must subscribe to at least one message type")
	}

	ch := make(chan Message, b.bufferSize)
	subscribedTypes := make([]MessageType, len(msgTypes))
	copy(subscribedTypes, msgTypes)

	for _, msgType := range subscribedTypes {
		b.subscribers[msgType] = append(b.subscribers[msgType], ch)
	}
	if attach {
		b.attached[ch] = struct{}{}
	}

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		for _, msgType := range subscribedTypes {
			subs, exists := b.subscribers[msgType]
			if !exists {
				continue
			}
			for i, subscriberCh := range subs {
				if subscriberCh == ch {
					copy(subs[i:], subs[i+1:])
					b.subscribers[msgType] = subs[:len(subs)-1]
					if len(b.subscribers[msgType]) == 0 {
						delete(b.subscribers, msgType)
					}
					break
				}
			}
		}
		// The bus closes channels during Shutdown.
	}

	return ch, unsubscribe
}

func (b *ReportBus) isShutdownLocked() bool {
	b.shutdownMu.Lock()
	defer b.shutdownMu.Unlock()
	return b.isShutdown
}

// Acknowledge signals that a message has been processed by a consumer.
func (b *ReportBus) Acknowledge(msg Message) {
	b.processingWg.Done()
}

// Attach starts a goroutine that feeds every message of msgTypes (all report
// types when none are given) to sink. Reports still buffered when Shutdown
// begins are delivered before Shutdown returns.
func (b *ReportBus) Attach(name string, sink models.ReportSink, msgTypes ...MessageType) {
	if len(msgTypes) == 0 {
		msgTypes = AllTypes
	}
	ch, _ := b.subscribe(msgTypes, true)
	logger := b.logger.With(zap.String("subscriber", name))

	b.attachedWg.Add(1)
	go func() {
		defer b.attachedWg.Done()
		for msg := range ch {
			b.processMessage(logger, sink, msg)
		}
	}()
}

// processMessage delivers one message, recovering from sink panics so a
// misbehaving subscriber cannot take the bus down.
func (b *ReportBus) processMessage(logger *zap.Logger, sink models.ReportSink, msg Message) {
	defer b.Acknowledge(msg)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic recovered in report subscriber.",
				zap.Any("panic_value", r),
				zap.String("message_id", msg.ID),
				zap.String("stack", string(debug.Stack())),
			)
		}
	}()

	// Subscribers always finish a delivery, even while the bus shuts down.
	ctx := context.Background()
	var err error
	switch p := msg.Payload.(type) {
	case models.CycleReport:
		err = sink.ReportCycle(ctx, p)
	case models.EpochReport:
		err = sink.ReportEpoch(ctx, p)
	case models.FinalReport:
		err = sink.ReportFinal(ctx, p)
	default:
		logger.Warn("Dropping message with unknown payload.",
			zap.String("type", string(msg.Type)),
			zap.String("payload_type", fmt.Sprintf("%T", msg.Payload)),
		)
		return
	}
	if err != nil {
		logger.Warn("Report subscriber failed.", zap.String("type", string(msg.Type)), zap.Error(err))
	}
}

// ReportCycle posts a cycle report.
func (b *ReportBus) ReportCycle(ctx context.Context, rep models.CycleReport) error {
	return b.Post(ctx, TypeCycle, rep)
}

// ReportEpoch posts an epoch report.
func (b *ReportBus) ReportEpoch(ctx context.Context, rep models.EpochReport) error {
	return b.Post(ctx, TypeEpoch, rep)
}

// ReportFinal posts the final report.
func (b *ReportBus) ReportFinal(ctx context.Context, rep models.FinalReport) error {
	return b.Post(ctx, TypeFinal, rep)
}

// Shutdown gracefully closes the bus. Attached sinks drain their buffers;
// messages buffered for plain subscribers are discarded.
func (b *ReportBus) Shutdown() {
	b.shutdownOnce.Do(func() {
		b.logger.Info("Shutting down ReportBus...")

		// 1. Set shutdown flag.
		b.shutdownMu.Lock()
		b.isShutdown = true
		b.shutdownMu.Unlock()

		// 2. Signal Post operations.
		close(b.shutdownChan)

		// 3. Wait for in-flight Post calls to finish attempting delivery.
		b.activePostsWg.Wait()

		// 4. Close every subscriber channel, then drain the unattached ones.
		b.mu.Lock()
		uniqueChannels := make(map[chan Message]struct{})
		for _, subs := range b.subscribers {
			for _, ch := range subs {
				uniqueChannels[ch] = struct{}{}
			}
		}
		for ch := range b.attached {
			uniqueChannels[ch] = struct{}{}
		}
		for ch := range uniqueChannels {
			close(ch)
		}

		drainedCount := 0
		for ch := range uniqueChannels {
			if _, ok := b.attached[ch]; ok {
				continue
			}
			for range ch {
				drainedCount++
				b.processingWg.Done()
			}
		}

		b.subscribers = make(map[MessageType][]chan Message)
		b.attached = make(map[chan Message]struct{})
		b.mu.Unlock()

		if drainedCount > 0 {
			b.logger.Debug("Drained buffered messages during shutdown.", zap.Int("count", drainedCount))
		}

		// 5. Attached sinks finish their buffers, then every delivery is acknowledged.
		b.attachedWg.Wait()
		b.processingWg.Wait()
		b.logger.Info("ReportBus shut down gracefully.")
	})
}
