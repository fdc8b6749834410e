package notification

import (
    "context"
    "fmt"
    "log/slog"

    "github.com/Shiwasmii/CunaPay.Api/internal/events"
)

const (
    // KindTransferSent indicates an outbound token transfer was broadcast.
    KindTransferSent = "transfer_sent"
    // KindTransferConfirmed indicates a transfer was confirmed on chain.
    KindTransferConfirmed = "transfer_confirmed"
    // KindTransferFailed indicates a transfer was rejected or reverted.
    KindTransferFailed = "transfer_failed"
    // KindStakeOpened indicates a savings position was opened.
    KindStakeOpened = "stake_opened"
    // KindStakeClosed indicates a savings position was settled.
    KindStakeClosed = "stake_closed"
)

// Message describes a notification payload.
type Message struct {
    Kind        string
    Destination string
    Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
    Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
    logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
    return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
    if n == nil || n.logger == nil {
        return nil
    }
    n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
    return nil
}

// AttachTo bridges domain events onto the notifier. Delivery failures
// are logged and dropped; notifications never hold up settlement.
func AttachTo(bus *events.Bus, notifier Notifier, logger *slog.Logger) {
    bus.SubscribeAll(func(e events.Event) {
        msg, ok := translate(e)
        if !ok {
            return
        }
        if err := notifier.Send(context.Background(), msg); err != nil && logger != nil {
            logger.Warn("notification delivery failed", "kind", msg.Kind, "error", err)
        }
    })
}

func translate(e events.Event) (Message, bool) {
    switch e.Type {
    case events.TransactionBroadcasted:
        return Message{
            Kind:        KindTransferSent,
            Destination: e.AccountID,
            Body:        fmt.Sprintf("transfer of %s submitted (tx %s)", e.Amount, e.ChainTxID),
        }, true
    case events.TransactionConfirmed:
        return Message{
            Kind:        KindTransferConfirmed,
            Destination: e.AccountID,
            Body:        fmt.Sprintf("transfer %s confirmed on chain", e.ChainTxID),
        }, true
    case events.TransactionFailed:
        return Message{
            Kind:        KindTransferFailed,
            Destination: e.AccountID,
            Body:        fmt.Sprintf("transfer could not be completed: %s", e.Reason),
        }, true
    case events.StakeOpened:
        return Message{
            Kind:        KindStakeOpened,
            Destination: e.AccountID,
            Body:        fmt.Sprintf("savings position opened for %s", e.Amount),
        }, true
    case events.StakeClosed:
        return Message{
            Kind:        KindStakeClosed,
            Destination: e.AccountID,
            Body:        fmt.Sprintf("savings position settled for %s", e.Amount),
        }, true
    default:
        return Message{}, false
    }
}
