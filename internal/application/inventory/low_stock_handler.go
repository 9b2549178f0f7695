package inventory

import (
	"context"
	"fmt"

	"github.com/erp/stockledger/internal/domain/catalog"
	"github.com/erp/stockledger/internal/domain/shared"
	"go.uber.org/zap"
)

// Alert types raised by LowStockHandler
const (
	AlertTypeLowStock   = "low_stock"
	AlertTypeOutOfStock = "out_of_stock"
)

// StockAlert describes a variant that crossed into low or out of stock
type StockAlert struct {
	VariantID       string `json:"variant_id"`
	ProductID       string `json:"product_id"`
	SKU             string `json:"sku"`
	CurrentQuantity int    `json:"current_quantity"`
	ReorderLevel    int    `json:"reorder_level"`
	AlertType       string `json:"alert_type"`
	MovementType    string `json:"movement_type"`
}

// StockAlertNotifier delivers stock alerts
type StockAlertNotifier interface {
	SendAlert(ctx context.Context, alert StockAlert) error
}

// StockAlertRecorder counts raised alerts, e.g. as a metric
type StockAlertRecorder interface {
	RecordStockAlert(ctx context.Context, alertType string)
}

// LowStockHandler reacts to StockLevelChanged events.
// It only fires on a status transition into low_stock or out_of_stock, so a
// variant that stays low does not alert on every sale.
type LowStockHandler struct {
	logger   *zap.Logger
	notifier StockAlertNotifier
	recorder StockAlertRecorder
}

// NewLowStockHandler creates a new LowStockHandler
func NewLowStockHandler(logger *zap.Logger) *LowStockHandler {
	return &LowStockHandler{logger: logger}
}

// WithNotifier sets the notifier for sending alerts
func (h *LowStockHandler) WithNotifier(notifier StockAlertNotifier) *LowStockHandler {
	h.notifier = notifier
	return h
}

// WithRecorder sets the alert counter
func (h *LowStockHandler) WithRecorder(recorder StockAlertRecorder) *LowStockHandler {
	h.recorder = recorder
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *LowStockHandler) EventTypes() []string {
	return []string{catalog.EventTypeStockLevelChanged}
}

// Handle processes a StockLevelChangedEvent
func (h *LowStockHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	changed, ok := event.(*catalog.StockLevelChangedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", catalog.EventTypeStockLevelChanged),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			catalog.EventTypeStockLevelChanged, event.EventType())
	}

	if !changed.StatusChanged() || !changed.NewStatus.NeedsAttention() {
		return nil
	}

	alertType := AlertTypeLowStock
	if changed.NewStatus == catalog.StockStatusOutOfStock {
		alertType = AlertTypeOutOfStock
	}

	alert := StockAlert{
		VariantID:       changed.VariantID.String(),
		ProductID:       changed.ProductID.String(),
		SKU:             changed.SKU,
		CurrentQuantity: changed.QuantityAfter,
		ReorderLevel:    changed.ReorderLevel,
		AlertType:       alertType,
		MovementType:    changed.MovementType,
	}

	h.logger.Warn("variant needs restocking",
		zap.String("variant_id", alert.VariantID),
		zap.String("sku", alert.SKU),
		zap.String("old_status", changed.OldStatus.String()),
		zap.String("new_status", changed.NewStatus.String()),
		zap.Int("quantity", alert.CurrentQuantity),
		zap.Int("reorder_level", alert.ReorderLevel),
	)

	if h.recorder != nil {
		h.recorder.RecordStockAlert(ctx, alertType)
	}

	if h.notifier != nil {
		// Notification failure must not fail event handling
		if err := h.notifier.SendAlert(ctx, alert); err != nil {
			h.logger.Error("failed to send stock alert notification",
				zap.String("variant_id", alert.VariantID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// Ensure LowStockHandler implements shared.EventHandler
var _ shared.EventHandler = (*LowStockHandler)(nil)

// LoggingStockAlertNotifier is a notifier that only logs alerts
type LoggingStockAlertNotifier struct {
	logger *zap.Logger
}

// NewLoggingStockAlertNotifier creates a new logging notifier
func NewLoggingStockAlertNotifier(logger *zap.Logger) *LoggingStockAlertNotifier {
	return &LoggingStockAlertNotifier{logger: logger}
}

// SendAlert logs the stock alert
func (n *LoggingStockAlertNotifier) SendAlert(_ context.Context, alert StockAlert) error {
	n.logger.Warn("STOCK ALERT",
		zap.String("type", alert.AlertType),
		zap.String("sku", alert.SKU),
		zap.Int("current_qty", alert.CurrentQuantity),
		zap.Int("reorder_level", alert.ReorderLevel),
	)
	return nil
}

var _ StockAlertNotifier = (*LoggingStockAlertNotifier)(nil)

// AlertKey identifies an alert by variant and status so a variant that
// bounces around its reorder level alerts once per cooldown window.
// Events that raise no alert get an empty key.
func AlertKey(event shared.DomainEvent) string {
	changed, ok := event.(*catalog.StockLevelChangedEvent)
	if !ok || !changed.StatusChanged() || !changed.NewStatus.NeedsAttention() {
		return ""
	}
	return "alert:" + changed.VariantID.String() + ":" + changed.NewStatus.String()
}
