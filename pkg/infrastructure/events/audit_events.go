package events

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/domain/repositories"
)

// Summary counts one day's activity
type Summary struct {
	StockJobs int `json:"stock_jobs"`
	RushJobs  int `json:"rush_jobs"`
	Movements int `json:"movements"`
	Alerts    int `json:"alerts"`
	Errors    int `json:"errors"`
}

// SummaryFor counts the activity recorded on day
func (s *InMemoryEventStore) SummaryFor(day time.Time) Summary {
	var sum Summary
	for _, e := range s.ReadDay(day, 1) {
		a := e.Audit
		switch a.Type {
		case entities.AuditJob:
			if strings.Contains(a.Message, "Rush") {
				sum.RushJobs++
			} else {
				sum.StockJobs++
			}
		case entities.AuditMovement:
			sum.Movements++
		case entities.AuditAlert:
			sum.Alerts++
		case entities.AuditError:
			sum.Errors++
		}
	}
	return sum
}

// TodaySummary counts the activity recorded today
func (s *InMemoryEventStore) TodaySummary() Summary {
	return s.SummaryFor(s.now())
}

// AuditLogHandler forwards activity events to a durable audit log
type AuditLogHandler struct {
	log repositories.AuditLog
}

func NewAuditLogHandler(log repositories.AuditLog) *AuditLogHandler {
	return &AuditLogHandler{log: log}
}

func (h *AuditLogHandler) Handle(event Event) error {
	h.log.Record(context.Background(), event.Audit)
	return nil
}

func (h *AuditLogHandler) CanHandle(eventType entities.AuditEventType) bool {
	return true
}

// LoggingHandler writes activity events to a zap logger
type LoggingHandler struct {
	logger *zap.Logger
}

func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger}
}

func (h *LoggingHandler) Handle(event Event) error {
	a := event.Audit
	fields := []zap.Field{zap.String("type", string(a.Type))}
	if a.Details != "" {
		fields = append(fields, zap.String("details", a.Details))
	}
	if a.Part != "" {
		fields = append(fields, zap.String("part", string(a.Part)))
	}
	if a.Quantity != 0 {
		fields = append(fields, zap.Int64("quantity", int64(a.Quantity)))
	}
	if a.OrderNumber != "" {
		fields = append(fields, zap.String("order", a.OrderNumber))
	}
	if a.Document != "" {
		fields = append(fields, zap.String("document", a.Document))
	}
	if a.File != "" {
		fields = append(fields, zap.String("file", a.File))
	}

	switch a.Type {
	case entities.AuditError:
		h.logger.Error(a.Message, fields...)
	case entities.AuditAlert:
		h.logger.Warn(a.Message, fields...)
	default:
		h.logger.Info(a.Message, fields...)
	}
	return nil
}

func (h *LoggingHandler) CanHandle(eventType entities.AuditEventType) bool {
	return true
}
