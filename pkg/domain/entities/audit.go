package entities

import "time"

// AuditEventType classifies activity log entries
type AuditEventType string

const (
	AuditFile     AuditEventType = "FILE"
	AuditJob      AuditEventType = "JOB"
	AuditMovement AuditEventType = "MOVEMENT"
	AuditAlert    AuditEventType = "ALERT"
	AuditSQL      AuditEventType = "SQL"
	AuditError    AuditEventType = "ERROR"
	AuditUser     AuditEventType = "USER"
	AuditSystem   AuditEventType = "SYSTEM"
)

// AuditEvent is one structured activity record. The identifying fields are
// optional and carry enough context to reprocess a unit of work by hand.
type AuditEvent struct {
	Type        AuditEventType
	Time        time.Time
	Message     string
	Details     string
	Part        PartNumber
	Quantity    Quantity
	OrderNumber string
	Document    string
	File        string
}
