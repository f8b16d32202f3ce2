package entities

import "fmt"

// Action is what the coverage engine recommends for one order line
type Action int

const (
	ActionMovement Action = iota
	ActionStockJob
	ActionRushJob
)

// String method for Action enum
func (a Action) String() string {
	switch a {
	case ActionMovement:
		return "movement"
	case ActionStockJob:
		return "stock_job"
	case ActionRushJob:
		return "rush_job"
	default:
		return "unknown"
	}
}

// MarshalText renders the action by name
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// IsNewProduction reports whether the action creates a job rather than pulling stock
func (a Action) IsNewProduction() bool {
	return a == ActionStockJob || a == ActionRushJob
}

// Source is the coverage tier a decision drew from
type Source int

const (
	SourceFG Source = iota
	SourceWIP
	SourceSecondaryFG
	SourceJob
	SourceNew
)

// String method for Source enum
func (s Source) String() string {
	switch s {
	case SourceFG:
		return "fg"
	case SourceWIP:
		return "wip"
	case SourceSecondaryFG:
		return "secondary_fg"
	case SourceJob:
		return "job"
	case SourceNew:
		return "new"
	default:
		return "unknown"
	}
}

// MarshalText renders the source by name
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StockRecord is one row reported by an inventory source
type StockRecord struct {
	ItemCode  string
	JobNumber string
	Quantity  Quantity
	Location  string
}

// Job is an open production job reported by the job source
type Job struct {
	JobNumber         string
	ItemCode          string
	Part              PartNumber
	QuantityOrdered   Quantity
	QuantityProduced  Quantity
	QuantityRemaining Quantity
	Status            string
}

// NewJob creates a validated Job
func NewJob(jobNumber, itemCode string, part PartNumber, ordered, produced, remaining Quantity, status string) (*Job, error) {
	if jobNumber == "" {
		return nil, fmt.Errorf("job number cannot be empty")
	}
	if remaining < 0 {
		return nil, fmt.Errorf("remaining quantity cannot be negative, got %d", remaining)
	}

	return &Job{
		JobNumber:         jobNumber,
		ItemCode:          itemCode,
		Part:              part,
		QuantityOrdered:   ordered,
		QuantityProduced:  produced,
		QuantityRemaining: remaining,
		Status:            status,
	}, nil
}

// Movement is a stock movement already booked against a job
type Movement struct {
	MovementID string
	JobNumber  string
	Quantity   Quantity
	Status     string
}

// IsActive reports whether the movement still consumes job capacity
func (m Movement) IsActive() bool {
	switch m.Status {
	case "ACTIVE", "PENDING", "OPEN":
		return true
	default:
		return false
	}
}

// Availability holds the quantities observed per coverage tier
type Availability struct {
	FG          Quantity `json:"fg"`
	WIP         Quantity `json:"wip"`
	SecondaryFG Quantity `json:"secondary_fg"`
	Jobs        Quantity `json:"jobs"`
}

// CoverageDecision is the engine's recommendation for one order line
type CoverageDecision struct {
	Part              PartNumber   `json:"part"`
	Site              string       `json:"site"`
	OrderQuantity     Quantity     `json:"order_quantity"`
	ForecastQuantity  Quantity     `json:"forecast_quantity"`
	Action            Action       `json:"action"`
	Source            Source       `json:"source"`
	JobNumber         string       `json:"job_number,omitempty"`
	ItemCode          string       `json:"item_code,omitempty"`
	Quantity          Quantity     `json:"quantity"`
	Available         Availability `json:"available"`
	ExistingMovements Quantity     `json:"existing_movements"`
	Unavailable       []Source     `json:"unavailable,omitempty"`
	Rationale         string       `json:"rationale"`
}

// UsesWIP reports whether a movement must fail when WIP is insufficient
func (d CoverageDecision) UsesWIP() bool {
	return d.Source == SourceWIP
}
