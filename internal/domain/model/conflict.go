package model

import "time"

// Reason names the rule that produced a conflict edge.
type Reason string

// Conflict reasons.
const (
	ReasonDistanceTravel       Reason = "distance_travel"
	ReasonPerformerOverload    Reason = "performer_overload"
	ReasonColocationSameWindow Reason = "colocation_same_window"
)

// ConflictEdge links two conflicting events. A < B always holds.
type ConflictEdge struct {
	A      string
	B      string
	Reason Reason
}

// NewEdge builds a normalized edge.
func NewEdge(x, y string, r Reason) ConflictEdge {
	if y < x {
		x, y = y, x
	}
	return ConflictEdge{A: x, B: y, Reason: r}
}

// Less orders edges by (A, B, Reason).
func (e ConflictEdge) Less(o ConflictEdge) bool {
	if e.A != o.A {
		return e.A < o.A
	}
	if e.B != o.B {
		return e.B < o.B
	}
	return e.Reason < o.Reason
}

// Status is the resolution state of a group.
type Status string

// Group statuses.
const (
	StatusUnresolved        Status = "unresolved"
	StatusPartiallyResolved Status = "partially_resolved"
	StatusResolved          Status = "resolved"
)

// Attendance is the decision taken for one event of a group.
type Attendance string

// Attendance values.
const (
	AttendancePlanned Attendance = "planned"
	AttendanceSkipped Attendance = "skipped"
)

// Valid reports whether a is a known attendance value.
func (a Attendance) Valid() bool {
	return a == AttendancePlanned || a == AttendanceSkipped
}

// ConflictGroup is a connected component of the conflict graph.
type ConflictGroup struct {
	ID        string
	Members   []string // sorted
	Status    Status
	Edges     []ConflictEdge
	Decisions map[string]Attendance
}

// Decision records one attendance choice.
type Decision struct {
	GroupID    string
	EventGUID  string
	Attendance Attendance
	DecidedAt  time.Time
}
