// Package memory defines the per-user memory record schema and the merge
// logic that mutates it.
//
// A [Record] is the complete memory document for one user: profile metadata,
// short-term working memory, durable long-term knowledge, and a bounded event
// timeline. Records are owned by the service layer's index and are only
// mutated through the merge operations in this package — [DeepMerge] for the
// document body and [MergeEvents] for the timeline, which have deliberately
// different identity and ordering semantics.
//
// A [Snapshot] maps user ids to records and is the unit of durability: the
// store drivers in pkg/store persist and load whole snapshots.
package memory

import "time"

// PlanningDay is a preferred day of week for weekly planning.
type PlanningDay string

const (
	Monday    PlanningDay = "monday"
	Tuesday   PlanningDay = "tuesday"
	Wednesday PlanningDay = "wednesday"
	Thursday  PlanningDay = "thursday"
	Friday    PlanningDay = "friday"
	Saturday  PlanningDay = "saturday"
	Sunday    PlanningDay = "sunday"
)

// WeeklyPlanning holds preferences that guide weekly planning flows.
type WeeklyPlanning struct {
	// PlanningDay is the preferred day of week for planning.
	PlanningDay PlanningDay `json:"planning_day,omitempty"`

	// PlanningTimeLocal is the preferred local time for planning, HH:MM (24h).
	PlanningTimeLocal string `json:"planning_time_local,omitempty"`

	// CalendarLink is a reference calendar to anchor planning sessions.
	CalendarLink string `json:"calendar_link,omitempty"`

	// Timezone is an IANA timezone identifier (e.g., America/New_York).
	Timezone string `json:"timezone,omitempty"`
}

// Profile holds metadata used to personalize the memory experience.
type Profile struct {
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`

	// Preferences are arbitrary, user-defined preferences for prompting
	// and formatting.
	Preferences map[string]any `json:"preferences,omitempty"`

	WeeklyPlanning WeeklyPlanning `json:"weekly_planning,omitempty"`
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskDelegated  TaskStatus = "delegated"
)

// DecisionType classifies a recorded decision.
type DecisionType string

const (
	DecisionStrategic DecisionType = "strategic"
	DecisionTactical  DecisionType = "tactical"
	DecisionProcess   DecisionType = "process"
)

// TimeblockType is the kind of time being reserved.
type TimeblockType string

const (
	TimeblockFocus   TimeblockType = "focus"
	TimeblockMeeting TimeblockType = "meeting"
	TimeblockBreak   TimeblockType = "break"
	TimeblockAdmin   TimeblockType = "admin"
)

// Task is an actionable item the assistant should keep top-of-mind.
type Task struct {
	// ID is a stable identifier for deduplication.
	ID     string     `json:"id,omitempty"`
	Title  string     `json:"title"`
	Status TaskStatus `json:"status,omitempty"`
	DueAt  *time.Time `json:"due_at,omitempty"`
	Notes  []string   `json:"notes,omitempty"`
}

// Decision is a recorded decision with explicit categorization.
type Decision struct {
	ID           string       `json:"id,omitempty"`
	Summary      string       `json:"summary"`
	Rationale    string       `json:"rationale,omitempty"`
	DecisionType DecisionType `json:"decision_type,omitempty"`
	DecidedAt    *time.Time   `json:"decided_at,omitempty"`
}

// Timeblock is a calendar block the assistant should respect.
type Timeblock struct {
	ID        string        `json:"id,omitempty"`
	Label     string        `json:"label"`
	BlockType TimeblockType `json:"block_type,omitempty"`
	StartAt   time.Time     `json:"start_at"`
	EndAt     time.Time     `json:"end_at"`
}

// WorkingMemory is short-term memory that powers fast contextual responses.
type WorkingMemory struct {
	// CurrentFocusThread is the active focus thread identifier used to
	// disambiguate context.
	CurrentFocusThread string `json:"current_focus_thread,omitempty"`

	ActivePriorities []string    `json:"active_priorities,omitempty"`
	Tasks            []Task      `json:"tasks,omitempty"`
	Decisions        []Decision  `json:"decisions,omitempty"`
	Timeblocks       []Timeblock `json:"timeblocks,omitempty"`
}

// ProjectStatus is the current state of a project.
type ProjectStatus string

const (
	ProjectPlanning   ProjectStatus = "planning"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectBlocked    ProjectStatus = "blocked"
	ProjectDone       ProjectStatus = "done"
)

// Project is something the user is working on, with goals and status.
type Project struct {
	ID         string        `json:"id,omitempty"`
	Name       string        `json:"name"`
	Objectives []string      `json:"objectives,omitempty"`
	Status     ProjectStatus `json:"status,omitempty"`
}

// Stakeholder is a key person with a role or relationship to the user.
type Stakeholder struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Role    string `json:"role,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// System is a tool or integration the user relies on.
type System struct {
	ID    string   `json:"id,omitempty"`
	Name  string   `json:"name"`
	Notes []string `json:"notes,omitempty"`
}

// LongTermKnowledge is durable knowledge that rarely changes but remains
// critical.
type LongTermKnowledge struct {
	Projects     []Project     `json:"projects,omitempty"`
	Stakeholders []Stakeholder `json:"stakeholders,omitempty"`
	Systems      []System      `json:"systems,omitempty"`
}

// EventType classifies a timeline event.
type EventType string

const (
	// EventMeeting marks a live discussion.
	EventMeeting EventType = "meeting"

	// EventSnapshot marks an assistant-authored summary.
	EventSnapshot EventType = "snapshot"

	// EventNote marks a quick context drop.
	EventNote EventType = "note"
)

// Event is a structured entry in the user's memory timeline.
type Event struct {
	// ID is a stable identifier for deduplication. Meetings use
	// meeting-YYYYMMDD-slug, snapshots use snapshot-YYYYMMDD-HHMMSS.
	ID string `json:"id,omitempty"`

	Type    EventType `json:"type,omitempty"`
	Title   string    `json:"title,omitempty"`
	Summary string    `json:"summary,omitempty"`

	// OccurredAt is when the event happened.
	OccurredAt *time.Time `json:"occurred_at,omitempty"`

	// CapturedAt is when the assistant captured the event. Stamped during
	// normalization when absent.
	CapturedAt *time.Time `json:"captured_at,omitempty"`

	Decisions []Decision `json:"decisions,omitempty"`
	Tasks     []Task     `json:"tasks,omitempty"`
	Notes     []string   `json:"notes,omitempty"`

	// Metadata holds structured extras such as participants or tags.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Record is the complete memory state for a single user.
type Record struct {
	UserID            string            `json:"user_id"`
	Profile           Profile           `json:"profile"`
	WorkingMemory     WorkingMemory     `json:"working_memory"`
	LongTermKnowledge LongTermKnowledge `json:"long_term_knowledge"`
	Events            []Event           `json:"events"`
}

// Snapshot is the full serialized record index at a point in time, keyed by
// user id. It is the unit of durability: one snapshot holds all records.
type Snapshot map[string]*Record
