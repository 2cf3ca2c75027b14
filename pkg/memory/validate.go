package memory

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	planningTimeRe = regexp.MustCompile(`^\d{2}:\d{2}$`)
	meetingIDRe    = regexp.MustCompile(`^meeting-\d{8}-[a-z0-9-]+$`)
	snapshotIDRe   = regexp.MustCompile(`^snapshot-\d{8}-\d{6}$`)
)

// Validate checks a candidate record against the structural schema and
// returns a *ValidationError naming the first violated constraint, or nil.
// It is pure: the record is never mutated and no failure panics.
func Validate(r *Record) error {
	if r == nil {
		return &ValidationError{Reason: "record is nil"}
	}

	if r.UserID == "" {
		return &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}

	if err := validateProfile(&r.Profile); err != nil {
		return err
	}

	if err := validateWorkingMemory(&r.WorkingMemory); err != nil {
		return err
	}

	if err := validateLongTermKnowledge(&r.LongTermKnowledge); err != nil {
		return err
	}

	for i := range r.Events {
		if err := validateEvent(&r.Events[i], fmt.Sprintf("events[%d]", i)); err != nil {
			return err
		}
	}

	return nil
}

func validateProfile(p *Profile) error {
	wp := &p.WeeklyPlanning

	switch wp.PlanningDay {
	case "", Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
	default:
		return &ValidationError{
			Field:  "profile.weekly_planning.planning_day",
			Reason: fmt.Sprintf("unknown day %q", wp.PlanningDay),
		}
	}

	if wp.PlanningTimeLocal != "" {
		if !planningTimeRe.MatchString(wp.PlanningTimeLocal) {
			return &ValidationError{
				Field:  "profile.weekly_planning.planning_time_local",
				Reason: "must be HH:MM in 24-hour time",
			}
		}

		parts := strings.SplitN(wp.PlanningTimeLocal, ":", 2)
		hours, _ := strconv.Atoi(parts[0])
		minutes, _ := strconv.Atoi(parts[1])
		if hours > 23 || minutes > 59 {
			return &ValidationError{
				Field:  "profile.weekly_planning.planning_time_local",
				Reason: "must represent a valid time of day",
			}
		}
	}

	return nil
}

func validateWorkingMemory(wm *WorkingMemory) error {
	for i := range wm.Tasks {
		if err := validateTask(&wm.Tasks[i], fmt.Sprintf("working_memory.tasks[%d]", i)); err != nil {
			return err
		}
	}

	for i := range wm.Decisions {
		if err := validateDecision(&wm.Decisions[i], fmt.Sprintf("working_memory.decisions[%d]", i)); err != nil {
			return err
		}
	}

	for i := range wm.Timeblocks {
		tb := &wm.Timeblocks[i]
		path := fmt.Sprintf("working_memory.timeblocks[%d]", i)

		if tb.Label == "" {
			return &ValidationError{Field: path + ".label", Reason: "must not be empty"}
		}

		switch tb.BlockType {
		case "", TimeblockFocus, TimeblockMeeting, TimeblockBreak, TimeblockAdmin:
		default:
			return &ValidationError{
				Field:  path + ".block_type",
				Reason: fmt.Sprintf("unknown block type %q", tb.BlockType),
			}
		}

		if tb.StartAt.IsZero() {
			return &ValidationError{Field: path + ".start_at", Reason: "must be set"}
		}
		if tb.EndAt.IsZero() {
			return &ValidationError{Field: path + ".end_at", Reason: "must be set"}
		}
		if !tb.EndAt.After(tb.StartAt) {
			return &ValidationError{Field: path + ".end_at", Reason: "must be after start_at"}
		}
	}

	return nil
}

func validateLongTermKnowledge(ltk *LongTermKnowledge) error {
	for i := range ltk.Projects {
		p := &ltk.Projects[i]
		path := fmt.Sprintf("long_term_knowledge.projects[%d]", i)

		if p.Name == "" {
			return &ValidationError{Field: path + ".name", Reason: "must not be empty"}
		}

		switch p.Status {
		case "", ProjectPlanning, ProjectInProgress, ProjectBlocked, ProjectDone:
		default:
			return &ValidationError{
				Field:  path + ".status",
				Reason: fmt.Sprintf("unknown status %q", p.Status),
			}
		}
	}

	for i := range ltk.Stakeholders {
		if ltk.Stakeholders[i].Name == "" {
			return &ValidationError{
				Field:  fmt.Sprintf("long_term_knowledge.stakeholders[%d].name", i),
				Reason: "must not be empty",
			}
		}
	}

	for i := range ltk.Systems {
		if ltk.Systems[i].Name == "" {
			return &ValidationError{
				Field:  fmt.Sprintf("long_term_knowledge.systems[%d].name", i),
				Reason: "must not be empty",
			}
		}
	}

	return nil
}

func validateTask(t *Task, path string) error {
	if t.Title == "" {
		return &ValidationError{Field: path + ".title", Reason: "must not be empty"}
	}

	switch t.Status {
	case "", TaskTodo, TaskInProgress, TaskDone, TaskDelegated:
		return nil
	default:
		return &ValidationError{
			Field:  path + ".status",
			Reason: fmt.Sprintf("unknown status %q", t.Status),
		}
	}
}

func validateDecision(d *Decision, path string) error {
	if d.Summary == "" {
		return &ValidationError{Field: path + ".summary", Reason: "must not be empty"}
	}

	switch d.DecisionType {
	case "", DecisionStrategic, DecisionTactical, DecisionProcess:
		return nil
	default:
		return &ValidationError{
			Field:  path + ".decision_type",
			Reason: fmt.Sprintf("unknown decision type %q", d.DecisionType),
		}
	}
}

func validateEvent(e *Event, path string) error {
	switch e.Type {
	case "", EventMeeting, EventSnapshot, EventNote:
	default:
		return &ValidationError{
			Field:  path + ".type",
			Reason: fmt.Sprintf("unknown event type %q", e.Type),
		}
	}

	// Id formats are only enforced when an id is present; ingested
	// transcripts may lack stable ids entirely.
	if e.ID != "" {
		if e.Type == EventMeeting && !meetingIDRe.MatchString(e.ID) {
			return &ValidationError{
				Field:  path + ".id",
				Reason: "meeting ids must use meeting-YYYYMMDD-slug format",
			}
		}
		if e.Type == EventSnapshot && !snapshotIDRe.MatchString(e.ID) {
			return &ValidationError{
				Field:  path + ".id",
				Reason: "snapshot ids must use snapshot-YYYYMMDD-HHMMSS format",
			}
		}
	}

	for i := range e.Decisions {
		if err := validateDecision(&e.Decisions[i], fmt.Sprintf("%s.decisions[%d]", path, i)); err != nil {
			return err
		}
	}

	for i := range e.Tasks {
		if err := validateTask(&e.Tasks[i], fmt.Sprintf("%s.tasks[%d]", path, i)); err != nil {
			return err
		}
	}

	return nil
}

// ValidateSnapshot checks every record in a snapshot. Used by store drivers
// before committing a snapshot to disk.
func ValidateSnapshot(s Snapshot) error {
	for uid, record := range s {
		if record == nil {
			return &ValidationError{Field: uid, Reason: "record is nil"}
		}
		if err := Validate(record); err != nil {
			return err
		}
	}

	return nil
}
