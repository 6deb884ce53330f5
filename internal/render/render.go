package render

import (
	"fmt"
	"time"

	"project-board-sync/internal/domain"
	"project-board-sync/internal/response"
)

// ContextKind names a rendering surface. It is a superset of the
// membership context kinds: task_list is a pure view with no membership
// records behind it.
type ContextKind string

const (
	ContextBoard      ContextKind = "board"
	ContextWeekly     ContextKind = "weekly"
	ContextTaskList   ContextKind = "task_list"
	ContextCollection ContextKind = "collection"
	ContextTag        ContextKind = "tag"
	ContextPeople     ContextKind = "people"
)

// AllContextKinds lists every rendering surface.
var AllContextKinds = []ContextKind{
	ContextBoard,
	ContextWeekly,
	ContextTaskList,
	ContextCollection,
	ContextTag,
	ContextPeople,
}

// ContextData carries the per-surface details a descriptor may echo back.
type ContextData struct {
	ColumnKey string
	Day       string
	WeekKey   string
	TagName   string
}

// Progress is the completion fraction shown as a bar or inline count.
type Progress struct {
	Done    int `json:"done"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
}

// ViewDescriptor is the render output: everything a surface needs to
// draw one entity, with no further storage reads.
type ViewDescriptor struct {
	EntityID     string            `json:"entityId"`
	EntityType   domain.EntityType `json:"entityType"`
	ContextKind  ContextKind       `json:"contextKind"`
	Title        string            `json:"title"`
	Subtitle     string            `json:"subtitle,omitempty"`
	Badges       []string          `json:"badges,omitempty"`
	PreviewLines []string          `json:"previewLines,omitempty"`
	Progress     *Progress         `json:"progress,omitempty"`
	DueLabel     string            `json:"dueLabel,omitempty"`
	Completed    bool              `json:"completed"`
}

// Renderer turns an entity plus a context into a ViewDescriptor. It is a
// pure mapping: no storage reads or writes, and with a fixed clock the
// same inputs always yield the same descriptor.
type Renderer struct {
	now func() time.Time
}

// NewRenderer creates a renderer using the given clock. A nil clock
// falls back to time.Now.
func NewRenderer(now func() time.Time) *Renderer {
	if now == nil {
		now = time.Now
	}
	return &Renderer{now: now}
}

// Render produces the descriptor for one entity on one surface. An
// unknown context kind is a hard error rather than a fallback view,
// because a fallback would hide dispatch bugs.
func (r *Renderer) Render(entity *domain.Entity, kind ContextKind, data ContextData) (*ViewDescriptor, error) {
	if entity == nil {
		return nil, response.NewAppError(response.ErrCodeValidation, "Entity is required", "")
	}

	switch kind {
	case ContextBoard, ContextWeekly, ContextTaskList, ContextCollection, ContextTag, ContextPeople:
	default:
		return nil, response.NewAppError(response.ErrCodeUnsupportedContext,
			"Unknown render context kind", string(kind))
	}

	desc := &ViewDescriptor{
		EntityID:    entity.ID,
		EntityType:  entity.Type,
		ContextKind: kind,
		Title:       entity.Title,
		Completed:   entity.Completed,
	}

	switch entity.Type {
	case domain.EntityTypeTask:
		r.renderTask(desc, entity, kind, data)
	case domain.EntityTypeNote:
		r.renderNote(desc, entity, kind)
	case domain.EntityTypeChecklist:
		r.renderChecklist(desc, entity, kind)
	case domain.EntityTypeProject:
		r.renderProject(desc, entity, kind)
	case domain.EntityTypePerson:
		r.renderPerson(desc, entity, kind)
	default:
		return nil, response.NewAppError(response.ErrCodeUnsupportedContext,
			"Unknown entity type", string(entity.Type))
	}

	return desc, nil
}

func (r *Renderer) renderTask(desc *ViewDescriptor, entity *domain.Entity, kind ContextKind, data ContextData) {
	if entity.Priority != "" && entity.Priority != domain.PriorityMedium {
		desc.Badges = append(desc.Badges, entity.Priority)
	}
	if entity.DueDate != nil {
		desc.DueLabel = r.relativeDate(*entity.DueDate)
	}
	if n := len(entity.Subtasks); n > 0 {
		desc.Badges = append(desc.Badges, fmt.Sprintf("%d subtasks", n))
	}

	switch kind {
	case ContextBoard:
		desc.PreviewLines = previewLines(entity.Content, 2)
	case ContextWeekly:
		if data.Day != "" {
			desc.Subtitle = data.Day
		}
	case ContextTaskList:
		desc.Subtitle = entity.Content
		desc.Badges = append(desc.Badges, tagBadges(entity.Tags)...)
	case ContextCollection, ContextTag:
		desc.Badges = append(desc.Badges, "task")
	case ContextPeople:
		desc.Subtitle = "assigned task"
	}
}

func (r *Renderer) renderNote(desc *ViewDescriptor, entity *domain.Entity, kind ContextKind) {
	switch kind {
	case ContextBoard, ContextCollection:
		desc.PreviewLines = previewLines(entity.Content, 3)
	case ContextWeekly, ContextTaskList:
		desc.Subtitle = firstLine(entity.Content)
	case ContextTag:
		desc.Subtitle = firstLine(entity.Content)
		desc.Badges = append(desc.Badges, "note")
	case ContextPeople:
		desc.Subtitle = "mentioned in note"
	}
}

func (r *Renderer) renderChecklist(desc *ViewDescriptor, entity *domain.Entity, kind ContextKind) {
	done := 0
	for _, item := range entity.Items {
		if item.Completed {
			done++
		}
	}
	total := len(entity.Items)

	switch kind {
	case ContextBoard:
		// Board cards get the full progress bar plus a peek at the first
		// few items; other surfaces only show counts.
		desc.Progress = checklistProgress(done, total)
		limit := 3
		if limit > total {
			limit = total
		}
		for _, item := range entity.Items[:limit] {
			mark := "[ ]"
			if item.Completed {
				mark = "[x]"
			}
			desc.PreviewLines = append(desc.PreviewLines, mark+" "+item.Text)
		}
	case ContextWeekly:
		desc.Subtitle = fmt.Sprintf("%d/%d", done, total)
	case ContextTaskList, ContextCollection, ContextTag:
		desc.Progress = checklistProgress(done, total)
		desc.Subtitle = fmt.Sprintf("%d of %d done", done, total)
	case ContextPeople:
		desc.Subtitle = fmt.Sprintf("shared checklist, %d/%d", done, total)
	}
}

func (r *Renderer) renderProject(desc *ViewDescriptor, entity *domain.Entity, kind ContextKind) {
	if n := len(entity.Subtasks); n > 0 {
		desc.Badges = append(desc.Badges, fmt.Sprintf("%d tasks", n))
	}
	if n := len(entity.People); n > 0 {
		desc.Badges = append(desc.Badges, fmt.Sprintf("%d people", n))
	}

	switch kind {
	case ContextBoard, ContextCollection:
		desc.PreviewLines = previewLines(entity.Content, 2)
	case ContextWeekly, ContextTaskList:
		desc.Subtitle = firstLine(entity.Content)
	case ContextTag:
		desc.Badges = append(desc.Badges, "project")
	case ContextPeople:
		desc.Subtitle = "project member"
	}
}

func (r *Renderer) renderPerson(desc *ViewDescriptor, entity *domain.Entity, kind ContextKind) {
	switch kind {
	case ContextBoard, ContextCollection, ContextTag:
		desc.Subtitle = firstLine(entity.Content)
		desc.Badges = append(desc.Badges, "person")
	case ContextWeekly, ContextTaskList:
		desc.Subtitle = firstLine(entity.Content)
	case ContextPeople:
		desc.Subtitle = "timeline owner"
	}
}

func checklistProgress(done, total int) *Progress {
	percent := 0
	if total > 0 {
		percent = (done*100 + total/2) / total
	}
	return &Progress{Done: done, Total: total, Percent: percent}
}

// relativeDate renders a due date relative to the renderer's clock,
// comparing calendar days rather than raw durations.
func (r *Renderer) relativeDate(due time.Time) string {
	now := r.now()
	nowDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dueDay := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	days := int(dueDay.Sub(nowDay).Hours() / 24)

	switch {
	case days == 0:
		return "today"
	case days == 1:
		return "tomorrow"
	case days == -1:
		return "yesterday"
	case days > 1:
		return fmt.Sprintf("in %d days", days)
	default:
		return fmt.Sprintf("%d days overdue", -days)
	}
}

func firstLine(content string) string {
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			return content[:i]
		}
	}
	return content
}

func previewLines(content string, limit int) []string {
	if content == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i <= len(content) && len(lines) < limit; i++ {
		if i == len(content) || content[i] == '\n' {
			if i > start {
				lines = append(lines, content[start:i])
			}
			start = i + 1
		}
	}
	return lines
}

func tagBadges(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		out = append(out, "#"+tag)
	}
	return out
}
