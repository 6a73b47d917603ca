package models

import (
	"encoding/json"
	"time"
)

// SyncStatus represents where an entity sits in the push pipeline.
// The sync engine is the only writer of this field after creation.
type SyncStatus string

const (
	SyncPending  SyncStatus = "pending"
	SyncSyncing  SyncStatus = "syncing"
	SyncSynced   SyncStatus = "synced"
	SyncFailed   SyncStatus = "failed"
	SyncConflict SyncStatus = "conflict"
)

// Phase represents the audit phase a checklist item belongs to.
type Phase string

const (
	PhasePreVisit  Phase = "pre_visit"
	PhaseOnSite    Phase = "on_site"
	PhasePostVisit Phase = "post_visit"
)

// Severity represents the severity of a draft finding.
type Severity string

const (
	SeverityCritical    Severity = "critical"
	SeverityMajor       Severity = "major"
	SeverityMinor       Severity = "minor"
	SeverityObservation Severity = "observation"
)

// EvidenceType represents the kind of captured artifact.
type EvidenceType string

const (
	EvidencePhoto    EvidenceType = "photo"
	EvidenceVoice    EvidenceType = "voice"
	EvidenceDocument EvidenceType = "document"
)

// EntityType identifies which table a sync queue entry targets.
type EntityType string

const (
	EntityChecklistItem  EntityType = "checklist_item"
	EntityFieldEvidence  EntityType = "field_evidence"
	EntityDraftFinding   EntityType = "draft_finding"
	EntityOfflineSession EntityType = "offline_session"
)

// Action represents the mutation a queue entry carries.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// GPSFix holds an optional location capture.
type GPSFix struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// ChecklistItem is one line item of a review checklist, worked offline.
type ChecklistItem struct {
	ID          string     `json:"id"`
	ReviewID    string     `json:"review_id"`
	Phase       Phase      `json:"phase"`
	Title       string     `json:"title"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy string     `json:"completed_by,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	SyncStatus  SyncStatus `json:"sync_status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// FieldEvidence is a captured artifact (photo, voice note, document) tied to
// exactly one checklist item. The record exclusively owns its blob until the
// upload transport takes a read-only borrow of it; the thumbnail is a derived,
// disposable cache with the same ownership scope.
type FieldEvidence struct {
	ID              string       `json:"id"`
	ReviewID        string       `json:"review_id"`
	ChecklistItemID string       `json:"checklist_item_id"`
	Type            EvidenceType `json:"type"`
	MimeType        string       `json:"mime_type"`
	FileName        string       `json:"file_name"`
	FileSize        int64        `json:"file_size"`
	Data            []byte       `json:"-"`
	Thumbnail       []byte       `json:"-"`
	GPS             *GPSFix      `json:"gps,omitempty"`
	CapturedAt      time.Time    `json:"captured_at"`
	Annotated       bool         `json:"annotated"`
	SyncStatus      SyncStatus   `json:"sync_status"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// DraftFinding is a finding drafted in the field. Evidence references are
// weak: the evidence records live and sync independently.
type DraftFinding struct {
	ID          string     `json:"id"`
	ReviewID    string     `json:"review_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Severity    Severity   `json:"severity"`
	AreaCode    string     `json:"area_code,omitempty"`
	QuestionID  string     `json:"question_id,omitempty"`
	EvidenceIDs []string   `json:"evidence_ids,omitempty"`
	GPS         *GPSFix    `json:"gps,omitempty"`
	SyncStatus  SyncStatus `json:"sync_status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// QueueEntry is one outstanding intent to push a local change. The payload is
// a metadata-only snapshot; blobs are loaded from the store at push time.
type QueueEntry struct {
	ID            string          `json:"id"`
	EntityType    EntityType      `json:"entity_type"`
	EntityID      string          `json:"entity_id"`
	Action        Action          `json:"action"`
	Payload       json.RawMessage `json:"payload"`
	RetryCount    int             `json:"retry_count"`
	MaxRetries    int             `json:"max_retries"`
	LastAttemptAt *time.Time      `json:"last_attempt_at,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	Conflicted    bool            `json:"conflicted"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Exhausted reports whether the entry has used up its retry budget.
func (e *QueueEntry) Exhausted() bool {
	return e.RetryCount >= e.MaxRetries
}

// OfflineSession is the audit record of a reviewer's offline working window.
// Sessions are synced opportunistically and carry no sync_status of their own.
type OfflineSession struct {
	ID         string     `json:"id"`
	ReviewID   string     `json:"review_id"`
	ReviewerID string     `json:"reviewer_id"`
	Device     string     `json:"device"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	SyncedAt   *time.Time `json:"synced_at,omitempty"`
}
