package sync

import (
	"encoding/json"
	"fmt"

	"github.com/arden/fieldsync/internal/db"
	"github.com/arden/fieldsync/internal/models"
	"github.com/arden/fieldsync/internal/syncclient"
)

// MaxEvidenceSize is the hard ceiling on evidence blobs. Oversized blobs
// fail permanently before any network call so a doomed request never spends
// the retry budget.
const MaxEvidenceSize = 10 << 20

// Handler pushes one queue entry's change to the remote authority. The
// returned error is classified by the engine; handlers may pre-classify
// (e.g. the evidence size guard) and those errors pass through unchanged.
type Handler interface {
	Push(entry models.QueueEntry) error
}

// Handlers maps each entity kind to its push handler. One field per kind
// keeps the dispatch exhaustive; a partially populated Handlers is a
// construction bug, not a runtime condition.
type Handlers struct {
	ChecklistItem  Handler
	FieldEvidence  Handler
	DraftFinding   Handler
	OfflineSession Handler
}

// For returns the handler for an entity type.
func (h Handlers) For(t models.EntityType) (Handler, error) {
	var handler Handler
	switch t {
	case models.EntityChecklistItem:
		handler = h.ChecklistItem
	case models.EntityFieldEvidence:
		handler = h.FieldEvidence
	case models.EntityDraftFinding:
		handler = h.DraftFinding
	case models.EntityOfflineSession:
		handler = h.OfflineSession
	default:
		return nil, fmt.Errorf("no handler for entity type %q", t)
	}
	if handler == nil {
		return nil, fmt.Errorf("no handler for entity type %q", t)
	}
	return handler, nil
}

// NewHandlers wires the standard handler set against a store and a client.
func NewHandlers(store *db.DB, client *syncclient.Client) Handlers {
	return Handlers{
		ChecklistItem:  &checklistHandler{client: client},
		FieldEvidence:  &evidenceHandler{store: store, client: client},
		DraftFinding:   &findingHandler{client: client},
		OfflineSession: &sessionHandler{client: client},
	}
}

// payloadReviewID extracts the review scope from a snapshot payload.
func payloadReviewID(payload json.RawMessage) (string, error) {
	var v struct {
		ReviewID string `json:"review_id"`
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	if v.ReviewID == "" {
		return "", fmt.Errorf("payload missing review_id")
	}
	return v.ReviewID, nil
}

type checklistHandler struct {
	client *syncclient.Client
}

func (h *checklistHandler) Push(entry models.QueueEntry) error {
	reviewID, err := payloadReviewID(entry.Payload)
	if err != nil {
		return &PermanentError{Message: err.Error()}
	}
	return h.client.PushChecklistItem(string(entry.Action), reviewID, entry.EntityID, entry.Payload)
}

type findingHandler struct {
	client *syncclient.Client
}

func (h *findingHandler) Push(entry models.QueueEntry) error {
	reviewID, err := payloadReviewID(entry.Payload)
	if err != nil {
		return &PermanentError{Message: err.Error()}
	}
	return h.client.PushFinding(string(entry.Action), reviewID, entry.EntityID, entry.Payload)
}

type sessionHandler struct {
	client *syncclient.Client
}

func (h *sessionHandler) Push(entry models.QueueEntry) error {
	reviewID, err := payloadReviewID(entry.Payload)
	if err != nil {
		return &PermanentError{Message: err.Error()}
	}
	return h.client.PushSession(string(entry.Action), reviewID, entry.EntityID, entry.Payload)
}

// evidenceHandler pushes field evidence. The queue payload carries metadata
// only; the blob is loaded from the store at push time.
type evidenceHandler struct {
	store  *db.DB
	client *syncclient.Client
}

func (h *evidenceHandler) Push(entry models.QueueEntry) error {
	reviewID, err := payloadReviewID(entry.Payload)
	if err != nil {
		return &PermanentError{Message: err.Error()}
	}

	if entry.Action == models.ActionDelete {
		return h.client.DeleteEvidence(reviewID, entry.EntityID)
	}

	ev, err := h.store.GetEvidence(entry.EntityID)
	if err != nil {
		// Record deleted locally after enqueue; nothing left to push.
		return &PermanentError{Message: fmt.Sprintf("evidence %s no longer in local store", entry.EntityID)}
	}

	if int64(len(ev.Data)) > MaxEvidenceSize {
		return &PermanentError{
			Message: fmt.Sprintf("evidence %s is %.1f MB, exceeds the 10 MB upload limit",
				ev.FileName, float64(len(ev.Data))/(1<<20)),
		}
	}

	return h.client.UploadEvidence(reviewID, ev.FileName, ev.MimeType, entry.Payload, ev.Data)
}
