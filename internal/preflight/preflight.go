package preflight

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/arden/fieldsync/internal/cache"
	"github.com/arden/fieldsync/internal/db"
	"github.com/arden/fieldsync/internal/storage"
)

// Result is the outcome of one readiness check.
type Result string

const (
	Pass    Result = "pass"
	Warning Result = "warning"
	Fail    Result = "fail"
)

// Free-space thresholds. Below the minimum the device gets a warning;
// below the severe floor offline capture is not viable.
const (
	MinFreeBytes    = 500 << 20
	SevereFreeBytes = 50 << 20
)

// Check is one completed readiness check.
type Check struct {
	Name   string `json:"name"`
	Result Result `json:"result"`
	Detail string `json:"detail,omitempty"`
}

// Report is the outcome of a full preflight run. Ready is true iff no
// check failed; warnings do not block going offline.
type Report struct {
	Checks []Check `json:"checks"`
	Ready  bool    `json:"ready"`
}

// PermissionProber reports device capture permission grants (camera,
// microphone, GPS). Implementations live at the platform boundary.
type PermissionProber interface {
	Permissions() map[string]bool
}

// Runner composes the store, cache, and storage layers into the "is this
// device ready to go offline" answer. It holds no state of its own.
type Runner struct {
	store   *db.DB
	cache   *cache.Manager
	storage *storage.Manager
	perms   PermissionProber
	logger  *slog.Logger
}

// NewRunner creates a preflight runner. perms may be nil when the platform
// cannot report permission status; that yields a warning, not a failure.
func NewRunner(store *db.DB, cacheMgr *cache.Manager, storageMgr *storage.Manager, perms PermissionProber, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{store: store, cache: cacheMgr, storage: storageMgr, perms: perms, logger: logger}
}

// Run executes the checks in a fixed order, reporting each through progress
// as it completes so callers can render incrementally. progress may be nil.
func (r *Runner) Run(reviewID string, progress func(Check)) Report {
	var report Report
	report.Ready = true

	record := func(c Check) {
		report.Checks = append(report.Checks, c)
		if c.Result == Fail {
			report.Ready = false
		}
		if progress != nil {
			progress(c)
		}
	}

	record(r.checkStore())
	record(r.checkPermissions())
	record(r.checkCache(reviewID))
	record(r.checkFreeSpace())

	r.logger.Info("preflight complete", "ready", report.Ready, "review", reviewID)
	return report
}

// checkStore verifies the local store accepts writes. This is the only
// unconditionally fatal check: without a working store nothing captured
// offline survives.
func (r *Runner) checkStore() Check {
	c := Check{Name: "local store"}
	if err := r.store.WriteProbe(); err != nil {
		c.Result = Fail
		c.Detail = err.Error()
		return c
	}
	c.Result = Pass
	return c
}

func (r *Runner) checkPermissions() Check {
	c := Check{Name: "capture permissions"}
	if r.perms == nil {
		c.Result = Warning
		c.Detail = "permission status unavailable on this platform"
		return c
	}

	var denied []string
	for name, granted := range r.perms.Permissions() {
		if !granted {
			denied = append(denied, name)
		}
	}
	if len(denied) > 0 {
		sort.Strings(denied)
		c.Result = Warning
		c.Detail = "not granted: " + strings.Join(denied, ", ")
		return c
	}
	c.Result = Pass
	return c
}

// checkCache verifies the review's reference data is cached, attempting to
// populate the cache on the spot when it is not.
func (r *Runner) checkCache(reviewID string) Check {
	c := Check{Name: "cached review data"}
	if reviewID == "" {
		c.Result = Warning
		c.Detail = "no review selected"
		return c
	}
	if r.cache.IsCachedForOffline(reviewID) {
		c.Result = Pass
		return c
	}
	if err := r.cache.CacheReviewForOffline(reviewID); err != nil {
		c.Result = Warning
		c.Detail = fmt.Sprintf("review data not cached and population failed: %v", err)
		return c
	}
	c.Result = Pass
	c.Detail = "cached now"
	return c
}

func (r *Runner) checkFreeSpace() Check {
	c := Check{Name: "free space"}
	est := r.storage.GetEstimate()
	switch {
	case est.QuotaBytes == 0:
		c.Result = Warning
		c.Detail = "storage capacity unknown"
	case est.FreeBytes < SevereFreeBytes:
		c.Result = Fail
		c.Detail = fmt.Sprintf("%d MB free, below the %d MB floor", est.FreeBytes>>20, SevereFreeBytes>>20)
	case est.FreeBytes < MinFreeBytes:
		c.Result = Warning
		c.Detail = fmt.Sprintf("%d MB free, below the recommended %d MB", est.FreeBytes>>20, MinFreeBytes>>20)
	default:
		c.Result = Pass
	}
	return c
}
