package bulk

import (
	"time"

	"github.com/dogcoloringbooks/coloringbook/internal/models"
	"github.com/dogcoloringbooks/coloringbook/internal/storage"
	"github.com/dogcoloringbooks/coloringbook/internal/webhook"
)

// Predicates and patches applied through the item store. Each patch returns
// the next item and never touches anything else.

func isPending(w models.WorkItem) bool { return w.Status == models.StatusPending }

func isApproved(w models.WorkItem) bool { return w.Status == models.StatusApproved }

func compositeEligible(w models.WorkItem) bool {
	return w.Status == models.StatusReady &&
		w.HasSourceImages() &&
		!w.HasComposite() &&
		(w.CompositeStatus == models.CompositeNone || w.CompositeStatus == models.CompositePending)
}

// approvable needs a composite URL: scheduling publishes by URL and an inline
// composite alone cannot be posted later.
func approvable(w models.WorkItem) bool {
	return w.CompositeImageURL != "" &&
		w.Status != models.StatusApproved &&
		w.Status != models.StatusScheduled &&
		w.Status != models.StatusRejected
}

// approvableItem is approvable, except that an explicit per-item approval may
// overturn a rejection.
func approvableItem(w models.WorkItem) bool {
	return w.CompositeImageURL != "" &&
		w.Status != models.StatusApproved &&
		w.Status != models.StatusScheduled
}

func rejectable(w models.WorkItem) bool {
	return w.Status == models.StatusReady || w.Status == models.StatusApproved
}

func failedAt(stage models.Stage) func(models.WorkItem) bool {
	return func(w models.WorkItem) bool {
		return w.Status == models.StatusFailed && w.FailedStage == stage
	}
}

func markGenerating(w models.WorkItem) models.WorkItem {
	w.Status = models.StatusGenerating
	return w
}

func coloringReady(out webhook.ColoringResult) storage.Patch {
	return func(w models.WorkItem) models.WorkItem {
		w.Status = models.StatusReady
		w.OriginalImageURL = out.OriginalImageURL
		w.GeneratedImageURL = out.GeneratedImageURL
		if out.Caption != "" && w.Caption == DefaultCaption(w.DogName) {
			w.Caption = SanitizeCaption(out.Caption)
		}
		w.Error = ""
		w.FailedStage = ""
		return w
	}
}

func failStatus(stage models.Stage, err error) storage.Patch {
	return func(w models.WorkItem) models.WorkItem {
		w.Status = models.StatusFailed
		w.Error = err.Error()
		w.FailedStage = stage
		return w
	}
}

func setCompositeStatus(st models.CompositeStatus) storage.Patch {
	return func(w models.WorkItem) models.WorkItem {
		w.CompositeStatus = st
		return w
	}
}

func compositeReady(out webhook.CompositeResult) storage.Patch {
	return func(w models.WorkItem) models.WorkItem {
		w.CompositeStatus = models.CompositeReady
		w.CompositeImageURL = out.ImageURL
		w.CompositeImageBase64 = out.ImageBase64
		w.CompositeMimeType = out.MimeType
		w.Error = ""
		w.FailedStage = ""
		return w
	}
}

func compositeFailed(err error) storage.Patch {
	return func(w models.WorkItem) models.WorkItem {
		w.CompositeStatus = models.CompositeFailed
		w.Error = err.Error()
		w.FailedStage = models.StageComposite
		return w
	}
}

func approve(w models.WorkItem) models.WorkItem {
	w.Status = models.StatusApproved
	w.Error = ""
	w.FailedStage = ""
	return w
}

func reject(w models.WorkItem) models.WorkItem {
	w.Status = models.StatusRejected
	w.Error = ""
	w.FailedStage = ""
	return w
}

func scheduled(when time.Time) storage.Patch {
	return func(w models.WorkItem) models.WorkItem {
		w.Status = models.StatusScheduled
		w.ScheduledTime = &when
		w.Error = ""
		w.FailedStage = ""
		return w
	}
}

func resetStatus(st models.ItemStatus) storage.Patch {
	return func(w models.WorkItem) models.WorkItem {
		w.Status = st
		w.Error = ""
		w.FailedStage = ""
		return w
	}
}

func resetComposite(w models.WorkItem) models.WorkItem {
	w.CompositeStatus = models.CompositePending
	w.Error = ""
	w.FailedStage = ""
	return w
}
