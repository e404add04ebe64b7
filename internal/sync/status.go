package sync

import (
	"context"

	"ttrss-cli/internal/api"
	"ttrss-cli/internal/db"
)

// SynchronizeStatus pushes every queued local state change to the server:
// read state first, then starred, published, notes and finally labels.
// Marks are cleared only after the corresponding push succeeded, so a
// failure leaves the queue intact for the next sweep. Each queued change is
// pushed at most once per sweep.
func (d *Data) SynchronizeStatus(ctx context.Context) error {
	if d.Offline() {
		return nil
	}

	sweeps := []struct {
		mark  string
		field int
	}{
		{db.MarkUnread, api.FieldUnread},
		{db.MarkStarred, api.FieldStarred},
		{db.MarkPublished, api.FieldPublished},
	}

	for _, sw := range sweeps {
		for _, state := range []int{0, 1} {
			ids, err := d.store.GetMarked(ctx, sw.mark, state)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				continue
			}
			if err := d.remote.SetArticleField(ctx, ids, sw.field, state); err != nil {
				d.setLastError(err)
				return err
			}
			if err := d.store.ClearMarks(ctx, ids, sw.mark); err != nil {
				return err
			}
		}
	}

	notes, err := d.store.GetQueuedNotes(ctx)
	if err != nil {
		return err
	}
	for id, note := range notes {
		if err := d.remote.SetArticleNote(ctx, id, note); err != nil {
			d.setLastError(err)
			return err
		}
		if err := d.store.ClearQueuedNote(ctx, id); err != nil {
			return err
		}
	}

	labels, err := d.store.GetQueuedLabels(ctx)
	if err != nil {
		return err
	}
	for _, l := range labels {
		if err := d.remote.SetArticleLabel(ctx, []int64{l.ArticleID}, l.LabelID, l.Assign); err != nil {
			d.setLastError(err)
			return err
		}
		if err := d.store.ClearQueuedLabel(ctx, l.ArticleID, l.LabelID); err != nil {
			return err
		}
	}

	return nil
}
