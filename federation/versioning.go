package federation

import (
	"context"

	"github.com/deemkeen/nodeweave/domain"
	"github.com/google/uuid"
)

// Verb is what happened to an object.
type Verb int

const (
	VerbCreate Verb = iota
	VerbUpdate
	VerbDelete
)

func (v Verb) String() string {
	switch v {
	case VerbUpdate:
		return "update"
	case VerbDelete:
		return "delete"
	}
	return "create"
}

type InboxStore interface {
	AppendInboxItem(ctx context.Context, item *domain.InboxItem) error
	ReconcileInboxItem(ctx context.Context, item *domain.InboxItem, plan func(existing []domain.InboxItem) domain.InboxPlan) (bool, error)
}

// PlanVersion computes how the items of one post in one inbox change when verb
// arrives. Once a delete is recorded nothing changes again.
func PlanVersion(verb Verb, existing []domain.InboxItem) domain.InboxPlan {
	for _, item := range existing {
		if item.Status == domain.StatusDelete {
			return domain.InboxPlan{}
		}
	}

	switch {
	case verb == VerbDelete:
		plan := domain.InboxPlan{Insert: true, InsertStatus: domain.StatusDelete}
		for _, item := range existing {
			plan.Remove = append(plan.Remove, item.Id)
		}
		return plan
	case verb == VerbCreate && len(existing) == 0:
		return domain.InboxPlan{Insert: true, InsertStatus: domain.StatusNone}
	}

	// update, or a create re-pushed over an existing version
	plan := domain.InboxPlan{
		Retag:        map[uuid.UUID]domain.PostStatus{},
		Insert:       true,
		InsertStatus: domain.StatusUpdate,
	}
	for _, item := range existing {
		switch item.Status {
		case domain.StatusNone:
			plan.Retag[item.Id] = domain.StatusEdited
		case domain.StatusUpdate:
			plan.Retag[item.Id] = domain.StatusUpdateOld
		}
	}
	return plan
}

// Reconciler applies post versions to an inbox.
type Reconciler struct {
	store InboxStore
}

func NewReconciler(store InboxStore) *Reconciler {
	return &Reconciler{store: store}
}

// Apply records item as the newest version of its post. It returns false when
// the post is already deleted in that inbox.
func (r *Reconciler) Apply(ctx context.Context, verb Verb, item *domain.InboxItem) (bool, error) {
	return r.store.ReconcileInboxItem(ctx, item, func(existing []domain.InboxItem) domain.InboxPlan {
		return PlanVersion(verb, existing)
	})
}
