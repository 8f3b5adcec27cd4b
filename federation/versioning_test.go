package federation

import (
	"testing"

	"github.com/deemkeen/nodeweave/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func item(status domain.PostStatus) domain.InboxItem {
	return domain.InboxItem{Id: uuid.New(), Status: status}
}

func TestPlanVersionCreate(t *testing.T) {
	plan := PlanVersion(VerbCreate, nil)
	assert.True(t, plan.Insert)
	assert.Equal(t, domain.StatusNone, plan.InsertStatus)
	assert.Empty(t, plan.Retag)
	assert.Empty(t, plan.Remove)
}

func TestPlanVersionUpdate(t *testing.T) {
	current := item(domain.StatusNone)
	plan := PlanVersion(VerbUpdate, []domain.InboxItem{current})
	assert.True(t, plan.Insert)
	assert.Equal(t, domain.StatusUpdate, plan.InsertStatus)
	assert.Equal(t, map[uuid.UUID]domain.PostStatus{current.Id: domain.StatusEdited}, plan.Retag)
}

func TestPlanVersionSecondUpdate(t *testing.T) {
	edited := item(domain.StatusEdited)
	latest := item(domain.StatusUpdate)
	plan := PlanVersion(VerbUpdate, []domain.InboxItem{edited, latest})
	assert.Equal(t, map[uuid.UUID]domain.PostStatus{latest.Id: domain.StatusUpdateOld}, plan.Retag)
	assert.Equal(t, domain.StatusUpdate, plan.InsertStatus)
}

func TestPlanVersionCreateOverExisting(t *testing.T) {
	current := item(domain.StatusNone)
	plan := PlanVersion(VerbCreate, []domain.InboxItem{current})
	assert.Equal(t, domain.StatusUpdate, plan.InsertStatus)
	assert.Equal(t, domain.StatusEdited, plan.Retag[current.Id])
}

func TestPlanVersionDelete(t *testing.T) {
	existing := []domain.InboxItem{item(domain.StatusEdited), item(domain.StatusUpdateOld), item(domain.StatusUpdate)}
	plan := PlanVersion(VerbDelete, existing)
	assert.True(t, plan.Insert)
	assert.Equal(t, domain.StatusDelete, plan.InsertStatus)
	assert.ElementsMatch(t, []uuid.UUID{existing[0].Id, existing[1].Id, existing[2].Id}, plan.Remove)
}

func TestPlanVersionAfterDelete(t *testing.T) {
	deleted := []domain.InboxItem{item(domain.StatusDelete)}
	for _, verb := range []Verb{VerbCreate, VerbUpdate, VerbDelete} {
		t.Run(verb.String(), func(t *testing.T) {
			plan := PlanVersion(verb, deleted)
			assert.False(t, plan.Insert)
			assert.Empty(t, plan.Retag)
			assert.Empty(t, plan.Remove)
		})
	}
}

func TestPlanVersionKeepsOneUpdate(t *testing.T) {
	var items []domain.InboxItem
	for i := 0; i < 4; i++ {
		verb := VerbUpdate
		if i == 0 {
			verb = VerbCreate
		}
		plan := PlanVersion(verb, items)
		for j := range items {
			if s, ok := plan.Retag[items[j].Id]; ok {
				items[j].Status = s
			}
		}
		items = append(items, domain.InboxItem{Id: uuid.New(), Status: plan.InsertStatus})
	}

	updates := 0
	for _, it := range items {
		if it.Status == domain.StatusUpdate {
			updates++
		}
	}
	assert.Equal(t, 1, updates)
	assert.Equal(t, domain.StatusEdited, items[0].Status)
	assert.Equal(t, domain.StatusUpdateOld, items[1].Status)
}
