package repository

import (
	"context"
	"sort"
	"sync"

	"familytrack/internal/core/model"
)

// InMemoryFamilyRepository is seeded through Add; the service itself never writes memberships.
type InMemoryFamilyRepository struct {
	members map[string]*model.FamilyMember
	mutex   sync.RWMutex
}

func NewInMemoryFamilyRepository() *InMemoryFamilyRepository {
	return &InMemoryFamilyRepository{
		members: make(map[string]*model.FamilyMember),
	}
}

func (r *InMemoryFamilyRepository) Add(members ...*model.FamilyMember) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, m := range members {
		copied := *m
		r.members[m.UserID] = &copied
	}
}

func (r *InMemoryFamilyRepository) FindByUserID(_ context.Context, userID string) (*model.FamilyMember, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if member, exists := r.members[userID]; exists {
		copied := *member
		return &copied, nil
	}
	return nil, nil
}

func (r *InMemoryFamilyRepository) FindByFamilyID(_ context.Context, familyID string) ([]*model.FamilyMember, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []*model.FamilyMember
	for _, member := range r.members {
		if member.FamilyID == familyID {
			copied := *member
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}
