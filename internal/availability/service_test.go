package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-availability/internal/validate"
)

// -- Mock Repository --

type mockRepo struct {
	profiles map[uuid.UUID]Profile
	gets     int
}

func newMockRepo() *mockRepo {
	return &mockRepo{profiles: make(map[uuid.UUID]Profile)}
}

func (m *mockRepo) GetProfile(_ context.Context, doctorID uuid.UUID) (*Profile, error) {
	m.gets++
	p, ok := m.profiles[doctorID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &p, nil
}

func (m *mockRepo) UpsertProfile(_ context.Context, p Profile) (*Profile, error) {
	now := time.Now()
	if existing, ok := m.profiles[p.DoctorID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.profiles[p.DoctorID] = p
	return &p, nil
}

func (m *mockRepo) UpdateProfile(_ context.Context, doctorID uuid.UUID, fn func(p *Profile) error) (*Profile, error) {
	p, ok := m.profiles[doctorID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	if err := fn(&p); err != nil {
		return nil, err
	}
	p.UpdatedAt = time.Now()
	m.profiles[doctorID] = p
	return &p, nil
}

func (m *mockRepo) DeleteProfile(_ context.Context, doctorID uuid.UUID) (bool, error) {
	_, ok := m.profiles[doctorID]
	delete(m.profiles, doctorID)
	return ok, nil
}

func (m *mockRepo) ListProfiles(_ context.Context, f ListFilter) ([]Profile, int, error) {
	var all []Profile
	for _, p := range m.profiles {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	start := min(f.Offset(), len(all))
	end := min(start+f.Limit, len(all))
	return all[start:end], len(all), nil
}

func uuidFor(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", n))
}

func intPtr(v int) *int { return &v }

func TestService_UpsertValidatesAndDefaults(t *testing.T) {
	svc := NewService(newMockRepo(), 0, zap.NewNop())
	doctor := uuidFor(1)

	p, err := svc.Upsert(context.Background(), doctor, ProfileInput{
		Weekly: []RecurringRule{{DayOfWeek: 1, StartMinute: 540, EndMinute: 1020}},
	})
	require.NoError(t, err)
	assert.Equal(t, doctor, p.DoctorID)
	assert.Equal(t, 30, p.SlotSizeMinutes)

	_, err = svc.Upsert(context.Background(), doctor, ProfileInput{BufferMinutes: intPtr(180)})
	var verr *validate.Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "bufferMinutes", verr.Field)
}

func TestService_UpsertReplacesWholesale(t *testing.T) {
	svc := NewService(newMockRepo(), 0, zap.NewNop())
	doctor := uuidFor(1)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, doctor, ProfileInput{
		Weekly:        []RecurringRule{{DayOfWeek: 1, StartMinute: 540, EndMinute: 1020}},
		BufferMinutes: intPtr(10),
	})
	require.NoError(t, err)

	p, err := svc.Upsert(ctx, doctor, ProfileInput{SlotSizeMinutes: intPtr(15)})
	require.NoError(t, err)
	assert.Empty(t, p.Weekly)
	assert.Equal(t, 0, p.BufferMinutes)
	assert.Equal(t, 15, p.SlotSizeMinutes)
}

func TestService_Patch(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, 0, zap.NewNop())
	doctor := uuidFor(2)
	ctx := context.Background()

	_, err := svc.Patch(ctx, doctor, ProfilePatch{BufferMinutes: intPtr(5)})
	assert.ErrorIs(t, err, ErrProfileNotFound)

	_, err = svc.Patch(ctx, doctor, ProfilePatch{})
	assert.ErrorIs(t, err, ErrEmptyPatch)

	_, err = svc.Upsert(ctx, doctor, ProfileInput{
		Weekly: []RecurringRule{{DayOfWeek: 1, StartMinute: 540, EndMinute: 1020}},
	})
	require.NoError(t, err)

	p, err := svc.Patch(ctx, doctor, ProfilePatch{BufferMinutes: intPtr(20)})
	require.NoError(t, err)
	assert.Equal(t, 20, p.BufferMinutes)
	assert.Len(t, p.Weekly, 1)

	_, err = svc.Patch(ctx, doctor, ProfilePatch{SlotSizeMinutes: intPtr(300)})
	var verr *validate.Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "slotSizeMinutes", verr.Field)
	assert.Equal(t, 30, repo.profiles[doctor].SlotSizeMinutes, "rejected patch is not stored")
}

func TestService_LookupProfileCachesUntilWrite(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, time.Minute, zap.NewNop())
	doctor := uuidFor(3)
	ctx := context.Background()

	_, err := svc.LookupProfile(ctx, doctor)
	assert.ErrorIs(t, err, ErrProfileNotFound)

	_, err = svc.Upsert(ctx, doctor, ProfileInput{BufferMinutes: intPtr(5)})
	require.NoError(t, err)

	repo.gets = 0
	for i := 0; i < 3; i++ {
		p, err := svc.LookupProfile(ctx, doctor)
		require.NoError(t, err)
		assert.Equal(t, 5, p.BufferMinutes)
	}
	assert.Equal(t, 1, repo.gets)

	_, err = svc.Patch(ctx, doctor, ProfilePatch{BufferMinutes: intPtr(25)})
	require.NoError(t, err)

	p, err := svc.LookupProfile(ctx, doctor)
	require.NoError(t, err)
	assert.Equal(t, 25, p.BufferMinutes)
	assert.Equal(t, 2, repo.gets)

	p, err = svc.GetProfile(ctx, doctor)
	require.NoError(t, err)
	assert.Equal(t, 25, p.BufferMinutes)
	assert.Equal(t, 3, repo.gets, "GetProfile bypasses the cache")
}

func TestService_DeleteIsIdempotent(t *testing.T) {
	svc := NewService(newMockRepo(), time.Minute, zap.NewNop())
	doctor := uuidFor(4)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, doctor, ProfileInput{})
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, doctor)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = svc.Delete(ctx, doctor)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = svc.LookupProfile(ctx, doctor)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestService_ListNormalizesPaging(t *testing.T) {
	svc := NewService(newMockRepo(), 0, zap.NewNop())
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		_, err := svc.Upsert(ctx, uuidFor(i), ProfileInput{})
		require.NoError(t, err)
	}

	items, total, f, err := svc.List(ctx, ListFilter{Page: 0, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, items, 2)
	assert.Equal(t, 1, f.Page)
}
