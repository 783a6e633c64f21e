package registry

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pwasik/parley/internal/models"
	"github.com/pwasik/parley/internal/repository"
	"github.com/stretchr/testify/require"
)

type fakeRoomStore struct {
	nextID int64
	byName map[string]*models.Room
}

func newFakeRoomStore() *fakeRoomStore {
	return &fakeRoomStore{byName: make(map[string]*models.Room)}
}

func (s *fakeRoomStore) GetOrCreate(_ context.Context, name string) (*models.Room, error) {
	if room, ok := s.byName[name]; ok {
		out := *room
		return &out, nil
	}
	s.nextID++
	room := &models.Room{ID: s.nextID, Name: name, Active: true, CreatedAt: time.Now().UTC()}
	s.byName[name] = room
	out := *room
	return &out, nil
}

func (s *fakeRoomStore) Create(_ context.Context, name string, creatorID uuid.UUID) (*models.Room, error) {
	if _, ok := s.byName[name]; ok {
		return nil, repository.ErrDuplicateName
	}
	s.nextID++
	room := &models.Room{ID: s.nextID, Name: name, Active: true, CreatorID: &creatorID, CreatedAt: time.Now().UTC()}
	s.byName[name] = room
	out := *room
	return &out, nil
}

func (s *fakeRoomStore) GetByName(_ context.Context, name string) (*models.Room, error) {
	room, ok := s.byName[name]
	if !ok {
		return nil, nil
	}
	out := *room
	return &out, nil
}

func (s *fakeRoomStore) GetByID(_ context.Context, roomID int64) (*models.Room, error) {
	for _, room := range s.byName {
		if room.ID == roomID {
			out := *room
			return &out, nil
		}
	}
	return nil, nil
}

func (s *fakeRoomStore) SetActive(_ context.Context, roomID int64, active bool) error {
	for _, room := range s.byName {
		if room.ID == roomID {
			room.Active = active
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *fakeRoomStore) ListAll(_ context.Context) ([]models.Room, error) {
	out := make([]models.Room, 0, len(s.byName))
	for _, room := range s.byName {
		out = append(out, *room)
	}
	return out, nil
}

func (s *fakeRoomStore) ListForMember(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	return nil, nil // overridden per test via membership-aware helper below
}

func (s *fakeRoomStore) ListForAdmin(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	return nil, nil
}

// memberAwareRoomStore joins the fake room store with a membership fake
// so the visibility listings behave like the SQL joins do.
type memberAwareRoomStore struct {
	*fakeRoomStore
	members *fakeMembership
}

func (s *memberAwareRoomStore) ListForMember(_ context.Context, userID uuid.UUID) ([]models.Room, error) {
	out := make([]models.Room, 0)
	for _, room := range s.byName {
		if s.members.members[room.ID][userID] {
			out = append(out, *room)
		}
	}
	return out, nil
}

func (s *memberAwareRoomStore) ListForAdmin(_ context.Context, userID uuid.UUID) ([]models.Room, error) {
	out := make([]models.Room, 0)
	for _, room := range s.byName {
		if s.members.admins[room.ID][userID] {
			out = append(out, *room)
		}
	}
	return out, nil
}

type fakeMembership struct {
	members map[int64]map[uuid.UUID]bool
	admins  map[int64]map[uuid.UUID]bool
}

func newFakeMembership() *fakeMembership {
	return &fakeMembership{
		members: make(map[int64]map[uuid.UUID]bool),
		admins:  make(map[int64]map[uuid.UUID]bool),
	}
}

func addTo(sets map[int64]map[uuid.UUID]bool, roomID int64, userID uuid.UUID) {
	if sets[roomID] == nil {
		sets[roomID] = make(map[uuid.UUID]bool)
	}
	sets[roomID][userID] = true
}

func (m *fakeMembership) AddMember(_ context.Context, roomID int64, userID uuid.UUID) error {
	addTo(m.members, roomID, userID)
	return nil
}

func (m *fakeMembership) RemoveMember(_ context.Context, roomID int64, userID uuid.UUID) error {
	delete(m.members[roomID], userID)
	return nil
}

func (m *fakeMembership) AddAdmin(_ context.Context, roomID int64, userID uuid.UUID) error {
	addTo(m.admins, roomID, userID)
	return nil
}

func (m *fakeMembership) RemoveAdmin(_ context.Context, roomID int64, userID uuid.UUID) error {
	delete(m.admins[roomID], userID)
	return nil
}

func (m *fakeMembership) IsMember(_ context.Context, roomID int64, userID uuid.UUID) (bool, error) {
	return m.members[roomID][userID], nil
}

func (m *fakeMembership) IsAdmin(_ context.Context, roomID int64, userID uuid.UUID) (bool, error) {
	return m.admins[roomID][userID], nil
}

func (m *fakeMembership) ListMembers(_ context.Context, roomID int64) ([]models.RoomMember, error) {
	out := make([]models.RoomMember, 0)
	for userID := range m.members[roomID] {
		out = append(out, models.RoomMember{RoomID: roomID, UserID: userID})
	}
	return out, nil
}

func newTestRegistry() (*Registry, *memberAwareRoomStore, *fakeMembership) {
	members := newFakeMembership()
	rooms := &memberAwareRoomStore{fakeRoomStore: newFakeRoomStore(), members: members}
	return New(rooms, members), rooms, members
}

func TestCreateEnrollsCreator(t *testing.T) {
	req := require.New(t)
	reg, _, members := newTestRegistry()

	creator := uuid.New()
	room, err := reg.Create(context.Background(), "general", creator)
	req.NoError(err)
	req.True(room.Active)
	req.Equal(creator, *room.CreatorID)

	isMember, _ := members.IsMember(context.Background(), room.ID, creator)
	req.True(isMember)
	isAdmin, _ := members.IsAdmin(context.Background(), room.ID, creator)
	req.True(isAdmin)
}

func TestCreateDuplicateName(t *testing.T) {
	req := require.New(t)
	reg, _, _ := newTestRegistry()

	_, err := reg.Create(context.Background(), "general", uuid.New())
	req.NoError(err)

	_, err = reg.Create(context.Background(), "general", uuid.New())
	req.ErrorIs(err, repository.ErrDuplicateName)
}

func TestNameValidation(t *testing.T) {
	req := require.New(t)
	reg, _, _ := newTestRegistry()

	_, err := reg.Create(context.Background(), "", uuid.New())
	req.Error(err)

	_, err = reg.Create(context.Background(), strings.Repeat("x", MaxRoomNameLen+1), uuid.New())
	req.Error(err)

	_, err = reg.Create(context.Background(), strings.Repeat("x", MaxRoomNameLen), uuid.New())
	req.NoError(err)
}

func TestGetOrCreateObservesSameRoom(t *testing.T) {
	req := require.New(t)
	reg, _, _ := newTestRegistry()

	first, err := reg.GetOrCreate(context.Background(), "lobby")
	req.NoError(err)

	second, err := reg.GetOrCreate(context.Background(), "lobby")
	req.NoError(err)
	req.Equal(first.ID, second.ID)
}

func TestEnsureAccessCreatesAndEnrollsOnFirstUse(t *testing.T) {
	req := require.New(t)
	reg, _, members := newTestRegistry()

	user := uuid.New()
	room, err := reg.EnsureAccess(context.Background(), "fresh", user)
	req.NoError(err)

	isMember, _ := members.IsMember(context.Background(), room.ID, user)
	req.True(isMember)
	isAdmin, _ := members.IsAdmin(context.Background(), room.ID, user)
	req.True(isAdmin)
}

func TestEnsureAccessRejectsNonMember(t *testing.T) {
	req := require.New(t)
	reg, _, _ := newTestRegistry()

	owner := uuid.New()
	_, err := reg.EnsureAccess(context.Background(), "private", owner)
	req.NoError(err)

	_, err = reg.EnsureAccess(context.Background(), "private", uuid.New())
	req.ErrorIs(err, repository.ErrForbidden)
}

func TestEnsureAccessAdmitsExistingMember(t *testing.T) {
	req := require.New(t)
	reg, _, members := newTestRegistry()

	owner := uuid.New()
	room, err := reg.EnsureAccess(context.Background(), "shared", owner)
	req.NoError(err)

	guest := uuid.New()
	req.NoError(members.AddMember(context.Background(), room.ID, guest))

	again, err := reg.EnsureAccess(context.Background(), "shared", guest)
	req.NoError(err)
	req.Equal(room.ID, again.ID)
}

func TestMembershipOpsAreIdempotent(t *testing.T) {
	req := require.New(t)
	reg, _, members := newTestRegistry()

	room, err := reg.Create(context.Background(), "general", uuid.New())
	req.NoError(err)

	user := uuid.New()
	req.NoError(reg.AddMember(context.Background(), room.ID, user))
	req.NoError(reg.AddMember(context.Background(), room.ID, user))

	list, _ := members.ListMembers(context.Background(), room.ID)
	req.Len(list, 2) // creator + user, no duplicates

	req.NoError(reg.RemoveMember(context.Background(), room.ID, user))
	req.NoError(reg.RemoveMember(context.Background(), room.ID, user))
}

func TestRemoveLastAdminAllowed(t *testing.T) {
	req := require.New(t)
	reg, _, _ := newTestRegistry()

	creator := uuid.New()
	room, err := reg.Create(context.Background(), "orphan", creator)
	req.NoError(err)

	// A room with zero admins is legal; only staff can manage it after.
	req.NoError(reg.RemoveAdmin(context.Background(), room.ID, creator))

	ok, err := reg.CanManage(context.Background(), room.ID, creator, false)
	req.NoError(err)
	req.False(ok)

	ok, err = reg.CanManage(context.Background(), room.ID, creator, true)
	req.NoError(err)
	req.True(ok)
}

func TestListingVisibility(t *testing.T) {
	req := require.New(t)
	reg, _, members := newTestRegistry()

	alice := uuid.New()
	bob := uuid.New()

	created, err := reg.Create(context.Background(), "alices", alice)
	req.NoError(err)
	_, err = reg.Create(context.Background(), "bobs", bob)
	req.NoError(err)

	// Bob joins alices as plain member.
	req.NoError(members.AddMember(context.Background(), created.ID, bob))

	// General listing is membership-based.
	bobRooms, err := reg.ListForMember(context.Background(), bob, false)
	req.NoError(err)
	req.Len(bobRooms, 2)

	// Management listing is admin-based: bob administers only his own.
	bobManaged, err := reg.ListForAdmin(context.Background(), bob, false)
	req.NoError(err)
	req.Len(bobManaged, 1)
	req.Equal("bobs", bobManaged[0].Name)

	// Staff sees everything in both contracts.
	staffRooms, err := reg.ListForMember(context.Background(), uuid.New(), true)
	req.NoError(err)
	req.Len(staffRooms, 2)

	staffManaged, err := reg.ListForAdmin(context.Background(), uuid.New(), true)
	req.NoError(err)
	req.Len(staffManaged, 2)
}

func TestDeactivate(t *testing.T) {
	req := require.New(t)
	reg, rooms, _ := newTestRegistry()

	room, err := reg.Create(context.Background(), "closing", uuid.New())
	req.NoError(err)

	req.NoError(reg.Deactivate(context.Background(), room.ID))
	got, err := rooms.GetByID(context.Background(), room.ID)
	req.NoError(err)
	req.False(got.Active)

	req.NoError(reg.Activate(context.Background(), room.ID))
	got, _ = rooms.GetByID(context.Background(), room.ID)
	req.True(got.Active)

	req.ErrorIs(reg.Deactivate(context.Background(), 9999), repository.ErrNotFound)
}
