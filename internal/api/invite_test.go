package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pwasik/parley/internal/invite"
	"github.com/pwasik/parley/internal/middleware"
	"github.com/pwasik/parley/internal/models"
	"github.com/pwasik/parley/internal/registry"
	"github.com/pwasik/parley/internal/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Compact in-memory stores, just enough to drive the handlers end to
// end without Postgres.

type memKeys struct {
	nextID int64
	byID   map[int64]*models.InviteKey
}

func (s *memKeys) Create(_ context.Context, key *models.InviteKey) (*models.InviteKey, error) {
	s.nextID++
	stored := *key
	stored.ID = s.nextID
	s.byID[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (s *memKeys) GetValid(_ context.Context, token string, now time.Time) (*models.InviteKey, error) {
	for _, k := range s.byID {
		if k.Key == token && !k.ValidDue.Before(now) {
			out := *k
			return &out, nil
		}
	}
	return nil, nil
}

func (s *memKeys) Delete(_ context.Context, keyID int64) error {
	delete(s.byID, keyID)
	return nil
}

func (s *memKeys) DeleteByID(_ context.Context, keyID int64) error {
	if _, ok := s.byID[keyID]; !ok {
		return repository.ErrNotFound
	}
	delete(s.byID, keyID)
	return nil
}

func (s *memKeys) ListAll(_ context.Context) ([]models.InviteKey, error) {
	out := make([]models.InviteKey, 0)
	for _, k := range s.byID {
		out = append(out, *k)
	}
	return out, nil
}

func (s *memKeys) ListVisibleTo(_ context.Context, userID uuid.UUID) ([]models.InviteKey, error) {
	out := make([]models.InviteKey, 0)
	for _, k := range s.byID {
		if k.CreatorID != nil && *k.CreatorID == userID {
			out = append(out, *k)
		}
	}
	return out, nil
}

type memMembers struct {
	members map[int64]map[uuid.UUID]bool
	admins  map[int64]map[uuid.UUID]bool
}

func memAdd(sets map[int64]map[uuid.UUID]bool, roomID int64, userID uuid.UUID) {
	if sets[roomID] == nil {
		sets[roomID] = make(map[uuid.UUID]bool)
	}
	sets[roomID][userID] = true
}

func (m *memMembers) AddMember(_ context.Context, roomID int64, userID uuid.UUID) error {
	memAdd(m.members, roomID, userID)
	return nil
}

func (m *memMembers) RemoveMember(_ context.Context, roomID int64, userID uuid.UUID) error {
	delete(m.members[roomID], userID)
	return nil
}

func (m *memMembers) AddAdmin(_ context.Context, roomID int64, userID uuid.UUID) error {
	memAdd(m.admins, roomID, userID)
	return nil
}

func (m *memMembers) RemoveAdmin(_ context.Context, roomID int64, userID uuid.UUID) error {
	delete(m.admins[roomID], userID)
	return nil
}

func (m *memMembers) IsMember(_ context.Context, roomID int64, userID uuid.UUID) (bool, error) {
	return m.members[roomID][userID], nil
}

func (m *memMembers) IsAdmin(_ context.Context, roomID int64, userID uuid.UUID) (bool, error) {
	return m.admins[roomID][userID], nil
}

func (m *memMembers) ListMembers(_ context.Context, roomID int64) ([]models.RoomMember, error) {
	return nil, nil
}

type memRooms struct {
	nextID int64
	byName map[string]*models.Room
}

func (s *memRooms) GetOrCreate(ctx context.Context, name string) (*models.Room, error) {
	if r, ok := s.byName[name]; ok {
		out := *r
		return &out, nil
	}
	s.nextID++
	r := &models.Room{ID: s.nextID, Name: name, Active: true}
	s.byName[name] = r
	out := *r
	return &out, nil
}

func (s *memRooms) Create(_ context.Context, name string, creatorID uuid.UUID) (*models.Room, error) {
	if _, ok := s.byName[name]; ok {
		return nil, repository.ErrDuplicateName
	}
	s.nextID++
	r := &models.Room{ID: s.nextID, Name: name, Active: true, CreatorID: &creatorID}
	s.byName[name] = r
	out := *r
	return &out, nil
}

func (s *memRooms) GetByName(_ context.Context, name string) (*models.Room, error) {
	r, ok := s.byName[name]
	if !ok {
		return nil, nil
	}
	out := *r
	return &out, nil
}

func (s *memRooms) GetByID(_ context.Context, roomID int64) (*models.Room, error) {
	for _, r := range s.byName {
		if r.ID == roomID {
			out := *r
			return &out, nil
		}
	}
	return nil, nil
}

func (s *memRooms) SetActive(_ context.Context, roomID int64, active bool) error {
	for _, r := range s.byName {
		if r.ID == roomID {
			r.Active = active
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *memRooms) ListAll(_ context.Context) ([]models.Room, error) { return nil, nil }

func (s *memRooms) ListForMember(_ context.Context, _ uuid.UUID) ([]models.Room, error) {
	return nil, nil
}

func (s *memRooms) ListForAdmin(_ context.Context, _ uuid.UUID) ([]models.Room, error) {
	return nil, nil
}

type inviteTestEnv struct {
	router  *gin.Engine
	engine  *invite.Engine
	keys    *memKeys
	members *memMembers
	rooms   *memRooms
}

// newInviteTestEnv builds the invite routes with the caller's identity
// injected the way AuthMiddleware would.
func newInviteTestEnv(t *testing.T, userID uuid.UUID, staff bool) *inviteTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	keys := &memKeys{byID: make(map[int64]*models.InviteKey)}
	members := &memMembers{
		members: make(map[int64]map[uuid.UUID]bool),
		admins:  make(map[int64]map[uuid.UUID]bool),
	}
	rooms := &memRooms{byName: make(map[string]*models.Room)}

	engine := invite.NewEngine(keys, members)
	reg := registry.New(rooms, members)
	handler := NewInviteHandler(engine, reg, zap.NewNop())

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, userID)
		c.Set(middleware.ContextKeyUsername, "tester")
		c.Set(middleware.ContextKeyIsStaff, staff)
	})
	router.POST("/v1/invites", handler.Issue)
	router.POST("/v1/invites/:key/redeem", handler.Redeem)
	router.GET("/v1/invites", handler.List)

	return &inviteTestEnv{router: router, engine: engine, keys: keys, members: members, rooms: rooms}
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	return rec
}

func TestRedeemReturnsRoomID(t *testing.T) {
	req := require.New(t)
	user := uuid.New()
	env := newInviteTestEnv(t, user, false)

	key, err := env.engine.Issue(context.Background(), 42, uuid.New(), nil, false, time.Now().UTC())
	req.NoError(err)

	rec := doJSON(env.router, http.MethodPost, "/v1/invites/"+key.Key+"/redeem", "")
	req.Equal(http.StatusOK, rec.Code)

	var body map[string]int64
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	req.Equal(int64(42), body["room_id"])

	isMember, _ := env.members.IsMember(context.Background(), 42, user)
	req.True(isMember)
}

func TestRedeemWrongUserWireContract(t *testing.T) {
	req := require.New(t)
	env := newInviteTestEnv(t, uuid.New(), false)

	someoneElse := uuid.New()
	key, err := env.engine.Issue(context.Background(), 42, uuid.New(), &someoneElse, false, time.Now().UTC())
	req.NoError(err)

	rec := doJSON(env.router, http.MethodPost, "/v1/invites/"+key.Key+"/redeem", "")
	req.Equal(http.StatusForbidden, rec.Code)
	req.JSONEq(`{"msg": "Invite key is valid for another user, not for you."}`, rec.Body.String())
}

func TestRedeemUnknownKeyWireContract(t *testing.T) {
	req := require.New(t)
	env := newInviteTestEnv(t, uuid.New(), false)

	rec := doJSON(env.router, http.MethodPost, "/v1/invites/doesnotexist0000000/redeem", "")
	req.Equal(http.StatusBadRequest, rec.Code)
	req.JSONEq(`{"msg": "Something went wrong..."}`, rec.Body.String())
}

func TestIssueRequiresRoomAdminOrStaff(t *testing.T) {
	req := require.New(t)
	user := uuid.New()
	env := newInviteTestEnv(t, user, false)

	_, err := env.rooms.Create(context.Background(), "general", uuid.New())
	req.NoError(err)

	rec := doJSON(env.router, http.MethodPost, "/v1/invites", `{"room_id": 1}`)
	req.Equal(http.StatusForbidden, rec.Code)

	// As room admin it works.
	req.NoError(env.members.AddAdmin(context.Background(), 1, user))
	rec = doJSON(env.router, http.MethodPost, "/v1/invites", `{"room_id": 1}`)
	req.Equal(http.StatusCreated, rec.Code)

	var key models.InviteKey
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &key))
	req.Len(key.Key, 20)
	req.Equal(int64(1), key.RoomID)
}

func TestIssueAllowedForStaff(t *testing.T) {
	req := require.New(t)
	env := newInviteTestEnv(t, uuid.New(), true)

	_, err := env.rooms.Create(context.Background(), "general", uuid.New())
	req.NoError(err)

	rec := doJSON(env.router, http.MethodPost, "/v1/invites", `{"room_id": 1, "give_admin": true}`)
	req.Equal(http.StatusCreated, rec.Code)
}
