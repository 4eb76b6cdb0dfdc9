package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/vaultkeeper/internal/clock"
	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/dbx"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/config"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/accessevents"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/decisions"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/documents"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/dualkey"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/emergency"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/messages"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/nominees"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/roles"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/threatevents"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/transfers"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/vaults"
)

// --- helpers ---

var testNow = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func expectCommit(mock sqlmock.Sqlmock, n int) {
	for range n {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
}

func expectRollback(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectRollback()
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return cfg
}

func f64(v float64) *float64 { return &v }

// --- in-memory store ---

// memStore is an in-memory stand-in for the database. It ignores
// transactions; tests assert transaction boundaries through sqlmock.
type memStore struct {
	mu   sync.Mutex
	seq  int
	fail map[string]error

	users     map[string]*models.User
	roles     map[string]map[string]bool
	vaults    map[string]*models.Vault
	documents []*models.Document
	sessions  []*models.VaultSession
	messages  []*models.ChatMessage
	events    []models.AccessEvent
	nominees  map[string]*models.Nominee
	dualKey   map[string]*models.DualKeyRequest
	transfers map[string]*models.VaultTransferRequest
	emergency map[string]*models.EmergencyAccessRequest
	threats   []*models.ThreatEvent
	decisions []*models.DecisionLog

	setOwnerCalls int

	// onResolve and onComplete run inside the conditional writes, before
	// the state check, to simulate a concurrent writer winning the race.
	onResolve  func(id string)
	onComplete func(id string)
}

func newMemStore() *memStore {
	return &memStore{
		fail:      map[string]error{},
		users:     map[string]*models.User{},
		roles:     map[string]map[string]bool{},
		vaults:    map[string]*models.Vault{},
		nominees:  map[string]*models.Nominee{},
		dualKey:   map[string]*models.DualKeyRequest{},
		transfers: map[string]*models.VaultTransferRequest{},
		emergency: map[string]*models.EmergencyAccessRequest{},
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memStore) check(op string) error {
	return s.fail[op]
}

// seed helpers; they bypass failure injection.

func (s *memStore) addUser(id, externalID, name, email string, created time.Time) *models.User {
	u := &models.User{ID: id, ExternalID: externalID, FullName: name, Email: email, CreatedAt: created}
	s.users[id] = u
	return u
}

func (s *memStore) addVault(id, ownerID string, system bool) *models.Vault {
	v := &models.Vault{ID: id, Name: "vault " + id, OwnerID: ownerID, IsSystem: system, CreatedAt: testNow}
	s.vaults[id] = v
	return v
}

func (s *memStore) addEvent(vaultID, userID, userName string, typ models.EventType, at time.Time) {
	s.events = append(s.events, models.AccessEvent{
		ID: s.nextID("ev"), VaultID: vaultID, UserID: userID, UserName: userName, EventType: typ, Timestamp: at,
	})
}

func (s *memStore) addNominee(vaultID, userID string, status models.NomineeStatus) *models.Nominee {
	n := &models.Nominee{
		ID: s.nextID("nom"), VaultID: vaultID, UserID: userID, Email: userID + "@example.com",
		Status: status, CreatedAt: testNow,
	}
	s.nominees[n.ID] = n
	return n
}

func (s *memStore) eventsOf(vaultID string) []models.AccessEvent {
	out := []models.AccessEvent{}
	for _, e := range s.events {
		if e.VaultID == vaultID {
			out = append(out, e)
		}
	}
	return out
}

func (s *memStore) threatsOfType(vaultID, typ string) []*models.ThreatEvent {
	out := []*models.ThreatEvent{}
	for _, t := range s.threats {
		if t.VaultID == vaultID && t.Type == typ {
			out = append(out, t)
		}
	}
	return out
}

type fakeManager struct {
	s *memStore
}

func (m *fakeManager) RunMigrations(context.Context, *sql.DB) error  { return nil }
func (m *fakeManager) Users(dbx.DBTX) users.Repository               { return fakeUsers{m.s} }
func (m *fakeManager) Vaults(dbx.DBTX) vaults.Repository             { return fakeVaults{m.s} }
func (m *fakeManager) Documents(dbx.DBTX) documents.Repository       { return fakeDocuments{m.s} }
func (m *fakeManager) Sessions(dbx.DBTX) sessions.Repository         { return fakeSessions{m.s} }
func (m *fakeManager) Roles(dbx.DBTX) roles.Repository               { return fakeRoles{m.s} }
func (m *fakeManager) Messages(dbx.DBTX) messages.Repository         { return fakeMessages{m.s} }
func (m *fakeManager) AccessEvents(dbx.DBTX) accessevents.Repository { return fakeEvents{m.s} }
func (m *fakeManager) Nominees(dbx.DBTX) nominees.Repository         { return fakeNominees{m.s} }
func (m *fakeManager) DualKey(dbx.DBTX) dualkey.Repository           { return fakeDualKey{m.s} }
func (m *fakeManager) Transfers(dbx.DBTX) transfers.Repository       { return fakeTransfers{m.s} }
func (m *fakeManager) Emergency(dbx.DBTX) emergency.Repository       { return fakeEmergency{m.s} }
func (m *fakeManager) ThreatEvents(dbx.DBTX) threatevents.Repository { return fakeThreats{m.s} }
func (m *fakeManager) Decisions(dbx.DBTX) decisions.Repository       { return fakeDecisions{m.s} }

// --- users ---

type fakeUsers struct{ s *memStore }

func (f fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.check("users.Create"); err != nil {
		return nil, err
	}
	u.ID = f.s.nextID("user")
	u.CreatedAt = testNow
	cp := *u
	f.s.users[u.ID] = &cp
	return u, nil
}

func (f fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f fakeUsers) FindByExternalID(_ context.Context, externalID string) ([]*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []*models.User{}
	for _, u := range f.s.users {
		if u.ExternalID == externalID {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f fakeUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, u := range f.s.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeUsers) Delete(_ context.Context, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.check("users.Delete"); err != nil {
		return err
	}
	if _, ok := f.s.users[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.s.users, id)
	return nil
}

// --- vaults ---

type fakeVaults struct{ s *memStore }

func (f fakeVaults) Create(_ context.Context, v *models.Vault) (*models.Vault, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	v.ID = f.s.nextID("vault")
	cp := *v
	f.s.vaults[v.ID] = &cp
	return v, nil
}

func (f fakeVaults) GetByID(_ context.Context, id string) (*models.Vault, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	v, ok := f.s.vaults[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *v
	return &cp, nil
}

func (f fakeVaults) ListByOwner(_ context.Context, ownerID string) ([]*models.Vault, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []*models.Vault{}
	for _, v := range f.s.vaults {
		if v.OwnerID == ownerID {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeVaults) ListOrphaned(_ context.Context, currentUserID, externalID string) ([]*models.Vault, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []*models.Vault{}
	for _, v := range f.s.vaults {
		if v.IsSystem || v.OwnerID == currentUserID {
			continue
		}
		owner, ok := f.s.users[v.OwnerID]
		if !ok || owner.ExternalID == externalID {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeVaults) SetOwner(_ context.Context, id, ownerID string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	v, ok := f.s.vaults[id]
	if !ok {
		return common.ErrorNotFound
	}
	v.OwnerID = ownerID
	f.s.setOwnerCalls++
	return nil
}

func (f fakeVaults) Delete(_ context.Context, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.check("vaults.Delete"); err != nil {
		return err
	}
	if _, ok := f.s.vaults[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.s.vaults, id)
	return nil
}

// --- documents, sessions, roles, messages ---

type fakeDocuments struct{ s *memStore }

func (f fakeDocuments) Create(_ context.Context, d *models.Document) (*models.Document, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	d.ID = f.s.nextID("doc")
	cp := *d
	f.s.documents = append(f.s.documents, &cp)
	return d, nil
}

func (f fakeDocuments) ListByVault(_ context.Context, vaultID string) ([]*models.Document, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []*models.Document{}
	for _, d := range f.s.documents {
		if d.VaultID == vaultID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f fakeDocuments) DeleteByVault(_ context.Context, vaultID string) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	kept := f.s.documents[:0]
	for _, d := range f.s.documents {
		if d.VaultID == vaultID {
			n++
			continue
		}
		kept = append(kept, d)
	}
	f.s.documents = kept
	return n, nil
}

type fakeSessions struct{ s *memStore }

func (f fakeSessions) Create(_ context.Context, vs *models.VaultSession) (*models.VaultSession, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	vs.ID = f.s.nextID("sess")
	cp := *vs
	f.s.sessions = append(f.s.sessions, &cp)
	return vs, nil
}

func (f fakeSessions) deleteWhere(match func(*models.VaultSession) bool) int64 {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	kept := f.s.sessions[:0]
	for _, vs := range f.s.sessions {
		if match(vs) {
			n++
			continue
		}
		kept = append(kept, vs)
	}
	f.s.sessions = kept
	return n
}

func (f fakeSessions) DeleteByVault(_ context.Context, vaultID string) (int64, error) {
	return f.deleteWhere(func(vs *models.VaultSession) bool { return vs.VaultID == vaultID }), nil
}

func (f fakeSessions) DeleteByUser(_ context.Context, userID string) (int64, error) {
	return f.deleteWhere(func(vs *models.VaultSession) bool { return vs.UserID == userID }), nil
}

type fakeRoles struct{ s *memStore }

func (f fakeRoles) Grant(_ context.Context, userID, role string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.roles[userID] == nil {
		f.s.roles[userID] = map[string]bool{}
	}
	f.s.roles[userID][role] = true
	return nil
}

func (f fakeRoles) HasRole(_ context.Context, userID, role string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return f.s.roles[userID][role], nil
}

func (f fakeRoles) DeleteByUser(_ context.Context, userID string) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	n := int64(len(f.s.roles[userID]))
	delete(f.s.roles, userID)
	return n, nil
}

type fakeMessages struct{ s *memStore }

func (f fakeMessages) Create(_ context.Context, m *models.ChatMessage) (*models.ChatMessage, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	m.ID = f.s.nextID("msg")
	cp := *m
	f.s.messages = append(f.s.messages, &cp)
	return m, nil
}

func (f fakeMessages) DeleteBySender(_ context.Context, senderID string) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	kept := f.s.messages[:0]
	for _, m := range f.s.messages {
		if m.SenderID == senderID {
			n++
			continue
		}
		kept = append(kept, m)
	}
	f.s.messages = kept
	return n, nil
}

// --- access events ---

type fakeEvents struct{ s *memStore }

func (f fakeEvents) Create(_ context.Context, e *models.AccessEvent) (*models.AccessEvent, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	e.ID = f.s.nextID("ev")
	f.s.events = append(f.s.events, *e)
	return e, nil
}

func (f fakeEvents) ListRecent(_ context.Context, vaultID string, limit int) ([]models.AccessEvent, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []models.AccessEvent{}
	for _, e := range f.s.events {
		if e.VaultID == vaultID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f fakeEvents) DeleteByVault(_ context.Context, vaultID string) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	kept := f.s.events[:0]
	for _, e := range f.s.events {
		if e.VaultID == vaultID {
			n++
			continue
		}
		kept = append(kept, e)
	}
	f.s.events = kept
	return n, nil
}

func (f fakeEvents) AnnotateUser(_ context.Context, userID, suffix string) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	for i := range f.s.events {
		if f.s.events[i].UserID == userID {
			name := f.s.events[i].UserName
			if name == "" {
				name = "User"
			}
			f.s.events[i].UserName = name + suffix
			n++
		}
	}
	return n, nil
}

// --- nominees ---

type fakeNominees struct{ s *memStore }

func (f fakeNominees) Create(_ context.Context, n *models.Nominee) (*models.Nominee, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	n.ID = f.s.nextID("nom")
	n.CreatedAt = testNow
	cp := *n
	f.s.nominees[n.ID] = &cp
	return n, nil
}

func (f fakeNominees) GetByID(_ context.Context, id string) (*models.Nominee, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	n, ok := f.s.nominees[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *n
	return &cp, nil
}

func (f fakeNominees) GetByInviteTokenHash(_ context.Context, hash string) (*models.Nominee, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, n := range f.s.nominees {
		if n.InviteTokenHash == hash {
			cp := *n
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f fakeNominees) ListByUser(_ context.Context, userID string) ([]*models.Nominee, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []*models.Nominee{}
	for _, n := range f.s.nominees {
		if n.UserID == userID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeNominees) Accept(_ context.Context, id, userID string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	n, ok := f.s.nominees[id]
	if !ok || n.Status != models.NomineePending {
		return common.ErrorInvalidState
	}
	n.UserID = userID
	n.Status = models.NomineeAccepted
	return nil
}

func (f fakeNominees) UpdateStatus(_ context.Context, id string, from, to models.NomineeStatus) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	n, ok := f.s.nominees[id]
	if !ok || n.Status != from {
		return common.ErrorInvalidState
	}
	n.Status = to
	return nil
}

func (f fakeNominees) ActivateForUser(_ context.Context, vaultID, userID string) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	for _, nom := range f.s.nominees {
		if nom.VaultID == vaultID && nom.UserID == userID &&
			(nom.Status == models.NomineeAccepted || nom.Status == models.NomineeInactive) {
			nom.Status = models.NomineeActive
			n++
		}
	}
	return n, nil
}

func (f fakeNominees) deleteWhere(match func(*models.Nominee) bool) int64 {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	for id, nom := range f.s.nominees {
		if match(nom) {
			delete(f.s.nominees, id)
			n++
		}
	}
	return n
}

func (f fakeNominees) DeleteByVault(_ context.Context, vaultID string) (int64, error) {
	return f.deleteWhere(func(n *models.Nominee) bool { return n.VaultID == vaultID }), nil
}

func (f fakeNominees) DeleteByUser(_ context.Context, userID string) (int64, error) {
	return f.deleteWhere(func(n *models.Nominee) bool { return n.UserID == userID }), nil
}

// --- dual-key ---

type fakeDualKey struct{ s *memStore }

func (f fakeDualKey) Create(_ context.Context, r *models.DualKeyRequest) (*models.DualKeyRequest, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r.ID = f.s.nextID("dk")
	r.CreatedAt = testNow
	cp := *r
	f.s.dualKey[r.ID] = &cp
	return r, nil
}

func (f fakeDualKey) GetByID(_ context.Context, id string) (*models.DualKeyRequest, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.dualKey[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *r
	return &cp, nil
}

func (f fakeDualKey) ListPending(_ context.Context, vaultID string) ([]*models.DualKeyRequest, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []*models.DualKeyRequest{}
	for _, r := range f.s.dualKey {
		if r.VaultID == vaultID && r.State == models.StatePending {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeDualKey) Resolve(_ context.Context, id string, res dualkey.Resolution) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.onResolve != nil {
		f.s.onResolve(id)
	}
	r, ok := f.s.dualKey[id]
	if !ok || r.State != models.StatePending {
		return common.ErrorInvalidState
	}
	r.State = res.State
	r.MLScore = res.Score
	r.DecisionMethod = res.Method
	r.ApproverID = res.ApproverID
	at := res.At
	if res.State == models.StateApproved {
		r.ApprovedAt = &at
	} else {
		r.DeniedAt = &at
	}
	return nil
}

func (f fakeDualKey) deleteWhere(match func(*models.DualKeyRequest) bool) int64 {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	for id, r := range f.s.dualKey {
		if match(r) {
			delete(f.s.dualKey, id)
			n++
		}
	}
	return n
}

func (f fakeDualKey) DeleteByVault(_ context.Context, vaultID string) (int64, error) {
	return f.deleteWhere(func(r *models.DualKeyRequest) bool { return r.VaultID == vaultID }), nil
}

func (f fakeDualKey) DeleteByRequester(_ context.Context, userID string) (int64, error) {
	return f.deleteWhere(func(r *models.DualKeyRequest) bool { return r.RequesterID == userID }), nil
}

// --- transfers ---

type fakeTransfers struct{ s *memStore }

func (f fakeTransfers) Create(_ context.Context, r *models.VaultTransferRequest) (*models.VaultTransferRequest, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r.ID = f.s.nextID("tr")
	cp := *r
	f.s.transfers[r.ID] = &cp
	return r, nil
}

func (f fakeTransfers) GetByID(_ context.Context, id string) (*models.VaultTransferRequest, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.transfers[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *r
	return &cp, nil
}

func (f fakeTransfers) GetByTokenHash(_ context.Context, hash string) (*models.VaultTransferRequest, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, r := range f.s.transfers {
		if r.TokenHash == hash {
			cp := *r
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f fakeTransfers) CountSince(_ context.Context, vaultID string, since time.Time) (int, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	n := 0
	for _, r := range f.s.transfers {
		if r.VaultID == vaultID && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f fakeTransfers) Complete(_ context.Context, id, newOwnerID string, at time.Time) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.onComplete != nil {
		f.s.onComplete(id)
	}
	r, ok := f.s.transfers[id]
	if !ok || r.State != models.StatePending {
		return common.ErrorInvalidState
	}
	r.State = models.StateCompleted
	r.NewOwnerID = newOwnerID
	r.CompletedAt = &at
	return nil
}

func (f fakeTransfers) Deny(_ context.Context, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.transfers[id]
	if !ok || r.State != models.StatePending {
		return common.ErrorInvalidState
	}
	r.State = models.StateDenied
	return nil
}

func (f fakeTransfers) DeleteByVault(_ context.Context, vaultID string) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	for id, r := range f.s.transfers {
		if r.VaultID == vaultID {
			delete(f.s.transfers, id)
			n++
		}
	}
	return n, nil
}

// --- emergency ---

type fakeEmergency struct{ s *memStore }

func (f fakeEmergency) Create(_ context.Context, r *models.EmergencyAccessRequest) (*models.EmergencyAccessRequest, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r.ID = f.s.nextID("em")
	r.CreatedAt = testNow
	cp := *r
	f.s.emergency[r.ID] = &cp
	return r, nil
}

func (f fakeEmergency) GetByID(_ context.Context, id string) (*models.EmergencyAccessRequest, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.emergency[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *r
	return &cp, nil
}

func (f fakeEmergency) GetByPassCodeHash(_ context.Context, vaultID, hash string) (*models.EmergencyAccessRequest, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, r := range f.s.emergency {
		if r.VaultID == vaultID && r.PassCodeHash != "" && r.PassCodeHash == hash {
			cp := *r
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f fakeEmergency) Approve(_ context.Context, id, approverID, passCodeHash string, expiresAt, at time.Time) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.emergency[id]
	if !ok || r.State != models.StatePending {
		return common.ErrorInvalidState
	}
	r.State = models.StateApproved
	r.ApproverID = approverID
	r.PassCodeHash = passCodeHash
	r.ExpiresAt = &expiresAt
	r.DecidedAt = &at
	return nil
}

func (f fakeEmergency) Deny(_ context.Context, id, approverID string, at time.Time) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.emergency[id]
	if !ok || r.State != models.StatePending {
		return common.ErrorInvalidState
	}
	r.State = models.StateDenied
	r.ApproverID = approverID
	r.DecidedAt = &at
	return nil
}

func (f fakeEmergency) Consume(_ context.Context, id string, now time.Time) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.emergency[id]
	if !ok {
		return common.ErrorNotFound
	}
	if !r.Usable(now) {
		return common.ErrorInvalidState
	}
	r.ConsumedAt = &now
	return nil
}

func (f fakeEmergency) deleteWhere(match func(*models.EmergencyAccessRequest) bool) int64 {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	for id, r := range f.s.emergency {
		if match(r) {
			delete(f.s.emergency, id)
			n++
		}
	}
	return n
}

func (f fakeEmergency) DeleteByVault(_ context.Context, vaultID string) (int64, error) {
	return f.deleteWhere(func(r *models.EmergencyAccessRequest) bool { return r.VaultID == vaultID }), nil
}

func (f fakeEmergency) DeleteByRequester(_ context.Context, userID string) (int64, error) {
	return f.deleteWhere(func(r *models.EmergencyAccessRequest) bool { return r.RequesterID == userID }), nil
}

// --- threat events, decisions ---

type fakeThreats struct{ s *memStore }

func (f fakeThreats) Create(_ context.Context, e *models.ThreatEvent) (*models.ThreatEvent, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	e.ID = f.s.nextID("te")
	cp := *e
	f.s.threats = append(f.s.threats, &cp)
	return e, nil
}

func (f fakeThreats) ListByVault(_ context.Context, vaultID string, limit int) ([]*models.ThreatEvent, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []*models.ThreatEvent{}
	for i := len(f.s.threats) - 1; i >= 0 && len(out) < limit; i-- {
		if t := f.s.threats[i]; t.VaultID == vaultID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f fakeThreats) DeleteByVault(_ context.Context, vaultID string) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	kept := f.s.threats[:0]
	for _, t := range f.s.threats {
		if t.VaultID == vaultID {
			n++
			continue
		}
		kept = append(kept, t)
	}
	f.s.threats = kept
	return n, nil
}

type fakeDecisions struct{ s *memStore }

func (f fakeDecisions) Create(_ context.Context, d *models.DecisionLog) (*models.DecisionLog, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.check("decisions.Create"); err != nil {
		return nil, err
	}
	d.ID = f.s.nextID("dl")
	cp := *d
	f.s.decisions = append(f.s.decisions, &cp)
	return d, nil
}

func (f fakeDecisions) ListByRequest(_ context.Context, requestID string) ([]*models.DecisionLog, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []*models.DecisionLog{}
	for _, d := range f.s.decisions {
		if d.RequestID == requestID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f fakeDecisions) DeleteByVault(_ context.Context, vaultID string) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	kept := f.s.decisions[:0]
	for _, d := range f.s.decisions {
		if d.VaultID == vaultID {
			n++
			continue
		}
		kept = append(kept, d)
	}
	f.s.decisions = kept
	return n, nil
}

// --- fixture ---

type fixture struct {
	db    *sql.DB
	mock  sqlmock.Sqlmock
	store *memStore
	m     *fakeManager
	cfg   *config.Config
	clock *clock.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock := newSQLMockDB(t)
	store := newMemStore()
	return &fixture{
		db:    db,
		mock:  mock,
		store: store,
		m:     &fakeManager{s: store},
		cfg:   testConfig(),
		clock: clock.NewFake(testNow),
	}
}

func (f *fixture) opts(extra ...Option) []Option {
	return append([]Option{WithClock(f.clock)}, extra...)
}

// fakeBlobs records deleted keys.
type fakeBlobs struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (b *fakeBlobs) Delete(_ context.Context, keys []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = append(b.keys, keys...)
	return b.err
}

// riskyBurst seeds twelve deletions one second apart, alternating between
// New York and London. It scores threat High and geo 100; the composite is
// 78.25 with approval deletion points and 79.5 with vault threat ones.
func (s *memStore) riskyBurst(vaultID, userID string, start time.Time) {
	for i := range 12 {
		lat, lon := 40.7128, -74.0060
		if i%2 == 1 {
			lat, lon = 51.5074, -0.1278
		}
		s.events = append(s.events, models.AccessEvent{
			ID:        s.nextID("ev"),
			VaultID:   vaultID,
			UserID:    userID,
			UserName:  "burst",
			EventType: models.EventDeleted,
			Timestamp: start.Add(time.Duration(i) * time.Second),
			Latitude:  f64(lat),
			Longitude: f64(lon),
		})
	}
}
