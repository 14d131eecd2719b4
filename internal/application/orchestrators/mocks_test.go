package orchestrators

import (
	"context"
	"errors"
	"io"
	"time"

	"scheduler/internal/adapters/backend"
	wizardStore "scheduler/internal/adapters/storage/wizard"
	"scheduler/internal/domain/section"
	"scheduler/internal/domain/session"
	"scheduler/internal/domain/term"
	"scheduler/internal/domain/wizard"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return fixedTime }

// mockWizardStore implements WizardStore for testing.
type mockWizardStore struct {
	states  map[string]wizard.State
	saves   int
	saveErr error
}

func newMockWizardStore() *mockWizardStore {
	return &mockWizardStore{states: map[string]wizard.State{}}
}

// Get implements WizardStore.
func (m *mockWizardStore) Get(_ context.Context, id string) (wizard.State, error) {
	st, ok := m.states[id]
	if !ok {
		return wizard.State{}, wizardStore.ErrNotFound
	}
	return st, nil
}

// Save implements WizardStore.
func (m *mockWizardStore) Save(_ context.Context, st wizard.State) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.states[st.SessionID] = st
	return nil
}

// Delete implements WizardStore.
func (m *mockWizardStore) Delete(_ context.Context, id string) error {
	delete(m.states, id)
	return nil
}

func wizardDeps(store *mockWizardStore) WizardDeps {
	return WizardDeps{Store: store, DefaultCapacity: wizard.DefaultCapacity}
}

// mockSessionStore implements the session store interfaces for testing.
type mockSessionStore struct {
	sessions map[string]session.Session
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: map[string]session.Session{}}
}

// Save implements SessionStoreForLogin.
func (m *mockSessionStore) Save(_ context.Context, s session.Session) error {
	m.sessions[s.ID] = s
	return nil
}

// Delete implements SessionDeleter.
func (m *mockSessionStore) Delete(_ context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

// fakeBackend implements every backend interface used by the orchestrators.
// Each field, when set, overrides the default behaviour.
type fakeBackend struct {
	token     string
	loginErr  error
	calls     []string
	createErr error
	deleteErr error

	uploadResult wizard.UploadResult
	uploadErr    error
	uploaded     []byte
	uploadTerm   string

	bulkReq    *backend.BulkRequest
	bulkResult backend.BulkResult
	bulkErr    error

	sections    []section.Section
	listErr     error
	failDelete  string
	deletedIDs  []string
	schedule    backend.Schedule
	scheduleErr error
}

func (f *fakeBackend) Login(_ context.Context, email, password string) (string, error) {
	f.calls = append(f.calls, "Login")
	return f.token, f.loginErr
}

func (f *fakeBackend) CreateTerm(_ context.Context, token string, t term.Term) (term.Term, error) {
	f.calls = append(f.calls, "CreateTerm")
	if f.createErr != nil {
		return term.Term{}, f.createErr
	}
	t.ID = "new-term"
	return t, nil
}

func (f *fakeBackend) DeleteTerm(_ context.Context, token, id string) error {
	f.calls = append(f.calls, "DeleteTerm")
	return f.deleteErr
}

func (f *fakeBackend) UploadSections(_ context.Context, token, termID, filename string, r io.Reader) (wizard.UploadResult, error) {
	f.calls = append(f.calls, "UploadSections")
	f.uploadTerm = termID
	f.uploaded, _ = io.ReadAll(r)
	return f.uploadResult, f.uploadErr
}

func (f *fakeBackend) BulkSchedule(_ context.Context, token string, req backend.BulkRequest) (backend.BulkResult, error) {
	f.calls = append(f.calls, "BulkSchedule")
	f.bulkReq = &req
	return f.bulkResult, f.bulkErr
}

func (f *fakeBackend) ListSections(_ context.Context, token string) ([]section.Section, error) {
	f.calls = append(f.calls, "ListSections")
	return f.sections, f.listErr
}

func (f *fakeBackend) DeleteSection(_ context.Context, token, id string) error {
	f.calls = append(f.calls, "DeleteSection")
	if id == f.failDelete {
		return errors.New("Failed to delete section")
	}
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

func (f *fakeBackend) GenerateSchedule(_ context.Context, token, termID string) (backend.Schedule, error) {
	f.calls = append(f.calls, "GenerateSchedule")
	return f.schedule, f.scheduleErr
}
