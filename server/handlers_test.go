package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pleia/config"
	"pleia/core/auth"
	"pleia/core/playlist"
	"pleia/core/usage"
	"pleia/model"
	"pleia/repository"
)

func init() {
	auth.SetSecret("test-secret")
}

// fakeUserRepo is an in-memory UserRepository.
type fakeUserRepo struct {
	users  map[int64]*model.User
	nextID int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*model.User), nextID: 1}
}

func (f *fakeUserRepo) CreateUser(user *model.User) (int64, error) {
	for _, u := range f.users {
		if u.Email == user.Email {
			return 0, repository.ErrDuplicateUser
		}
	}
	user.ID = f.nextID
	f.nextID++
	copied := *user
	f.users[user.ID] = &copied
	return user.ID, nil
}

func (f *fakeUserRepo) GetUserByID(id int64) (*model.User, error) {
	if u, ok := f.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeUserRepo) GetUserByEmail(email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) GetUserByReferralCode(code string) (*model.User, error) {
	for _, u := range f.users {
		if u.ReferralCode == code {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) AcceptTerms(userID int64) error {
	if u, ok := f.users[userID]; ok {
		u.TermsAccepted = true
	}
	return nil
}

func (f *fakeUserRepo) UpdatePlan(userID int64, plan model.Plan) error {
	if u, ok := f.users[userID]; ok {
		u.Plan = plan
	}
	return nil
}

// fakeUsageRepo is an in-memory UsageRepository.
type fakeUsageRepo struct {
	events []*model.UsageEvent
}

func (f *fakeUsageRepo) RecordEvent(event *model.UsageEvent) error {
	copied := *event
	f.events = append(f.events, &copied)
	return nil
}

func (f *fakeUsageRepo) RefundEvent(eventID string) error {
	for _, e := range f.events {
		if e.EventID == eventID && !e.Refunded {
			e.Refunded = true
			return nil
		}
	}
	return repository.ErrEventNotFound
}

func (f *fakeUsageRepo) CountUnitsSince(userID int64, since time.Time) (int, error) {
	n := 0
	for _, e := range f.events {
		if e.UserID == userID && !e.Refunded {
			n += e.Units
		}
	}
	return n, nil
}

// fakeIntent returns a fixed intent for every prompt.
type fakeIntent struct {
	intent *model.Intent
	err    error
}

func (f *fakeIntent) Resolve(_ context.Context, prompt string, _ int) (*model.Intent, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := *f.intent
	out.Prompt = prompt
	return &out, nil
}

// fakeTokener always authenticates.
type fakeTokener struct{ err error }

func (f *fakeTokener) Token(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token", nil
}

// streamSource feeds the engine enough recommendations to fill any
// target through the NORMAL path.
type streamSource struct{}

func (streamSource) ResolveArtist(_ context.Context, name string) (*model.ResolvedArtist, error) {
	return &model.ResolvedArtist{ID: "sd", Name: name}, nil
}

func (streamSource) ArtistTopTracks(context.Context, string, int) ([]model.Track, error) {
	return nil, nil
}

func (streamSource) SearchTracks(context.Context, string, int) ([]model.Track, error) {
	return nil, nil
}

func (streamSource) Recommendations(_ context.Context, _, _ []string, limit int) ([]model.Track, error) {
	var out []model.Track
	for i := 0; i < limit && i < 40; i++ {
		id := "rec-" + string(rune('a'+i/10)) + string(rune('0'+i%10))
		out = append(out, model.Track{
			ID:      id,
			Name:    "rec " + id,
			URI:     "spotify:track:" + id,
			Artists: []model.TrackArtist{{ID: "aa", Name: "Someone"}},
		})
	}
	return out, nil
}

func (streamSource) GenreRecommendations(context.Context, []string, int) ([]model.Track, error) {
	return nil, nil
}

func (streamSource) AudioFeatures(context.Context, []string) (map[string]model.AudioFeatures, error) {
	return map[string]model.AudioFeatures{}, nil
}

func (streamSource) SearchPlaylists(context.Context, string, int) ([]model.PlaylistRef, error) {
	return nil, nil
}

func (streamSource) PlaylistTracks(context.Context, string, int) ([]model.Track, error) {
	return nil, nil
}

func (streamSource) GetTrack(context.Context, string) (*model.Track, error) {
	return nil, nil
}

func newTestHandler(users *fakeUserRepo, ledger *fakeUsageRepo) *APIHandler {
	cfg := &config.Config{PriorityPerArtistCap: 10, NonPriorityPerArtistCap: 5}
	engine := playlist.NewEngine(streamSource{}, cfg.PriorityPerArtistCap, cfg.NonPriorityPerArtistCap)
	intents := &fakeIntent{intent: &model.Intent{Mode: "NORMAL", ArtistsLLM: []string{"Seed"}}}
	return NewAPIHandler(cfg, users, ledger, engine, intents, nil, &fakeTokener{}, nil)
}

func seedUser(t *testing.T, users *fakeUserRepo, terms bool) (*model.User, string) {
	t.Helper()
	hash, err := auth.HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatal(err)
	}
	user := &model.User{
		Email:         "u@example.com",
		PasswordHash:  hash,
		Plan:          model.PlanFree,
		TermsAccepted: terms,
		ReferralCode:  "ref123",
	}
	id, err := users.CreateUser(user)
	if err != nil {
		t.Fatal(err)
	}
	user.ID = id
	token, err := auth.GenerateToken(id, user.Email)
	if err != nil {
		t.Fatal(err)
	}
	return user, token
}

func generateRequest(token, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/playlist/llm", bytes.NewBufferString(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestGenerateRequiresAuth(t *testing.T) {
	users := newFakeUserRepo()
	h := newTestHandler(users, &fakeUsageRepo{})

	rr := httptest.NewRecorder()
	h.AuthMiddleware(h.GeneratePlaylistHandler)(rr, generateRequest("", `{"prompt":"x"}`))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rr.Code)
	}
}

func TestGenerateRequiresPrompt(t *testing.T) {
	users := newFakeUserRepo()
	h := newTestHandler(users, &fakeUsageRepo{})
	_, token := seedUser(t, users, true)

	rr := httptest.NewRecorder()
	h.AuthMiddleware(h.GeneratePlaylistHandler)(rr, generateRequest(token, `{"prompt":""}`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
}

func TestGenerateRequiresTerms(t *testing.T) {
	users := newFakeUserRepo()
	h := newTestHandler(users, &fakeUsageRepo{})
	_, token := seedUser(t, users, false)

	rr := httptest.NewRecorder()
	h.AuthMiddleware(h.GeneratePlaylistHandler)(rr, generateRequest(token, `{"prompt":"algo"}`))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want 403", rr.Code)
	}
	var body errorBody
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Code != "TERMS_NOT_ACCEPTED" {
		t.Fatalf("code: got %q, want TERMS_NOT_ACCEPTED", body.Code)
	}
}

func TestGenerateRejectsAtLimit(t *testing.T) {
	users := newFakeUserRepo()
	ledger := &fakeUsageRepo{}
	h := newTestHandler(users, ledger)
	user, token := seedUser(t, users, true)

	for i := 0; i < 5; i++ {
		ledger.events = append(ledger.events, &model.UsageEvent{UserID: user.ID, Units: 1})
	}

	rr := httptest.NewRecorder()
	h.AuthMiddleware(h.GeneratePlaylistHandler)(rr, generateRequest(token, `{"prompt":"algo"}`))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want 403", rr.Code)
	}
	var body errorBody
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Code != "LIMIT_REACHED" {
		t.Fatalf("code: got %q, want LIMIT_REACHED", body.Code)
	}
}

func TestGenerateStreamsAndConsumesOnce(t *testing.T) {
	users := newFakeUserRepo()
	ledger := &fakeUsageRepo{}
	h := newTestHandler(users, ledger)
	_, token := seedUser(t, users, true)

	rr := httptest.NewRecorder()
	h.AuthMiddleware(h.GeneratePlaylistHandler)(rr, generateRequest(token, `{"prompt":"reggaeton para el coche","target_tracks":10}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type: got %q", ct)
	}

	body := rr.Body.String()
	frames := strings.Split(strings.TrimSpace(body), "\n\n")
	if len(frames) < 2 {
		t.Fatalf("expected progress and final frames, got %d: %q", len(frames), body)
	}
	for _, frame := range frames {
		if !strings.HasPrefix(frame, "data: ") {
			t.Fatalf("frame missing data prefix: %q", frame)
		}
	}

	var final finalFrame
	if err := json.Unmarshal([]byte(strings.TrimPrefix(frames[len(frames)-1], "data: ")), &final); err != nil {
		t.Fatal(err)
	}
	if !final.OK || final.Status != "completed" {
		t.Fatalf("final frame: %+v", final)
	}
	if final.Count == 0 || final.Count > 10 {
		t.Fatalf("final count: got %d, want 1..10", final.Count)
	}
	if final.Usage.Used != 1 {
		t.Fatalf("usage used: got %d, want 1", final.Usage.Used)
	}

	// Exactly one billing unit for the whole stream.
	units := 0
	for _, e := range ledger.events {
		units += e.Units
	}
	if len(ledger.events) != 1 || units != 1 {
		t.Fatalf("ledger: %d events, %d units, want 1/1", len(ledger.events), units)
	}
}

func TestFailStreamReportsLimitReason(t *testing.T) {
	users := newFakeUserRepo()
	ledger := &fakeUsageRepo{}
	h := newTestHandler(users, ledger)
	user, _ := seedUser(t, users, true)

	for i := 0; i < 5; i++ {
		ledger.events = append(ledger.events, &model.UsageEvent{UserID: user.ID, Units: 1})
	}
	run, err := usage.NewRun(context.Background(), user, ledger)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	stream := &frameWriter{w: rr}
	req := httptest.NewRequest(http.MethodPost, "/api/playlist/llm", nil)
	h.failStream(req, stream, run, "trace", fmt.Errorf("usage accounting failed: %w", usage.ErrLimitReached))

	var frame errorFrame
	body := strings.TrimSpace(rr.Body.String())
	if err := json.Unmarshal([]byte(strings.TrimPrefix(body, "data: ")), &frame); err != nil {
		t.Fatal(err)
	}
	if frame.OK || frame.Status != "error" {
		t.Fatalf("error frame: %+v", frame)
	}
	if frame.Reason != "LIMIT_REACHED" {
		t.Fatalf("reason: got %q, want LIMIT_REACHED", frame.Reason)
	}
	if frame.Remaining != 0 {
		t.Fatalf("remaining: got %d, want 0", frame.Remaining)
	}
}

func TestGenerateIntentFailureBeforeStream(t *testing.T) {
	users := newFakeUserRepo()
	ledger := &fakeUsageRepo{}
	h := newTestHandler(users, ledger)
	h.intents = &fakeIntent{err: context.DeadlineExceeded}
	_, token := seedUser(t, users, true)

	rr := httptest.NewRecorder()
	h.AuthMiddleware(h.GeneratePlaylistHandler)(rr, generateRequest(token, `{"prompt":"algo"}`))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rr.Code)
	}
	if len(ledger.events) != 0 {
		t.Fatal("no usage may be consumed on a pre-stream failure")
	}
}

func TestRegisterAndLogin(t *testing.T) {
	users := newFakeUserRepo()
	h := newTestHandler(users, &fakeUsageRepo{})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		bytes.NewBufferString(`{"email":"New@Example.com","password":"hunter2hunter2","displayName":"New"}`))
	h.RegisterHandler(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status: got %d, want 201, body %s", rr.Code, rr.Body.String())
	}
	var created authResponse
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.Token == "" || created.User.Email != "new@example.com" {
		t.Fatalf("register response: %+v", created)
	}

	// Duplicate email conflicts.
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/auth/register",
		bytes.NewBufferString(`{"email":"new@example.com","password":"hunter2hunter2"}`))
	h.RegisterHandler(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate register status: got %d, want 409", rr.Code)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login",
		bytes.NewBufferString(`{"email":"new@example.com","password":"hunter2hunter2"}`))
	h.LoginHandler(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status: got %d, want 200", rr.Code)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login",
		bytes.NewBufferString(`{"email":"new@example.com","password":"wrong-password"}`))
	h.LoginHandler(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status: got %d, want 401", rr.Code)
	}
}

func TestAcceptTermsAndUsageEndpoint(t *testing.T) {
	users := newFakeUserRepo()
	ledger := &fakeUsageRepo{}
	h := newTestHandler(users, ledger)
	user, token := seedUser(t, users, false)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/me/terms", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.AuthMiddleware(h.AcceptTermsHandler)(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("terms status: got %d, want 200", rr.Code)
	}
	stored, _ := users.GetUserByID(user.ID)
	if !stored.TermsAccepted {
		t.Fatal("terms acceptance not persisted")
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/usage", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.AuthMiddleware(h.UsageHandler)(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("usage status: got %d, want 200", rr.Code)
	}
	var summary model.UsageSummary
	if err := json.NewDecoder(rr.Body).Decode(&summary); err != nil {
		t.Fatal(err)
	}
	if summary.Limit != 5 || summary.Used != 0 {
		t.Fatalf("summary: %+v", summary)
	}
}
