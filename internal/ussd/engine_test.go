package ussd

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/AfyaLink/AfyaDial/internal/auth"
	"github.com/AfyaLink/AfyaDial/internal/messaging"
	"github.com/AfyaLink/AfyaDial/internal/models"
	"github.com/AfyaLink/AfyaDial/internal/session"
	"github.com/AfyaLink/AfyaDial/internal/store"
)

const (
	testPhone  = "+254700000001"
	testSecret = "orchid22"
)

// testFixture bundles the engine with its in-memory dependencies and a
// controllable clock.
type testFixture struct {
	engine   *Engine
	records  *store.InMemoryStore
	sessions *session.InMemoryStore
	notifier *messaging.RecordingNotifier
	now      time.Time
	user     models.User
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		records:  store.NewInMemoryStore(),
		sessions: session.NewInMemoryStore(),
		notifier: &messaging.RecordingNotifier{},
		now:      time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC),
	}

	hash, err := auth.HashSecret(testSecret)
	if err != nil {
		t.Fatalf("failed to hash secret: %v", err)
	}
	f.user = models.User{
		ID:           uuid.NewString(),
		PhoneNumber:  testPhone,
		Name:         "Achieng",
		AccountType:  models.AccountTypeAdolescent,
		PasswordHash: hash,
		CreatedAt:    f.now,
		UpdatedAt:    f.now,
	}
	if err := f.records.SaveUser(f.user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	f.engine = NewEngine(f.sessions, f.records, auth.NewStoreVerifier(f.records), f.notifier,
		WithClock(func() time.Time { return f.now }))
	return f
}

func (f *testFixture) handle(t *testing.T, text string) models.UssdResponse {
	t.Helper()
	resp, err := f.engine.Handle(context.Background(), models.UssdRequest{
		SessionID:   "sess-1",
		PhoneNumber: testPhone,
		Text:        text,
	})
	if err != nil {
		t.Fatalf("Handle(%q) returned error: %v", text, err)
	}
	return resp
}

func TestHandleUnregisteredPhone(t *testing.T) {
	f := newFixture(t)
	resp, err := f.engine.Handle(context.Background(), models.UssdRequest{PhoneNumber: "+254711111111", Text: ""})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if resp.Kind != models.KindEnd {
		t.Errorf("expected END for unregistered phone, got %s", resp.Kind)
	}
	if !strings.Contains(resp.Text, "not registered") {
		t.Errorf("unexpected reply: %q", resp.Text)
	}
}

func TestHandleFirstContactPromptsCredential(t *testing.T) {
	f := newFixture(t)
	resp := f.handle(t, "")
	if resp.Kind != models.KindContinue {
		t.Fatalf("expected CON, got %s", resp.Kind)
	}
	if !strings.Contains(resp.Text, "password or 4-digit PIN") {
		t.Errorf("expected credential prompt, got %q", resp.Text)
	}
}

func TestHandleWrongSecretEndsSession(t *testing.T) {
	f := newFixture(t)
	f.handle(t, "")
	resp := f.handle(t, "wrongpass")
	if resp.Kind != models.KindEnd {
		t.Fatalf("expected END for bad credential, got %s", resp.Kind)
	}
	if !strings.Contains(resp.Text, "Invalid password or PIN") {
		t.Errorf("unexpected reply: %q", resp.Text)
	}
	if sess, _ := f.sessions.Get(context.Background(), testPhone); sess != nil {
		t.Error("session should be cleared after a failed credential")
	}
}

func TestHandleRootMenuAfterAuth(t *testing.T) {
	f := newFixture(t)
	resp := f.handle(t, testSecret)
	if resp.Kind != models.KindContinue {
		t.Fatalf("expected CON, got %s", resp.Kind)
	}
	for _, want := range []string{"Hello Achieng", "1. Cycle Tracking", "9. Help", "0. Exit"} {
		if !strings.Contains(resp.Text, want) {
			t.Errorf("root menu missing %q:\n%s", want, resp.Text)
		}
	}
}

func TestHandleExitFromRoot(t *testing.T) {
	f := newFixture(t)
	resp := f.handle(t, testSecret+"*0")
	if resp.Kind != models.KindEnd {
		t.Fatalf("expected END, got %s", resp.Kind)
	}
	if !strings.Contains(resp.Text, "Goodbye") {
		t.Errorf("unexpected reply: %q", resp.Text)
	}
}

func TestHandleBackToRootMatchesFreshMenu(t *testing.T) {
	f := newFixture(t)
	backed := f.handle(t, testSecret+"*1*0")
	fresh := f.handle(t, testSecret)
	if backed.Text != fresh.Text {
		t.Errorf("backed-out menu differs from fresh menu:\n%q\nvs\n%q", backed.Text, fresh.Text)
	}
}

func TestHandleInvalidSelectorEnds(t *testing.T) {
	f := newFixture(t)
	resp := f.handle(t, testSecret+"*77")
	if resp.Kind != models.KindEnd {
		t.Fatalf("expected END, got %s", resp.Kind)
	}
	if !strings.Contains(resp.Text, "Invalid selection") {
		t.Errorf("unexpected reply: %q", resp.Text)
	}
}

func TestHandleReplayIsDeterministic(t *testing.T) {
	f := newFixture(t)
	first := f.handle(t, testSecret+"*1*1")
	second := f.handle(t, testSecret+"*1*1")
	if first != second {
		t.Errorf("replaying the same request gave different replies:\n%+v\nvs\n%+v", first, second)
	}
}

func TestLogPeriodStartWithOnboarding(t *testing.T) {
	f := newFixture(t)
	resp := f.handle(t, testSecret+"*1*1*28*5*1")
	if resp.Kind != models.KindEnd {
		t.Fatalf("expected END, got %s: %q", resp.Kind, resp.Text)
	}
	if !strings.Contains(resp.Text, "Period start logged for 27 Aug 2026") {
		t.Errorf("unexpected reply: %q", resp.Text)
	}
	if !strings.Contains(resp.Text, "predicted around 24 Sep 2026") {
		t.Errorf("expected prediction 28 days out, got %q", resp.Text)
	}

	records, err := f.records.GetCycleRecords(f.user.ID)
	if err != nil {
		t.Fatalf("GetCycleRecords failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 cycle record, got %d", len(records))
	}
	if !records[0].Active() {
		t.Error("new record should be open (no end date)")
	}

	u, _ := f.records.GetUserByID(f.user.ID)
	if !u.HasProvidedCycleInfo {
		t.Error("onboarding should set HasProvidedCycleInfo")
	}
	if u.CycleLength == nil || *u.CycleLength != 28 {
		t.Errorf("profile cycle length not saved: %+v", u.CycleLength)
	}
}

func TestLogPeriodStartConflictsWithOpenPeriod(t *testing.T) {
	f := newFixture(t)
	f.handle(t, testSecret+"*1*1*28*5*1")
	resp := f.handle(t, testSecret+"*1*1*1")
	if resp.Kind != models.KindEnd {
		t.Fatalf("expected END, got %s", resp.Kind)
	}
	if !strings.Contains(resp.Text, "already have an open period") {
		t.Errorf("unexpected reply: %q", resp.Text)
	}
}

func TestLogPeriodStartSendsPredictionSMSWhenOptedIn(t *testing.T) {
	f := newFixture(t)
	f.user.RemindersEnabled = true
	if err := f.records.SaveUser(f.user); err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}

	f.handle(t, testSecret+"*1*1*28*5*1")
	msgs := f.notifier.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 SMS, got %d", len(msgs))
	}
	if msgs[0].Category != models.NotificationCategoryPrediction {
		t.Errorf("expected prediction category, got %s", msgs[0].Category)
	}
	if msgs[0].To != testPhone {
		t.Errorf("SMS sent to %s, want %s", msgs[0].To, testPhone)
	}
}

func TestLogPeriodEndBeforeStartRejected(t *testing.T) {
	f := newFixture(t)
	f.handle(t, testSecret+"*1*1*28*5*1")
	resp := f.handle(t, testSecret+"*1*2*20-08-2026")
	if resp.Kind != models.KindEnd {
		t.Fatalf("expected END, got %s", resp.Kind)
	}
	if !strings.Contains(resp.Text, "cannot be before the period start") {
		t.Errorf("unexpected reply: %q", resp.Text)
	}
}

func TestLogPeriodEndLongPeriodNeedsConfirmation(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC)
	rec := models.CycleRecord{
		ID: uuid.NewString(), UserID: f.user.ID, StartDate: start,
		CreatedAt: start, UpdatedAt: start,
	}
	if err := f.records.CreateCycleRecord(rec); err != nil {
		t.Fatalf("CreateCycleRecord failed: %v", err)
	}

	// 11 Aug to 27 Aug is a 17-day period: confirmation required.
	resp := f.handle(t, testSecret+"*1*2*1")
	if resp.Kind != models.KindContinue {
		t.Fatalf("expected CON confirmation, got %s: %q", resp.Kind, resp.Text)
	}
	if !strings.Contains(resp.Text, "17 days") || !strings.Contains(resp.Text, "1. Save anyway") {
		t.Errorf("unexpected confirmation prompt: %q", resp.Text)
	}

	resp = f.handle(t, testSecret+"*1*2*1*2")
	if resp.Kind != models.KindEnd || !strings.Contains(resp.Text, "Not saved") {
		t.Errorf("expected cancellation END, got %s: %q", resp.Kind, resp.Text)
	}

	resp = f.handle(t, testSecret+"*1*2*1*1")
	if resp.Kind != models.KindEnd || !strings.Contains(resp.Text, "Period end logged") {
		t.Errorf("expected save END, got %s: %q", resp.Kind, resp.Text)
	}
	records, _ := f.records.GetCycleRecords(f.user.ID)
	if records[0].PeriodLength == nil || *records[0].PeriodLength != 17 {
		t.Errorf("period length not saved: %+v", records[0].PeriodLength)
	}
}

func TestHandleSessionClearedOnEnd(t *testing.T) {
	f := newFixture(t)
	f.handle(t, testSecret+"*9")
	if sess, _ := f.sessions.Get(context.Background(), testPhone); sess != nil {
		t.Error("session should be cleared after an END reply")
	}
}

func TestResumeOfferedAfterTimeout(t *testing.T) {
	f := newFixture(t)

	resp := f.handle(t, testSecret+"*1*5")
	if resp.Kind != models.KindContinue || !strings.Contains(resp.Text, "Predictions for") {
		t.Fatalf("expected predictions view, got %s: %q", resp.Kind, resp.Text)
	}

	// Idle past the default two-minute timeout, then dial again.
	f.now = f.now.Add(3 * time.Minute)
	resp = f.handle(t, "")
	if resp.Kind != models.KindContinue {
		t.Fatalf("expected CON, got %s", resp.Kind)
	}
	if !strings.Contains(resp.Text, "unfinished session") {
		t.Errorf("expected resume prompt, got %q", resp.Text)
	}

	// Choosing resume replays the snapshot after authentication.
	resp = f.handle(t, "1*"+testSecret)
	if resp.Kind != models.KindContinue || !strings.Contains(resp.Text, "Predictions for") {
		t.Errorf("expected predictions view after resume, got %s: %q", resp.Kind, resp.Text)
	}
}

// Logging a start and opening predictions in the same month must show the
// cycle that just began, not an empty month.
func TestPredictionsShowCycleLoggedToday(t *testing.T) {
	f := newFixture(t)
	f.handle(t, testSecret+"*1*1*28*5*1")

	resp := f.handle(t, testSecret+"*1*5")
	if resp.Kind != models.KindContinue {
		t.Fatalf("expected CON, got %s: %q", resp.Kind, resp.Text)
	}
	for _, want := range []string{"Predictions for Aug 2026", "Cycle from 27 Aug", "Period: 27 Aug-31 Aug"} {
		if !strings.Contains(resp.Text, want) {
			t.Errorf("predictions missing %q:\n%s", want, resp.Text)
		}
	}
	if strings.Contains(resp.Text, "No predicted cycles") {
		t.Errorf("ongoing cycle not rendered:\n%s", resp.Text)
	}
}

// Paging after a resume must count each keystroke once: next then previous
// lands back on the month the resume restored.
func TestResumePagingAppliesEachEntryOnce(t *testing.T) {
	f := newFixture(t)
	f.handle(t, testSecret+"*1*5")
	f.now = f.now.Add(3 * time.Minute)
	f.handle(t, "")

	resumed := f.handle(t, "1*"+testSecret)
	if !strings.Contains(resumed.Text, "Aug 2026") {
		t.Fatalf("expected the August view after resume, got %q", resumed.Text)
	}

	next := f.handle(t, "1*"+testSecret+"*1")
	if !strings.Contains(next.Text, "Sep 2026") {
		t.Fatalf("expected the September view after paging forward, got %q", next.Text)
	}

	back := f.handle(t, "1*"+testSecret+"*1*2")
	if !strings.Contains(back.Text, "Aug 2026") {
		t.Errorf("expected the August view after paging back, got %q", back.Text)
	}
	if back.Text != resumed.Text {
		t.Errorf("paging forward and back drifted from the resumed view:\n%q\nvs\n%q", back.Text, resumed.Text)
	}
}

func TestResumeDeclinedStartsFresh(t *testing.T) {
	f := newFixture(t)
	f.handle(t, testSecret+"*1*5")
	f.now = f.now.Add(3 * time.Minute)
	f.handle(t, "")

	resp := f.handle(t, "2*"+testSecret)
	if resp.Kind != models.KindContinue {
		t.Fatalf("expected CON, got %s", resp.Kind)
	}
	if !strings.Contains(resp.Text, "Hello Achieng") {
		t.Errorf("expected root menu after declining resume, got %q", resp.Text)
	}
}

func TestNoResumeOfferWithoutSnapshot(t *testing.T) {
	f := newFixture(t)
	// Meals has no resume snapshot; timing out there starts a plain session.
	f.handle(t, testSecret+"*2")
	f.now = f.now.Add(3 * time.Minute)
	resp := f.handle(t, "")
	if strings.Contains(resp.Text, "unfinished session") {
		t.Errorf("resume should not be offered without a snapshot, got %q", resp.Text)
	}
}
