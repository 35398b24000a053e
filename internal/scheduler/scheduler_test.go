package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/graph"
	"github.com/shaiso/Nodeflow/internal/mq"
	"github.com/shaiso/Nodeflow/internal/repo"
)

type fakeSchedules struct {
	due     []domain.Schedule
	updated []domain.Schedule
	upsert  *domain.Schedule
	deleted []uuid.UUID
}

func (f *fakeSchedules) ListDue(_ context.Context, now time.Time, _ int) ([]domain.Schedule, error) {
	var out []domain.Schedule
	for _, s := range f.due {
		if s.IsDue(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSchedules) Upsert(_ context.Context, s *domain.Schedule) error {
	f.upsert = s
	return nil
}

func (f *fakeSchedules) Update(_ context.Context, s *domain.Schedule) error {
	f.updated = append(f.updated, *s)
	return nil
}

func (f *fakeSchedules) Delete(_ context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeRuns struct {
	byKey map[string]*domain.Run
}

func (f *fakeRuns) Create(_ context.Context, run *domain.Run) error {
	f.byKey[run.IdempotencyKey] = run
	return nil
}

func (f *fakeRuns) GetByIdempotencyKey(_ context.Context, _ uuid.UUID, key string) (*domain.Run, error) {
	if run, ok := f.byKey[key]; ok {
		return run, nil
	}
	return nil, repo.ErrNotFound
}

type fakeSender struct {
	msgs []*mq.Message
}

func (f *fakeSender) Send(_ context.Context, _ mq.Exchange, _ mq.RoutingKey, msg *mq.Message) error {
	f.msgs = append(f.msgs, msg)
	return nil
}

func newTestScheduler(schedules *fakeSchedules, runs *fakeRuns, sender *fakeSender, now time.Time) *Scheduler {
	s := New(Config{
		Schedules: schedules,
		Runs:      runs,
		Sender:    sender,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	s.now = func() time.Time { return now }
	return s
}

func TestNextDue(t *testing.T) {
	from := time.Date(2024, 1, 1, 8, 30, 0, 0, time.UTC)

	next, err := NextDue("0 9 * * *", from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("expected %s, got %s", want, next)
	}

	if _, err := NextDue("every day", from); err == nil {
		t.Error("expected error for invalid expression")
	}
}

func TestFromDocument(t *testing.T) {
	id := uuid.New()
	now := time.Date(2024, 1, 1, 8, 30, 0, 0, time.UTC)

	doc := &graph.Document{Nodes: []graph.NodeDoc{
		{ID: "start", Type: "core/Start", Properties: map[string]any{"schedule": "*/15 * * * *"}},
		{ID: "end", Type: "core/End"},
	}}
	sched, ok, err := FromDocument(id, doc, now)
	if err != nil || !ok {
		t.Fatalf("expected schedule, got ok=%v err=%v", ok, err)
	}
	if sched.GraphID != id || !sched.Enabled || sched.Timezone != "UTC" {
		t.Errorf("unexpected schedule %+v", sched)
	}
	if want := time.Date(2024, 1, 1, 8, 45, 0, 0, time.UTC); !sched.NextDueAt.Equal(want) {
		t.Errorf("expected next due %s, got %s", want, sched.NextDueAt)
	}

	doc.Nodes[0].Properties["schedule"] = "CRON_TZ=Europe/Berlin 0 9 * * *"
	sched, _, err = FromDocument(id, doc, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sched.Timezone != "Europe/Berlin" {
		t.Errorf("expected Europe/Berlin, got %s", sched.Timezone)
	}

	delete(doc.Nodes[0].Properties, "schedule")
	if _, ok, err := FromDocument(id, doc, now); ok || err != nil {
		t.Errorf("graph without schedule: ok=%v err=%v", ok, err)
	}
}

func TestTick_CreatesRunOnce(t *testing.T) {
	graphID := uuid.New()
	due := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	now := due.Add(10 * time.Second)

	schedules := &fakeSchedules{due: []domain.Schedule{{
		GraphID:   graphID,
		CronExpr:  "0 9 * * *",
		Timezone:  "UTC",
		Enabled:   true,
		NextDueAt: &due,
	}}}
	runs := &fakeRuns{byKey: make(map[string]*domain.Run)}
	sender := &fakeSender{}
	s := newTestScheduler(schedules, runs, sender, now)

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	run, ok := runs.byKey[IdempotencyKey(graphID, due)]
	if !ok {
		t.Fatal("run must be created")
	}
	if run.Status != domain.RunStatusPending || run.GraphID != graphID {
		t.Errorf("unexpected run %+v", run)
	}

	if len(schedules.updated) != 1 {
		t.Fatalf("schedule must be updated once, got %d", len(schedules.updated))
	}
	updated := schedules.updated[0]
	if want := due.Add(24 * time.Hour); !updated.NextDueAt.Equal(want) {
		t.Errorf("expected next due %s, got %s", want, updated.NextDueAt)
	}
	if updated.LastRunID == nil || *updated.LastRunID != run.ID {
		t.Errorf("last run id must be recorded, got %v", updated.LastRunID)
	}

	if len(sender.msgs) != 1 || sender.msgs[0].Type != mq.MessageTypeRunRequested {
		t.Fatalf("expected one run.requested, got %v", sender.msgs)
	}
	p, err := mq.ParsePayload[mq.RunRequestedPayload](sender.msgs[0])
	if err != nil || p.RunID != run.ID {
		t.Errorf("unexpected payload %+v (err=%v)", p, err)
	}

	// Повторный тик для того же момента (например, после падения до Update)
	// находит существующий run и не публикует заново
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if len(runs.byKey) != 1 {
		t.Errorf("idempotency violated: %d runs", len(runs.byKey))
	}
	if len(sender.msgs) != 1 {
		t.Errorf("duplicate run.requested published: %d", len(sender.msgs))
	}
}

func TestTick_NotDue(t *testing.T) {
	due := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	schedules := &fakeSchedules{due: []domain.Schedule{{
		GraphID: uuid.New(), CronExpr: "0 9 * * *", Enabled: true, NextDueAt: &due,
	}}}
	runs := &fakeRuns{byKey: make(map[string]*domain.Run)}
	s := newTestScheduler(schedules, runs, &fakeSender{}, due.Add(-time.Minute))

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(runs.byKey) != 0 || len(schedules.updated) != 0 {
		t.Error("nothing should happen before due time")
	}
}

func TestTick_InvalidCronDisables(t *testing.T) {
	due := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	schedules := &fakeSchedules{due: []domain.Schedule{{
		GraphID: uuid.New(), CronExpr: "61 * * * *", Enabled: true, NextDueAt: &due,
	}}}
	runs := &fakeRuns{byKey: make(map[string]*domain.Run)}
	s := newTestScheduler(schedules, runs, &fakeSender{}, due)

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(schedules.updated) != 1 || schedules.updated[0].Enabled {
		t.Errorf("invalid schedule must be disabled, got %+v", schedules.updated)
	}
}

func TestSync(t *testing.T) {
	store := &fakeSchedules{}
	id := uuid.New()

	doc := &graph.Document{Nodes: []graph.NodeDoc{
		{ID: "start", Type: "core/Start", Properties: map[string]any{"schedule": "@hourly"}},
	}}
	if err := Sync(context.Background(), store, id, doc); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if store.upsert == nil || store.upsert.CronExpr != "@hourly" {
		t.Errorf("expected upsert, got %+v", store.upsert)
	}

	doc.Nodes[0].Properties = nil
	if err := Sync(context.Background(), store, id, doc); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != id {
		t.Errorf("expected schedule deletion, got %v", store.deleted)
	}
}
