package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"workdesk/internal/model"
)

func TestDigestEmptyWhenNothingOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boss := f.register(t, "boss")
	worker := f.register(t, "worker")
	f.createTask(t, boss, "worker", model.StatusDone, "finished")

	text, err := f.reminderSvc.Digest(ctx, *worker, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	if text != "" {
		t.Errorf("digest = %q, want empty", text)
	}
}

func TestDigestListsOpenTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boss := f.register(t, "boss")
	worker := f.register(t, "worker")
	fresh := f.createTask(t, boss, "worker", model.StatusAssigned, "<fresh>")
	stale := f.createTask(t, boss, "worker", model.StatusWork, "stale")
	f.createTask(t, boss, "worker", model.StatusDone, "finished")

	later := fixedNow.Add(10 * 24 * time.Hour)
	if err := f.db.Model(&model.Task{}).Where("id = ?", fresh.ID).Update("date", today(later)).Error; err != nil {
		t.Fatal(err)
	}

	text, err := f.reminderSvc.Digest(ctx, *worker, later)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"25.06.2024",
		"🟢 #1 &lt;fresh&gt;",
		"⚠️ #2 stale",
		"(от Boss Test)",
		"назначена сегодня",
		"10 дн. назад",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("digest missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "finished") {
		t.Errorf("digest lists done task:\n%s", text)
	}
	if fresh.ID != 1 || stale.ID != 2 {
		t.Fatalf("unexpected ids %d/%d", fresh.ID, stale.ID)
	}
}

func TestBuildDailySpec(t *testing.T) {
	spec, err := buildDailySpec(" 09:05 ")
	if err != nil || spec != "0 5 9 * * *" {
		t.Errorf("buildDailySpec = %q, %v", spec, err)
	}
	for _, bad := range []string{"", "9", "24:00", "12:60", "aa:bb", "1:2:3"} {
		if _, err := buildDailySpec(bad); err == nil {
			t.Errorf("buildDailySpec(%q) should fail", bad)
		}
	}
}

func TestSchedulerRegistersJobs(t *testing.T) {
	s := NewSchedulerService(time.UTC)
	if _, err := s.ScheduleDaily("08:00", func() {}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ScheduleInterval(90*time.Minute, func() {}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ScheduleInterval(0, func() {}); err == nil {
		t.Error("zero interval should fail")
	}
	if _, err := s.ScheduleDaily("25:00", func() {}); err == nil {
		t.Error("bad daily time should fail")
	}
	if got := s.Entries(); got != 2 {
		t.Errorf("Entries = %d, want 2", got)
	}
	s.Start()
	s.Stop()
}
