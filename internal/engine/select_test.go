package engine

import (
	"testing"
	"time"

	logx "leadgen/pkg/logx"

	"leadgen/internal/lead"
	"leadgen/internal/retry"
)

func TestNextTaskPriorityThenStaleness(t *testing.T) {
	t.Parallel()

	now := at(3, 12)
	t0 := now.Add(-2 * time.Hour)
	t1 := now.Add(-time.Hour)

	e := New(Config{}, Deps{}, logx.Nop())
	add := func(id string, priority int, lastRun time.Time) {
		if err := e.AddTask(Task{
			ID:       id,
			Query:    lead.Query{Location: "here", Category: "any"},
			Priority: priority,
			Enabled:  true,
			Policy:   retry.DefaultPolicy(),
		}); err != nil {
			t.Fatalf("AddTask(%s): %v", id, err)
		}
		for _, task := range e.tasks {
			if task.ID == id {
				task.LastRun = lastRun
			}
		}
	}

	add("A", 2, t0)
	add("B", 1, t1)
	add("C", 1, time.Time{})

	var order []string
	for range 3 {
		next := e.nextTask(now)
		if next == nil {
			t.Fatal("nextTask returned nil with eligible tasks remaining")
		}
		order = append(order, next.ID)
		next.NextRun = now.Add(time.Hour) // no longer due
	}

	want := []string{"C", "B", "A"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("selection order = %v, want %v", order, want)
		}
	}
}

func TestNextTaskSkipsDisabledAndNotDue(t *testing.T) {
	t.Parallel()

	now := at(3, 12)
	e := New(Config{}, Deps{}, logx.Nop())

	if err := e.AddTask(Task{ID: "off", Enabled: false, Priority: 1, Policy: retry.DefaultPolicy()}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if err := e.AddTask(Task{ID: "later", Enabled: true, Priority: 1, NextRun: now.Add(time.Hour), Policy: retry.DefaultPolicy()}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	if next := e.nextTask(now); next != nil {
		t.Fatalf("nextTask = %q, want nil", next.ID)
	}

	if err := e.AddTask(Task{ID: "due", Enabled: true, Priority: 5, NextRun: now.Add(-time.Minute), Policy: retry.DefaultPolicy()}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	next := e.nextTask(now)
	if next == nil || next.ID != "due" {
		t.Fatalf("nextTask = %v, want due", next)
	}
}

func TestAddTaskRejectsDuplicateAndBadPolicy(t *testing.T) {
	t.Parallel()

	e := New(Config{}, Deps{}, logx.Nop())
	if err := e.AddTask(Task{ID: "x", Enabled: true}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if err := e.AddTask(Task{ID: "x", Enabled: true}); err != ErrTaskExists {
		t.Fatalf("err = %v, want ErrTaskExists", err)
	}
	if err := e.AddTask(Task{Policy: retry.Policy{MaxAttempts: 2, Strategy: retry.StrategyCustom}}); err == nil {
		t.Fatal("expected validation error for custom strategy without delays")
	}
}

func TestRemoveTask(t *testing.T) {
	t.Parallel()

	e := New(Config{}, Deps{}, logx.Nop())
	for _, id := range []string{"a", "b", "c"} {
		if err := e.AddTask(Task{ID: id, Enabled: true}); err != nil {
			t.Fatalf("AddTask(%s): %v", id, err)
		}
	}

	if !e.RemoveTask(func(t Task) bool { return t.ID == "b" }) {
		t.Fatal("RemoveTask returned false for a present task")
	}
	if e.RemoveTask(func(t Task) bool { return t.ID == "b" }) {
		t.Fatal("RemoveTask returned true for an absent task")
	}
	if got := len(e.tasks); got != 2 {
		t.Fatalf("len(tasks) = %d, want 2", got)
	}
}
