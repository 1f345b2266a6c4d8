package domain

import (
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

func strPtr(s string) *string { return &s }

func statusPtr(s Status) *Status { return &s }

func prioPtr(p Priority) *Priority { return &p }

func TestTaskMarshalIncludesStatus(t *testing.T) {
	task := Task{ID: "t1", Title: "Title", Status: StatusTodo}

	payload, err := sonic.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}

	if !strings.Contains(string(payload), `"status":"todo"`) {
		t.Fatalf("expected status field to be present, got %s", payload)
	}
	if strings.Contains(string(payload), "priority") {
		t.Fatalf("expected unset priority to be omitted, got %s", payload)
	}
}

func TestTaskValidate(t *testing.T) {
	cases := []struct {
		name string
		task Task
		ok   bool
	}{
		{"valid", Task{ID: "1", Title: "a", Status: StatusDone}, true},
		{"missing id", Task{Title: "a", Status: StatusTodo}, false},
		{"empty title", Task{ID: "1", Status: StatusTodo}, false},
		{"bad status", Task{ID: "1", Title: "a", Status: "archived"}, false},
		{"bad priority", Task{ID: "1", Title: "a", Status: StatusTodo, Priority: "urgent"}, false},
		{"optional priority", Task{ID: "1", Title: "a", Status: StatusBlocked, Priority: PriorityHigh}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.task.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid task, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestFieldsValidateForCreate(t *testing.T) {
	if err := (Fields{}).Validate(true); err == nil {
		t.Fatal("expected create without title to fail")
	}
	if err := (Fields{Title: strPtr("x")}).Validate(true); err == nil {
		t.Fatal("expected create without status to fail")
	}
	f := Fields{Title: strPtr("x"), Status: statusPtr(StatusTodo)}
	if err := f.Validate(true); err != nil {
		t.Fatalf("expected valid create fields, got %v", err)
	}
}

func TestFieldsValidateRejectsUnknownEnums(t *testing.T) {
	if err := (Fields{Status: statusPtr("archived")}).Validate(false); err == nil {
		t.Fatal("expected unknown status to fail")
	}
	if err := (Fields{Priority: prioPtr("urgent")}).Validate(false); err == nil {
		t.Fatal("expected unknown priority to fail")
	}
	if err := (Fields{Title: strPtr("")}).Validate(false); err == nil {
		t.Fatal("expected empty title to fail")
	}
}

func TestFieldsApplyMergesOnlySetFields(t *testing.T) {
	task := Task{ID: "1", Title: "old", Description: "keep", Status: StatusTodo, Assignee: "ann"}
	Fields{Title: strPtr("new"), Status: statusPtr(StatusDone)}.Apply(&task)

	if task.Title != "new" || task.Status != StatusDone {
		t.Fatalf("set fields not applied: %+v", task)
	}
	if task.Description != "keep" || task.Assignee != "ann" {
		t.Fatalf("unset fields mutated: %+v", task)
	}
}

func TestFieldsStatusOnly(t *testing.T) {
	if !(Fields{Status: statusPtr(StatusDone)}).StatusOnly() {
		t.Fatal("pure status change should be status-only")
	}
	if (Fields{Status: statusPtr(StatusDone), Title: strPtr("x")}).StatusOnly() {
		t.Fatal("mixed change must not be status-only")
	}
	if (Fields{}).StatusOnly() {
		t.Fatal("empty change must not be status-only")
	}
}
