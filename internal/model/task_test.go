package model

import "testing"

func TestTaskStatusValid(t *testing.T) {
	for _, s := range TaskStatuses {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	for _, s := range []TaskStatus{"", "Assigned", "archived", "done "} {
		if s.Valid() {
			t.Errorf("%q should be invalid", s)
		}
	}
}

func TestTaskStatusLabelFallsBackToRawValue(t *testing.T) {
	if got := StatusWork.Label(); got != "В работе" {
		t.Errorf("Label(work) = %q", got)
	}
	if got := TaskStatus("archived").Label(); got != "archived" {
		t.Errorf("Label(archived) = %q", got)
	}
}

func TestIsRecipient(t *testing.T) {
	id := uint(7)
	task := Task{RecipientID: &id}
	if !task.IsRecipient(7) {
		t.Error("expected user 7 to be the recipient")
	}
	if task.IsRecipient(8) {
		t.Error("user 8 is not the recipient")
	}
	if (Task{}).IsRecipient(7) {
		t.Error("task without recipient has no recipient")
	}
}

func TestFullName(t *testing.T) {
	u := User{Username: "ivan", FirstName: "Иван", LastName: "Петров"}
	if got := u.FullName(); got != "Иван Петров" {
		t.Errorf("FullName = %q", got)
	}
	if got := (User{Username: "ivan"}).FullName(); got != "ivan" {
		t.Errorf("FullName fallback = %q", got)
	}
}
