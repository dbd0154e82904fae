// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package host

import (
	"errors"
	"testing"
	"time"

	"github.com/AleutianAI/lumen/services/analysis/engine"
	"github.com/AleutianAI/lumen/services/analysis/semantic"
)

func currentText(t *testing.T, h *Host, id semantic.FileID) string {
	t.Helper()
	text, ok := engine.Peek(h.db, semantic.FileText, id)
	if !ok {
		t.Fatalf("file %d has no text", id)
	}
	return text
}

func TestAddFileAssignsStableIDs(t *testing.T) {
	h := New()
	id1, r1 := h.AddFile("a.lum", "fn a() {}")
	id2, r2 := h.AddFile("b.lum", "fn b() {}")
	if id1 == id2 {
		t.Fatal("distinct paths must get distinct ids")
	}
	if r2 != r1+1 {
		t.Errorf("revisions = %d, %d; each add is one revision", r1, r2)
	}

	// Re-adding a known path replaces text, keeps the id.
	id3, r3 := h.AddFile("a.lum", "fn a2() {}")
	if id3 != id1 {
		t.Errorf("re-add changed id: %d -> %d", id1, id3)
	}
	if r3 != r2+1 {
		t.Errorf("re-add revision = %d", r3)
	}
	if got := currentText(t, h, id1); got != "fn a2() {}" {
		t.Errorf("text = %q", got)
	}

	if h.FileCount() != 2 {
		t.Errorf("FileCount = %d, want 2", h.FileCount())
	}
	if p, ok := h.Path(id2); !ok || p != "b.lum" {
		t.Errorf("Path(%d) = %q, %v", id2, p, ok)
	}
	if id, ok := h.FileID("b.lum"); !ok || id != id2 {
		t.Errorf("FileID = %d, %v", id, ok)
	}
}

func TestRemoveFile(t *testing.T) {
	h := New()
	id, _ := h.AddFile("a.lum", "fn a() {}")
	rev, err := h.RemoveFile(id)
	if err != nil {
		t.Fatalf("RemoveFile: %v", err)
	}
	if rev != 2 {
		t.Errorf("revision = %d", rev)
	}
	if h.FileCount() != 0 {
		t.Errorf("FileCount = %d", h.FileCount())
	}
	if _, err := h.RemoveFile(id); !errors.Is(err, ErrUnknownFile) {
		t.Errorf("double remove err = %v, want ErrUnknownFile", err)
	}
}

func TestApplyEditsSingleFile(t *testing.T) {
	h := New()
	id, _ := h.AddFile("a.lum", "fn a() { 1 }")
	before := h.Revision()

	rev, err := h.ApplyEdits([]FileEdits{{
		File: id,
		Edits: []Edit{
			{Start: 9, End: 10, Text: "2"},    // 1 -> 2
			{Start: 10, End: 10, Text: " + 3"}, // insert after the 2
		},
	}})
	if err != nil {
		t.Fatalf("ApplyEdits: %v", err)
	}
	if rev != before+1 {
		t.Errorf("revision = %d, want %d (one per batch)", rev, before+1)
	}
	if got := currentText(t, h, id); got != "fn a() { 2 + 3 }" {
		t.Errorf("text = %q", got)
	}
}

func TestApplyEditsMultiFileAtomic(t *testing.T) {
	h := New()
	a, _ := h.AddFile("a.lum", "aaaa")
	b, _ := h.AddFile("b.lum", "bbbb")
	before := h.Revision()

	rev, err := h.ApplyEdits([]FileEdits{
		{File: a, Edits: []Edit{{Start: 0, End: 4, Text: "AA"}}},
		{File: b, Edits: []Edit{{Start: 4, End: 4, Text: "B"}}},
	})
	if err != nil {
		t.Fatalf("ApplyEdits: %v", err)
	}
	if rev != before+1 {
		t.Errorf("multi-file batch made %d revisions", rev-before)
	}
	if got := currentText(t, h, a); got != "AA" {
		t.Errorf("a = %q", got)
	}
	if got := currentText(t, h, b); got != "bbbbB" {
		t.Errorf("b = %q", got)
	}
}

func TestApplyEditsValidationLeavesStateUntouched(t *testing.T) {
	h := New()
	a, _ := h.AddFile("a.lum", "aaaa")
	b, _ := h.AddFile("b.lum", "bbbb")
	before := h.Revision()

	cases := []struct {
		name  string
		batch []FileEdits
		want  error
	}{
		{"empty batch", nil, ErrEmptyBatch},
		{"empty file edits", []FileEdits{{File: a}}, ErrEmptyBatch},
		{"unknown file", []FileEdits{{File: 999, Edits: []Edit{{Start: 0, End: 0, Text: "x"}}}}, ErrUnknownFile},
		{"negative start", []FileEdits{{File: a, Edits: []Edit{{Start: -1, End: 0, Text: "x"}}}}, ErrOutOfRange},
		{"inverted range", []FileEdits{{File: a, Edits: []Edit{{Start: 3, End: 2, Text: "x"}}}}, ErrOutOfRange},
		{"end past eof", []FileEdits{{File: a, Edits: []Edit{{Start: 0, End: 5, Text: "x"}}}}, ErrOutOfRange},
		{
			// First file valid, second invalid: nothing may apply.
			"partial batch",
			[]FileEdits{
				{File: a, Edits: []Edit{{Start: 0, End: 1, Text: "x"}}},
				{File: b, Edits: []Edit{{Start: 0, End: 99, Text: "y"}}},
			},
			ErrOutOfRange,
		},
	}
	for _, tc := range cases {
		rev, err := h.ApplyEdits(tc.batch)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
		if rev != before {
			t.Errorf("%s: revision moved to %d", tc.name, rev)
		}
	}
	if got := currentText(t, h, a); got != "aaaa" {
		t.Errorf("a modified by rejected batch: %q", got)
	}
	if got := currentText(t, h, b); got != "bbbb" {
		t.Errorf("b modified by rejected batch: %q", got)
	}
}

func TestEditsAgainstEvolvingText(t *testing.T) {
	// The second edit's range is valid only against the text produced
	// by the first. Ranges validate in order, not against the original.
	h := New()
	id, _ := h.AddFile("a.lum", "ab")
	_, err := h.ApplyEdits([]FileEdits{{
		File: id,
		Edits: []Edit{
			{Start: 2, End: 2, Text: "cdef"}, // "abcdef"
			{Start: 5, End: 6, Text: "F"},    // valid only after growth
		},
	}})
	if err != nil {
		t.Fatalf("ApplyEdits: %v", err)
	}
	if got := currentText(t, h, id); got != "abcdeF" {
		t.Errorf("text = %q", got)
	}
}

func TestSnapshotSeesCommittedState(t *testing.T) {
	h := New()
	id, _ := h.AddFile("a.lum", "fn a() { 1 }")

	snap := h.Snapshot()
	defer snap.Release()
	if snap.Revision() != h.Revision() {
		t.Errorf("snapshot revision = %d, host %d", snap.Revision(), h.Revision())
	}
	tree, err := snap.Tree(id)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if tree.Text() != "fn a() { 1 }" {
		t.Errorf("tree text = %q", tree.Text())
	}
}

func TestSnapshotStabilityAcrossEdit(t *testing.T) {
	h := New()
	id, _ := h.AddFile("a.lum", "fn a() { 1 }")

	snap := h.Snapshot()
	editDone := make(chan struct{})
	go func() {
		h.ApplyEdits([]FileEdits{{File: id, Edits: []Edit{{Start: 9, End: 10, Text: "2"}}}})
		close(editDone)
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-editDone:
		t.Fatal("edit committed while a snapshot was live")
	default:
	}
	// The snapshot is cancelled but its state is intact.
	if !snap.Cancelled() {
		t.Error("pending commit should raise the cancellation flag")
	}
	snap.Release()
	<-editDone

	fresh := h.Snapshot()
	defer fresh.Release()
	tree, err := fresh.Tree(id)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if tree.Text() != "fn a() { 2 }" {
		t.Errorf("text after edit = %q", tree.Text())
	}
}

func TestSupersededQuerySurfacesCancelled(t *testing.T) {
	h := New()
	id, _ := h.AddFile("a.lum", "fn a() { 1 }")

	snap := h.Snapshot()
	editStarted := make(chan struct{})
	go func() {
		close(editStarted)
		h.ApplyEdits([]FileEdits{{File: id, Edits: []Edit{{Start: 9, End: 10, Text: "2"}}}})
	}()
	<-editStarted

	deadline := time.After(2 * time.Second)
	for !snap.Cancelled() {
		select {
		case <-deadline:
			t.Fatal("cancellation flag never raised")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	// Queries against the dead snapshot fail fast with Cancelled.
	_, err := snap.Diagnostics(id)
	if !engine.IsCancelled(err) {
		t.Errorf("err = %v, want cancelled", err)
	}
	snap.Release()
}
