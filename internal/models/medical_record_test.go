package models

import (
	"strings"
	"testing"
)

func TestMedicalRecordMerge(t *testing.T) {
	r := NewMedicalRecord("u1", now)
	if !r.Merge([]string{"fever", " fever ", ""}, []string{"asthma"}) {
		t.Error("first merge reported no change")
	}
	if r.Merge([]string{"fever"}, []string{"asthma"}) {
		t.Error("repeat merge reported a change")
	}
	if len(r.Symptoms) != 1 || len(r.History) != 1 {
		t.Errorf("record = %+v", r)
	}
}

func TestMedicalRecordReport(t *testing.T) {
	r := NewMedicalRecord("u1", now)
	r.Merge([]string{"knee pain"}, nil)
	r.Files = append(r.Files, RecordFile{FileName: "mri.pdf"})

	got := r.Report(now)
	for _, want := range []string{
		"Date: 2025-03-14",
		"Patient ID: u1",
		"SYMPTOMS:\n- knee pain",
		"MEDICAL HISTORY:\nNone recorded",
		"ATTACHMENTS:\n- mri.pdf",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("report lacks %q:\n%s", want, got)
		}
	}
}

func TestChatLastN(t *testing.T) {
	c := &Chat{}
	for _, s := range []string{"a", "b", "c", "d"} {
		c.Messages = append(c.Messages, ChatMessage{Content: s})
	}
	got := c.LastN(2)
	if len(got) != 2 || got[0].Content != "c" {
		t.Errorf("LastN(2) = %+v", got)
	}
	if len(c.LastN(10)) != 4 {
		t.Error("LastN larger than transcript")
	}
}
