package types

import (
	"errors"
	"testing"
	"time"
)

func TestIssueValidate(t *testing.T) {
	valid := func() *Issue {
		return &Issue{ProjectID: 1, TrackerID: 1, StatusID: 1, PriorityID: 2, AuthorID: 3, Subject: "Crash on save"}
	}
	start := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	due := start.AddDate(0, 0, -1)
	neg := -1.5

	tests := []struct {
		name   string
		mutate func(*Issue)
		fields []string
	}{
		{"valid", func(*Issue) {}, nil},
		{"blank subject", func(i *Issue) { i.Subject = "  " }, []string{"subject"}},
		{"missing references", func(i *Issue) { i.TrackerID = 0; i.PriorityID = 0 }, []string{"tracker", "priority"}},
		{"done ratio", func(i *Issue) { i.DoneRatio = 120 }, []string{"done_ratio"}},
		{"negative estimate", func(i *Issue) { i.EstimatedHours = &neg }, []string{"estimated_hours"}},
		{"due before start", func(i *Issue) { i.StartDate = &start; i.DueDate = &due }, []string{"due_date"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issue := valid()
			tt.mutate(issue)
			err := issue.Validate()
			if tt.fields == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if len(verr.Fields) != len(tt.fields) {
				t.Fatalf("got %d field errors (%v), want %v", len(verr.Fields), verr, tt.fields)
			}
			for i, f := range tt.fields {
				if verr.Fields[i].Field != f {
					t.Errorf("field[%d] = %q, want %q", i, verr.Fields[i].Field, f)
				}
			}
		})
	}
}

func TestIssueClone(t *testing.T) {
	h := 2.0
	orig := &Issue{ID: 7, EstimatedHours: &h, CustomValues: map[int64][]string{1: {"a"}}, WatcherIDs: []int64{4}}
	c := orig.Clone()
	*c.EstimatedHours = 9
	c.CustomValues[1][0] = "b"
	c.WatcherIDs[0] = 5
	if *orig.EstimatedHours != 2 || orig.CustomValues[1][0] != "a" || orig.WatcherIDs[0] != 4 {
		t.Fatalf("clone shares state with original: %+v", orig)
	}
}

func TestRelationNormalize(t *testing.T) {
	r := &Relation{IssueFromID: 1, IssueToID: 2, Type: RelBlocked}
	r.Normalize()
	if r.IssueFromID != 2 || r.IssueToID != 1 || r.Type != RelBlocks {
		t.Fatalf("Normalize() = %+v", r)
	}
	if got := r.TypeFor(1); got != RelBlocked {
		t.Errorf("TypeFor(1) = %s, want blocked", got)
	}
	if got := r.TypeFor(2); got != RelBlocks {
		t.Errorf("TypeFor(2) = %s, want blocks", got)
	}
	if got := r.Other(1); got != 2 {
		t.Errorf("Other(1) = %d, want 2", got)
	}
}

func TestValueFromKeyword(t *testing.T) {
	tests := []struct {
		name    string
		field   CustomField
		keyword string
		want    []string
		wantErr bool
	}{
		{"string", CustomField{Name: "Ref", Format: FormatString}, " abc ", []string{"abc"}, false},
		{"multi list", CustomField{Name: "Tags", Format: FormatList, Multiple: true, PossibleValues: []string{"tag1", "tag2"}}, "tag1, TAG2", []string{"tag1", "tag2"}, false},
		{"list miss", CustomField{Name: "OS", Format: FormatList, PossibleValues: []string{"Linux"}}, "BeOS", nil, true},
		{"bool", CustomField{Name: "Flag", Format: FormatBool}, "yes", []string{"1"}, false},
		{"int", CustomField{Name: "Count", Format: FormatInt}, "x", nil, true},
		{"date", CustomField{Name: "When", Format: FormatDate}, "2024-02-30", nil, true},
		{"user needs lookup", CustomField{Name: "Owner", Format: FormatUser}, "jsmith", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.field.ValueFromKeyword(tt.keyword)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValueFromKeyword() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ValueFromKeyword() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("value[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" a, ,b ,c,")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("SplitList() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SplitList()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
