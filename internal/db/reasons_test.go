package db

import "testing"

func TestReasonEnumIsClosed(t *testing.T) {
	t.Parallel()

	known := []Reason{
		ReasonSpammerFromBase,
		ReasonBanWord,
		ReasonNewMemberSpam,
		ReasonCheckWordSpam,
		ReasonReport,
		ReasonLink,
		ReasonManualMute,
		ReasonManualBan,
	}
	for _, r := range known {
		if !r.Valid() {
			t.Fatalf("reason %q must be valid", r)
		}
	}
	if Reason("banword").Valid() {
		t.Fatalf("unknown reason must not validate")
	}
}

func TestReasonSpammerPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reason Reason
		marks  bool
	}{
		{ReasonSpammerFromBase, false},
		{ReasonBanWord, true},
		{ReasonNewMemberSpam, true},
		{ReasonCheckWordSpam, true},
		{ReasonReport, true},
		{ReasonLink, false},
		{ReasonManualMute, false},
		{ReasonManualBan, true},
	}
	for _, tt := range tests {
		if got := tt.reason.MarksSpammer(); got != tt.marks {
			t.Fatalf("reason %q MarksSpammer: got %v want %v", tt.reason, got, tt.marks)
		}
	}
}

func TestReasonNotifyCategory(t *testing.T) {
	t.Parallel()

	if ReasonManualMute.Category() != NotifyManual || ReasonManualBan.Category() != NotifyManual {
		t.Fatalf("manual reasons must use the manual toggle")
	}
	for _, r := range []Reason{ReasonSpammerFromBase, ReasonBanWord, ReasonNewMemberSpam, ReasonCheckWordSpam, ReasonReport, ReasonLink} {
		if r.Category() != NotifyAuto {
			t.Fatalf("reason %q must use the auto toggle", r)
		}
	}
}
