package audit

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/duesjobs/duesjobs/internal/model"
)

func auditJob(hash, title string, posted time.Time, remote bool) model.Job {
	return model.Job{
		CanonicalHash: hash,
		Title:         title,
		Company:       "Acme",
		IsRemote:      remote,
		ApplyURL:      "https://example.com/" + hash,
		PostedAt:      posted,
		Description:   "Build things in Go.",
	}
}

func sizedModel(t *testing.T) auditModel {
	t.Helper()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	all := []model.Job{
		auditJob("a", "Older", now.Add(-2*time.Hour), false),
		auditJob("b", "Newest", now, true),
		auditJob("c", "Middle", now.Add(-time.Hour), false),
	}
	matched := []model.Job{all[1]}
	m := newAuditModel(all, matched, "keywords: go")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(auditModel)
}

func press(m auditModel, key string) auditModel {
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next.(auditModel)
}

func TestNewAuditModel_SortsNewestFirst(t *testing.T) {
	m := sizedModel(t)
	got := []string{m.allJobs[0].Title, m.allJobs[1].Title, m.allJobs[2].Title}
	want := []string{"Newest", "Middle", "Older"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestCursorClampsToList(t *testing.T) {
	m := sizedModel(t)
	for i := 0; i < 5; i++ {
		m = press(m, "j")
	}
	if m.leftCursor != 2 {
		t.Errorf("leftCursor = %d, want 2", m.leftCursor)
	}
	m = press(m, "tab")
	m = press(m, "j")
	if m.activePane != 1 || m.rightCursor != 0 {
		t.Errorf("pane = %d, rightCursor = %d", m.activePane, m.rightCursor)
	}
}

func TestDetailView_MarksMatchState(t *testing.T) {
	m := sizedModel(t)

	m = press(m, "enter")
	if m.view != viewDetail || m.detailJob.Title != "Newest" || !m.detailMatched {
		t.Fatalf("detail = %+v matched=%v", m.detailJob.Title, m.detailMatched)
	}
	if !strings.Contains(m.renderDetail(), "matched") {
		t.Error("detail should say the job matched")
	}

	m = press(m, "r")
	if !m.showDescription || !strings.Contains(m.renderDetail(), "Build things in Go.") {
		t.Error("r should reveal the description")
	}

	m = press(m, "esc")
	m = press(m, "j")
	m = press(m, "enter")
	if m.detailMatched || !strings.Contains(m.renderDetail(), "filtered out") {
		t.Errorf("%q should be filtered out", m.detailJob.Title)
	}
}

func TestListView_EscGoesBack(t *testing.T) {
	m := press(sizedModel(t), "esc")
	if m.wantQuit {
		t.Error("esc should return to the picker, not quit")
	}
	m = press(sizedModel(t), "q")
	if !m.wantQuit {
		t.Error("q should quit")
	}
}

func TestDisplayLocation(t *testing.T) {
	berlin := "Berlin"
	remote := "Remote - EU"
	tests := []struct {
		job  model.Job
		want string
	}{
		{model.Job{IsRemote: true}, "Remote"},
		{model.Job{Location: &berlin}, "Berlin"},
		{model.Job{Location: &berlin, IsRemote: true}, "Berlin (remote)"},
		{model.Job{Location: &remote, IsRemote: true}, "Remote - EU"},
	}
	for _, tt := range tests {
		if got := displayLocation(tt.job); got != tt.want {
			t.Errorf("displayLocation(%+v) = %q, want %q", tt.job, got, tt.want)
		}
	}
}

func TestProfileSummary(t *testing.T) {
	if got := ProfileSummary(nil); !strings.Contains(got, "no profile") {
		t.Errorf("nil profile = %q", got)
	}
	p := &model.UserPreferences{Keywords: []string{"go", "rust"}, RemoteOnly: true}
	got := ProfileSummary(p)
	for _, want := range []string{"keywords: go, rust", "locations: any", "remote only"} {
		if !strings.Contains(got, want) {
			t.Errorf("ProfileSummary = %q, missing %q", got, want)
		}
	}
}

func TestWordWrap(t *testing.T) {
	got := wordWrap("one two three four", 9)
	if got != "one two\nthree\nfour" {
		t.Errorf("wordWrap = %q", got)
	}
}

func TestPicker(t *testing.T) {
	m := pickerModel{title: "Pick", items: []string{"a", "b"}, chosen: -1}
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if got := next.(pickerModel).chosen; got != 1 {
		t.Errorf("chosen = %d, want 1", got)
	}
	if !strings.Contains(m.View(), "> a") {
		t.Errorf("View = %q", m.View())
	}
}
