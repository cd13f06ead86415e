package main

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"yayd/internal/api"
)

func typeText(m promptModel, text string) promptModel {
	for _, r := range text {
		model, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = model.(promptModel)
	}
	return m
}

func press(m promptModel, key tea.KeyType) promptModel {
	model, _ := m.Update(tea.KeyMsg{Type: key})
	return model.(promptModel)
}

func TestPromptRequiresURL(t *testing.T) {
	m := press(newPromptModel(), tea.KeyEnter)
	if m.err != "URL is required" {
		t.Fatalf("expected URL error, got %q", m.err)
	}
	if m.field != promptFieldURL {
		t.Fatalf("expected focus to stay on URL, got %d", m.field)
	}

	model, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if model.(promptModel).submitted {
		t.Fatal("expected ctrl+s without URL to be rejected")
	}
}

func TestPromptCollectsRequest(t *testing.T) {
	m := typeText(newPromptModel(), "https://example.com/v")
	m = press(m, tea.KeyEnter)
	if m.field != promptFieldQuality {
		t.Fatalf("expected quality field, got %d", m.field)
	}
	m = press(m, tea.KeyRight)
	m = press(m, tea.KeyRight)
	m = press(m, tea.KeyEnter)

	m = typeText(m, "y")
	if !m.audioOnly {
		t.Fatal("expected audio-only after 'y'")
	}
	m = press(m, tea.KeyEnter)
	m = typeText(m, "n")

	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = model.(promptModel)
	if !m.submitted || cmd == nil {
		t.Fatal("expected enter on the last field to submit and quit")
	}

	req := m.Request()
	if req.URL != "https://example.com/v" {
		t.Fatalf("unexpected URL %q", req.URL)
	}
	if req.Quality != "720" {
		t.Fatalf("expected quality 720, got %q", req.Quality)
	}
	if !req.AudioOnly || req.Verbose {
		t.Fatalf("unexpected toggles: %+v", req)
	}
}

func TestPromptQualityWrapsAndTabCycles(t *testing.T) {
	m := typeText(newPromptModel(), "x")
	m = press(m, tea.KeyTab)
	m = press(m, tea.KeyLeft)
	if got := qualityChoices[m.quality]; got != "480" {
		t.Fatalf("expected left from best to wrap to 480, got %q", got)
	}
	m = press(m, tea.KeyShiftTab)
	m = press(m, tea.KeyShiftTab)
	if m.field != promptFieldVerbose {
		t.Fatalf("expected shift+tab from URL to wrap to verbose, got %d", m.field)
	}
	m = press(m, tea.KeySpace)
	if !m.verbose {
		t.Fatal("expected space to toggle verbose")
	}
}

func TestPromptEscAborts(t *testing.T) {
	model, cmd := newPromptModel().Update(tea.KeyMsg{Type: tea.KeyEsc})
	m := model.(promptModel)
	if !m.aborted || m.submitted || cmd == nil {
		t.Fatalf("expected abort, got aborted=%v submitted=%v", m.aborted, m.submitted)
	}
}

func TestDownloadModelLifecycle(t *testing.T) {
	cancels := 0
	m := newDownloadModel(func() { cancels++ })

	model, _ := m.Update(jobUpdateMsg(api.JobStatus{ID: "abc", State: "running", Progress: 42, Status: "Downloading", Title: "clip"}))
	m = model.(downloadModel)
	view := m.View()
	if !strings.Contains(view, "clip") || !strings.Contains(view, "Downloading") {
		t.Fatalf("unexpected view %q", view)
	}

	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = model.(downloadModel)
	if cancels != 1 {
		t.Fatalf("expected cancel to run once, ran %d times", cancels)
	}
	if !strings.Contains(m.View(), "Cancelling...") {
		t.Fatal("expected cancelling notice")
	}

	model, cmd := m.Update(jobDoneMsg{job: api.JobStatus{ID: "abc", State: "cancelled"}})
	m = model.(downloadModel)
	if !m.done || cmd == nil {
		t.Fatal("expected done message to quit")
	}
	if !strings.Contains(m.View(), "Download cancelled") {
		t.Fatalf("unexpected final view %q", m.View())
	}

	model, _ = m.Update(jobDoneMsg{err: errors.New("boom")})
	if !strings.Contains(model.(downloadModel).View(), "Error: boom") {
		t.Fatal("expected error summary")
	}
}

func TestDownloadModelShowsItemPrefixOnce(t *testing.T) {
	m := newDownloadModel(func() {})
	model, _ := m.Update(jobUpdateMsg(api.JobStatus{
		ID:         "abc",
		State:      "running",
		Title:      "Mix",
		Collection: true,
		ItemIndex:  2,
		ItemCount:  3,
		Status:     "[2/3] Downloading: 50.0%",
	}))
	view := model.(downloadModel).View()
	if got := strings.Count(view, "[2/3]"); got != 1 {
		t.Fatalf("expected the item prefix once, found %d in %q", got, view)
	}
}
