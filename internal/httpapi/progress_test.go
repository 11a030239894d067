package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-courses/internal/events"
)

type fakeHistory []events.Event

func (f fakeHistory) ListByCourse(_ context.Context, courseID string) ([]events.Event, error) {
	var out []events.Event
	for _, ev := range f {
		if ev.CourseID == courseID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func dialProgress(t *testing.T, srv *httptest.Server, user string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/courses/c1/progress"
	header := http.Header{}
	header.Set(headerTenant, "acme")
	header.Set(headerUser, user)
	return websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
}

func TestProgress_ReplaysThenStreams(t *testing.T) {
	hub := events.NewHub(8)
	history := fakeHistory{
		{CourseID: "c1", Type: events.TypeCourseCreated},
		{CourseID: "other", Type: events.TypeCourseCreated},
		{CourseID: "c1", Type: events.TypeObjectiveGenerated},
	}
	srv := httptest.NewServer(NewRouter(Config{Courses: newFakeCourses(), Progress: hub, History: history}))
	defer srv.Close()

	conn, _, err := dialProgress(t, srv, "u1")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	for _, want := range []string{events.TypeCourseCreated, events.TypeObjectiveGenerated} {
		var ev events.Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			t.Fatalf("reading history: %v", err)
		}
		if ev.Type != want || ev.CourseID != "c1" {
			t.Errorf("history event = %s/%s, want c1/%s", ev.CourseID, ev.Type, want)
		}
	}

	if err := hub.LogEvent(ctx, events.Event{CourseID: "other", Type: events.TypeLessonGenerated}); err != nil {
		t.Fatal(err)
	}
	if err := hub.LogEvent(ctx, events.Event{CourseID: "c1", Type: events.TypeOutcomeGenerated}); err != nil {
		t.Fatal(err)
	}

	var live events.Event
	if err := wsjson.Read(ctx, conn, &live); err != nil {
		t.Fatalf("reading live event: %v", err)
	}
	if live.Type != events.TypeOutcomeGenerated {
		t.Errorf("live event type = %s, want %s", live.Type, events.TypeOutcomeGenerated)
	}

	conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers("c1") != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := hub.Subscribers("c1"); n != 0 {
		t.Errorf("subscribers after close = %d, want 0", n)
	}
}

func TestProgress_SkipsLiveEventsAlreadyReplayed(t *testing.T) {
	hub := events.NewHub(8)
	history := fakeHistory{
		{ID: "e1", CourseID: "c1", Type: events.TypeCourseCreated},
		{ID: "e2", CourseID: "c1", Type: events.TypeObjectiveGenerated},
	}
	srv := httptest.NewServer(NewRouter(Config{Courses: newFakeCourses(), Progress: hub, History: history}))
	defer srv.Close()

	conn, _, err := dialProgress(t, srv, "u1")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	for _, want := range []string{"e1", "e2"} {
		var ev events.Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			t.Fatalf("reading history: %v", err)
		}
		if ev.ID != want {
			t.Errorf("history event id = %q, want %q", ev.ID, want)
		}
	}

	// e2 was logged while the history was being read and reaches the hub
	// after the replay.
	for _, ev := range []events.Event{
		{ID: "e2", CourseID: "c1", Type: events.TypeObjectiveGenerated},
		{ID: "e3", CourseID: "c1", Type: events.TypeOutcomeGenerated},
	} {
		if err := hub.LogEvent(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	var next events.Event
	if err := wsjson.Read(ctx, conn, &next); err != nil {
		t.Fatalf("reading live event: %v", err)
	}
	if next.ID != "e3" {
		t.Errorf("next event id = %q, want e3 with the replayed e2 skipped", next.ID)
	}
}

func TestProgress_HidesOtherUsersCourse(t *testing.T) {
	hub := events.NewHub(8)
	srv := httptest.NewServer(NewRouter(Config{Courses: newFakeCourses(), Progress: hub}))
	defer srv.Close()

	_, resp, err := dialProgress(t, srv, "intruder")
	if err == nil {
		t.Fatal("Dial() should fail for a course the caller does not own")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("handshake response = %v, want 404", resp)
	}
	if n := hub.Subscribers("c1"); n != 0 {
		t.Errorf("subscribers = %d, want 0", n)
	}
}
