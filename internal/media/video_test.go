package media

import "testing"

func TestIsShortForm(t *testing.T) {
	tests := []struct {
		name string
		v    Video
		want bool
	}{
		{"hashtag in title", Video{Title: "Loops in 60s #Shorts"}, true},
		{"short tag in description", Video{Title: "Loops", Description: "quick tip #short"}, true},
		{"plain word", Video{Title: "Python SHORTS compilation"}, true},
		{"tutorial", Video{Title: "Python loops full tutorial", Description: "Learn for loops"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsShortForm(tt.v); got != tt.want {
				t.Errorf("IsShortForm() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelectBestVideo(t *testing.T) {
	criteria := Criteria{
		LessonTitle:   "For Loops",
		SubtopicTitle: "Control Flow",
		CourseTopic:   "Python",
	}

	tests := []struct {
		name       string
		candidates []Video
		criteria   Criteria
		wantID     string
		wantFound  bool
	}{
		{
			name: "lesson match beats topic match",
			candidates: []Video{
				{ID: "topic", Title: "Python for beginners"},
				{ID: "lesson", Title: "for loops explained"},
			},
			criteria:  criteria,
			wantID:    "lesson",
			wantFound: true,
		},
		{
			name: "scores add up",
			candidates: []Video{
				{ID: "lesson", Title: "For Loops"},
				{ID: "all", Title: "Python Control Flow: for loops"},
			},
			criteria:  criteria,
			wantID:    "all",
			wantFound: true,
		},
		{
			name: "ties keep input order",
			candidates: []Video{
				{ID: "first", Title: "Control flow basics"},
				{ID: "second", Title: "control flow deep dive"},
			},
			criteria:  criteria,
			wantID:    "first",
			wantFound: true,
		},
		{
			name: "all zero falls back to first non-short",
			candidates: []Video{
				{ID: "short", Title: "cooking #shorts"},
				{ID: "plain", Title: "cooking pasta"},
				{ID: "other", Title: "gardening"},
			},
			criteria:  criteria,
			wantID:    "plain",
			wantFound: true,
		},
		{
			name: "best match that is short-form is never chosen",
			candidates: []Video{
				{ID: "short", Title: "Python Control Flow for loops #shorts"},
				{ID: "ok", Title: "Python intro"},
			},
			criteria:  criteria,
			wantID:    "ok",
			wantFound: true,
		},
		{
			name: "excluded ids are skipped",
			candidates: []Video{
				{ID: "seen", Title: "For loops"},
				{ID: "fresh", Title: "Python for loops"},
			},
			criteria: Criteria{
				LessonTitle: "For Loops",
				CourseTopic: "Python",
				Exclude:     []string{"seen"},
			},
			wantID:    "fresh",
			wantFound: true,
		},
		{
			name:       "only shorts",
			candidates: []Video{{ID: "a", Title: "#short clip"}, {ID: "b", Description: "shorts"}},
			criteria:   criteria,
			wantFound:  false,
		},
		{
			name:      "no candidates",
			criteria:  criteria,
			wantFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := SelectBestVideo(tt.candidates, tt.criteria)
			if found != tt.wantFound {
				t.Fatalf("found = %v, want %v", found, tt.wantFound)
			}
			if found && got.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", got.ID, tt.wantID)
			}
			if found && IsShortForm(got) {
				t.Errorf("selected short-form video %q", got.ID)
			}
		})
	}
}

func TestVideo_URL(t *testing.T) {
	if got := (Video{ID: "abc"}).URL(); got != "https://www.youtube.com/watch?v=abc" {
		t.Errorf("URL() = %q", got)
	}
}
