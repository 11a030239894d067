// Package media finds lesson videos and course thumbnails.
package media

import (
	"context"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// Video is one search candidate.
type Video struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ChannelID    string `json:"channelId"`
	ChannelTitle string `json:"channelTitle"`
}

// URL returns the watch URL for the video.
func (v Video) URL() string {
	return "https://www.youtube.com/watch?v=" + v.ID
}

// Searcher finds candidate videos for a query. Implementations never fail:
// an unavailable backend yields an empty list.
type Searcher interface {
	Search(ctx context.Context, query string) []Video
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, query string) []Video

func (f SearcherFunc) Search(ctx context.Context, query string) []Video {
	return f(ctx, query)
}

// Score weights.
const (
	lessonWeight   = 3
	subtopicWeight = 2
	topicWeight    = 1
)

// shortFormMarkers identify non-tutorial short clips.
var shortFormMarkers = []string{"#shorts", "#short", "shorts"}

// Criteria describes what a lesson video should be about.
type Criteria struct {
	LessonTitle   string
	SubtopicTitle string
	CourseTopic   string
	// Exclude lists video IDs that must not be chosen again.
	Exclude []string
}

// IsShortForm reports whether a candidate looks like short-form content.
func IsShortForm(v Video) bool {
	fold := cases.Fold()
	title := fold.String(v.Title)
	desc := fold.String(v.Description)
	for _, m := range shortFormMarkers {
		if strings.Contains(title, m) || strings.Contains(desc, m) {
			return true
		}
	}
	return false
}

// SelectBestVideo picks the most relevant candidate. Short-form and excluded
// candidates are dropped; the rest score by case-insensitive title match
// against the lesson, subtopic and course topic. Ties keep input order, and
// when nothing scores the first surviving candidate wins. It returns false
// when no candidate survives filtering.
func SelectBestVideo(candidates []Video, c Criteria) (Video, bool) {
	fold := cases.Fold()
	lesson := fold.String(strings.TrimSpace(c.LessonTitle))
	subtopic := fold.String(strings.TrimSpace(c.SubtopicTitle))
	topic := fold.String(strings.TrimSpace(c.CourseTopic))

	var (
		best      Video
		bestScore = -1
		found     bool
	)
	for _, v := range candidates {
		if v.ID == "" || IsShortForm(v) || slices.Contains(c.Exclude, v.ID) {
			continue
		}
		title := fold.String(v.Title)

		score := 0
		if lesson != "" && strings.Contains(title, lesson) {
			score += lessonWeight
		}
		if subtopic != "" && strings.Contains(title, subtopic) {
			score += subtopicWeight
		}
		if topic != "" && strings.Contains(title, topic) {
			score += topicWeight
		}

		// Strict comparison keeps the earliest candidate on ties, and the
		// first survivor when every score is zero.
		if score > bestScore {
			best, bestScore, found = v, score, true
		}
	}
	return best, found
}
