// Package course defines the course aggregate and its persistence.
package course

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a course, template, subtopic or lesson does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write was based on a stale version.
	ErrConflict = errors.New("version conflict")
)

// Status is the learner-facing completion state.
type Status string

const (
	StatusActive    Status = "Active"
	StatusCompleted Status = "Completed"
)

// PassPercentage is the quiz score at which a course counts as completed.
const PassPercentage = 60.0

// MaxVideoChanges caps how often a learner may swap a lesson's video.
const MaxVideoChanges = 3

// VideoRef is a video assigned to a lesson.
type VideoRef struct {
	VideoID      string `json:"videoId" bson:"videoId"`
	URL          string `json:"url" bson:"url"`
	Title        string `json:"title,omitempty" bson:"title,omitempty"`
	ChannelID    string `json:"channelId,omitempty" bson:"channelId,omitempty"`
	ChannelTitle string `json:"channelTitle,omitempty" bson:"channelTitle,omitempty"`
}

// Lesson is one unit of course content.
type Lesson struct {
	ID               string     `json:"id" bson:"id"`
	Title            string     `json:"title" bson:"title"`
	TitleEnglish     string     `json:"titleEnglish,omitempty" bson:"titleEnglish,omitempty"`
	Content          string     `json:"content,omitempty" bson:"content,omitempty"`
	Video            *VideoRef  `json:"video,omitempty" bson:"video,omitempty"`
	VideoHistory     []VideoRef `json:"videoHistory" bson:"videoHistory"`
	VideoChangeCount int        `json:"videoChangeCount" bson:"videoChangeCount"`
	IsCompleted      bool       `json:"isCompleted" bson:"isCompleted"`
	Custom           bool       `json:"custom,omitempty" bson:"custom,omitempty"`
}

// HasContent reports whether long-form content has been generated.
func (l *Lesson) HasContent() bool {
	return strings.TrimSpace(l.Content) != ""
}

// HasVideo reports whether a video is assigned.
func (l *Lesson) HasVideo() bool {
	return l.Video != nil && l.Video.VideoID != ""
}

// SetVideo assigns v and records it in the history, keeping the latest
// history entry equal to the current video.
func (l *Lesson) SetVideo(v VideoRef) {
	l.Video = &v
	l.VideoHistory = append(l.VideoHistory, v)
}

// HistoryIDs returns the IDs of every video ever assigned.
func (l *Lesson) HistoryIDs() []string {
	ids := make([]string, 0, len(l.VideoHistory))
	for _, v := range l.VideoHistory {
		ids = append(ids, v.VideoID)
	}
	return ids
}

func (l Lesson) clone() Lesson {
	if l.Video != nil {
		v := *l.Video
		l.Video = &v
	}
	l.VideoHistory = slices.Clone(l.VideoHistory)
	return l
}

// Subtopic groups lessons.
type Subtopic struct {
	ID           string   `json:"id" bson:"id"`
	Title        string   `json:"title" bson:"title"`
	TitleEnglish string   `json:"titleEnglish,omitempty" bson:"titleEnglish,omitempty"`
	Lessons      []Lesson `json:"lessons" bson:"lessons"`
}

// Question is one multiple-choice quiz item.
type Question struct {
	Question      string   `json:"question" bson:"question"`
	Options       []string `json:"options" bson:"options"`
	CorrectAnswer string   `json:"correctAnswer" bson:"correctAnswer"`
}

// Course is a learner's generated course.
type Course struct {
	ID           string `json:"id" bson:"_id"`
	TenantID     string `json:"tenantId" bson:"tenantId"`
	UserID       string `json:"userId" bson:"userId"`
	TemplateID   string `json:"templateId,omitempty" bson:"templateId,omitempty"`
	Topic        string `json:"topic" bson:"topic"`
	TopicEnglish string `json:"topicEnglish,omitempty" bson:"topicEnglish,omitempty"`
	// TopicKey is the normalized topic used to find an existing course.
	TopicKey          string     `json:"-" bson:"topicKey"`
	Objectives        []string   `json:"objectives" bson:"objectives"`
	ObjectivesEnglish []string   `json:"objectivesEnglish" bson:"objectivesEnglish"`
	Outcome           string     `json:"outcome,omitempty" bson:"outcome,omitempty"`
	OutcomeEnglish    string     `json:"outcomeEnglish,omitempty" bson:"outcomeEnglish,omitempty"`
	Language          string     `json:"language" bson:"language"`
	LanguageName      string     `json:"languageName" bson:"languageName"`
	NumSubtopics      int        `json:"numSubtopics" bson:"numSubtopics"`
	Thumbnail         string     `json:"thumbnail,omitempty" bson:"thumbnail,omitempty"`
	Subtopics         []Subtopic `json:"subtopics" bson:"subtopics"`
	Quiz              []Question `json:"quiz,omitempty" bson:"quiz,omitempty"`
	Stage             Stage      `json:"stage" bson:"stage"`
	Status            Status     `json:"status" bson:"status"`
	Score             int        `json:"score" bson:"score"`
	TotalQuestions    int        `json:"totalQuestions" bson:"totalQuestions"`
	Percentage        float64    `json:"percentage" bson:"percentage"`
	CompletedAt       *time.Time `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	Version           int64      `json:"version" bson:"version"`
	CreatedAt         time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// NewID returns a fresh identifier for courses, subtopics and lessons.
func NewID() string {
	return uuid.NewString()
}

// TopicKey normalizes a topic for per-user lookup.
func TopicKey(topic string) string {
	return strings.ToLower(strings.Join(strings.Fields(topic), " "))
}

// New creates a drafted course for a learner.
func New(tenantID, userID, topic, language string, numSubtopics int) *Course {
	now := time.Now().UTC()
	return &Course{
		ID:           NewID(),
		TenantID:     tenantID,
		UserID:       userID,
		Topic:        strings.TrimSpace(topic),
		TopicKey:     TopicKey(topic),
		Language:     language,
		NumSubtopics: numSubtopics,
		Subtopics:    []Subtopic{},
		Stage:        StageDrafted,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// TopicEnglishOrTopic returns the English topic when known.
func (c *Course) TopicEnglishOrTopic() string {
	if c.TopicEnglish != "" {
		return c.TopicEnglish
	}
	return c.Topic
}

// Advance moves the course forward to stage s. It never moves backward.
func (c *Course) Advance(s Stage) {
	if s > c.Stage {
		c.Stage = s
	}
}

// Require returns an error unless the course has reached stage min.
func (c *Course) Require(min Stage) error {
	if c.Stage < min {
		return fmt.Errorf("course %s is at stage %s, needs %s", c.ID, c.Stage, min)
	}
	return nil
}

// Lesson finds a lesson by subtopic and lesson ID.
func (c *Course) Lesson(subtopicID, lessonID string) (*Subtopic, *Lesson, error) {
	for i := range c.Subtopics {
		st := &c.Subtopics[i]
		if st.ID != subtopicID {
			continue
		}
		for j := range st.Lessons {
			if st.Lessons[j].ID == lessonID {
				return st, &st.Lessons[j], nil
			}
		}
		return nil, nil, fmt.Errorf("lesson %s in subtopic %s: %w", lessonID, subtopicID, ErrNotFound)
	}
	return nil, nil, fmt.Errorf("subtopic %s: %w", subtopicID, ErrNotFound)
}

// Populated reports whether every lesson has both content and a video.
func (c *Course) Populated() bool {
	n := 0
	for _, st := range c.Subtopics {
		for _, l := range st.Lessons {
			if !l.HasContent() || !l.HasVideo() {
				return false
			}
			n++
		}
	}
	return n > 0
}

// Complete records a quiz result. At or above PassPercentage the course is
// Completed; below it stays Active.
func (c *Course) Complete(score, total int, at time.Time) {
	c.Score = score
	c.TotalQuestions = total
	c.Percentage = 0
	if total > 0 {
		c.Percentage = float64(score) * 100 / float64(total)
	}
	c.CompletedAt = &at
	if c.Percentage >= PassPercentage {
		c.Status = StatusCompleted
		c.Advance(StageCompleted)
	} else {
		c.Status = StatusActive
	}
}

// Clone returns a deep copy sharing no slices or pointers with c.
func (c *Course) Clone() *Course {
	cp := *c
	cp.Objectives = slices.Clone(c.Objectives)
	cp.ObjectivesEnglish = slices.Clone(c.ObjectivesEnglish)
	cp.Subtopics = cloneSubtopics(c.Subtopics)
	cp.Quiz = cloneQuiz(c.Quiz)
	if c.CompletedAt != nil {
		t := *c.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

func cloneSubtopics(in []Subtopic) []Subtopic {
	if in == nil {
		return nil
	}
	out := make([]Subtopic, len(in))
	for i, st := range in {
		lessons := make([]Lesson, len(st.Lessons))
		for j, l := range st.Lessons {
			lessons[j] = l.clone()
		}
		st.Lessons = lessons
		out[i] = st
	}
	return out
}

func cloneQuiz(in []Question) []Question {
	if in == nil {
		return nil
	}
	out := make([]Question, len(in))
	for i, q := range in {
		q.Options = slices.Clone(q.Options)
		out[i] = q
	}
	return out
}
