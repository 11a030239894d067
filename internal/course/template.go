package course

import (
	"slices"
	"time"
)

// Template is a pre-generated catalog course. Learners start from a copy.
type Template struct {
	ID                string     `json:"id" bson:"_id"`
	Topic             string     `json:"topic" bson:"topic"`
	TopicEnglish      string     `json:"topicEnglish,omitempty" bson:"topicEnglish,omitempty"`
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
	CreatedAt         time.Time  `json:"createdAt" bson:"createdAt"`
}

// TemplateFrom captures a fully generated course as a template. Learner
// state is dropped and nothing is shared with c.
func TemplateFrom(c *Course) *Template {
	subtopics := cloneSubtopics(c.Subtopics)
	for i := range subtopics {
		for j := range subtopics[i].Lessons {
			subtopics[i].Lessons[j].IsCompleted = false
			subtopics[i].Lessons[j].VideoChangeCount = 0
		}
	}
	return &Template{
		ID:                NewID(),
		Topic:             c.Topic,
		TopicEnglish:      c.TopicEnglish,
		Objectives:        slices.Clone(c.Objectives),
		ObjectivesEnglish: slices.Clone(c.ObjectivesEnglish),
		Outcome:           c.Outcome,
		OutcomeEnglish:    c.OutcomeEnglish,
		Language:          c.Language,
		LanguageName:      c.LanguageName,
		NumSubtopics:      c.NumSubtopics,
		Thumbnail:         c.Thumbnail,
		Subtopics:         subtopics,
		Quiz:              cloneQuiz(c.Quiz),
		CreatedAt:         time.Now().UTC(),
	}
}

// Clone produces a new learner course from the template. The result owns all
// of its slices, so edits to it never reach the template.
func (t *Template) Clone(tenantID, userID string) *Course {
	c := New(tenantID, userID, t.Topic, t.Language, t.NumSubtopics)
	c.TemplateID = t.ID
	c.TopicEnglish = t.TopicEnglish
	c.Objectives = slices.Clone(t.Objectives)
	c.ObjectivesEnglish = slices.Clone(t.ObjectivesEnglish)
	c.Outcome = t.Outcome
	c.OutcomeEnglish = t.OutcomeEnglish
	c.LanguageName = t.LanguageName
	c.Thumbnail = t.Thumbnail
	c.Subtopics = cloneSubtopics(t.Subtopics)
	c.Quiz = cloneQuiz(t.Quiz)

	c.Stage = StageIndexSet
	if c.Populated() {
		c.Stage = StageContentPopulated
	}
	if len(c.Quiz) > 0 {
		c.Stage = StageQuizzed
	}
	return c
}

func (t *Template) copy() *Template {
	cp := *t
	cp.Objectives = slices.Clone(t.Objectives)
	cp.ObjectivesEnglish = slices.Clone(t.ObjectivesEnglish)
	cp.Subtopics = cloneSubtopics(t.Subtopics)
	cp.Quiz = cloneQuiz(t.Quiz)
	return &cp
}
