package course

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	coursesCollection   = "courses"
	templatesCollection = "templates"
)

// MongoStore persists courses as one document each, with subtopics and
// lessons as nested arrays.
type MongoStore struct {
	courses   *mongo.Collection
	templates *mongo.Collection
}

// NewMongoStore creates a store over the given database.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		courses:   db.Collection(coursesCollection),
		templates: db.Collection(templatesCollection),
	}
}

// EnsureIndexes creates the lookup indexes. Safe to call on every start.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.courses.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "userId", Value: 1}, {Key: "topicKey", Value: 1}}},
		{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "userId", Value: 1}, {Key: "templateId", Value: 1}},
			Options: options.Index().SetPartialFilterExpression(bson.M{"templateId": bson.M{"$exists": true}}),
		},
	})
	if err != nil {
		return fmt.Errorf("create course indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Create(ctx context.Context, c *Course) error {
	if c.ID == "" {
		c.ID = NewID()
	}
	if c.TopicKey == "" {
		c.TopicKey = TopicKey(c.Topic)
	}
	if _, err := s.courses.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("course %s already exists: %w", c.ID, ErrConflict)
		}
		return fmt.Errorf("insert course: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Course, error) {
	return s.findOne(ctx, bson.M{"_id": id}, "course "+id)
}

func (s *MongoStore) FindByTopic(ctx context.Context, tenantID, userID, topic string) (*Course, error) {
	what := fmt.Sprintf("course for topic %q", topic)
	filter := bson.M{"tenantId": tenantID, "userId": userID, "topicKey": TopicKey(topic)}

	// templateId is omitted when empty, so a null match finds the learner's
	// own courses.
	own := bson.M{"templateId": nil}
	for k, v := range filter {
		own[k] = v
	}
	c, err := s.findOne(ctx, own, what, oldestFirst)
	if !errors.Is(err, ErrNotFound) {
		return c, err
	}
	return s.findOne(ctx, filter, what, oldestFirst)
}

func (s *MongoStore) FindByTemplate(ctx context.Context, tenantID, userID, templateID string) (*Course, error) {
	what := "course from template " + templateID
	if templateID == "" {
		return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	filter := bson.M{"tenantId": tenantID, "userId": userID, "templateId": templateID}
	return s.findOne(ctx, filter, what, oldestFirst)
}

var oldestFirst = bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M, what string, sort ...bson.D) (*Course, error) {
	opts := options.FindOne()
	if len(sort) > 0 {
		opts.SetSort(sort[0])
	}
	var c Course
	err := s.courses.FindOne(ctx, filter, opts).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", what, err)
	}
	return &c, nil
}

func (s *MongoStore) ListByUser(ctx context.Context, tenantID, userID string) ([]*Course, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetProjection(bson.M{"subtopics": 0, "quiz": 0})
	cur, err := s.courses.Find(ctx, bson.M{"tenantId": tenantID, "userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []*Course
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode courses: %w", err)
	}
	return out, nil
}

func (s *MongoStore) Update(ctx context.Context, c *Course) error {
	prev := c.Version
	c.Version++
	c.UpdatedAt = time.Now().UTC()

	res, err := s.courses.ReplaceOne(ctx, bson.M{"_id": c.ID, "version": prev}, c)
	if err != nil {
		c.Version = prev
		return fmt.Errorf("replace course: %w", err)
	}
	if res.MatchedCount == 0 {
		c.Version = prev
		return s.missOrConflict(ctx, c.ID)
	}
	return nil
}

func (s *MongoStore) missOrConflict(ctx context.Context, id string) error {
	n, err := s.courses.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("check course %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("course %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("course %s: %w", id, ErrConflict)
}

// UpdateLesson sets one lesson through array filters so concurrent writes to
// other lessons of the same course are not lost.
func (s *MongoStore) UpdateLesson(ctx context.Context, courseID, subtopicID string, lesson Lesson) error {
	filter := bson.M{
		"_id": courseID,
		"subtopics": bson.M{"$elemMatch": bson.M{
			"id":         subtopicID,
			"lessons.id": lesson.ID,
		}},
	}
	update := bson.M{
		"$set": bson.M{
			"subtopics.$[s].lessons.$[l]": lesson,
			"updatedAt":                   time.Now().UTC(),
		},
		"$inc": bson.M{"version": 1},
	}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"s.id": subtopicID},
			bson.M{"l.id": lesson.ID},
		},
	})

	res, err := s.courses.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("lesson %s in course %s: %w", lesson.ID, courseID, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) CreateTemplate(ctx context.Context, t *Template) error {
	if t.ID == "" {
		t.ID = NewID()
	}
	if _, err := s.templates.InsertOne(ctx, t); err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (s *MongoStore) GetTemplate(ctx context.Context, id string) (*Template, error) {
	var t Template
	err := s.templates.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find template: %w", err)
	}
	return &t, nil
}
