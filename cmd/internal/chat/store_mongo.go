package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoUsersCollection    = "users"
	mongoMessagesCollection = "messages"
)

// MongoStore implements MessageStore and UserStore over MongoDB.
//
// Ownership model mirrors PostgresStore: the mongo client is owned by the
// caller, Close() is a no-op.
type MongoStore struct {
	db *mongo.Database
}

// NewMongoStore constructs a Mongo-backed store and ensures the username
// uniqueness index exists.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	if db == nil {
		return nil, errors.New("chat: nil mongo database")
	}

	_, err := db.Collection(mongoUsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("ensure username index: %w", err)
	}

	return &MongoStore{db: db}, nil
}

// Close is a no-op because the client is owned by the caller.
func (s *MongoStore) Close() error { return nil }

// Append inserts a message document and returns the stored message.
func (s *MongoStore) Append(ctx context.Context, in AppendInput) (Message, error) {
	if s == nil || s.db == nil {
		return Message{}, errors.New("chat: nil store")
	}
	if in.SenderID == "" || in.ReceiverID == "" {
		return Message{}, errors.New("invalid input")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := NewMessageID(now)
	if err != nil {
		return Message{}, err
	}

	msg := Message{
		ID:         id,
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Text:       in.Text,
		ImageURL:   in.ImageURL,
		CreatedAt:  now,
	}

	if _, err := s.db.Collection(mongoMessagesCollection).InsertOne(ctx, msg); err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// Conversation returns both directions between two users, oldest first.
func (s *MongoStore) Conversation(ctx context.Context, userA, userB string) ([]Message, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("chat: nil store")
	}
	if userA == "" || userB == "" {
		return nil, errors.New("invalid input")
	}

	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": userA, "receiver_id": userB},
		bson.M{"sender_id": userB, "receiver_id": userA},
	}}

	cur, err := s.db.Collection(mongoMessagesCollection).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts a user, mapping duplicate-key to ErrUsernameTaken.
func (s *MongoStore) Create(ctx context.Context, in CreateUserInput) (User, error) {
	if s == nil || s.db == nil {
		return User{}, errors.New("chat: nil store")
	}
	username := strings.TrimSpace(in.Username)
	if username == "" || in.PasswordHash == "" {
		return User{}, errors.New("invalid input")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := NewUserID(now)
	if err != nil {
		return User{}, err
	}

	u := User{
		ID:           id,
		Username:     username,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		PasswordHash: in.PasswordHash,
		CreatedAt:    now,
	}

	if _, err := s.db.Collection(mongoUsersCollection).InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return User{}, ErrUsernameTaken
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// ByID looks up a user by id.
func (s *MongoStore) ByID(ctx context.Context, id string) (User, error) {
	return s.userWhere(ctx, bson.M{"_id": id})
}

// ByUsername looks up a user by username.
func (s *MongoStore) ByUsername(ctx context.Context, username string) (User, error) {
	return s.userWhere(ctx, bson.M{"username": strings.TrimSpace(username)})
}

func (s *MongoStore) userWhere(ctx context.Context, filter bson.M) (User, error) {
	if s == nil || s.db == nil {
		return User{}, errors.New("chat: nil store")
	}

	var u User
	err := s.db.Collection(mongoUsersCollection).FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// ListOthers returns every user except excludeID, ordered by username.
func (s *MongoStore) ListOthers(ctx context.Context, excludeID string) ([]User, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("chat: nil store")
	}

	cur, err := s.db.Collection(mongoUsersCollection).Find(ctx,
		bson.M{"_id": bson.M{"$ne": excludeID}},
		options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
