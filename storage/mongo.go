package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const usersCollection = "users"

// MongoDB holds the MongoDB client and database
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

var (
	sharedMongo   *MongoDB
	sharedMongoMu sync.Mutex
)

// AcquireMongo returns the process-wide MongoDB handle, connecting on first
// use. Subsequent calls return the already-connected handle without touching
// the network, so a hot-reloading development supervisor cannot stack up
// connection pools.
func AcquireMongo(ctx context.Context, uri, dbName string, maxPoolSize uint64, logger *zap.SugaredLogger) (*MongoDB, error) {
	sharedMongoMu.Lock()
	defer sharedMongoMu.Unlock()

	if sharedMongo != nil {
		logger.Debug("Reusing existing MongoDB connection pool")
		return sharedMongo, nil
	}

	mdb, err := newMongoDB(ctx, uri, dbName, maxPoolSize, logger)
	if err != nil {
		return nil, err
	}
	sharedMongo = mdb
	return sharedMongo, nil
}

// newMongoDB dials MongoDB and verifies the connection.
func newMongoDB(ctx context.Context, uri, dbName string, maxPoolSize uint64, logger *zap.SugaredLogger) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri).SetMaxPoolSize(maxPoolSize)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Connected to MongoDB successfully")

	return &MongoDB{
		Client:   client,
		Database: client.Database(dbName),
	}, nil
}

// Close disconnects the shared handle. Only the process shutdown path calls it.
func (m *MongoDB) Close(ctx context.Context) error {
	sharedMongoMu.Lock()
	if sharedMongo == m {
		sharedMongo = nil
	}
	sharedMongoMu.Unlock()
	return m.Client.Disconnect(ctx)
}

// Ping verifies the connection is still healthy.
func (m *MongoDB) Ping(ctx context.Context) error {
	return m.Client.Ping(ctx, nil)
}

// MongoUserStore implements UserStorage on the users collection.
type MongoUserStore struct {
	collection *mongo.Collection
	logger     *zap.SugaredLogger
}

// NewMongoUserStore creates the store and ensures the unique email index, the
// database-level guarantee behind ErrDuplicateEmail.
func NewMongoUserStore(ctx context.Context, mdb *MongoDB, logger *zap.SugaredLogger) (*MongoUserStore, error) {
	coll := mdb.Database.Collection(usersCollection)

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := coll.Indexes().CreateOne(ctx, indexModel); err != nil {
		return nil, fmt.Errorf("failed to create unique email index: %w", err)
	}

	return &MongoUserStore{
		collection: coll,
		logger:     logger,
	}, nil
}

// GetUserByEmail looks up a user record by its unique email.
func (s *MongoUserStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := s.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

// CreateUser inserts a new user record. A duplicate email yields
// ErrDuplicateEmail and no record is written.
func (s *MongoUserStore) CreateUser(ctx context.Context, user *User) error {
	if err := ValidateNewUser(user); err != nil {
		return err
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	if _, err := s.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Infow("User created",
		"user_id", user.ID,
		"email", user.Email,
		"role", user.Role)
	return nil
}

// ValidateCredentials checks an email/password pair. The bcrypt comparison is
// constant-time with respect to the password; unknown email and wrong password
// both map to ErrInvalidCredentials.
func (s *MongoUserStore) ValidateCredentials(ctx context.Context, email, password string) (*User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// ListUsers returns all user records.
func (s *MongoUserStore) ListUsers(ctx context.Context) ([]*User, error) {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var users []*User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

// HashPassword hashes a plaintext password for storage.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
