package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CedrosPay/txupdate/internal/config"
	"github.com/CedrosPay/txupdate/internal/transaction"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBStore implements Store using MongoDB. The transaction id is the
// document _id, so the server's unique _id index arbitrates duplicates.
type MongoDBStore struct {
	client       *mongo.Client
	transactions *mongo.Collection
}

// mongoTransaction is the document shape. Amount uses Decimal128 so values
// are not rounded through float64.
type mongoTransaction struct {
	ID        string                `bson:"_id"`
	TenantID  string                `bson:"tenant_id,omitempty"`
	PaymentID string                `bson:"razorpay_payment_id"`
	OrderID   string                `bson:"razorpay_order_id"`
	Status    string                `bson:"status"`
	Amount    *primitive.Decimal128 `bson:"amount,omitempty"`
	Currency  string                `bson:"currency"`
	UserID    string                `bson:"user_id,omitempty"`
	CourseID  string                `bson:"course_id,omitempty"`
	Email     string                `bson:"email,omitempty"`
	Phone     string                `bson:"phone,omitempty"`
	Signature string                `bson:"razorpay_signature,omitempty"`
	CreatedAt string                `bson:"created_at"`
	UpdatedAt string                `bson:"updated_at"`
}

// NewMongoDBStore creates a new MongoDB-backed store.
func NewMongoDBStore(ctx context.Context, connectionString, database, collection string) (*MongoDBStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		// Disconnect() error is not actionable here and would obscure the ping failure
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	if collection == "" {
		collection = config.DefaultTableName
	}
	store := &MongoDBStore{
		client:       client,
		transactions: client.Database(database).Collection(collection),
	}

	if err := store.createIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return store, nil
}

// createIndexes creates lookup indexes. _id is unique without an explicit index.
func (s *MongoDBStore) createIndexes(ctx context.Context) error {
	_, err := s.transactions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "razorpay_order_id", Value: 1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create transaction indexes: %w", err)
	}
	return nil
}

// CreateTransaction inserts a new document; a duplicate _id maps to ErrDuplicate.
func (s *MongoDBStore) CreateTransaction(ctx context.Context, rec transaction.Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	doc, err := toMongoTransaction(rec)
	if err != nil {
		return err
	}

	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	if _, err := s.transactions.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert transaction %s: %w", rec.TransactionID, err)
	}
	return nil
}

// GetTransaction retrieves a record by transaction id.
func (s *MongoDBStore) GetTransaction(ctx context.Context, transactionID string) (transaction.Record, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var doc mongoTransaction
	err := s.transactions.FindOne(ctx, bson.M{"_id": transactionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return transaction.Record{}, ErrNotFound
	}
	if err != nil {
		return transaction.Record{}, fmt.Errorf("find transaction %s: %w", transactionID, err)
	}
	return fromMongoTransaction(doc)
}

// Close disconnects the client.
func (s *MongoDBStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func toMongoTransaction(rec transaction.Record) (mongoTransaction, error) {
	doc := mongoTransaction{
		ID:        rec.TransactionID,
		TenantID:  rec.TenantID,
		PaymentID: rec.PaymentID,
		OrderID:   rec.OrderID,
		Status:    string(rec.Status),
		Currency:  rec.Currency,
		UserID:    rec.UserID,
		CourseID:  rec.CourseID,
		Email:     rec.Email,
		Phone:     rec.Phone,
		Signature: rec.Signature,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if rec.Amount != nil {
		dec, err := primitive.ParseDecimal128(rec.Amount.Decimal.String())
		if err != nil {
			return mongoTransaction{}, fmt.Errorf("amount %s does not fit decimal128: %w", rec.Amount.Decimal.String(), err)
		}
		doc.Amount = &dec
	}
	return doc, nil
}

func fromMongoTransaction(doc mongoTransaction) (transaction.Record, error) {
	rec := transaction.Record{
		TransactionID: doc.ID,
		TenantID:      doc.TenantID,
		PaymentID:     doc.PaymentID,
		OrderID:       doc.OrderID,
		Status:        transaction.Status(doc.Status),
		Currency:      doc.Currency,
		UserID:        doc.UserID,
		CourseID:      doc.CourseID,
		Email:         doc.Email,
		Phone:         doc.Phone,
		Signature:     doc.Signature,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
	if doc.Amount != nil {
		amount, err := transaction.ParseAmount(doc.Amount.String())
		if err != nil {
			return transaction.Record{}, fmt.Errorf("transaction %s: %w", doc.ID, err)
		}
		rec.Amount = &amount
	}
	return rec, nil
}
