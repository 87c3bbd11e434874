package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/common"
	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/unit"
)

// UnitsCollection holds one document per unit, keyed by unit name.
const UnitsCollection = "units"

type unitDocument struct {
	Unit          string                `bson:"_id"`
	Target        *primitive.Decimal128 `bson:"target,omitempty"`
	CurrentAmount *primitive.Decimal128 `bson:"currentAmount,omitempty"`
	History       []historyDocument     `bson:"history,omitempty"`
	UpdatedAt     time.Time             `bson:"updatedAt"`
}

type historyDocument struct {
	Month  string               `bson:"month"`
	Amount primitive.Decimal128 `bson:"amount"`
}

// MongoStore keeps unit ledgers as documents.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates a store over an existing collection.
func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

// ConnectMongo dials and pings a MongoDB deployment.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return client, nil
}

// Load reads the ledger of a unit.
func (s *MongoStore) Load(ctx context.Context, unitName string) (*unit.State, error) {
	var doc unitDocument
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: unitName}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load unit document: %w", err)
	}

	state := unit.Defaults()
	if doc.Target != nil {
		if state.Target, err = fromDecimal128(*doc.Target); err != nil {
			return nil, err
		}
	}
	if doc.CurrentAmount != nil {
		if state.CurrentAmount, err = fromDecimal128(*doc.CurrentAmount); err != nil {
			return nil, err
		}
	}
	for _, h := range doc.History {
		amount, err := fromDecimal128(h.Amount)
		if err != nil {
			return nil, err
		}
		state.History = append(state.History, unit.HistoryPoint{Label: h.Month, Amount: amount})
	}
	state.UpdatedAt = doc.UpdatedAt
	return &state, nil
}

// Save applies the present fields with $set, upserting the document.
func (s *MongoStore) Save(ctx context.Context, unitName string, patch unit.Patch) error {
	if patch.IsEmpty() {
		return nil
	}

	set := bson.D{{Key: "updatedAt", Value: time.Now().UTC()}}
	if patch.Target != nil {
		v, err := toDecimal128(*patch.Target)
		if err != nil {
			return err
		}
		set = append(set, bson.E{Key: "target", Value: v})
	}
	if patch.CurrentAmount != nil {
		v, err := toDecimal128(*patch.CurrentAmount)
		if err != nil {
			return err
		}
		set = append(set, bson.E{Key: "currentAmount", Value: v})
	}
	if patch.History != nil {
		history := make([]historyDocument, 0, len(*patch.History))
		for _, h := range *patch.History {
			v, err := toDecimal128(h.Amount)
			if err != nil {
				return err
			}
			history = append(history, historyDocument{Month: h.Label, Amount: v})
		}
		set = append(set, bson.E{Key: "history", Value: history})
	}

	_, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: unitName}},
		bson.D{{Key: "$set", Value: set}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save unit document: %w", err)
	}
	return nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("failed to encode amount %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid stored amount %s: %w", v, err)
	}
	return d, nil
}
