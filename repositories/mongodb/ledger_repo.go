package mongodb

import (
	// Go Internal Packages
	"context"
	"time"

	// Local Packages
	errors "wallet-ledger/errors"
	models "wallet-ledger/models"

	// External Packages
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

type LedgerRepository struct {
	client       *mongo.Client
	database     string
	clients      string
	transactions string
}

func NewLedgerRepository(client *mongo.Client, database string) *LedgerRepository {
	return &LedgerRepository{
		client:       client,
		database:     database,
		clients:      "clients",
		transactions: "transactions",
	}
}

func (r *LedgerRepository) collection(name string) *mongo.Collection {
	return r.client.Database(r.database).Collection(name)
}

// EnsureIndexes creates the unique and lookup indexes the ledger relies on.
func (r *LedgerRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection(r.clients).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "document", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_document")},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_email")},
		{Keys: bson.D{{Key: "phone", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_phone")},
	})
	if err != nil {
		return err
	}

	_, err = r.collection(r.transactions).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_session").
				SetPartialFilterExpression(bson.M{"session_id": bson.M{"$exists": true}}),
		},
		{
			Keys: bson.D{{Key: "reference", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_reference").
				SetPartialFilterExpression(bson.M{"reference": bson.M{"$exists": true}}),
		},
		{
			Keys:    bson.D{{Key: "client_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("client_history"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("pending_expiry"),
		},
	})
	return err
}

// RunInTx runs fn in a snapshot transaction. A context that already carries a
// session joins it.
func (r *LedgerRepository) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	sess, err := r.client.StartSession()
	if err != nil {
		return errors.StoreErr("start session", err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, opts)
	return errors.StoreErr("transaction", err)
}

func (r *LedgerRepository) RunInSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.RunInTx(ctx, fn)
}

func (r *LedgerRepository) CreateClient(ctx context.Context, client *models.Client) error {
	_, err := r.collection(r.clients).InsertOne(ctx, client.Transform())
	if mongo.IsDuplicateKeyError(err) {
		return errors.ErrDuplicateKey
	}
	return errors.StoreErr("insert client", err)
}

func (r *LedgerRepository) findClient(ctx context.Context, filter bson.M) (*models.Client, error) {
	var doc models.MongoClient
	err := r.collection(r.clients).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.StoreErr("find client", err)
	}
	return doc.Model(), nil
}

func (r *LedgerRepository) FindClientByDocumentAndPhone(ctx context.Context, document, phone string) (*models.Client, error) {
	return r.findClient(ctx, bson.M{"document": document, "phone": phone})
}

func (r *LedgerRepository) FindClientByID(ctx context.Context, id string) (*models.Client, error) {
	return r.findClient(ctx, bson.M{"_id": id})
}

// guardedUpdate applies update to the client only when guard holds. When nothing
// matched it tells a missing client apart from a failed guard.
func (r *LedgerRepository) guardedUpdate(ctx context.Context, id string, guard bson.M, update bson.M, failed error) (*models.Client, error) {
	filter := bson.M{"_id": id}
	for k, v := range guard {
		filter[k] = v
	}
	update["$set"] = bson.M{"updated_at": time.Now().UTC()}

	var doc models.MongoClient
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.collection(r.clients).FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, ferr := r.FindClientByID(ctx, id); ferr != nil {
			return nil, ferr
		}
		return nil, failed
	}
	if err != nil {
		return nil, errors.StoreErr("update client", err)
	}
	return doc.Model(), nil
}

func (r *LedgerRepository) AdjustBalance(ctx context.Context, clientID string, delta decimal.Decimal) (*models.Client, error) {
	d := models.ToDecimal128(delta)
	guard := bson.M{"$expr": bson.M{"$gte": bson.A{bson.M{"$add": bson.A{"$balance", d}}, "$held"}}}
	return r.guardedUpdate(ctx, clientID, guard, bson.M{"$inc": bson.M{"balance": d}}, errors.ErrInsufficientFunds)
}

func (r *LedgerRepository) HoldFunds(ctx context.Context, clientID string, amount decimal.Decimal) (*models.Client, error) {
	d := models.ToDecimal128(amount)
	guard := bson.M{"$expr": bson.M{"$gte": bson.A{bson.M{"$subtract": bson.A{"$balance", "$held"}}, d}}}
	return r.guardedUpdate(ctx, clientID, guard, bson.M{"$inc": bson.M{"held": d}}, errors.ErrInsufficientFunds)
}

func (r *LedgerRepository) ReleaseHold(ctx context.Context, clientID string, amount decimal.Decimal) (*models.Client, error) {
	d := models.ToDecimal128(amount)
	neg := models.ToDecimal128(amount.Neg())
	return r.guardedUpdate(ctx, clientID,
		bson.M{"held": bson.M{"$gte": d}},
		bson.M{"$inc": bson.M{"held": neg}},
		errors.E(errors.Internal, "release exceeds held funds", nil),
	)
}

func (r *LedgerRepository) SettleHold(ctx context.Context, clientID string, amount decimal.Decimal) (*models.Client, error) {
	d := models.ToDecimal128(amount)
	neg := models.ToDecimal128(amount.Neg())
	return r.guardedUpdate(ctx, clientID,
		bson.M{"held": bson.M{"$gte": d}, "balance": bson.M{"$gte": d}},
		bson.M{"$inc": bson.M{"held": neg, "balance": neg}},
		errors.ErrInsufficientFunds,
	)
}

func (r *LedgerRepository) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	_, err := r.collection(r.transactions).InsertOne(ctx, tx.Transform())
	if mongo.IsDuplicateKeyError(err) {
		return errors.ErrDuplicateKey
	}
	return errors.StoreErr("insert transaction", err)
}

func (r *LedgerRepository) findTransaction(ctx context.Context, filter bson.M) (*models.Transaction, error) {
	var doc models.MongoTransaction
	err := r.collection(r.transactions).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.StoreErr("find transaction", err)
	}
	return doc.Model(), nil
}

func (r *LedgerRepository) FindTransactionBySessionAndToken(ctx context.Context, sessionID, token string, status models.TransactionStatus) (*models.Transaction, error) {
	return r.findTransaction(ctx, bson.M{"session_id": sessionID, "token": token, "status": string(status)})
}

func (r *LedgerRepository) FindTransactionBySession(ctx context.Context, sessionID string, status models.TransactionStatus) (*models.Transaction, error) {
	return r.findTransaction(ctx, bson.M{"session_id": sessionID, "status": string(status)})
}

// TransitionTransaction flips the status only if it still equals from, so two
// racing confirmations cannot both win.
func (r *LedgerRepository) TransitionTransaction(ctx context.Context, id string, from, to models.TransactionStatus, reason string, at time.Time) (*models.Transaction, error) {
	set := bson.M{"status": string(to), "completed_at": at.UTC()}
	if reason != "" {
		set["failure_reason"] = reason
	}

	var doc models.MongoTransaction
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.collection(r.transactions).FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": string(from)},
		bson.M{"$set": set},
		opts,
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.StoreErr("transition transaction", err)
	}
	return doc.Model(), nil
}

func (r *LedgerRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Transaction, error) {
	cursor, err := r.collection(r.transactions).Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.StoreErr("find transactions", err)
	}
	var docs []models.MongoTransaction
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.StoreErr("decode transactions", err)
	}

	txs := make([]*models.Transaction, 0, len(docs))
	for i := range docs {
		txs = append(txs, docs[i].Model())
	}
	return txs, nil
}

func (r *LedgerRepository) ListExpiredPayments(ctx context.Context, before time.Time, limit int) ([]*models.Transaction, error) {
	filter := bson.M{
		"type":       string(models.TypePayment),
		"status":     string(models.StatusPending),
		"expires_at": bson.M{"$lte": before.UTC()},
	}
	opts := options.Find().SetSort(bson.D{{Key: "expires_at", Value: 1}}).SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

func (r *LedgerRepository) CountTransactions(ctx context.Context, clientID string) (int64, error) {
	n, err := r.collection(r.transactions).CountDocuments(ctx, bson.M{"client_id": clientID})
	if err != nil {
		return 0, errors.StoreErr("count transactions", err)
	}
	return n, nil
}

func (r *LedgerRepository) ListTransactions(ctx context.Context, clientID string, offset, limit int64) ([]*models.Transaction, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(offset).
		SetLimit(limit)
	return r.find(ctx, bson.M{"client_id": clientID}, opts)
}
