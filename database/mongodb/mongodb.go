// Package mongodb stores users and files as MongoDB documents. Ids are kept
// as canonical UUID strings so ownership checks compare the same
// representation everywhere.
package mongodb

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/noisersup/filesmanager/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userDoc struct {
	Id       string `bson:"_id"`
	Email    string `bson:"email"`
	Password string `bson:"password"`
}

type fileDoc struct {
	Id        string  `bson:"_id"`
	Seq       int64   `bson:"seq"`
	UserId    string  `bson:"userId"`
	Name      string  `bson:"name"`
	Type      string  `bson:"type"`
	ParentId  *string `bson:"parentId"`
	IsPublic  bool    `bson:"isPublic"`
	LocalPath *string `bson:"localPath"`
}

type Database struct {
	client   *mongo.Client
	users    *mongo.Collection
	files    *mongo.Collection
	counters *mongo.Collection
}

func Connect(ctx context.Context, uri, database string) (*Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	mdb := client.Database(database)
	db := &Database{
		client:   client,
		users:    mdb.Collection("users"),
		files:    mdb.Collection("files"),
		counters: mdb.Collection("counters"),
	}
	if err := db.ensureIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return db, nil
}

func (db *Database) ensureIndexes(ctx context.Context) error {
	_, err := db.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	_, err = db.files.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "parentId", Value: 1}, {Key: "seq", Value: 1}},
	})
	return err
}

func (db *Database) Close() error {
	return db.client.Disconnect(context.Background())
}

func (db *Database) Ping(ctx context.Context) error {
	return db.client.Ping(ctx, nil)
}

func (db *Database) NewUser(ctx context.Context, u *models.User) error {
	_, err := db.users.InsertOne(ctx, userDoc{Id: u.Id.String(), Email: u.Email, Password: u.PasswordHash})
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrUserExists
	}
	return err
}

func (db *Database) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return db.findUser(ctx, bson.M{"_id": id.String()})
}

func (db *Database) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.findUser(ctx, bson.M{"email": email})
}

func (db *Database) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDoc
	err := db.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(doc.Id)
	if err != nil {
		return nil, err
	}
	return &models.User{Id: id, Email: doc.Email, PasswordHash: doc.Password}, nil
}

func (db *Database) CountUsers(ctx context.Context) (int64, error) {
	return db.users.CountDocuments(ctx, bson.D{})
}

// nextSeq hands out the insertion order used by listings
func (db *Database) nextSeq(ctx context.Context) (int64, error) {
	var out struct {
		Seq int64 `bson:"seq"`
	}
	err := db.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": "files"},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&out)
	return out.Seq, err
}

func (db *Database) NewFile(ctx context.Context, f *models.File) error {
	seq, err := db.nextSeq(ctx)
	if err != nil {
		return err
	}
	doc := fileDoc{
		Id:       f.Id.String(),
		Seq:      seq,
		UserId:   f.UserId.String(),
		Name:     f.Name,
		Type:     string(f.Type),
		ParentId: parentValue(f.ParentId),
		IsPublic: f.IsPublic,
	}
	if f.LocalPath != "" {
		doc.LocalPath = &f.LocalPath
	}
	_, err = db.files.InsertOne(ctx, doc)
	return err
}

func (db *Database) GetFile(ctx context.Context, id uuid.UUID) (*models.File, error) {
	return db.findFile(ctx, bson.M{"_id": id.String()})
}

func (db *Database) GetUserFile(ctx context.Context, id, userId uuid.UUID) (*models.File, error) {
	return db.findFile(ctx, bson.M{"_id": id.String(), "userId": userId.String()})
}

func (db *Database) findFile(ctx context.Context, filter bson.M) (*models.File, error) {
	var doc fileDoc
	err := db.files.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.model()
}

func (db *Database) ListDirectory(ctx context.Context, userId uuid.UUID, parent models.ParentRef, offset, limit int) ([]models.File, error) {
	filter := bson.M{"userId": userId.String(), "parentId": parentValue(parent)}
	opts := options.Find().
		SetSort(bson.D{{Key: "seq", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cur, err := db.files.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	files := []models.File{}
	for cur.Next(ctx) {
		var doc fileDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		f, err := doc.model()
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}
	return files, cur.Err()
}

func (db *Database) SetPublic(ctx context.Context, id, userId uuid.UUID, isPublic bool) (*models.File, error) {
	var doc fileDoc
	err := db.files.FindOneAndUpdate(ctx,
		bson.M{"_id": id.String(), "userId": userId.String()},
		bson.M{"$set": bson.M{"isPublic": isPublic}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.model()
}

func (db *Database) CountFiles(ctx context.Context) (int64, error) {
	return db.files.CountDocuments(ctx, bson.D{})
}

// parentValue stores the root as null
func parentValue(p models.ParentRef) *string {
	id, ok := p.Folder()
	if !ok {
		return nil
	}
	s := id.String()
	return &s
}

func (d fileDoc) model() (*models.File, error) {
	id, err := uuid.Parse(d.Id)
	if err != nil {
		return nil, err
	}
	userId, err := uuid.Parse(d.UserId)
	if err != nil {
		return nil, err
	}
	f := &models.File{Id: id, UserId: userId, Name: d.Name, Type: models.FileType(d.Type), IsPublic: d.IsPublic}
	if d.ParentId != nil {
		parent, err := models.ParseParent(*d.ParentId)
		if err != nil {
			return nil, err
		}
		f.ParentId = parent
	}
	if d.LocalPath != nil {
		f.LocalPath = *d.LocalPath
	}
	return f, nil
}
