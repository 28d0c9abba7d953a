package accounts

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoRepository stores patients and doctors as documents.
type MongoRepository struct {
	patients *mongo.Collection
	doctors  *mongo.Collection
}

// NewMongoRepository binds the repository to the patients and doctors collections of db.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	if db == nil {
		panic("accounts: mongo database required")
	}
	return &MongoRepository{
		patients: db.Collection("patients"),
		doctors:  db.Collection("doctors"),
	}
}

// EnsureIndexes creates the unique email indexes.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	unique := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := r.patients.Indexes().CreateOne(ctx, unique); err != nil {
		return fmt.Errorf("accounts: patient email index: %w", err)
	}
	if _, err := r.doctors.Indexes().CreateOne(ctx, unique); err != nil {
		return fmt.Errorf("accounts: doctor email index: %w", err)
	}
	return nil
}

func (r *MongoRepository) CreatePatient(ctx context.Context, p *Patient) error {
	prepareNew(&p.ID, &p.Email, &p.CreatedAt)
	if _, err := r.patients.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("accounts: insert patient: %w", err)
	}
	return nil
}

func (r *MongoRepository) PatientByID(ctx context.Context, id string) (*Patient, error) {
	return r.findPatient(ctx, bson.M{"_id": id})
}

func (r *MongoRepository) PatientByEmail(ctx context.Context, email string) (*Patient, error) {
	return r.findPatient(ctx, bson.M{"email": NormalizeEmail(email)})
}

func (r *MongoRepository) findPatient(ctx context.Context, filter bson.M) (*Patient, error) {
	var p Patient
	if err := r.patients.FindOne(ctx, filter).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("accounts: find patient: %w", err)
	}
	return &p, nil
}

func (r *MongoRepository) UpdatePatient(ctx context.Context, p *Patient) error {
	update := bson.M{"$set": bson.M{
		"name":    p.Name,
		"phone":   p.Phone,
		"gender":  p.Gender,
		"dob":     p.DateOfBirth,
		"address": p.Address,
		"image":   p.ImageURL,
	}}
	res, err := r.patients.UpdateOne(ctx, bson.M{"_id": p.ID}, update)
	if err != nil {
		return fmt.Errorf("accounts: update patient: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *MongoRepository) CreateDoctor(ctx context.Context, d *Doctor) error {
	prepareNew(&d.ID, &d.Email, &d.CreatedAt)
	if _, err := r.doctors.InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("accounts: insert doctor: %w", err)
	}
	return nil
}

func (r *MongoRepository) DoctorByID(ctx context.Context, id string) (*Doctor, error) {
	return r.findDoctor(ctx, bson.M{"_id": id})
}

func (r *MongoRepository) DoctorByEmail(ctx context.Context, email string) (*Doctor, error) {
	return r.findDoctor(ctx, bson.M{"email": NormalizeEmail(email)})
}

func (r *MongoRepository) findDoctor(ctx context.Context, filter bson.M) (*Doctor, error) {
	var d Doctor
	if err := r.doctors.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("accounts: find doctor: %w", err)
	}
	return &d, nil
}

// ListDoctors returns matching doctors, newest first.
func (r *MongoRepository) ListDoctors(ctx context.Context, filter DoctorFilter) ([]*Doctor, error) {
	query := bson.M{}
	if filter.AvailableOnly {
		query["available"] = true
	}
	if filter.Speciality != "" {
		query["speciality"] = bson.M{"$regex": "^" + regexp.QuoteMeta(filter.Speciality) + "$", "$options": "i"}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.doctors.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("accounts: list doctors: %w", err)
	}
	var out []*Doctor
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("accounts: decode doctors: %w", err)
	}
	return out, nil
}

func (r *MongoRepository) SetDoctorAvailability(ctx context.Context, id string, available bool) (*Doctor, error) {
	return r.updateDoctor(ctx, id, bson.M{"available": available})
}

func (r *MongoRepository) SetDoctorImage(ctx context.Context, id, imageURL string) (*Doctor, error) {
	return r.updateDoctor(ctx, id, bson.M{"image": imageURL})
}

func (r *MongoRepository) updateDoctor(ctx context.Context, id string, set bson.M) (*Doctor, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var d Doctor
	err := r.doctors.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("accounts: update doctor: %w", err)
	}
	return &d, nil
}
