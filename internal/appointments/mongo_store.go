package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type slotDocument struct {
	DoctorID      string `bson:"doctor_id"`
	SlotDate      string `bson:"slot_date"`
	SlotTime      string `bson:"slot_time"`
	AppointmentID string `bson:"appointment_id"`
}

// MongoStore keeps appointments and the booked_slots ledger as two collections.
// Create and Cancel run inside a session transaction, so the deployment must be
// a replica set.
type MongoStore struct {
	client       *mongo.Client
	appointments *mongo.Collection
	slots        *mongo.Collection
	now          func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	if db == nil {
		panic("appointments: mongo database required")
	}
	return &MongoStore{
		client:       db.Client(),
		appointments: db.Collection("appointments"),
		slots:        db.Collection("booked_slots"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the unique ledger index and the list indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.slots.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "doctor_id", Value: 1}, {Key: "slot_date", Value: 1}, {Key: "slot_time", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("appointments: slot index: %w", err)
	}
	_, err = s.appointments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "doctor_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "patient_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("appointments: list indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) withTransaction(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	session, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("appointments: start session: %w", err)
	}
	defer session.EndSession(ctx)
	return session.WithTransaction(ctx, fn)
}

func (s *MongoStore) Create(ctx context.Context, a *Appointment) error {
	prepareNew(a, s.now())

	_, err := s.withTransaction(ctx, func(ctx context.Context) (any, error) {
		slot := slotDocument{DoctorID: a.DoctorID, SlotDate: a.SlotDate, SlotTime: a.SlotTime, AppointmentID: a.ID}
		if _, err := s.slots.InsertOne(ctx, slot); err != nil {
			return nil, err
		}
		if _, err := s.appointments.InsertOne(ctx, a); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("appointments: create: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Appointment, error) {
	var a Appointment
	if err := s.appointments.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: find: %w", err)
	}
	return &a, nil
}

func (s *MongoStore) Cancel(ctx context.Context, id string) (bool, error) {
	result, err := s.withTransaction(ctx, func(ctx context.Context) (any, error) {
		var a Appointment
		err := s.appointments.FindOneAndUpdate(ctx,
			bson.M{"_id": id, "status": bson.M{"$ne": StatusCancelled}},
			bson.M{"$set": bson.M{"status": StatusCancelled, "updated_at": s.now()}},
		).Decode(&a)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		if err != nil {
			return nil, err
		}
		_, err = s.slots.DeleteOne(ctx, bson.M{
			"doctor_id":      a.DoctorID,
			"slot_date":      a.SlotDate,
			"slot_time":      a.SlotTime,
			"appointment_id": a.ID,
		})
		if err != nil {
			return nil, err
		}
		return true, nil
	})
	if err != nil {
		return false, fmt.Errorf("appointments: cancel: %w", err)
	}
	if changed, _ := result.(bool); changed {
		return true, nil
	}
	return false, s.exists(ctx, id)
}

func (s *MongoStore) Complete(ctx context.Context, id string) (bool, error) {
	return s.conditionalSet(ctx, id,
		bson.M{"is_completed": false, "payment_status": PaymentPaid, "status": bson.M{"$ne": StatusCancelled}},
		bson.M{"is_completed": true},
	)
}

func (s *MongoStore) MarkPaid(ctx context.Context, id string) (bool, error) {
	return s.conditionalSet(ctx, id,
		bson.M{"payment_status": bson.M{"$ne": PaymentPaid}},
		bson.M{"payment_status": PaymentPaid},
	)
}

func (s *MongoStore) conditionalSet(ctx context.Context, id string, cond, set bson.M) (bool, error) {
	cond["_id"] = id
	set["updated_at"] = s.now()
	res, err := s.appointments.UpdateOne(ctx, cond, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("appointments: update: %w", err)
	}
	if res.ModifiedCount == 1 {
		return true, nil
	}
	return false, s.exists(ctx, id)
}

func (s *MongoStore) exists(ctx context.Context, id string) error {
	n, err := s.appointments.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("appointments: check exists: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListByDoctor(ctx context.Context, doctorID string) ([]*Appointment, error) {
	return s.list(ctx, bson.M{"doctor_id": doctorID})
}

func (s *MongoStore) ListByPatient(ctx context.Context, patientID string) ([]*Appointment, error) {
	return s.list(ctx, bson.M{"patient_id": patientID})
}

func (s *MongoStore) ListAll(ctx context.Context) ([]*Appointment, error) {
	return s.list(ctx, bson.M{})
}

func (s *MongoStore) list(ctx context.Context, filter bson.M) ([]*Appointment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.appointments.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("appointments: find: %w", err)
	}
	out := make([]*Appointment, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("appointments: decode: %w", err)
	}
	return out, nil
}

func (s *MongoStore) BookedSlots(ctx context.Context, doctorID string) (map[string][]string, error) {
	cursor, err := s.slots.Find(ctx, bson.M{"doctor_id": doctorID})
	if err != nil {
		return nil, fmt.Errorf("appointments: find slots: %w", err)
	}
	var docs []slotDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("appointments: decode slots: %w", err)
	}
	out := map[string][]string{}
	for _, d := range docs {
		out[d.SlotDate] = append(out[d.SlotDate], d.SlotTime)
	}
	for date := range out {
		sortTimes(out[date])
	}
	return out, nil
}
