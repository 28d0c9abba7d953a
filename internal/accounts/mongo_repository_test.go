package accounts

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func newMongoTestRepository(t *testing.T) *MongoRepository {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set, skipping mongo integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	db := client.Database("clinic_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	repo := NewMongoRepository(db)
	require.NoError(t, repo.EnsureIndexes(ctx))
	return repo
}

func TestMongoRepositoryPatients(t *testing.T) {
	repo := newMongoTestRepository(t)
	ctx := context.Background()

	p := &Patient{Name: "Asha", Email: " Asha@Example.com "}
	require.NoError(t, repo.CreatePatient(ctx, p))
	assert.NotEmpty(t, p.ID)

	err := repo.CreatePatient(ctx, &Patient{Name: "Asha 2", Email: "asha@example.com"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	got, err := repo.PatientByEmail(ctx, "ASHA@example.com")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	got.Phone = "9999999999"
	require.NoError(t, repo.UpdatePatient(ctx, got))
	reloaded, err := repo.PatientByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "9999999999", reloaded.Phone)

	_, err = repo.PatientByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrPatientNotFound)
	assert.ErrorIs(t, repo.UpdatePatient(ctx, &Patient{ID: "missing"}), ErrPatientNotFound)
}

func TestMongoRepositoryDoctors(t *testing.T) {
	repo := newMongoTestRepository(t)
	ctx := context.Background()

	older := &Doctor{Name: "Rao", Email: "rao@clinic.test", Speciality: "Dermatologist", Fees: 500, Available: true,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := &Doctor{Name: "Iyer", Email: "iyer@clinic.test", Speciality: "Neurologist", Fees: 800, Available: true,
		CreatedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, repo.CreateDoctor(ctx, older))
	require.NoError(t, repo.CreateDoctor(ctx, newer))
	assert.ErrorIs(t, repo.CreateDoctor(ctx, &Doctor{Name: "Dup", Email: "RAO@clinic.test"}), ErrEmailTaken)

	all, err := repo.ListDoctors(ctx, DoctorFilter{AvailableOnly: true})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID, "newest first")

	derm, err := repo.ListDoctors(ctx, DoctorFilter{Speciality: "dermatologist", AvailableOnly: true})
	require.NoError(t, err)
	require.Len(t, derm, 1)
	assert.Equal(t, older.ID, derm[0].ID)

	updated, err := repo.SetDoctorAvailability(ctx, older.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.Available)
	available, err := repo.ListDoctors(ctx, DoctorFilter{AvailableOnly: true})
	require.NoError(t, err)
	assert.Len(t, available, 1)

	withImage, err := repo.SetDoctorImage(ctx, newer.ID, "https://cdn.example/iyer.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/iyer.png", withImage.ImageURL)

	_, err = repo.SetDoctorAvailability(ctx, "missing", true)
	assert.ErrorIs(t, err, ErrDoctorNotFound)
	byEmail, err := repo.DoctorByEmail(ctx, "IYER@clinic.test")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, byEmail.ID)
}
