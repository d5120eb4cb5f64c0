//go:build integration

package mariadb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
)

func setupTestContainer(t *testing.T) (*Store, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mariadb:11",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MARIADB_ROOT_PASSWORD": "root",
			"MARIADB_USER":          "test",
			"MARIADB_PASSWORD":      "test",
			"MARIADB_DATABASE":      "testdb",
		},
		WaitingFor: wait.ForLog("ready for connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		URL:          fmt.Sprintf("mariadb://test:test@%s:%s/testdb", host, port.Port()),
		MaxOpenConns: 10,
		MaxIdleConns: 2,
	}

	store, err := database.Open(ctx, cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to open store: %v", err)
	}

	cleanup := func() {
		store.Close()
		container.Terminate(ctx)
	}

	return store.(*Store), cleanup
}

func unitVector(hot int) []float32 {
	v := make([]float32, 512)
	v[hot] = 1
	return v
}

func TestStore(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	if store == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	salary := 52000.0

	t.Run("Migrations", func(t *testing.T) {
		versions, err := store.pool.MigrationsApplied(ctx)
		if err != nil {
			t.Fatalf("Failed to list migrations: %v", err)
		}
		if len(versions) == 0 || versions[0] != "001_initial.sql" {
			t.Errorf("Expected 001_initial.sql applied, got %v", versions)
		}
	})

	t.Run("SeededSettings", func(t *testing.T) {
		s, err := store.GetOfficeSettings(ctx)
		if err != nil {
			t.Fatalf("Failed to get settings: %v", err)
		}
		if s == nil || s.OnTimeLimit != "09:30:00" || s.StartTime != "09:00:00" || s.EndTime != "18:00:00" {
			t.Errorf("Expected seeded settings, got %+v", s)
		}
	})

	t.Run("CreateAndGet", func(t *testing.T) {
		emp := &database.Employee{ID: "E001", Name: "Jan Novák", Email: "jan@example.com", Salary: &salary}
		if err := store.CreateIdentity(ctx, emp, unitVector(0), []byte("photo")); err != nil {
			t.Fatalf("Failed to create employee: %v", err)
		}

		got, err := store.GetIdentity(ctx, "E001")
		if err != nil || got == nil {
			t.Fatalf("Expected employee, got %v (%v)", got, err)
		}
		if got.Name != "Jan Novák" || got.Salary == nil || *got.Salary != salary {
			t.Errorf("Unexpected employee %+v", got)
		}

		byName, err := store.FindIdentityByName(ctx, "jan_novak")
		if err != nil || byName == nil || byName.ID != "E001" {
			t.Errorf("Expected lookup by normalized name, got %v (%v)", byName, err)
		}

		photo, _ := store.GetPhoto(ctx, "E001")
		if string(photo) != "photo" {
			t.Errorf("Expected stored photo, got %q", photo)
		}

		missing, err := store.GetIdentity(ctx, "E999")
		if err != nil || missing != nil {
			t.Errorf("Expected nil for missing employee, got %v (%v)", missing, err)
		}
	})

	t.Run("DuplicateID", func(t *testing.T) {
		err := store.CreateIdentity(ctx, &database.Employee{ID: "E001", Name: "Other"}, unitVector(1), nil)
		if !errors.Is(err, database.ErrDuplicateID) {
			t.Errorf("Expected ErrDuplicateID, got %v", err)
		}
	})

	t.Run("EmbeddingsSnapshot", func(t *testing.T) {
		if err := store.CreateIdentity(ctx, &database.Employee{ID: "E002", Name: "Eva"}, unitVector(1), nil); err != nil {
			t.Fatalf("Failed to create employee: %v", err)
		}

		snapshot, err := store.GetAllEmbeddings(ctx)
		if err != nil {
			t.Fatalf("Failed to get embeddings: %v", err)
		}
		if len(snapshot) != 2 || snapshot[0].EmployeeID != "E001" || snapshot[1].EmployeeID != "E002" {
			t.Fatalf("Expected E001, E002 in order, got %+v", snapshot)
		}
		if len(snapshot[0].Embedding) != 512 || snapshot[0].Embedding[0] != 1 {
			t.Errorf("Expected 512-d embedding round trip")
		}

		if err := store.SaveEmbedding(ctx, "E002", unitVector(2), []byte("new")); err != nil {
			t.Fatalf("Failed to save embedding: %v", err)
		}
		// unchanged data still counts as a matched row
		if err := store.SaveEmbedding(ctx, "E002", unitVector(2), []byte("new")); err != nil {
			t.Errorf("Expected unchanged save to succeed, got %v", err)
		}
		if err := store.SaveEmbedding(ctx, "E999", unitVector(2), nil); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("AttendanceLifecycle", func(t *testing.T) {
		checkIn := time.Date(2025, 3, 14, 8, 0, 0, 0, time.Local)
		rec := &database.AttendanceRecord{EmployeeID: "E001", Date: "2025-03-14", CheckIn: &checkIn, Status: database.StatusOnTime}
		if err := store.InsertAttendance(ctx, rec); err != nil {
			t.Fatalf("Failed to insert attendance: %v", err)
		}
		if rec.ID == 0 {
			t.Error("Expected generated ID")
		}

		dup := &database.AttendanceRecord{EmployeeID: "E001", Date: "2025-03-14", CheckIn: &checkIn, Status: database.StatusLate}
		if err := store.InsertAttendance(ctx, dup); !errors.Is(err, database.ErrAttendanceExists) {
			t.Errorf("Expected ErrAttendanceExists, got %v", err)
		}

		got, err := store.GetAttendance(ctx, "E001", "2025-03-14")
		if err != nil || got == nil {
			t.Fatalf("Expected record, got %v (%v)", got, err)
		}
		if got.Date != "2025-03-14" || !got.CheckIn.Equal(checkIn) || got.CheckedOut() {
			t.Errorf("Unexpected record %+v", got)
		}

		out := checkIn.Add(9 * time.Hour)
		if n, err := store.PunchOut(ctx, "E001", "2025-03-14", out); err != nil || n != 1 {
			t.Fatalf("Expected 1 row, got %d (%v)", n, err)
		}
		if n, err := store.PunchOut(ctx, "E001", "2025-03-14", out.Add(time.Hour)); err != nil || n != 0 {
			t.Errorf("Expected 0 rows on second punch-out, got %d (%v)", n, err)
		}

		entries, err := store.ListAttendanceByDate(ctx, "2025-03-14")
		if err != nil || len(entries) != 1 || entries[0].Name != "Jan Novák" {
			t.Errorf("Unexpected entries %+v (%v)", entries, err)
		}
		if entries[0].CheckOut == nil || !entries[0].CheckOut.Equal(out) {
			t.Errorf("Expected check-out %v, got %v", out, entries[0].CheckOut)
		}
	})

	t.Run("ConcurrentInsert", func(t *testing.T) {
		checkIn := time.Date(2025, 3, 15, 8, 0, 0, 0, time.Local)
		var wg sync.WaitGroup
		var mu sync.Mutex
		success, conflicts := 0, 0

		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				rec := &database.AttendanceRecord{EmployeeID: "E002", Date: "2025-03-15", CheckIn: &checkIn, Status: database.StatusOnTime}
				err := store.InsertAttendance(ctx, rec)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					success++
				case errors.Is(err, database.ErrAttendanceExists):
					conflicts++
				default:
					t.Errorf("Unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if success != 1 || conflicts != 7 {
			t.Errorf("Expected 1 success and 7 conflicts, got %d/%d", success, conflicts)
		}
	})

	t.Run("UpdateSettings", func(t *testing.T) {
		want := database.OfficeSettings{StartTime: "08:00:00", EndTime: "16:30:00", OnTimeLimit: "08:15:00"}
		if err := store.UpdateOfficeSettings(ctx, want); err != nil {
			t.Fatalf("Failed to update settings: %v", err)
		}
		got, _ := store.GetOfficeSettings(ctx)
		if got == nil || *got != want {
			t.Errorf("Expected %+v, got %+v", want, got)
		}
	})

	t.Run("DeleteCascades", func(t *testing.T) {
		if err := store.DeleteIdentity(ctx, "E001"); err != nil {
			t.Fatalf("Failed to delete: %v", err)
		}
		rec, err := store.GetAttendance(ctx, "E001", "2025-03-14")
		if err != nil || rec != nil {
			t.Errorf("Expected attendance removed with employee, got %v (%v)", rec, err)
		}
		if err := store.DeleteIdentity(ctx, "E001"); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
		if n, _ := store.CountIdentities(ctx); n != 1 {
			t.Errorf("Expected 1 employee left, got %d", n)
		}
	})
}
