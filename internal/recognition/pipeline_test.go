package recognition

import (
	"context"
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	dbmock "github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/faceembed"
	"github.com/kozaktomas/face-attendance/internal/faceembed/mock"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/logging"
	"github.com/kozaktomas/face-attendance/internal/registration"
)

var (
	aliceFace    = color.RGBA{R: 220, G: 40, B: 40, A: 255}
	strangerFace = color.RGBA{R: 40, G: 200, B: 40, A: 255}
	emptyFrame   = color.RGBA{R: 40, G: 40, B: 200, A: 255}
)

type env struct {
	store    *dbmock.MockStore
	model    *mock.Model
	guard    *registration.Guard
	att      *attendance.Service
	pipeline *Pipeline
	clock    time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := logging.Discard()

	e := &env{
		store: dbmock.NewMockStore(),
		model: mock.NewModel(),
		clock: time.Date(2025, 3, 14, 8, 0, 0, 0, time.Local),
	}
	e.model.AddFace(aliceFace, []float32{1, 0.1, 0})
	e.model.AddFace(strangerFace, []float32{0, 0.1, 1})
	e.store.SetOfficeSettings(&database.OfficeSettings{StartTime: "09:00:00", EndTime: "18:00:00", OnTimeLimit: "09:30:00"})

	extractor := faceembed.NewExtractor(e.model, faceembed.WithLogger(logger))
	index := facematch.NewIndex(e.store, facematch.Thresholds{})

	e.guard = registration.NewGuard(e.store, extractor, index, logger)
	e.att = attendance.NewService(e.store, nil,
		attendance.WithLogger(logger),
		attendance.WithClock(func() time.Time { return e.clock }))
	e.pipeline = NewPipeline(extractor, index, e.store, e.att, logger)
	return e
}

func (e *env) registerAlice(t *testing.T) {
	t.Helper()
	_, err := e.guard.Register(context.Background(),
		&database.Employee{ID: "E001", Name: "Alice", Email: "alice@example.com"},
		mock.SolidImage(aliceFace, 64, 64))
	if err != nil {
		t.Fatalf("registration failed: %v", err)
	}
}

func TestRecognize_EndToEnd(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if err := e.guard.Validate(ctx, mock.SolidImage(aliceFace, 64, 64)); err != nil {
		t.Fatalf("expected unregistered face to validate, got %v", err)
	}
	e.registerAlice(t)

	var dup *registration.DuplicateFaceError
	if err := e.guard.Validate(ctx, mock.SolidImage(aliceFace, 64, 64)); !errors.As(err, &dup) {
		t.Fatalf("expected duplicate face after registration, got %v", err)
	}

	// 08:00, first recognition
	res, err := e.pipeline.Recognize(ctx, mock.SolidImage(aliceFace, 64, 64))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != attendance.StatusSuccess || res.Message != "Alice: Attendance marked (On Time)" {
		t.Errorf("expected Success On Time, got %s %q", res.Status, res.Message)
	}
	if res.Name == nil || *res.Name != "Alice" || res.EmployeeID != "E001" {
		t.Errorf("expected Alice/E001, got %+v", res)
	}
	if res.Score <= 0.6 {
		t.Errorf("expected score above identify threshold, got %f", res.Score)
	}
	if res.RequestID == "" {
		t.Error("expected a request id")
	}

	// again before punch-out
	res, err = e.pipeline.Recognize(ctx, mock.SolidImage(aliceFace, 64, 64))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != attendance.StatusAlreadyMarked {
		t.Errorf("expected Already Marked, got %s", res.Status)
	}
	if got := len(e.store.AttendanceRecords()); got != 1 {
		t.Errorf("expected one attendance record, got %d", got)
	}

	// punch out twice
	e.clock = time.Date(2025, 3, 14, 18, 0, 0, 0, time.Local)
	if _, err := e.att.PunchOut(ctx, attendance.EmployeeRef{Name: "Alice"}, e.att.Now()); err != nil {
		t.Fatalf("expected punch-out to succeed, got %v", err)
	}
	if _, err := e.att.PunchOut(ctx, attendance.EmployeeRef{Name: "Alice"}, e.att.Now()); !errors.Is(err, attendance.ErrPunchOutRejected) {
		t.Errorf("expected second punch-out to be rejected, got %v", err)
	}

	res, err = e.pipeline.Recognize(ctx, mock.SolidImage(aliceFace, 64, 64))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != attendance.StatusAlreadyPunchedOut {
		t.Errorf("expected Already Punched Out, got %s", res.Status)
	}
}

func TestRecognize_UnknownFaceDoesNotRetry(t *testing.T) {
	e := newEnv(t)
	e.registerAlice(t)
	e.model.DetectCalls, e.model.EmbedCalls = 0, 0

	res, err := e.pipeline.Recognize(context.Background(), mock.SolidImage(strangerFace, 64, 64))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusUnknown || res.Message != "Unknown Face - Please register first" {
		t.Errorf("expected Unknown, got %s %q", res.Status, res.Message)
	}
	if res.Name != nil {
		t.Errorf("expected nil name, got %q", *res.Name)
	}
	if e.model.DetectCalls != 1 || e.model.EmbedCalls != 1 {
		t.Errorf("expected a single extraction without variants, got %d detect / %d embed calls",
			e.model.DetectCalls, e.model.EmbedCalls)
	}
	if got := len(e.store.AttendanceRecords()); got != 0 {
		t.Errorf("expected no attendance for unknown face, got %d", got)
	}
}

func TestRecognize_EmptyRegistry(t *testing.T) {
	e := newEnv(t)

	res, err := e.pipeline.Recognize(context.Background(), mock.SolidImage(aliceFace, 64, 64))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusUnknown {
		t.Errorf("expected Unknown with no registered faces, got %s", res.Status)
	}
}

func TestRecognize_NoFace(t *testing.T) {
	e := newEnv(t)
	e.registerAlice(t)
	e.model.DetectCalls = 0

	res, err := e.pipeline.Recognize(context.Background(), mock.SolidImage(emptyFrame, 64, 64))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusNoFace || res.Message != "No face detected. Please try again." {
		t.Errorf("expected No Face, got %s %q", res.Status, res.Message)
	}
	if e.model.DetectCalls != 5 {
		t.Errorf("expected original plus 4 variants to be checked, got %d", e.model.DetectCalls)
	}
}

func TestRecognize_FaceOnlyInVariant(t *testing.T) {
	e := newEnv(t)
	e.registerAlice(t)
	e.model.BlindFormats = map[string]bool{"png": true}
	e.model.DetectCalls = 0

	res, err := e.pipeline.Recognize(context.Background(), mock.SolidImage(aliceFace, 64, 64))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != attendance.StatusSuccess {
		t.Errorf("expected Success from variant, got %s", res.Status)
	}
	if e.model.DetectCalls != 2 {
		t.Errorf("expected to stop at the first variant with a face, got %d detect calls", e.model.DetectCalls)
	}
}

func TestRecognize_MarkFailure(t *testing.T) {
	e := newEnv(t)
	e.registerAlice(t)
	e.store.InsertAttendanceError = errors.New("connection reset")

	res, err := e.pipeline.Recognize(context.Background(), mock.SolidImage(aliceFace, 64, 64))
	if err != nil {
		t.Fatalf("expected error to be reported as a result, got %v", err)
	}
	if res.Status != attendance.StatusError || res.Message != "Alice: Error logging attendance" {
		t.Errorf("expected Error status, got %s %q", res.Status, res.Message)
	}
}

func TestRecognize_InvalidImage(t *testing.T) {
	e := newEnv(t)

	_, err := e.pipeline.Recognize(context.Background(), []byte("garbage"))
	if !errors.Is(err, faceembed.ErrInvalidImage) {
		t.Errorf("expected ErrInvalidImage, got %v", err)
	}
}

func TestRecognize_SnapshotError(t *testing.T) {
	e := newEnv(t)
	e.registerAlice(t)
	e.store.GetAllEmbeddingsError = errors.New("db down")

	if _, err := e.pipeline.Recognize(context.Background(), mock.SolidImage(aliceFace, 64, 64)); err == nil {
		t.Error("expected error when embeddings cannot be read")
	}
}
