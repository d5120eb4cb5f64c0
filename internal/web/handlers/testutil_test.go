package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	dbmock "github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/faceembed"
	"github.com/kozaktomas/face-attendance/internal/faceembed/mock"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/logging"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/kozaktomas/face-attendance/internal/registration"
)

var (
	aliceFace    = color.RGBA{R: 220, G: 40, B: 40, A: 255}
	bobFace      = color.RGBA{R: 40, G: 200, B: 40, A: 255}
	strangerFace = color.RGBA{R: 200, G: 200, B: 40, A: 255}
	emptyFrame   = color.RGBA{R: 40, G: 40, B: 200, A: 255}
)

// testEnv wires the handlers to in-memory collaborators
type testEnv struct {
	store  *dbmock.MockStore
	model  *mock.Model
	clock  time.Time
	index  *facematch.Index
	router *chi.Mux
}

// newTestEnv creates handlers backed by a mock store and a fake face model
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logging.Discard()

	e := &testEnv{
		store: dbmock.NewMockStore(),
		model: mock.NewModel(),
		clock: time.Date(2025, 3, 14, 8, 0, 0, 0, time.Local),
	}
	e.model.AddFace(aliceFace, []float32{1, 0.1, 0})
	e.model.AddFace(bobFace, []float32{0, 0.1, 1})
	e.model.AddFace(strangerFace, []float32{0, 1, 0})
	e.store.SetOfficeSettings(&database.OfficeSettings{StartTime: "09:00:00", EndTime: "18:00:00", OnTimeLimit: "09:30:00"})

	extractor := faceembed.NewExtractor(e.model, faceembed.WithLogger(logger))
	e.index = facematch.NewIndex(e.store, facematch.DefaultThresholds())
	guard := registration.NewGuard(e.store, extractor, e.index, logger)
	service := attendance.NewService(e.store, nil,
		attendance.WithLogger(logger),
		attendance.WithClock(func() time.Time { return e.clock }))
	pipeline := recognition.NewPipeline(extractor, e.index, e.store, service, logger)

	attendanceHandler := NewAttendanceHandler(pipeline, service, logger)
	employeesHandler := NewEmployeesHandler(guard, e.store, logger)
	settingsHandler := NewSettingsHandler(service, logger)
	facesHandler := NewFacesHandler(e.index, logger)

	r := chi.NewRouter()
	r.Post("/attendance/mark", attendanceHandler.Mark)
	r.Post("/attendance/punch-out", attendanceHandler.PunchOut)
	r.Get("/attendance/today", attendanceHandler.Today)
	r.Post("/employees/register", employeesHandler.Register)
	r.Post("/employees/validate-face", employeesHandler.ValidateFace)
	r.Put("/employees/{id}/photo", employeesHandler.UpdatePhoto)
	r.Get("/employees/{id}/photo", employeesHandler.GetPhoto)
	r.Delete("/employees/{id}", employeesHandler.Delete)
	r.Get("/office-settings", settingsHandler.Get)
	r.Put("/office-settings", settingsHandler.Update)
	r.Get("/faces/similarities", facesHandler.Similarities)
	e.router = r

	return e
}

// serve runs a request through the test router
func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	e.router.ServeHTTP(recorder, req)
	return recorder
}

// addEmployee stores an employee with the embedding the fake model gives c
func (e *testEnv) addEmployee(t *testing.T, id, name string, c color.RGBA) {
	t.Helper()
	embedding, err := faceembed.NewExtractor(e.model).Extract(context.Background(), mock.SolidImage(c, 64, 64))
	if err != nil {
		t.Fatalf("failed to embed test face: %v", err)
	}
	e.store.AddEmployee(database.Employee{ID: id, Name: name}, embedding)
}

// jsonRequest creates a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// multipartRequest creates a request uploading data as the "file" part
func multipartRequest(t *testing.T, method, path string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "frame.png")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	part.Write(data)
	writer.Close()

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// faceBase64 returns a base64 encoded test image of color c
func faceBase64(c color.RGBA) string {
	return base64.StdEncoding.EncodeToString(mock.SolidImage(c, 64, 64))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%v'", expectedMessage, result["error"])
	}
}
