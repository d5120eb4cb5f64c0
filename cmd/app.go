package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/faceembed"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/logging"
	"github.com/kozaktomas/face-attendance/internal/notify"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/kozaktomas/face-attendance/internal/registration"

	// storage backends register themselves with database.Open
	_ "github.com/kozaktomas/face-attendance/internal/database/mariadb"
	_ "github.com/kozaktomas/face-attendance/internal/database/postgres"
	_ "github.com/kozaktomas/face-attendance/internal/database/sqlite"
)

// app holds the components shared by the commands
type app struct {
	cfg        *config.Config
	logger     *logrus.Logger
	store      database.Store
	client     *faceembed.Client
	extractor  *faceembed.Extractor
	index      *facematch.Index
	dispatcher *notify.Dispatcher
	attendance *attendance.Service
	guard      *registration.Guard
	pipeline   *recognition.Pipeline
}

// newApp loads configuration, opens the store and wires every component.
func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	logger := logging.New(cfg.Log)

	store, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var sender notify.Sender = &notify.LogSender{Logger: logger}
	if cfg.SMTP.Enabled() {
		sender = notify.NewSMTPSender(cfg.SMTP)
	} else {
		logger.Info("SMTP_SERVER or SMTP_FROM not set, notifications are logged only")
	}

	a := &app{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		client:     faceembed.NewClient(cfg.Embedding.URL, cfg.Embedding.Timeout),
		dispatcher: notify.NewDispatcher(sender, 0, logger),
	}

	a.extractor = faceembed.NewExtractor(a.client,
		faceembed.WithMinDetectionScore(cfg.Embedding.MinDetectionScore),
		faceembed.WithLogger(logger))
	a.index = facematch.NewIndex(store, facematch.Thresholds{
		Identify:  cfg.Recognition.IdentifyThreshold,
		Duplicate: cfg.Recognition.DuplicateThreshold,
	})
	a.attendance = attendance.NewService(store, a.dispatcher,
		attendance.WithDefaults(cfg.Defaults.Office),
		attendance.WithLogger(logger))
	a.guard = registration.NewGuard(store, a.extractor, a.index, logger)
	a.pipeline = recognition.NewPipeline(a.extractor, a.index, store, a.attendance, logger)

	return a, nil
}

// close waits for pending notifications and releases the store.
func (a *app) close() {
	a.dispatcher.Wait()
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close database")
	}
}

// readImage reads an image file given on the command line.
func readImage(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("--image is required")
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return data, nil
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
