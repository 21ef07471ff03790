package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/database"
	_ "github.com/kozaktomas/face-registry/internal/database/postgres"
	_ "github.com/kozaktomas/face-registry/internal/database/sqlite"
	"github.com/kozaktomas/face-registry/internal/encoder"
	"github.com/kozaktomas/face-registry/internal/enroll"
	"github.com/kozaktomas/face-registry/internal/logging"
	"github.com/kozaktomas/face-registry/internal/match"
)

// app bundles what every command needs: config, logger, store and coordinator.
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       database.IdentityStore
	coordinator *enroll.Coordinator
}

func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	logger := logging.NewStderr(cfg.Log)

	store, err := database.Open(ctx, &cfg.Database, cfg.Signature.Dim)
	if err != nil {
		return nil, fmt.Errorf("failed to open identity store: %w", err)
	}

	index, err := match.NewIndex(cfg.Match.Index, cfg.Match.Threshold)
	if err != nil {
		store.Close()
		return nil, err
	}

	coord := enroll.New(store, enroll.Options{
		Threshold: cfg.Match.Threshold,
		Dim:       cfg.Signature.Dim,
		Index:     index,
		Encoder:   encoder.NewClient(cfg.Encoder.URL, cfg.Encoder.Timeout()),
		Logger:    logger,
	})

	logger.Debug("identity store opened",
		"backend", cfg.Database.Backend,
		"dim", cfg.Signature.Dim,
		"threshold", cfg.Match.Threshold,
		"index", cfg.Match.Index,
	)

	return &app{cfg: cfg, logger: logger, store: store, coordinator: coord}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close identity store", "error", err)
	}
}

// describeResult renders an enrollment result for the terminal.
func describeResult(res enroll.Result) string {
	switch res.Outcome {
	case enroll.OutcomeRegistered:
		return fmt.Sprintf("Registered %q (id %d)", res.Name, res.ID)
	case enroll.OutcomeAlreadyRegistered:
		return fmt.Sprintf("Face already registered as %q (distance %.3f)", res.MatchedName, res.Distance)
	case enroll.OutcomeNoSignatureFound:
		return "No face encoding found"
	default:
		return "Enrollment failed"
	}
}
