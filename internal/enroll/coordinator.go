// Package enroll runs enrollment attempts: match a candidate signature against
// the known identities and persist it only when nobody matches.
package enroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/kozaktomas/face-registry/internal/encoder"
	"github.com/kozaktomas/face-registry/internal/facematch"
	"github.com/kozaktomas/face-registry/internal/logging"
	"github.com/kozaktomas/face-registry/internal/match"
	"github.com/kozaktomas/face-registry/internal/signature"
)

var (
	// ErrNoSignatureFound is returned when the encoder finds no face in the input.
	ErrNoSignatureFound = errors.New("no face signature found")

	// ErrEmptyName is returned for names without visible characters.
	ErrEmptyName = database.ErrEmptyName

	// ErrNoEncoder is returned by image based entry points when no encoder is configured.
	ErrNoEncoder = errors.New("no face encoder configured")

	// ErrEncoderFailed wraps failures reported by the encoder service.
	ErrEncoderFailed = errors.New("face encoder failed")
)

const (
	// DefaultCropPadding is the number of pixels added around a region before encoding it.
	DefaultCropPadding = 20

	// regionMinIoU is the overlap a detected face needs with the requested region.
	regionMinIoU = 0.3
)

// Options configures a Coordinator. Zero values select defaults.
type Options struct {
	Threshold   float64
	Dim         int
	Index       match.Index
	Encoder     encoder.Encoder
	CropPadding int
	Logger      *slog.Logger
}

// Coordinator serializes enrollment attempts against one identity store and
// keeps an in-memory snapshot of the known signatures.
type Coordinator struct {
	store       database.IdentityStore
	enc         encoder.Encoder
	threshold   float64
	dim         int
	cropPadding int
	logger      *slog.Logger

	mu     sync.Mutex
	index  match.Index
	loaded bool

	state atomic.Int32
}

// New creates a coordinator over store. The cache is loaded on first use.
func New(store database.IdentityStore, opts Options) *Coordinator {
	if opts.Threshold <= 0 {
		opts.Threshold = match.DefaultThreshold
	}
	if opts.Dim <= 0 {
		opts.Dim = signature.DefaultDim
	}
	if opts.Index == nil {
		opts.Index = match.NewLinearIndex()
	}
	if opts.CropPadding < 0 {
		opts.CropPadding = 0
	} else if opts.CropPadding == 0 {
		opts.CropPadding = DefaultCropPadding
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	return &Coordinator{
		store:       store,
		enc:         opts.Encoder,
		threshold:   opts.Threshold,
		dim:         opts.Dim,
		cropPadding: opts.CropPadding,
		logger:      logging.Module(opts.Logger, "enroll"),
		index:       opts.Index,
	}
}

// State returns the current state. It is StateIdle whenever no attempt is running.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Threshold returns the match threshold in use.
func (c *Coordinator) Threshold() float64 {
	return c.threshold
}

func (c *Coordinator) setState(s State) {
	c.state.Store(int32(s))
}

// Enroll registers sig under name unless a known signature already matches it.
func (c *Coordinator) Enroll(ctx context.Context, name string, sig signature.Signature) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.attempt(ctx, name, sig)
}

// PreloadImage reads an image file, encodes it and enrolls the first face found.
func (c *Coordinator) PreloadImage(ctx context.Context, path, name string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return c.failed(name), fmt.Errorf("read image %s: %w", path, err)
	}

	return c.EnrollImage(ctx, data, name)
}

// EnrollImage encodes an image and enrolls the first face found. Images without
// a face report OutcomeNoSignatureFound and never touch the store.
func (c *Coordinator) EnrollImage(ctx context.Context, data []byte, name string) (Result, error) {
	sig, err := c.firstSignature(ctx, data)
	if err != nil {
		if errors.Is(err, ErrNoSignatureFound) {
			c.logger.Info("no face found in image", "name", name)
			return Result{Outcome: OutcomeNoSignatureFound, Name: facematch.CleanName(name)}, err
		}
		return c.failed(name), err
	}

	return c.Enroll(ctx, name, sig)
}

// EnrollRegion enrolls the face inside region of a frame. When the encoder can
// report face positions the whole frame is encoded and the face overlapping the
// region is used; otherwise the padded region is cropped and encoded alone.
func (c *Coordinator) EnrollRegion(ctx context.Context, frame []byte, region facematch.Region, name string) (Result, error) {
	if err := region.Validate(); err != nil {
		return c.failed(name), err
	}

	sig, err := c.regionSignature(ctx, frame, region)
	if err != nil {
		if errors.Is(err, ErrNoSignatureFound) {
			c.logger.Info("no face found in region", "region", region, "name", name)
			return Result{Outcome: OutcomeNoSignatureFound, Name: facematch.CleanName(name)}, err
		}
		return c.failed(name), err
	}

	return c.Enroll(ctx, name, sig)
}

// EncodeImage returns the signature of the first face in an image.
func (c *Coordinator) EncodeImage(ctx context.Context, data []byte) (signature.Signature, error) {
	return c.firstSignature(ctx, data)
}

// Identify returns the closest known identity for sig. The boolean is false
// when nobody is within the threshold.
func (c *Coordinator) Identify(ctx context.Context, sig signature.Signature) (Result, bool, error) {
	if err := signature.Validate(sig, c.dim); err != nil {
		return Result{Outcome: OutcomeFailed}, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoaded(ctx); err != nil {
		return Result{Outcome: OutcomeFailed}, false, err
	}

	cand, ok, err := c.index.Nearest(sig)
	if err != nil {
		return Result{Outcome: OutcomeFailed}, false, err
	}
	if !ok {
		return Result{}, false, nil
	}

	res := Result{Distance: cand.Distance, MatchedName: cand.Name, MatchedID: cand.ID}
	if !match.Accept(cand.Distance, c.threshold) {
		return res, false, nil
	}
	res.Outcome = OutcomeAlreadyRegistered
	res.Name = cand.Name
	return res, true, nil
}

// Reload replaces the cached snapshot with the current store contents.
func (c *Coordinator) Reload(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.loaded = false
	return c.ensureLoaded(ctx)
}

// Known returns the number of cached identities, loading them if needed.
func (c *Coordinator) Known(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoaded(ctx); err != nil {
		return 0, err
	}
	return c.index.Len(), nil
}

// attempt runs one pass of the state machine. Callers hold c.mu.
func (c *Coordinator) attempt(ctx context.Context, name string, sig signature.Signature) (Result, error) {
	name = facematch.CleanName(name)
	log := c.logger.With("attempt", uuid.NewString(), "name", name)

	if !facematch.ValidName(name) {
		return c.failed(name), ErrEmptyName
	}
	if err := signature.Validate(sig, c.dim); err != nil {
		return c.failed(name), err
	}

	c.setState(StateHasCandidateSignature)
	defer c.setState(StateIdle)

	if err := c.ensureLoaded(ctx); err != nil {
		log.Error("failed to load known identities", "error", err)
		return c.failed(name), err
	}

	cand, found, err := c.index.Nearest(sig)
	if err != nil {
		log.Error("failed to match signature", "error", err)
		return c.failed(name), err
	}

	res := Result{Name: name}
	if found {
		res.Distance = cand.Distance
	}

	if found && match.Accept(cand.Distance, c.threshold) {
		c.setState(StateAlreadyRegistered)
		res.Outcome = OutcomeAlreadyRegistered
		res.MatchedName = cand.Name
		res.MatchedID = cand.ID
		log.Info("face already registered", "matched_name", cand.Name, "matched_id", cand.ID, "distance", cand.Distance)
		return res, nil
	}

	c.setState(StateRegistered)
	id, err := c.store.Insert(ctx, name, sig)
	if err != nil {
		log.Error("failed to store identity", "error", err)
		return c.failed(name), err
	}

	if err := c.index.Add(match.Entry{ID: id, Name: name, Signature: sig.Clone()}); err != nil {
		// The record is stored; rebuild the cache from the store next time.
		log.Warn("failed to cache identity", "id", id, "error", err)
		c.loaded = false
	}

	res.Outcome = OutcomeRegistered
	res.ID = id
	log.Info("face registered", "id", id, "known", c.index.Len())
	return res, nil
}

func (c *Coordinator) ensureLoaded(ctx context.Context) error {
	if c.loaded {
		return nil
	}

	records, err := c.store.LoadAll(ctx)
	if err != nil {
		return err
	}

	entries := make([]match.Entry, len(records))
	for i, r := range records {
		entries[i] = match.Entry{ID: r.ID, Name: r.Name, Signature: r.Signature}
	}
	if err := c.index.Reset(entries); err != nil {
		return fmt.Errorf("build match index: %w", err)
	}

	c.loaded = true
	c.logger.Debug("loaded known identities", "count", len(entries))
	return nil
}

func (c *Coordinator) firstSignature(ctx context.Context, data []byte) (signature.Signature, error) {
	if c.enc == nil {
		return nil, ErrNoEncoder
	}

	sigs, err := c.enc.Encode(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoderFailed, err)
	}
	if len(sigs) == 0 {
		return nil, ErrNoSignatureFound
	}
	return sigs[0], nil
}

func (c *Coordinator) regionSignature(ctx context.Context, frame []byte, region facematch.Region) (signature.Signature, error) {
	if c.enc == nil {
		return nil, ErrNoEncoder
	}

	if det, ok := c.enc.(encoder.Detector); ok {
		width, height, err := facematch.FrameSize(frame)
		if err != nil {
			return nil, err
		}

		faces, err := det.Detect(ctx, frame)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEncoderFailed, err)
		}

		boxes := make([][]float64, len(faces))
		for i, f := range faces {
			boxes[i] = facematch.ConvertPixelBBoxToRelative(f.BBox, width, height)
		}
		best := facematch.BestOverlap(region.Corners(), boxes, regionMinIoU)
		if best < 0 {
			return nil, ErrNoSignatureFound
		}
		return faces[best].Signature, nil
	}

	crop, err := facematch.CropJPEG(frame, region, c.cropPadding)
	if err != nil {
		return nil, err
	}
	return c.firstSignature(ctx, crop)
}

func (c *Coordinator) failed(name string) Result {
	return Result{Outcome: OutcomeFailed, Name: facematch.CleanName(name)}
}
