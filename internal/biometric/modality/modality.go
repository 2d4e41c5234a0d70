// Package modality turns raw biometric samples into normalized templates.
//
// Each Processor is deterministic: identical samples produce identical
// templates, so a genuine match reduces to template equality. The reference
// processors derive the template from a modality-keyed BLAKE2b-256 digest and
// stand in for real feature extractors, which plug in behind Processor.
package modality

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"biovault/internal/biometric/models"
	dErrors "biovault/pkg/domain-errors"
)

// MaxSampleBytes bounds a single raw sample.
const MaxSampleBytes = 5 << 20

// Sample rejections shared by every modality.
var (
	ErrSampleRequired = dErrors.New(dErrors.CodeValidation, "biometric data is required")
	ErrSampleTooLarge = dErrors.New(dErrors.CodeValidation, "biometric data exceeds maximum size")
)

// Result is a normalized template and its quality score.
type Result struct {
	Template string
	Quality  int
}

// Processor extracts a template from a raw sample of one modality.
type Processor interface {
	Modality() models.Modality
	Process(ctx context.Context, sample []byte) (Result, error)
}

// Band is the inclusive quality range a processor must produce.
type Band struct {
	Min int
	Max int
}

// Contains reports whether q lies within the band.
func (b Band) Contains(q int) bool { return q >= b.Min && q <= b.Max }

// QualityBands are the documented ranges of the reference processors.
var QualityBands = map[models.Modality]Band{
	models.ModalityFingerprint: {Min: 70, Max: 100},
	models.ModalityFace:        {Min: 75, Max: 100},
	models.ModalityVoice:       {Min: 80, Max: 100},
	models.ModalityIris:        {Min: 85, Max: 100},
}

// Registry dispatches samples to the processor for their modality.
type Registry struct {
	processors map[models.Modality]Processor
}

// NewRegistry registers processors by their modality; later entries win.
func NewRegistry(processors ...Processor) *Registry {
	r := &Registry{processors: make(map[models.Modality]Processor, len(processors))}
	for _, p := range processors {
		r.processors[p.Modality()] = p
	}
	return r
}

// DefaultRegistry registers the four reference processors.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewDigestProcessor(models.ModalityFingerprint, nil),
		NewDigestProcessor(models.ModalityFace, bytes.TrimSpace),
		NewDigestProcessor(models.ModalityVoice, bytes.TrimSpace),
		NewDigestProcessor(models.ModalityIris, nil),
	)
}

// Supports reports whether a processor is registered for m.
func (r *Registry) Supports(m models.Modality) bool {
	_, ok := r.processors[m]
	return ok
}

// BandFor returns the quality band templates of m must fall in. Modalities
// without a documented band accept the full 0..100 scale.
func BandFor(m models.Modality) Band {
	if band, ok := QualityBands[m]; ok {
		return band
	}
	return Band{Min: 0, Max: 100}
}

// Process validates the sample, runs the processor for m and checks that the
// reported quality lies within the modality's band.
func (r *Registry) Process(ctx context.Context, sample []byte, m models.Modality) (Result, error) {
	p, ok := r.processors[m]
	if !ok {
		return Result{}, dErrors.New(dErrors.CodeUnsupportedModality, "unsupported biometric type")
	}
	if len(sample) == 0 {
		return Result{}, ErrSampleRequired
	}
	if len(sample) > MaxSampleBytes {
		return Result{}, ErrSampleTooLarge
	}
	res, err := p.Process(ctx, sample)
	if err != nil {
		return Result{}, err
	}
	if band := BandFor(m); !band.Contains(res.Quality) {
		return Result{}, dErrors.New(dErrors.CodeInternal,
			fmt.Sprintf("%s processor reported quality %d outside %d..%d", m, res.Quality, band.Min, band.Max))
	}
	return res, nil
}

// DigestProcessor is the reference processor: a keyed BLAKE2b-256 digest of
// the normalized sample, with quality folded from the digest into the band.
type DigestProcessor struct {
	modality  models.Modality
	band      Band
	normalize func([]byte) []byte
}

// NewDigestProcessor builds a reference processor for m. normalize may be nil.
func NewDigestProcessor(m models.Modality, normalize func([]byte) []byte) *DigestProcessor {
	return &DigestProcessor{modality: m, band: BandFor(m), normalize: normalize}
}

func (p *DigestProcessor) Modality() models.Modality { return p.modality }

func (p *DigestProcessor) Process(ctx context.Context, sample []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if p.normalize != nil {
		sample = p.normalize(sample)
	}
	if len(sample) == 0 {
		return Result{}, ErrSampleRequired
	}
	h, err := blake2b.New256([]byte(p.modality))
	if err != nil {
		return Result{}, fmt.Errorf("init %s digest: %w", p.modality, err)
	}
	h.Write(sample)
	sum := h.Sum(nil)

	span := uint64(p.band.Max - p.band.Min + 1)
	quality := p.band.Min + int(binary.BigEndian.Uint64(sum[:8])%span)

	return Result{Template: hex.EncodeToString(sum), Quality: quality}, nil
}
