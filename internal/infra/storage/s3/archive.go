package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"roomstay/internal/app/policies"
	"roomstay/internal/domain/booking"
	"roomstay/internal/domain/pricing"
	"roomstay/internal/domain/units"
)

const quoteContentType = "application/json"

var ErrDigestMismatch = errors.New("s3: archived quote digest does not match its content")

// objectStore is the subset of *minio.Client the archive uses.
type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (*minio.Object, error)
}

// QuoteArchive writes every frozen quote to an S3-compatible bucket under
// quotes/<unit>/<booking>.json so prices can be replayed during audits.
type QuoteArchive struct {
	bucket         string
	store          objectStore
	logger         *slog.Logger
	bucketInitOnce sync.Once
	bucketInitErr  error
}

// NewQuoteArchive configures the archive using the provided endpoint and credentials.
func NewQuoteArchive(endpoint string, useSSL bool, accessKey, secretKey, bucket string, logger *slog.Logger) (*QuoteArchive, error) {
	cleanEndpoint := strings.TrimSpace(endpoint)
	if cleanEndpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	if bucket = strings.TrimSpace(bucket); bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	client, err := minio.New(parseEndpoint(cleanEndpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(accessKey), strings.TrimSpace(secretKey), ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	return &QuoteArchive{bucket: bucket, store: client, logger: logger}, nil
}

func QuoteKey(unitID units.UnitID, bookingID booking.BookingID) string {
	return path.Join("quotes", string(unitID), string(bookingID)+".json")
}

func (a *QuoteArchive) Put(ctx context.Context, unitID units.UnitID, bookingID booking.BookingID, quote pricing.FrozenQuote) error {
	if err := a.ensureBucket(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("s3: encode quote: %w", err)
	}
	key := QuoteKey(unitID, bookingID)
	_, err = a.store.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType:  quoteContentType,
		UserMetadata: map[string]string{"digest": quote.Digest},
	})
	if err != nil {
		return fmt.Errorf("s3: put object: %w", err)
	}
	if a.logger != nil {
		a.logger.Debug("quote archived", slog.String("bucket", a.bucket), slog.String("key", key))
	}
	return nil
}

// Get reads an archived quote back and checks it against its digest.
func (a *QuoteArchive) Get(ctx context.Context, unitID units.UnitID, bookingID booking.BookingID) (pricing.FrozenQuote, error) {
	obj, err := a.store.GetObject(ctx, a.bucket, QuoteKey(unitID, bookingID), minio.GetObjectOptions{})
	if err != nil {
		return pricing.FrozenQuote{}, fmt.Errorf("s3: get object: %w", err)
	}
	defer obj.Close()
	var quote pricing.FrozenQuote
	if err := json.NewDecoder(obj).Decode(&quote); err != nil {
		return pricing.FrozenQuote{}, fmt.Errorf("s3: decode quote: %w", err)
	}
	if !quote.Verify() {
		return pricing.FrozenQuote{}, ErrDigestMismatch
	}
	return quote, nil
}

func (a *QuoteArchive) ensureBucket(ctx context.Context) error {
	a.bucketInitOnce.Do(func() {
		exists, err := a.store.BucketExists(ctx, a.bucket)
		if err != nil {
			a.bucketInitErr = fmt.Errorf("s3: check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err := a.store.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			a.bucketInitErr = fmt.Errorf("s3: create bucket: %w", err)
		}
	})
	return a.bucketInitErr
}

func parseEndpoint(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var _ policies.QuoteArchive = (*QuoteArchive)(nil)
