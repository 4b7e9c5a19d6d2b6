// Package state persists the last-run timestamp marker in blob storage. The
// marker is overwritten each run and consumed only for logging: every job
// performs a full rescan regardless of when it last ran.
package state

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"go.uber.org/zap"
)

// marker is the blob payload: {"lastRun": "<ISO-8601 UTC>"}.
type marker struct {
	LastRun string `json:"lastRun"`
}

// Store reads and writes the last-run marker blob.
type Store struct {
	client    *azblob.Client
	container string
	blob      string
	logger    *zap.Logger
}

// NewStore creates a marker store from a storage connection string. The
// container is created on first write if it does not exist.
func NewStore(connectionString, container, blob string, logger *zap.Logger) (*Store, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, err
	}
	return &Store{
		client:    client,
		container: container,
		blob:      blob,
		logger:    logger,
	}, nil
}

// LoadLastRun returns the stored marker, or now minus one day when the blob
// is missing, unreadable, or malformed.
func (s *Store) LoadLastRun(ctx context.Context) time.Time {
	fallback := time.Now().UTC().Add(-24 * time.Hour)

	resp, err := s.client.DownloadStream(ctx, s.container, s.blob, nil)
	if err != nil {
		s.logger.Debug("No readable last-run marker, using fallback", zap.Error(err))
		return fallback
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fallback
	}

	var m marker
	if err := json.Unmarshal(data, &m); err != nil || m.LastRun == "" {
		return fallback
	}

	ts, err := time.Parse(time.RFC3339, m.LastRun)
	if err != nil {
		return fallback
	}
	return ts.UTC()
}

// SaveLastRun overwrites the marker blob with the given timestamp.
func (s *Store) SaveLastRun(ctx context.Context, ts time.Time) error {
	// Container creation is idempotent enough here: an already-exists error
	// is ignored, anything else surfaces on the upload.
	_, _ = s.client.CreateContainer(ctx, s.container, nil)

	payload, err := json.Marshal(marker{LastRun: ts.UTC().Format("2006-01-02T15:04:05Z")})
	if err != nil {
		return err
	}

	_, err = s.client.UploadBuffer(ctx, s.container, s.blob, payload, nil)
	return err
}
