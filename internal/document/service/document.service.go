package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"inkwiki/config"
	"inkwiki/internal/attachment"
	"inkwiki/internal/document/model"
	"inkwiki/internal/document/repository"
	"inkwiki/pkg/apperr"
	"inkwiki/pkg/logger"
	"inkwiki/socket"
)

// RemoteStore is the slice of the object-storage client the service needs.
type RemoteStore interface {
	PresignPut(ctx context.Context, bucket, key, contentType string, ttl time.Duration) (string, error)
	DeleteObject(ctx context.Context, bucket, key, region string) error
}

// ChangeNotifier receives document change events for connected clients.
type ChangeNotifier interface {
	Notify(event socket.Event)
}

type DocumentService struct {
	Repo   *repository.DocumentRepository
	Local  *attachment.LocalStore
	Remote RemoteStore    // nil when S3 is disabled
	Hub    ChangeNotifier // nil in tests that don't care about the feed
	S3     config.S3Config
}

func NewDocumentService(repo *repository.DocumentRepository, local *attachment.LocalStore, remote RemoteStore, hub ChangeNotifier, s3 config.S3Config) *DocumentService {
	return &DocumentService{Repo: repo, Local: local, Remote: remote, Hub: hub, S3: s3}
}

// Save upserts a document under title. Binary payloads are offloaded to the
// local store first and their location frozen into the metadata, so deleting
// the document later needs no knowledge of today's configuration.
func (s *DocumentService) Save(ctx context.Context, title string, raw json.RawMessage) (int64, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return 0, fmt.Errorf("%w: document body must be a JSON object", apperr.ErrValidation)
	}
	m["title"] = title

	if isBinaryType(m) {
		if err := s.offloadBinary(ctx, title, m); err != nil {
			// A failed offload keeps the inline payload; the document still saves.
			logger.Sugar.Errorf("Failed to offload binary payload for %q: %v", title, err)
		}
	}

	meta, err := json.Marshal(m)
	if err != nil {
		return 0, err
	}
	revision, err := s.Repo.Put(ctx, title, meta)
	if err != nil {
		return 0, err
	}
	if s.Hub != nil {
		s.Hub.Notify(socket.Event{Type: socket.ChangeType, Title: title, Revision: revision})
	}
	return revision, nil
}

func (s *DocumentService) Get(ctx context.Context, title string) (*model.Document, error) {
	return s.Repo.Get(ctx, title)
}

func (s *DocumentService) All(ctx context.Context) ([]model.Document, error) {
	return s.Repo.All(ctx)
}

// Delete removes the document row first, then best-effort removes whatever
// blob the frozen metadata points at. A failed blob delete is logged and
// never un-deletes the document; the worst case is an orphaned blob.
func (s *DocumentService) Delete(ctx context.Context, title string) error {
	meta, err := s.Repo.Delete(ctx, title)
	if err != nil {
		return err
	}
	// The row is gone; finish the blob removal even if the request is
	// cancelled mid-flight. The backend call carries its own timeout.
	s.cascadeDelete(context.WithoutCancel(ctx), title, meta)
	if s.Hub != nil {
		s.Hub.Notify(socket.Event{Type: socket.DeleteType, Title: title})
	}
	logger.Sugar.Infof("Deleted document: %s", title)
	return nil
}

func (s *DocumentService) cascadeDelete(ctx context.Context, title string, meta json.RawMessage) {
	desc := attachment.Classify(meta)
	switch desc.Kind {
	case attachment.KindLocal:
		found, err := s.Local.Delete(desc.Path)
		switch {
		case err != nil:
			logger.Sugar.Errorf("Failed to delete local attachment %s for %q: %v", desc.Path, title, err)
		case !found:
			logger.Sugar.Warnf("Local attachment %s for %q was already gone", desc.Path, title)
		default:
			logger.Sugar.Infof("Deleted local attachment %s for %q", desc.Path, title)
		}

	case attachment.KindRemote:
		if s.Remote == nil {
			logger.Sugar.Warnf("Document %q references object %s in bucket %s but remote storage is disabled; leaving it", title, desc.Key, desc.Bucket)
			return
		}
		// Address the bucket and region recorded at upload time, never the
		// server's current configuration.
		err := s.Remote.DeleteObject(ctx, desc.Bucket, desc.Key, desc.Region)
		switch {
		case err == nil:
			logger.Sugar.Infof("Deleted object %s from bucket %s for %q", desc.Key, desc.Bucket, title)
		case errors.Is(err, apperr.ErrNotFound):
			logger.Sugar.Warnf("Object %s in bucket %s for %q was already gone", desc.Key, desc.Bucket, title)
		case errors.Is(err, apperr.ErrTimeout):
			logger.Sugar.Errorf("Timed out deleting object %s from bucket %s for %q: %v", desc.Key, desc.Bucket, title, err)
		default:
			logger.Sugar.Errorf("Failed to delete object %s from bucket %s for %q: %v", desc.Key, desc.Bucket, title, err)
		}
	}
}

// RequestUpload signs a direct-to-bucket PUT URL. Nothing is uploaded or
// recorded here; the browser later saves a document carrying the returned
// key, bucket and region, which freezes the location for deletion. A signed
// URL that is never followed by a document write leaves at most one stray
// object behind.
func (s *DocumentService) RequestUpload(ctx context.Context, filename, contentType string) (*model.PresignResponse, error) {
	if s.Remote == nil {
		return nil, fmt.Errorf("%w: S3 is not enabled in configuration", apperr.ErrConfiguration)
	}
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", apperr.ErrValidation)
	}
	key := attachment.ObjectKey(filename)
	uploadURL, err := s.Remote.PresignPut(ctx, s.S3.Bucket, key, contentType, s.S3.PresignTTL)
	if err != nil {
		return nil, err
	}
	return &model.PresignResponse{
		UploadURL: uploadURL,
		PublicURL: s.S3.PublicURLBase + "/" + key,
		Name:      s.S3.Name,
		Key:       key,
		Bucket:    s.S3.Bucket,
		Region:    s.S3.Region,
	}, nil
}

// CaptureInbox files a quick note as a timestamped document through the
// same put contract as any other writer.
func (s *DocumentService) CaptureInbox(ctx context.Context, req model.InboxRequest) (*model.InboxResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: text is required", apperr.ErrValidation)
	}
	now := time.Now()
	stamp := now.Format("20060102150405") + "000"
	title := "Inbox " + now.Format("2006-01-02 15:04:05")
	tags := "Inbox"
	if t := strings.TrimSpace(req.Tags); t != "" {
		tags = "Inbox " + t
	}

	meta, err := json.Marshal(map[string]any{
		"title":    title,
		"text":     req.Text,
		"tags":     tags,
		"created":  stamp,
		"modified": stamp,
		"type":     "text/vnd.tiddlywiki",
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.Save(ctx, title, meta); err != nil {
		return nil, err
	}
	logger.Sugar.Infof("Inbox captured: %s", title)
	return &model.InboxResponse{Status: "ok", Title: title, Created: stamp}, nil
}

func isBinaryType(m map[string]any) bool {
	t, _ := m["type"].(string)
	return strings.HasPrefix(t, "image/") || t == "application/pdf" ||
		strings.HasPrefix(t, "video/") || strings.HasPrefix(t, "audio/")
}

// offloadBinary moves an inline base64 payload onto disk and rewrites the
// metadata to point at it. The filename is deterministic per title, so a
// re-save replaces the document's own previous payload.
func (s *DocumentService) offloadBinary(ctx context.Context, title string, m map[string]any) error {
	text, _ := m["text"].(string)
	if text == "" {
		return nil
	}
	if idx := strings.Index(text, ","); idx >= 0 {
		// Strip a data: URI prefix.
		text = text[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return fmt.Errorf("%w: text is not base64: %v", apperr.ErrValidation, err)
	}

	mime, _ := m["type"].(string)
	sum := sha256.Sum256([]byte(title))
	filename := hex.EncodeToString(sum[:]) + "." + attachment.ExtForMIME(mime)

	// Drop the previous payload for this title so the new bytes can land on
	// the canonical name instead of a disambiguation suffix.
	if prev, err := s.Repo.Get(ctx, title); err == nil {
		if desc := attachment.Classify(prev.Meta); desc.Kind == attachment.KindLocal {
			if _, err := s.Local.Delete(desc.Path); err != nil {
				logger.Sugar.Warnf("Could not remove replaced attachment %s for %q: %v", desc.Path, title, err)
			}
		}
	}

	name, err := s.Local.Store(data, filename)
	if err != nil {
		return err
	}
	m["text"] = ""
	m[attachment.FieldCanonicalURI] = "/files/" + name
	m[attachment.FieldStorage] = attachment.StorageLocal
	logger.Sugar.Infof("Offloaded binary payload for %q to %s", title, name)
	return nil
}
