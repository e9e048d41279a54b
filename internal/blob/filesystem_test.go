package blob

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"
)

func TestFilesystemStore_PutGetDelete(t *testing.T) {
	root := filepath.Join(t.TempDir(), "blobs")
	store, err := NewFilesystemStore(root)
	if err != nil {
		t.Fatalf("new filesystem store: %v", err)
	}

	key := "received/email/abc@host"
	payload := []byte("hello")
	if err := store.Put(context.Background(), key, "message/rfc822", payload); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("unexpected payload: %q", string(got))
	}

	if err := store.Delete(context.Background(), key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = store.Get(context.Background(), key)
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestFilesystemStore_Move(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem store: %v", err)
	}

	if err := store.Put(ctx, "received/http/1", "application/json", []byte("{}")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Move(ctx, "received/http/1", "archived/http/1", map[string]string{"ingest-id": "m-1"}); err != nil {
		t.Fatalf("move: %v", err)
	}

	if _, err := store.Get(ctx, "received/http/1"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected source removed, got %v", err)
	}
	got, err := store.Get(ctx, "archived/http/1")
	if err != nil || string(got) != "{}" {
		t.Fatalf("expected moved object, got %q, %v", got, err)
	}
	meta, err := store.Metadata("archived/http/1")
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta["ingest-id"] != "m-1" {
		t.Fatalf("expected ingest-id metadata, got %v", meta)
	}

	if err := store.Move(ctx, "received/http/1", "archived/http/1", nil); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound on second move, got %v", err)
	}
}

func TestFilesystemStore_List(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem store: %v", err)
	}
	for _, key := range []string{"received/email/a", "received/email/b", "received/http/c", "archived/email/d"} {
		if err := store.Put(ctx, key, "", []byte(key)); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	if err := store.Move(ctx, "received/email/b", "archived/email/b", map[string]string{"ingest-id": "x"}); err != nil {
		t.Fatalf("move: %v", err)
	}

	objects, err := store.List(ctx, "received/email/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(objects) != 1 || objects[0].Key != "received/email/a" {
		t.Fatalf("unexpected received objects: %+v", objects)
	}

	archived, err := store.List(ctx, "archived/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var keys []string
	for _, o := range archived {
		keys = append(keys, o.Key)
		if o.LastModified.IsZero() || o.Size == 0 {
			t.Errorf("expected size and mtime for %s", o.Key)
		}
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "archived/email/b" || keys[1] != "archived/email/d" {
		t.Fatalf("unexpected archived keys (sidecars must be skipped): %v", keys)
	}
}

func TestCopySource(t *testing.T) {
	got := copySource("bucket", "received/email/a+b@host")
	if got != "bucket/received/email/a%2Bb@host" {
		t.Fatalf("unexpected copy source %q", got)
	}
}
