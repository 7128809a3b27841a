// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package claimstore

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/claimcheck/lib/clock"
	"github.com/bureau-foundation/claimcheck/lib/stream"
	"github.com/bureau-foundation/claimcheck/lib/testutil"
)

var testEpoch = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

// newTestStore returns a store rooted in a fresh temp directory. An
// empty SharedDirectory gets one; LocalDirectory is left alone.
func newTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	if cfg.SharedDirectory == "" {
		cfg.SharedDirectory = filepath.Join(t.TempDir(), "shared")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Fake(testEpoch)
	}
	store, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

// writeCapture writes payload through a plain sink and returns its
// location.
func writeCapture(t *testing.T, store *Store, kind CaptureKind, payload []byte) Location {
	t.Helper()
	sink, err := store.Open(kind, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := sink.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return sink.Location()
}

func redeemAll(t *testing.T, store *Store, location string) []byte {
	t.Helper()
	reader, err := store.Redeem(location)
	if err != nil {
		t.Fatalf("Redeem(%q): %v", location, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("reading %q: %v", location, err)
	}
	return data
}

// recordingTransaction collects enlisted rollbacks.
type recordingTransaction struct {
	rollbacks []func() error
}

func (tx *recordingTransaction) Enlist(rollback func() error) {
	tx.rollbacks = append(tx.rollbacks, rollback)
}

func (tx *recordingTransaction) abort() error {
	var errs []error
	for _, rollback := range tx.rollbacks {
		errs = append(errs, rollback())
	}
	return errors.Join(errs...)
}

func TestNewDefaults(t *testing.T) {
	store := newTestStore(t, Config{})
	if store.Threshold() != DefaultThreshold {
		t.Errorf("Threshold() = %d, want %d", store.Threshold(), DefaultThreshold)
	}
	if store.Compression() != CompressionZstd {
		t.Errorf("Compression() = %v, want zstd", store.Compression())
	}
	if store.RequiresRelocation() {
		t.Error("store without a local directory requires relocation")
	}
	if !filepath.IsAbs(store.SharedDirectory()) {
		t.Errorf("SharedDirectory() = %q, want absolute", store.SharedDirectory())
	}
	if _, err := os.Stat(store.SharedDirectory()); err != nil {
		t.Errorf("shared directory not created: %v", err)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no shared directory", Config{}},
		{"negative threshold", Config{SharedDirectory: t.TempDir(), Threshold: -1}},
		{"unknown compression", Config{SharedDirectory: t.TempDir(), Compression: 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("New accepted the config")
			}
		})
	}
}

func TestPlainSinkRoundTrip(t *testing.T) {
	store := newTestStore(t, Config{})
	payload := bytes.Repeat([]byte("<item/>"), 1000)

	location := writeCapture(t, store, KindTracked, payload)
	if location.Partition() != "20261014" {
		t.Errorf("partition = %q, want the clock's day", location.Partition())
	}
	path := filepath.Join(store.SharedDirectory(), filepath.FromSlash(string(location)))
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("payload not at its shared path: %v", err)
	}

	record, err := ReadDigest(path)
	if err != nil {
		t.Fatalf("ReadDigest: %v", err)
	}
	if record.Size != int64(len(payload)) {
		t.Errorf("sidecar size = %d, want %d", record.Size, len(payload))
	}
	if !bytes.Equal(record.Digest, HashPayload(payload)) {
		t.Error("sidecar digest does not match the payload")
	}
	if record.Kind != KindTracked {
		t.Errorf("sidecar kind = %v, want tracked", record.Kind)
	}
	if record.CapturedAt != testEpoch.UnixMilli() {
		t.Errorf("sidecar captured_at = %d, want %d", record.CapturedAt, testEpoch.UnixMilli())
	}

	if got := redeemAll(t, store, string(location)); !bytes.Equal(got, payload) {
		t.Errorf("redeemed %d bytes, want %d", len(got), len(payload))
	}
}

func TestSinkWriteAfterClose(t *testing.T) {
	store := newTestStore(t, Config{})
	sink, err := store.Open(KindTracked, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_, err = sink.Write([]byte("late"))
	testutil.RequireErrorIs(t, err, stream.ErrDisposed)
	if err := sink.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestCreateRejectsDuplicateLocation(t *testing.T) {
	store := newTestStore(t, Config{})
	location := writeCapture(t, store, KindTracked, []byte("first"))
	if _, err := store.Create(location, KindTracked, nil); err == nil {
		t.Error("Create overwrote an existing capture")
	}
}

func TestPlainSinkDiscard(t *testing.T) {
	store := newTestStore(t, Config{})
	sink, err := store.Open(KindClaimed, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := sink.Write([]byte("partial")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sink.Discard(); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	_, err = store.Redeem(string(sink.Location()))
	testutil.RequireErrorIs(t, err, ErrNotFound)
}

func TestStagedSinkCommit(t *testing.T) {
	store := newTestStore(t, Config{})
	tx := &recordingTransaction{}
	payload := []byte("<order>42</order>")

	sink, err := store.Open(KindTracked, tx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	committer, ok := sink.(stream.Committer)
	if !ok {
		t.Fatal("transactional sink does not implement Committer")
	}
	if _, err := sink.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Not visible until commit.
	_, err = store.Redeem(string(sink.Location()))
	testutil.RequireErrorIs(t, err, ErrNotFound)

	if err := committer.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got := redeemAll(t, store, string(sink.Location())); !bytes.Equal(got, payload) {
		t.Errorf("redeemed %q, want %q", got, payload)
	}
	if len(tx.rollbacks) != 1 {
		t.Fatalf("enlisted %d rollbacks, want 1", len(tx.rollbacks))
	}

	staging, err := os.ReadDir(filepath.Join(store.SharedDirectory(), stagingDirectory))
	if err != nil {
		t.Fatalf("reading staging directory: %v", err)
	}
	if len(staging) != 0 {
		t.Errorf("staging directory still holds %d entries", len(staging))
	}

	if err := tx.abort(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	_, err = store.Redeem(string(sink.Location()))
	testutil.RequireErrorIs(t, err, ErrNotFound)
}

func TestStagedSinkCloseWithoutCommit(t *testing.T) {
	store := newTestStore(t, Config{})
	tx := &recordingTransaction{}
	sink, err := store.Open(KindTracked, tx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := sink.Write([]byte("abandoned")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(tx.rollbacks) != 0 {
		t.Errorf("uncommitted sink enlisted %d rollbacks", len(tx.rollbacks))
	}
	staging, err := os.ReadDir(filepath.Join(store.SharedDirectory(), stagingDirectory))
	if err != nil {
		t.Fatalf("reading staging directory: %v", err)
	}
	if len(staging) != 0 {
		t.Errorf("staging directory still holds %d entries", len(staging))
	}
	err = sink.(stream.Committer).Commit()
	testutil.RequireErrorIs(t, err, stream.ErrDisposed)
}

func TestRedeemResolution(t *testing.T) {
	store := newTestStore(t, Config{})
	payload := []byte("resolved")
	location := writeCapture(t, store, KindTracked, payload)
	absolute := filepath.Join(store.SharedDirectory(), filepath.FromSlash(string(location)))
	fileURL := (&url.URL{Scheme: "file", Path: filepath.ToSlash(absolute)}).String()

	for name, input := range map[string]string{
		"relative": string(location),
		"absolute": absolute,
		"file url": fileURL,
	} {
		t.Run(name, func(t *testing.T) {
			if got := redeemAll(t, store, input); !bytes.Equal(got, payload) {
				t.Errorf("redeemed %q, want %q", got, payload)
			}
		})
	}
}

func TestRedeemErrors(t *testing.T) {
	store := newTestStore(t, Config{})

	_, err := store.Redeem("20260101/01HZY5V4X9M5N2QW3E4R5T6Y7Z")
	testutil.RequireErrorIs(t, err, ErrNotFound)
	testutil.RequireErrorIs(t, err, fs.ErrNotExist)

	_, err = store.Redeem("20260101")
	testutil.RequireErrorIs(t, err, ErrNotFound, "partition directory")

	for _, escaping := range []string{"../outside", "20260101/../../outside", ".."} {
		if _, err := store.Redeem(escaping); err == nil {
			t.Errorf("Redeem(%q) escaped the shared directory", escaping)
		}
	}
	if _, err := store.Redeem(""); err == nil {
		t.Error("Redeem accepted an empty location")
	}
	if _, err := store.Redeem("file://elsewhere/tmp/x"); err == nil {
		t.Error("Redeem accepted a remote file URL")
	}
}

func TestRedeemDetectsTampering(t *testing.T) {
	store := newTestStore(t, Config{})
	payload := []byte("original content")
	location := writeCapture(t, store, KindTracked, payload)
	path := filepath.Join(store.SharedDirectory(), filepath.FromSlash(string(location)))

	tampered := bytes.Clone(payload)
	tampered[0] = 'O'
	if err := os.WriteFile(path, tampered, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	reader, err := store.Redeem(string(location))
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	defer reader.Close()
	_, err = io.ReadAll(reader)
	testutil.RequireErrorIs(t, err, ErrDigestMismatch)

	if err := os.WriteFile(path, payload[:4], 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	reader, err = store.Redeem(string(location))
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	defer reader.Close()
	_, err = io.ReadAll(reader)
	testutil.RequireErrorIs(t, err, ErrDigestMismatch, "truncated payload")

	unverified := newTestStore(t, Config{SharedDirectory: store.SharedDirectory(), SkipDigestVerification: true})
	if got := redeemAll(t, unverified, string(location)); !bytes.Equal(got, payload[:4]) {
		t.Errorf("unverified redeem = %q", got)
	}
}

func TestRedeemWithoutSidecar(t *testing.T) {
	store := newTestStore(t, Config{})
	path := filepath.Join(store.SharedDirectory(), "foreign.xml")
	if err := os.WriteFile(path, []byte("<foreign/>"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if got := redeemAll(t, store, "foreign.xml"); string(got) != "<foreign/>" {
		t.Errorf("redeemed %q", got)
	}
}

func TestTokenFor(t *testing.T) {
	direct := newTestStore(t, Config{})
	location, err := direct.NewLocation()
	if err != nil {
		t.Fatalf("NewLocation: %v", err)
	}
	if token := direct.TokenFor(location); token.Kind != TokenImmediate {
		t.Errorf("direct store issued a %v token", token.Kind)
	}

	root := t.TempDir()
	relocating := newTestStore(t, Config{
		LocalDirectory:  filepath.Join(root, "local"),
		SharedDirectory: filepath.Join(root, "shared"),
	})
	if token := relocating.TokenFor(location); token.Kind != TokenPendingTransfer {
		t.Errorf("relocating store issued a %v token", token.Kind)
	}
}

func TestCheckInAndRelocation(t *testing.T) {
	root := t.TempDir()
	store := newTestStore(t, Config{
		LocalDirectory:  filepath.Join(root, "local"),
		SharedDirectory: filepath.Join(root, "shared"),
	})
	if !store.RequiresRelocation() {
		t.Fatal("distinct directories do not require relocation")
	}

	payload := []byte("<claimed/>")
	location := writeCapture(t, store, KindClaimed, payload)
	tracked := writeCapture(t, store, KindTracked, []byte("<tracked/>"))

	checkIn := store.CheckInPath(location, KindClaimed)
	if filepath.Ext(checkIn) != ".chk" {
		t.Errorf("claimed check-in path %q, want .chk extension", checkIn)
	}
	if ext := filepath.Ext(store.CheckInPath(tracked, KindTracked)); ext != ".trk" {
		t.Errorf("tracked check-in extension %q, want .trk", ext)
	}
	if _, err := os.Stat(checkIn); err != nil {
		t.Fatalf("claimed payload not checked in: %v", err)
	}

	token := store.TokenFor(location)
	_, err := store.RedeemToken(token)
	testutil.RequireErrorIs(t, err, stream.ErrInvalidState)

	// Stand in for the relocation job: move payload and sidecar to the
	// shared directory under the plain location name.
	shared := filepath.Join(store.SharedDirectory(), filepath.FromSlash(string(location)))
	if err := os.MkdirAll(filepath.Dir(shared), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.Rename(checkIn, shared); err != nil {
		t.Fatalf("relocating payload: %v", err)
	}
	if err := os.Rename(checkIn+digestSuffix, shared+digestSuffix); err != nil {
		t.Fatalf("relocating sidecar: %v", err)
	}

	reader, err := store.RedeemToken(token.Transferred())
	if err != nil {
		t.Fatalf("RedeemToken: %v", err)
	}
	defer reader.Close()
	got, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("reading relocated payload: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("redeemed %q, want %q", got, payload)
	}
}

func TestRedeemTokenImmediate(t *testing.T) {
	store := newTestStore(t, Config{})
	location := writeCapture(t, store, KindClaimed, []byte("now"))
	reader, err := store.RedeemToken(store.TokenFor(location))
	if err != nil {
		t.Fatalf("RedeemToken: %v", err)
	}
	defer reader.Close()
	if got, _ := io.ReadAll(reader); string(got) != "now" {
		t.Errorf("redeemed %q", got)
	}

	_, err = store.RedeemToken(Token{Kind: TokenImmediate, Location: "bogus"})
	if err == nil {
		t.Error("RedeemToken accepted a malformed location")
	}
}
